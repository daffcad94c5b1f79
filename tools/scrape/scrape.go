/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package scrape implements the scrape_url tool: fetches a page through the
// ScrapingBee rendering API and reduces the HTML to readable markdown.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tenebris-tech/x2md/convert"

	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/registry"
	"github.com/PivotLLM/Foreman/schema"
)

// DefaultBaseURL is the ScrapingBee API endpoint
const DefaultBaseURL = "https://app.scrapingbee.com/api/v1/"

// Client calls the ScrapingBee API
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     *logging.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used in tests)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a scraping client with a bounded request timeout
func NewClient(apiKey string, logger *logging.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: global.DefaultHTTPTimeoutSeconds * time.Second},
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves one page. Returns the response content type and body.
func (c *Client) Fetch(ctx context.Context, pageURL string, renderJS bool) (string, []byte, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("url", pageURL)
	params.Set("render_js", fmt.Sprintf("%t", renderJS))
	params.Set("premium_proxy", "true")
	// Ads and secondary resources only slow the render down
	params.Set("block_ads", "true")
	params.Set("block_resources", "true")
	params.Set("timeout", "15000")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to build scrape request: %w", err)
	}
	req.Header.Set("Accept", "*/*")

	if c.logger != nil {
		c.logger.Infof("Scraping %s (render_js=%t)", pageURL, renderJS)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("scrape request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read scrape response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("scrape API returned status %d for %s: %s", resp.StatusCode, pageURL, string(body))
	}

	return resp.Header.Get("Content-Type"), body, nil
}

// Markdown converts fetched HTML to markdown text. The content is spooled to
// a temporary file because the converter operates on files.
func (c *Client) Markdown(html []byte) (string, error) {
	dir, err := os.MkdirTemp("", "foreman-scrape-")
	if err != nil {
		return "", fmt.Errorf("failed to create spool directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	htmlPath := filepath.Join(dir, "page.html")
	if err := os.WriteFile(htmlPath, html, 0644); err != nil {
		return "", fmt.Errorf("failed to spool page: %w", err)
	}

	converter := convert.New(
		convert.WithRecursion(false),
		convert.WithSkipExisting(false),
	)
	result, err := converter.Convert(htmlPath)
	if err != nil {
		return "", fmt.Errorf("conversion failed: %w", err)
	}
	if result.Converted == 0 {
		return "", fmt.Errorf("converter did not produce markdown (%d failed, %d skipped)", result.Failed, result.Skipped)
	}

	mdPath := strings.TrimSuffix(htmlPath, ".html") + ".md"
	data, err := os.ReadFile(mdPath)
	if err != nil {
		return "", fmt.Errorf("failed to read converted page: %w", err)
	}
	return string(data), nil
}

// Descriptor returns the scrape_url tool descriptor
func (c *Client) Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        global.ToolScrapeURL,
		Description: "Fetch a webpage and return its readable content as markdown. JavaScript rendering is enabled by default. Provide complete URLs including the protocol. Complex pages may take up to 30 seconds.",
		Annotations: registry.Annotations{ReadOnly: true, OpenWorld: true},
		Schema: schema.Object{Fields: []schema.Field{
			{Name: "url", Kind: schema.String, Description: "The complete URL of the webpage to read", Required: true},
			{Name: "render_js", Kind: schema.Boolean, Description: "Render JavaScript before extracting content (default: true)"},
		}},
		Sync: c.handle,
	}
}

func (c *Client) handle(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	pageURL := registry.StringArg(args, "url", "")
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return nil, fmt.Errorf("url must be a complete URL including protocol, got: %s", pageURL)
	}
	renderJS := registry.BoolArg(args, "render_js", true)

	contentType, body, err := c.Fetch(ctx, pageURL, renderJS)
	if err != nil {
		return nil, err
	}

	if !global.IsValidUTF8(body) {
		return map[string]interface{}{
			"url":          pageURL,
			"content_type": contentType,
			"bytes":        len(body),
			"note":         "binary content not returned",
		}, nil
	}

	content := string(body)
	format := "text"
	if strings.Contains(contentType, "html") || strings.Contains(content, "<html") {
		if md, err := c.Markdown(body); err == nil {
			content = md
			format = "markdown"
		} else if c.logger != nil {
			c.logger.Warnf("Markdown conversion failed for %s, returning raw content: %v", pageURL, err)
		}
	}

	return map[string]interface{}{
		"url":     pageURL,
		"format":  format,
		"content": content,
	}, nil
}
