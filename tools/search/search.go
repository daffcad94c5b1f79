/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package search implements the brave_search tool: a thin client for the
// Brave web search API.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/registry"
	"github.com/PivotLLM/Foreman/schema"
)

// DefaultBaseURL is the Brave web search endpoint
const DefaultBaseURL = "https://api.search.brave.com/res/v1/web/search"

// Client calls the Brave search API
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

// NewClient creates a search client with a bounded request timeout
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

// Response is the subset of the Brave API response we surface
type Response struct {
	Query *QueryInfo  `json:"query,omitempty"`
	Web   *WebResults `json:"web,omitempty"`
}

// QueryInfo echoes how the API interpreted the query
type QueryInfo struct {
	Original             string `json:"original"`
	Altered              string `json:"altered,omitempty"`
	MoreResultsAvailable bool   `json:"more_results_available,omitempty"`
}

// WebResults holds the web search result list
type WebResults struct {
	Results []Result `json:"results"`
}

// Result is one web search hit
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	PageAge     string `json:"page_age,omitempty"`
	Language    string `json:"language,omitempty"`
}

// Search performs one web search. Offset selects a results page for paging
// through more than one screen of results.
func (c *Client) Search(ctx context.Context, query string, count, offset int) (*Response, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	params.Set("safesearch", "moderate")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	if c.logger != nil {
		n := 0
		if result.Web != nil {
			n = len(result.Web.Results)
		}
		c.logger.Debugf("Search for %q returned %d result(s)", query, n)
	}

	return &result, nil
}

// Descriptor returns the brave_search tool descriptor
func (c *Client) Descriptor() *registry.Descriptor {
	return &registry.Descriptor{
		Name:        global.ToolBraveSearch,
		Description: "Search the web using the Brave search engine. Returns result titles, URLs, and descriptions. Use scrape_url to read a result in full.",
		Annotations: registry.Annotations{ReadOnly: true, OpenWorld: true},
		Schema: schema.Object{Fields: []schema.Field{
			{Name: "query", Kind: schema.String, Description: "The search query - be specific and include relevant keywords", Required: true},
			{Name: "count", Kind: schema.Number, Description: "Number of results to return (max 20)"},
			{Name: "offset", Kind: schema.Number, Description: "Results page to return, for paging (default: 0)"},
		}},
		Sync: c.handle,
	}
}

func (c *Client) handle(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query := registry.StringArg(args, "query", "")
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	count, err := global.ValidateSearchCount(int(registry.NumberArg(args, "count", 0)))
	if err != nil {
		return nil, err
	}

	offset := int(registry.NumberArg(args, "offset", 0))
	if offset < 0 {
		return nil, fmt.Errorf("offset must not be negative")
	}

	resp, err := c.Search(ctx, query, count, offset)
	if err != nil {
		return nil, err
	}

	var results []Result
	if resp.Web != nil {
		results = resp.Web.Results
	}

	return map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}, nil
}
