/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PivotLLM/Foreman/global"
)

func TestFetch(t *testing.T) {
	var gotKey, gotURL, gotRenderJS string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		gotURL = r.URL.Query().Get("url")
		gotRenderJS = r.URL.Query().Get("render_js")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("page body"))
	}))
	defer ts.Close()

	c := NewClient("sb-key", nil, WithBaseURL(ts.URL))

	contentType, body, err := c.Fetch(context.Background(), "https://example.com/page", false)
	if err != nil {
		t.Fatalf("Fetch() = %v", err)
	}

	if gotKey != "sb-key" {
		t.Errorf("api_key = %s, want sb-key", gotKey)
	}
	if gotURL != "https://example.com/page" {
		t.Errorf("url = %s", gotURL)
	}
	if gotRenderJS != "false" {
		t.Errorf("render_js = %s, want false", gotRenderJS)
	}
	if contentType != "text/plain" {
		t.Errorf("contentType = %s, want text/plain", contentType)
	}
	if string(body) != "page body" {
		t.Errorf("body = %q, want page body", body)
	}
}

func TestFetchAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer ts.Close()

	c := NewClient("key", nil, WithBaseURL(ts.URL))
	if _, _, err := c.Fetch(context.Background(), "https://example.com", true); err == nil {
		t.Fatal("Fetch() = nil, want error on non-200 status")
	}
}

func TestHandleTextContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain text page"))
	}))
	defer ts.Close()

	c := NewClient("key", nil, WithBaseURL(ts.URL))
	desc := c.Descriptor()

	if desc.Name != global.ToolScrapeURL {
		t.Errorf("Name = %s, want %s", desc.Name, global.ToolScrapeURL)
	}

	value, err := desc.Sync(context.Background(), map[string]interface{}{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("Sync() = %v", err)
	}

	result, ok := value.(map[string]interface{})
	if !ok {
		t.Fatalf("value = %T, want map", value)
	}
	if result["format"] != "text" {
		t.Errorf("format = %v, want text", result["format"])
	}
	if result["content"] != "plain text page" {
		t.Errorf("content = %v", result["content"])
	}
}

func TestHandleBinaryContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0xff, 0xfe, 0x00, 0x01})
	}))
	defer ts.Close()

	c := NewClient("key", nil, WithBaseURL(ts.URL))
	desc := c.Descriptor()

	value, err := desc.Sync(context.Background(), map[string]interface{}{"url": "https://example.com/blob"})
	if err != nil {
		t.Fatalf("Sync() = %v", err)
	}

	result, ok := value.(map[string]interface{})
	if !ok {
		t.Fatalf("value = %T, want map", value)
	}
	if result["note"] == nil {
		t.Error("binary content should return a note instead of content")
	}
	if result["bytes"] != 4 {
		t.Errorf("bytes = %v, want 4", result["bytes"])
	}
}

func TestHandleRejectsIncompleteURL(t *testing.T) {
	c := NewClient("key", nil)
	desc := c.Descriptor()

	for _, u := range []string{"", "example.com", "ftp://example.com"} {
		if _, err := desc.Sync(context.Background(), map[string]interface{}{"url": u}); err == nil {
			t.Errorf("Sync(%q) = nil, want error", u)
		}
	}
}
