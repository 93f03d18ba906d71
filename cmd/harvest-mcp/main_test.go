package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &client{http: srv.Client(), apiURL: srv.URL, apiKey: "k"}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListSources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sources", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"sources":[
			{"id":"books","label":"books.toscrape.com","kind":"listing","base_url":"https://books.toscrape.com/","paginated":true},
			{"id":"medium","label":"medium.com","kind":"latest_post","base_url":"https://medium.com/tag/programming","detail_pages":true}]}`))
	})

	res, err := c.handleListSources(context.Background(), call(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "2 sources")
	assert.Contains(t, out, "- books (listing)")
	assert.Contains(t, out, "[paginated]")
	assert.Contains(t, out, "[detail pages]")
}

func TestExtractSource(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "books", body["source"])
		assert.Equal(t, 3.0, body["max_pages"])
		assert.NotContains(t, body, "max_age")
		_, _ = w.Write([]byte(`{"success":true,"kind":"paged_listing","data":{"sourceTitle":"All products","pagesVisited":3},"timing":{"total_ms":1200}}`))
	})

	res, err := c.handleExtractSource(context.Background(), call(map[string]any{"source": "books", "max_pages": 3.0}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "Kind: paged_listing")
	assert.Contains(t, out, `"pagesVisited": 3`)
}

func TestExtractSourceFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"retryable":true,"error":{"code":"NAVIGATION_FAILED","message":"timed out","url":"https://medium.com/tag/programming"}}`))
	})

	res, err := c.handleExtractSource(context.Background(), call(map[string]any{"source": "medium"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "[NAVIGATION_FAILED] timed out (https://medium.com/tag/programming)")
	assert.Contains(t, out, "retrying may succeed")

	res, err = c.handleExtractSource(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "source is required", text(t, res))
}
