package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// errorDetail mirrors the harvest API error model.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

// sourceInfo mirrors one entry of GET /api/v1/sources.
type sourceInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	BaseURL     string `json:"base_url"`
	Paginated   bool   `json:"paginated"`
	DetailPages bool   `json:"detail_pages"`
}

type sourcesResponse struct {
	Sources []sourceInfo `json:"sources"`
	Error   *errorDetail `json:"error"`
}

// extractResponse mirrors the harvest extract API response.
type extractResponse struct {
	Success     bool            `json:"success"`
	Kind        string          `json:"kind"`
	Data        json.RawMessage `json:"data"`
	Retryable   bool            `json:"retryable"`
	CacheStatus string          `json:"cache_status"`
	Timing      struct {
		TotalMs int64 `json:"total_ms"`
	} `json:"timing"`
	Error *errorDetail `json:"error"`
}

// client talks to a running harvest API.
type client struct {
	http   *http.Client
	apiURL string
	apiKey string
}

func main() {
	apiURL := os.Getenv("HARVEST_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("HARVEST_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "HARVEST_API_KEY is required")
		os.Exit(1)
	}

	c := &client{
		// Extractions with detail pages and pagination can take minutes.
		http:   &http.Client{Timeout: 10 * time.Minute},
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
	}

	if err := server.ServeStdio(newServer(c)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *client) *server.MCPServer {
	s := server.NewMCPServer(
		"harvest",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	listSourcesTool := mcp.NewTool("list_sources",
		mcp.WithDescription("List the sources harvest can extract from, with their record kind and whether they paginate."),
	)
	s.AddTool(listSourcesTool, c.handleListSources)

	extractSourceTool := mcp.NewTool("extract_source",
		mcp.WithDescription("Extract a validated record from a registered source. Listing sources return items; latest-post sources return title, author, post URL and response count."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("ID of a registered source, e.g. 'books' or 'medium'"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Listing pages to walk (default: 1, max: 50)"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Serve a cached record younger than this many milliseconds (default: 0, no cache)"),
		),
	)
	s.AddTool(extractSourceTool, c.handleExtractSource)

	return s
}

// do sends a request to the harvest API and returns the response body.
func (c *client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (c *client) handleListSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/api/v1/sources", nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sources request failed: %v", err)), nil
	}

	var resp sourcesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse sources response: %v", err)), nil
	}
	if resp.Error != nil {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d sources:\n\n", len(resp.Sources)))
	for _, s := range resp.Sources {
		var traits []string
		if s.Paginated {
			traits = append(traits, "paginated")
		}
		if s.DetailPages {
			traits = append(traits, "detail pages")
		}
		line := fmt.Sprintf("- %s (%s): %s %s", s.ID, s.Kind, s.Label, s.BaseURL)
		if len(traits) > 0 {
			line += " [" + strings.Join(traits, ", ") + "]"
		}
		sb.WriteString(line + "\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleExtractSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}

	payload := map[string]any{"source": source}
	if pages := request.GetInt("max_pages", 0); pages > 0 {
		payload["max_pages"] = pages
	}
	if maxAge := request.GetInt("max_age", 0); maxAge > 0 {
		payload["max_age"] = maxAge
	}

	respBody, err := c.do(ctx, http.MethodPost, "/api/v1/extract", payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("extract request failed: %v", err)), nil
	}

	var extResp extractResponse
	if err := json.Unmarshal(respBody, &extResp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse extract response: %v", err)), nil
	}

	if !extResp.Success {
		errMsg := "extraction failed"
		if extResp.Error != nil {
			errMsg = fmt.Sprintf("[%s] %s", extResp.Error.Code, extResp.Error.Message)
			if extResp.Error.URL != "" {
				errMsg += " (" + extResp.Error.URL + ")"
			}
		}
		if extResp.Retryable {
			errMsg += "; retrying may succeed"
		}
		return mcp.NewToolResultError(errMsg), nil
	}

	// Format the record as pretty JSON.
	var prettyData bytes.Buffer
	if err := json.Indent(&prettyData, extResp.Data, "", "  "); err != nil {
		prettyData.Write(extResp.Data)
	}

	header := fmt.Sprintf("Source: %s\nKind: %s\nTook: %dms", source, extResp.Kind, extResp.Timing.TotalMs)
	if extResp.CacheStatus != "" {
		header += "\nCache: " + extResp.CacheStatus
	}
	return mcp.NewToolResultText(header + "\n\n" + prettyData.String()), nil
}
