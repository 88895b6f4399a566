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

// apiError mirrors the fetchwise API error detail.
type apiError struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *apiError) String() string {
	if e.Kind != "" {
		return fmt.Sprintf("[%s/%s] %s", e.Code, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// retrieveResponse mirrors the fetchwise retrieve response.
type retrieveResponse struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	FinalURL   string `json:"final_url"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	EngineUsed string `json:"engine_used"`
	Escalated  bool   `json:"escalated"`
	Tokens     *struct {
		OriginalEstimate int     `json:"original_estimate"`
		CleanedEstimate  int     `json:"cleaned_estimate"`
		SavingsPercent   float64 `json:"savings_percent"`
	} `json:"tokens"`
	Error *apiError `json:"error"`
}

// searchResponse mirrors the fetchwise search response.
type searchResponse struct {
	Success bool      `json:"success"`
	State   string    `json:"state"`
	Pages   int       `json:"pages"`
	Links   []string  `json:"links"`
	Log     string    `json:"log"`
	Error   *apiError `json:"error"`
}

// markdownResponse mirrors the fetchwise markdown response.
type markdownResponse struct {
	Success  bool      `json:"success"`
	Markdown string    `json:"markdown"`
	Title    string    `json:"title"`
	Error    *apiError `json:"error"`
}

// client calls the fetchwise HTTP API.
type client struct {
	http   *http.Client
	apiURL string
	apiKey string
}

func main() {
	apiURL := os.Getenv("FETCHWISE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("FETCHWISE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "FETCHWISE_API_KEY is required")
		os.Exit(1)
	}

	c := &client{
		http:   &http.Client{Timeout: 600 * time.Second},
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
	}

	s := server.NewMCPServer(
		"fetchwise",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	retrieveTool := mcp.NewTool("retrieve_url",
		mcp.WithDescription("Retrieve a web page. Tries a plain HTTP fetch first and switches to a headless browser when the page needs JavaScript or is behind an anti-bot check."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to retrieve"),
		),
		mcp.WithString("output_format",
			mcp.Description("'raw' returns the body as served, 'markdown' (default) converts HTML to Markdown"),
			mcp.Enum("raw", "markdown"),
		),
		mcp.WithString("extract_mode",
			mcp.Description("'raw' (default) converts the whole page, 'article' extracts the main content first"),
			mcp.Enum("raw", "article"),
		),
		mcp.WithString("fetch_mode",
			mcp.Description("'auto' (default) or 'browser' to skip the plain HTTP attempt"),
			mcp.Enum("auto", "browser"),
		),
	)
	s.AddTool(retrieveTool, c.handleRetrieve(false))

	postTool := mcp.NewTool("post_form",
		mcp.WithDescription("Submit a form-encoded POST request and return the response body."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to post to"),
		),
		mcp.WithObject("form",
			mcp.Required(),
			mcp.Description("Form fields as a flat object of strings"),
		),
		mcp.WithString("output_format",
			mcp.Description("'raw' (default) or 'markdown'"),
			mcp.Enum("raw", "markdown"),
		),
	)
	s.AddTool(postTool, c.handleRetrieve(true))

	searchTool := mcp.NewTool("web_search",
		mcp.WithDescription("Search the web and return result links with titles and snippets."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search phrase"),
		),
		mcp.WithString("engine",
			mcp.Description("Search provider: 'searx' (default), 'baidu' or 'bing'"),
			mcp.Enum("searx", "baidu", "bing"),
		),
		mcp.WithNumber("target",
			mcp.Description("Number of links to collect (default: 10, max: 100)"),
		),
	)
	s.AddTool(searchTool, c.handleSearch())

	markdownTool := mcp.NewTool("html_to_markdown",
		mcp.WithDescription("Convert an HTML document to Markdown without fetching anything."),
		mcp.WithString("html",
			mcp.Required(),
			mcp.Description("The HTML to convert"),
		),
		mcp.WithBoolean("preprocess",
			mcp.Description("Strip script/style and keep only <body> (default: true)"),
		),
	)
	s.AddTool(markdownTool, c.handleMarkdown())

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// post sends payload to the fetchwise API and decodes the JSON reply into out.
// Non-2xx replies still decode, since they carry the error detail.
func (c *client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

func (c *client) handleRetrieve(post bool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]any{"url": url}
		format := "markdown"
		if post {
			form, ok := request.GetArguments()["form"].(map[string]any)
			if !ok || len(form) == 0 {
				return mcp.NewToolResultError("form is required and must be an object"), nil
			}
			fields := make(map[string]string, len(form))
			for k, v := range form {
				fields[k] = fmt.Sprint(v)
			}
			payload["form"] = fields
			format = "raw"
		}
		payload["output_format"] = request.GetString("output_format", format)
		if mode := request.GetString("extract_mode", ""); mode != "" {
			payload["extract_mode"] = mode
		}
		if mode := request.GetString("fetch_mode", ""); mode != "" {
			payload["fetch_mode"] = mode
		}

		var resp retrieveResponse
		if err := c.post(ctx, "/api/v1/retrieve", payload, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			if resp.Error != nil {
				return mcp.NewToolResultError(resp.Error.String()), nil
			}
			return mcp.NewToolResultError("retrieval failed"), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Title: %s\nSource: %s\nStatus: %d (engine: %s)\n\n", resp.Title, resp.FinalURL, resp.StatusCode, resp.EngineUsed)
		sb.WriteString(resp.Content)
		if resp.Tokens != nil && payload["output_format"] == "markdown" {
			fmt.Fprintf(&sb, "\n\n---\nTokens: %d (saved %.0f%% from original %d)",
				resp.Tokens.CleanedEstimate, resp.Tokens.SavingsPercent, resp.Tokens.OriginalEstimate)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func (c *client) handleSearch() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		payload := map[string]any{"query": query}
		if engine := request.GetString("engine", ""); engine != "" {
			payload["engine"] = engine
		}
		if target := request.GetInt("target", 0); target > 0 {
			payload["target"] = target
		}

		var resp searchResponse
		if err := c.post(ctx, "/api/v1/search", payload, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			if resp.Error != nil {
				return mcp.NewToolResultError(resp.Error.String()), nil
			}
			return mcp.NewToolResultError("search failed"), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d links from %d pages (%s)\n\n", len(resp.Links), resp.Pages, resp.State)
		sb.WriteString(resp.Log)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func (c *client) handleMarkdown() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		html, err := request.RequireString("html")
		if err != nil {
			return mcp.NewToolResultError("html is required"), nil
		}

		payload := map[string]any{
			"html":       html,
			"preprocess": request.GetBool("preprocess", true),
		}

		var resp markdownResponse
		if err := c.post(ctx, "/api/v1/markdown", payload, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			if resp.Error != nil {
				return mcp.NewToolResultError(resp.Error.String()), nil
			}
			return mcp.NewToolResultError("conversion failed"), nil
		}
		return mcp.NewToolResultText(resp.Markdown), nil
	}
}
