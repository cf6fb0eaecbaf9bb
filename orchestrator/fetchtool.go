package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/asr2003/forge/ingest"
)

// FetchTool fetches an absolute URL and extracts readable content, bounded to
// 1MB/15s. Grounded on tools/http.Tool ([DOMAIN] §4.1), generalized from a
// workspace-relative helper into the spec's `fetch` tool. (goldmark is used
// elsewhere, for HTML-dump rendering of Markdown message bodies — §6, §10 —
// since it renders Markdown source to HTML, not the reverse.)
type FetchTool struct {
	client   *http.Client
	MaxBytes int64
}

func NewFetchTool() *FetchTool {
	return &FetchTool{
		client:   &http.Client{Timeout: 15 * time.Second},
		MaxBytes: 1 << 20,
	}
}

func (t *FetchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "fetch",
		Description: "Fetch a URL and extract its readable text content. Use for reading web pages, articles, or documentation.",
		Schema:      jsonSchema(`"url":{"type":"string"}`, "url"),
	}
}

func (t *FetchTool) Call(ctx context.Context, input json.RawMessage) (string, error) {
	var p struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "fetch", Cause: err}
	}
	content, err := t.fetch(ctx, p.URL)
	if err != nil {
		return "", &ToolExecutionError{Tool: "fetch", Cause: err}
	}
	return content, nil
}

func (t *FetchTool) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ForgeAgent/1.0)")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	max := t.MaxBytes
	if max <= 0 {
		max = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, max))
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}

	html := string(body)
	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	text := ingest.StripHTML(html)
	if err == nil && article.TextContent != "" {
		text = strings.TrimSpace(article.TextContent)
	}
	return text, nil
}
