package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// maxExtractLen keeps extracted content small enough to travel back
// through a chat reply.
const maxExtractLen = 4000

// extractReadable pulls the main article content out of the active
// page and strips any remaining markup.
func extractReadable(ctx context.Context, page Page, baseURL string) (string, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return "", err
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		parsed = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return "", fmt.Errorf("failed to parse page content: %v", err)
	}

	p := bluemonday.StrictPolicy()
	sanitized := p.Sanitize(article.TextContent)

	out := ""
	if article.Title != "" {
		out = "TITLE: " + article.Title + "\n\n"
	}
	out += strings.TrimSpace(sanitized)
	return truncate(out, maxExtractLen), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (content truncated) ..."
}
