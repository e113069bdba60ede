// Package webfetch: HTTP fetch + readability extraction for article bodies.
package webfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Result is the extracted article content for an ingested URL.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Byline   string `json:"byline"`
	Text     string `json:"text"`
	TopImage string `json:"top_image"`
	Status   int    `json:"status"`
}

// Fetcher retrieves pages over plain HTTP and extracts the main content via
// readability. Construct once; call Exec per URL.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	MaxChars  int
}

// NewFetcher builds a fetcher with clamped defaults.
func NewFetcher(timeout time.Duration, maxChars int, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 12000
	}
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
		MaxChars:  maxChars,
	}
}

// Exec fetches link and returns the readable article body, truncated to
// MaxChars runes.
func (f *Fetcher) Exec(ctx context.Context, link string) (Result, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return Result{}, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return Result{}, fmt.Errorf("request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{URL: link, Status: resp.StatusCode}, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return Result{URL: link, Status: resp.StatusCode}, fmt.Errorf("readability: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if runes := []rune(text); len(runes) > f.MaxChars {
		text = string(runes[:f.MaxChars])
	}

	return Result{
		URL:      link,
		Title:    article.Title,
		Byline:   article.Byline,
		Text:     text,
		TopImage: article.Image,
		Status:   resp.StatusCode,
	}, nil
}
