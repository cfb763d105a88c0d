// Package pipeline turns a selected URL into banked evidence: fetch the
// page, extract readable text, summarize it, and pull out structured items.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultUserAgent mimics a desktop browser; many publishers reject obvious
// bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxBodyBytes bounds how much of a response we read.
const maxBodyBytes = 10 << 20

// Fetcher downloads pages with a per-request timeout and a redirect cap.
type Fetcher struct {
	HTTPClient        *http.Client
	UserAgent         string
	PerRequestTimeout time.Duration
	RedirectMaxHops   int // zero means 5
}

// Page is a fetched document before parsing.
type Page struct {
	URL         string
	FinalURL    string
	ContentType string
	Body        []byte
}

func (f *Fetcher) client() *http.Client {
	max := f.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	check := func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
	if f.HTTPClient != nil {
		// Clone so we can attach the redirect policy without mutating the
		// caller's client.
		base := *f.HTTPClient
		base.CheckRedirect = check
		return &base
	}
	return &http.Client{Timeout: f.PerRequestTimeout, CheckRedirect: check}
}

// Fetch GETs rawURL and returns the body when the response looks like HTML
// or plain text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("pipeline: unsupported URL scheme %q", u.Scheme)
	}
	if f.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("pipeline: new request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("pipeline: fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !isTextual(ct) {
		return nil, fmt.Errorf("pipeline: fetch %s: unsupported content type %q", rawURL, ct)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("pipeline: read body: %w", err)
	}
	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Page{URL: rawURL, FinalURL: finalURL, ContentType: ct, Body: body}, nil
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	if ct == "" {
		return true
	}
	for _, ok := range []string{"text/html", "application/xhtml+xml", "text/plain"} {
		if strings.Contains(ct, ok) {
			return true
		}
	}
	return false
}
