package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// transientStatuses are the HTTP statuses worth retrying; anything else
// fails the call immediately.
var transientStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Tavily implements Provider against the Tavily search API. Transient
// failures are retried with capped exponential backoff; a Retry-After
// header, when present, overrides the computed delay.
type Tavily struct {
	APIKey      string
	Endpoint    string // defaults to the public API
	HTTPClient  *http.Client
	MaxRetries  int                                              // attempts beyond the first; defaults to 3
	SearchDepth string                                           // "basic" or "advanced"
	Sleep       func(ctx context.Context, d time.Duration) error // test hook
}

func (t *Tavily) Name() string { return "tavily" }

func (t *Tavily) endpoint() string {
	if t.Endpoint != "" {
		return t.Endpoint
	}
	return tavilyEndpoint
}

func (t *Tavily) maxAttempts() int {
	if t.MaxRetries > 0 {
		return t.MaxRetries + 1
	}
	return 4
}

func backoff(attempt int) time.Duration {
	d := time.Duration(float64(750*time.Millisecond) * float64(int(1)<<attempt))
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if t.APIKey == "" {
		return nil, errors.New("search: missing tavily api key")
	}
	if limit <= 0 {
		limit = 10
	}
	hc := t.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	sleep := t.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.APIKey,
		Query:       query,
		MaxResults:  limit,
		SearchDepth: t.SearchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("search: marshal request: %w", err)
	}

	start := time.Now()
	lastStatus := 0
	made := 0
	var lastErr error
	for attempt := 0; attempt < t.maxAttempts(); attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, t.delayBefore(attempt, lastErr)); err != nil {
				return nil, err
			}
		}
		made++
		results, status, err := t.doRequest(ctx, hc, body, limit)
		if err == nil {
			return results, nil
		}
		lastStatus = status
		lastErr = err
		if !isTransient(status, err) {
			break
		}
	}
	return nil, &SearchError{
		Provider:   t.Name(),
		Attempts:   made,
		LastStatus: lastStatus,
		Elapsed:    time.Since(start),
		Err:        lastErr,
	}
}

// statusError carries the response status and server-suggested delay through
// the retry loop.
type statusError struct {
	status     int
	retryAfter time.Duration
	hasRA      bool
	body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func (t *Tavily) delayBefore(attempt int, lastErr error) time.Duration {
	var se *statusError
	if errors.As(lastErr, &se) && se.hasRA {
		return se.retryAfter
	}
	return backoff(attempt - 1)
}

func (t *Tavily) doRequest(ctx context.Context, hc *http.Client, body []byte, limit int) ([]Result, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
		if d, ok := retryAfter(resp); ok {
			se.retryAfter, se.hasRA = d, true
		}
		return nil, resp.StatusCode, se
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	out := make([]Result, 0, len(tr.Results))
	for _, r := range tr.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, Result{
			Rank:    len(out) + 1,
			URL:     strings.TrimSpace(r.URL),
			Title:   strings.TrimSpace(r.Title),
			Snippet: strings.TrimSpace(r.Content),
			Source:  t.Name(),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, resp.StatusCode, nil
}

func isTransient(status int, err error) bool {
	if transientStatuses[status] {
		return true
	}
	if status != 0 {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	// Connection-level failures with no status are worth one more try.
	var se *statusError
	return !errors.As(err, &se)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
