// Package search defines the web search provider abstraction plus the
// Tavily, SearxNG and file-backed implementations.
package search

import (
	"context"
	"fmt"
	"time"
)

// Result is a single search hit. Rank is 1-based in provider order.
type Result struct {
	Rank    int    `json:"rank"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Provider executes one query and returns up to limit ranked results.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

// SearchError carries retry diagnostics for a failed provider call.
type SearchError struct {
	Provider   string
	Attempts   int
	LastStatus int
	Elapsed    time.Duration
	Err        error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search: %s failed after %d attempt(s) (last status %d, %s): %v",
		e.Provider, e.Attempts, e.LastStatus, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }
