// Command debugsearch runs one query against the configured search provider
// and prints the ranked hits, for poking at provider setups.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hyperifyio/goweaver/internal/config"
	"github.com/hyperifyio/goweaver/internal/search"
)

func main() {
	q := "what is deep research"
	if len(os.Args) > 1 {
		q = os.Args[1]
	}

	var cfg config.Config
	config.ApplyEnv(&cfg)
	config.ApplyDefaults(&cfg)

	var prov search.Provider
	switch cfg.SearchProvider {
	case "searxng":
		prov = &search.SearxNG{BaseURL: cfg.SearxURL, APIKey: cfg.SearxKey, UserAgent: "debugsearch/1.0"}
	case "file":
		prov = &search.FileProvider{Path: cfg.SearchFile}
	default:
		prov = &search.Tavily{APIKey: cfg.TavilyAPIKey}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := prov.Search(ctx, q, cfg.SearchMaxResults)
	if err != nil {
		fmt.Fprintln(os.Stderr, "search failed:", err)
		os.Exit(1)
	}
	for _, r := range res {
		fmt.Printf("%d. %s\n   %s\n   %s\n", r.Rank, r.Title, r.URL, r.Snippet)
	}
}
