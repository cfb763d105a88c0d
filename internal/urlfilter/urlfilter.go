// Package urlfilter asks the model which search hits are worth fetching.
package urlfilter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/goweaver/internal/llm"
	"github.com/hyperifyio/goweaver/internal/search"
	"github.com/hyperifyio/goweaver/internal/tags"
)

const filterSystem = `You select which search results a research assistant should read. ` +
	`Given a query and a ranked result list, pick the most promising URLs. ` +
	`Respond with ONLY a JSON object: {"selected_ranks": [1, 3], "rationale": "..."}. ` +
	`Select at most %d ranks. No prose outside the JSON.`

// Filter narrows search results to at most MaxURLs fetch candidates.
type Filter struct {
	Client  llm.Client
	MaxURLs int
	Log     zerolog.Logger
}

type decision struct {
	SelectedRanks []int  `json:"selected_ranks"`
	Rationale     string `json:"rationale"`
}

func (f *Filter) maxURLs() int {
	if f.MaxURLs > 0 {
		return f.MaxURLs
	}
	return 4
}

// Select returns the chosen results in the model's preference order, plus
// its rationale. With MaxURLs or fewer candidates the list passes through
// unchanged. A malformed model reply falls back to the top-ranked results;
// a transport error is returned so the caller can apply its own fallback.
func (f *Filter) Select(ctx context.Context, query string, results []search.Result) ([]search.Result, string, error) {
	max := f.maxURLs()
	if len(results) <= max {
		return results, "", nil
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n", r.Rank, r.Title, r.URL, r.Snippet)
	}
	user := fmt.Sprintf("Query: %s\n\nResults:\n%s", query, sb.String())
	out, err := f.Client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(filterSystem, max)},
		{Role: llm.RoleUser, Content: user},
	}, 0.0)
	if err != nil {
		return nil, "", fmt.Errorf("urlfilter: %w", err)
	}

	byRank := make(map[int]search.Result, len(results))
	for _, r := range results {
		byRank[r.Rank] = r
	}

	raw := tags.ExtractJSONObject(out)
	var d decision
	if raw == nil || json.Unmarshal(raw, &d) != nil || len(d.SelectedRanks) == 0 {
		f.Log.Warn().Str("query", query).Msg("url filter reply unparseable, keeping top results")
		return results[:max], "", nil
	}

	var out2 []search.Result
	seen := map[int]bool{}
	for _, rank := range d.SelectedRanks {
		if seen[rank] {
			continue
		}
		seen[rank] = true
		if r, ok := byRank[rank]; ok {
			out2 = append(out2, r)
		}
		if len(out2) >= max {
			break
		}
	}
	if len(out2) == 0 {
		return results[:max], "", nil
	}
	return out2, d.Rationale, nil
}
