package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/goweaver/internal/evidence"
	"github.com/hyperifyio/goweaver/internal/llm"
	"github.com/hyperifyio/goweaver/internal/tags"
)

const extractorSystem = `You extract discrete findings from a web page for a research assistant. ` +
	`Extract up to %d evidence items relevant to the query. Respond with ONLY a JSON object of the form ` +
	`{"items": [{"type": "fact|statistic|quote|claim", "content": "...", "location": "optional", "confidence": 0.0}]}. ` +
	`No prose outside the JSON.`

// Extractor pulls structured evidence items from a parsed page. A response
// that cannot be parsed as the expected JSON yields zero items rather than
// an error; the summary alone still makes the page bankable.
type Extractor struct {
	Client   llm.Client
	MaxItems int
	Log      zerolog.Logger
}

type extractorResponse struct {
	Items []evidence.Item `json:"items"`
}

func (e *Extractor) maxItems() int {
	if e.MaxItems > 0 {
		return e.MaxItems
	}
	return 8
}

func (e *Extractor) Extract(ctx context.Context, query string, doc Document) []evidence.Item {
	user := fmt.Sprintf("Research query: %s\n\nPage title: %s\n\nPage text:\n%s", query, doc.Title, doc.Text)
	out, err := e.Client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(extractorSystem, e.maxItems())},
		{Role: llm.RoleUser, Content: user},
	}, 0.1)
	if err != nil {
		e.Log.Warn().Err(err).Msg("item extraction failed")
		return nil
	}
	raw := tags.ExtractJSONObject(out)
	if raw == nil {
		e.Log.Warn().Msg("item extraction returned no parseable JSON")
		return nil
	}
	var resp extractorResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		e.Log.Warn().Err(err).Msg("item extraction JSON did not match schema")
		return nil
	}
	items := make([]evidence.Item, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Content == "" {
			continue
		}
		if it.Type == "" {
			it.Type = "fact"
		}
		items = append(items, it)
		if len(items) >= e.maxItems() {
			break
		}
	}
	return items
}
