package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperifyio/goweaver/internal/llm"
)

// NotRelevantPrefix marks a page the summarizer judged useless for the
// query; such pages are dropped instead of banked.
const NotRelevantPrefix = "NOT RELEVANT"

const summarizerSystem = `You summarize web pages for a research assistant. ` +
	`Return a concise summary (150-250 words) of the page focused on what is relevant to the research query. ` +
	`If the page has no material relevant to the query, reply with exactly "NOT RELEVANT" and nothing else.`

// Summarizer produces a query-focused summary of a parsed page.
type Summarizer struct {
	Client llm.Client
}

func (s *Summarizer) Summarize(ctx context.Context, query string, doc Document) (string, error) {
	user := fmt.Sprintf("Research query: %s\n\nPage title: %s\n\nPage text:\n%s", query, doc.Title, doc.Text)
	out, err := s.Client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: summarizerSystem},
		{Role: llm.RoleUser, Content: user},
	}, 0.2)
	if err != nil {
		return "", fmt.Errorf("pipeline: summarize: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// NotRelevant reports whether a summary marks the page as off-topic.
func NotRelevant(summary string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(summary)), NotRelevantPrefix)
}
