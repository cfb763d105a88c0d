package writer

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/goweaver/internal/evidence"
)

// NoNewEvidence is the tool response body when retrieval surfaces nothing
// the writer has not already seen.
const NoNewEvidence = "NO_NEW_EVIDENCE"

// perEvidenceOverhead approximates the formatting cost of one evidence
// block when charging against the character budget.
const perEvidenceOverhead = 200

// Pruned is an evidence record trimmed for prompt inclusion.
type Pruned struct {
	Evidence *evidence.Evidence
	Items    []evidence.Item
}

// PruneRetrieved trims a retrieval result to fit the prompt: at most
// maxEvidences records, at most itemsPer de-duplicated items each, stopping
// once the approximate character budget is spent. It returns the pruned
// records and the ids that actually surfaced.
func PruneRetrieved(evs []*evidence.Evidence, maxEvidences, itemsPer, budget int) ([]Pruned, []string) {
	if maxEvidences > 0 && len(evs) > maxEvidences {
		evs = evs[:maxEvidences]
	}
	var out []Pruned
	var ids []string
	spent := 0
	for _, ev := range evs {
		items := dedupeItems(ev.Items, itemsPer)
		cost := len(ev.Summary) + perEvidenceOverhead
		for _, it := range items {
			cost += len(it.Content)
		}
		if budget > 0 && spent+cost > budget {
			break
		}
		spent += cost
		out = append(out, Pruned{Evidence: ev, Items: items})
		ids = append(ids, ev.EvidenceID)
	}
	return out, ids
}

// dedupeItems keeps the first occurrence of each case-folded content string.
// It scans at most itemsPer*3 candidates to bound work on bloated records.
func dedupeItems(items []evidence.Item, itemsPer int) []evidence.Item {
	if itemsPer <= 0 {
		return nil
	}
	scan := items
	if len(scan) > itemsPer*3 {
		scan = scan[:itemsPer*3]
	}
	seen := map[string]struct{}{}
	var out []evidence.Item
	for _, it := range scan {
		key := strings.ToLower(strings.TrimSpace(it.Content))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
		if len(out) >= itemsPer {
			break
		}
	}
	return out
}

// FormatToolResponse renders pruned evidence in the writer's tool response
// envelope, truncated to maxChars.
func FormatToolResponse(pruned []Pruned, maxChars int) string {
	var sb strings.Builder
	sb.WriteString("<tool_response><material>")
	if len(pruned) == 0 {
		sb.WriteString(NoNewEvidence)
	}
	for _, p := range pruned {
		ev := p.Evidence
		fmt.Fprintf(&sb, "\n<%s>\n", ev.EvidenceID)
		fmt.Fprintf(&sb, "Summary: %s\n", ev.Summary)
		for _, it := range p.Items {
			fmt.Fprintf(&sb, "- %s: %s\n", it.Type, it.Content)
		}
		fmt.Fprintf(&sb, "URL: %s\n", ev.Source.URL)
		fmt.Fprintf(&sb, "</%s>", ev.EvidenceID)
	}
	sb.WriteString("\n</material></tool_response>")
	out := sb.String()
	if maxChars > 0 && len(out) > maxChars {
		out = out[:maxChars]
	}
	return out
}
