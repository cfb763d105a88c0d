// Package report assembles the final deliverable: section drafts plus a
// references block, cleaned of agent chatter.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperifyio/goweaver/internal/evidence"
)

// RenderReferences builds the trailing references block for the evidence
// ids actually cited, sorted by id.
func RenderReferences(bank *evidence.Bank, usedIDs map[string]bool) string {
	ids := make([]string, 0, len(usedIDs))
	for id := range usedIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	sb.WriteString("# References\n")
	for _, id := range ids {
		ev, err := bank.Get(id)
		if err != nil {
			continue
		}
		title := ev.Source.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&sb, "\n[^%s]: %s. %s", id, title, ev.Source.URL)
	}
	sb.WriteString("\n")
	return sb.String()
}

// Clean strips agent chatter that occasionally leaks into section drafts:
// bare "retrieve" lines and lines that are themselves complete JSON objects.
func Clean(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		if strings.EqualFold(t, "retrieve") {
			continue
		}
		if isJSONObjectLine(t) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isJSONObjectLine(line string) bool {
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return false
	}
	var m map[string]json.RawMessage
	return json.Unmarshal([]byte(line), &m) == nil
}
