// Package outline models the report skeleton produced by the planner.
//
// An outline is plain Markdown with a version counter. Sections are
// delimited by `## ` headings at column 0, and sections may bind themselves
// to evidence via <citation>ev_0001, ev_0002</citation> markers.
package outline

import (
	"regexp"
	"strings"
)

// Outline is a Markdown outline with a monotonic version, starting at 1.
type Outline struct {
	Text    string
	Version int
}

// Section is one `## ` slice of an outline. Body includes the heading line.
type Section struct {
	Title string
	Body  string
}

// SplitSections splits an outline on `## ` headings. Text before the first
// heading is grouped under "Report"; an outline without headings becomes a
// single ("Report", whole text) section.
func SplitSections(text string) []Section {
	var sections []Section
	title := "Report"
	var buf []string

	flush := func() {
		if len(buf) > 0 {
			sections = append(sections, Section{Title: title, Body: strings.TrimSpace(strings.Join(buf, "\n"))})
			buf = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			title = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			if title == "" {
				title = "Section"
			}
		}
		buf = append(buf, line)
	}
	flush()

	if len(sections) == 0 {
		return []Section{{Title: "Report", Body: text}}
	}
	return sections
}

var citationRe = regexp.MustCompile(`(?i)<citation>([^<]+)</citation>`)

// ExtractCitationIDs returns the evidence ids referenced by <citation> tags,
// de-duplicated in first-seen order. Ids within one tag are comma-separated.
func ExtractCitationIDs(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		for _, p := range strings.Split(m[1], ",") {
			id := strings.TrimSpace(p)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// StripCitationTags removes all citation markers from text.
func StripCitationTags(text string) string {
	return citationRe.ReplaceAllString(text, "")
}
