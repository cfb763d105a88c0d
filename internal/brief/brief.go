// Package brief parses a research request from a Markdown file, so query
// files can carry light structure instead of a single line of text.
package brief

import (
	"bufio"
	"regexp"
	"strings"
)

// Brief is the distilled research request.
type Brief struct {
	Query    string
	Audience string // optional hint folded into the query
	Raw      string
}

var (
	headingRe      = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.+?)\s*$`)
	audienceLineRe = regexp.MustCompile(`(?i)^\s*audience\s*[:\-]\s*(.+?)\s*$`)
)

// Parse reads a Markdown research brief. The first heading becomes the
// query; without headings the first non-empty line does. An "Audience:"
// line is picked up as a hint.
func Parse(input string) Brief {
	b := Brief{Raw: input}
	sc := bufio.NewScanner(strings.NewReader(input))
	for sc.Scan() {
		line := sc.Text()
		if m := headingRe.FindStringSubmatch(line); m != nil && b.Query == "" {
			b.Query = strings.TrimSpace(m[1])
			continue
		}
		if m := audienceLineRe.FindStringSubmatch(line); m != nil && b.Audience == "" {
			b.Audience = strings.TrimSpace(m[1])
			continue
		}
		if b.Query == "" {
			if t := strings.TrimSpace(line); t != "" {
				b.Query = strings.TrimPrefix(t, "- ")
			}
		}
	}
	return b
}

// EffectiveQuery folds the audience hint into the query text.
func (b Brief) EffectiveQuery() string {
	if b.Audience == "" {
		return b.Query
	}
	return b.Query + " (for " + b.Audience + ")"
}
