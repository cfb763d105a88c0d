package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	citeRe = regexp.MustCompile(`\[\^(ev_\d{4})\](?::)?`)
	refRe  = regexp.MustCompile(`(?m)^\[\^(ev_\d{4})\]:`)
)

// Validate checks the assembled report's citation hygiene: every inline
// [^ev_XXXX] marker must have a references entry, and every references
// entry must be cited somewhere. Problems are returned as one error listing
// the offending ids; a clean report returns nil.
func Validate(text string) error {
	refs := map[string]bool{}
	for _, m := range refRe.FindAllStringSubmatch(text, -1) {
		refs[m[1]] = true
	}
	cited := map[string]bool{}
	for _, m := range citeRe.FindAllStringSubmatch(text, -1) {
		// Skip the definition lines themselves.
		if strings.HasSuffix(m[0], ":") {
			continue
		}
		cited[m[1]] = true
	}

	var dangling, orphaned []string
	for id := range cited {
		if !refs[id] {
			dangling = append(dangling, id)
		}
	}
	for id := range refs {
		if !cited[id] {
			orphaned = append(orphaned, id)
		}
	}
	if len(dangling) == 0 && len(orphaned) == 0 {
		return nil
	}
	sort.Strings(dangling)
	sort.Strings(orphaned)
	var parts []string
	if len(dangling) > 0 {
		parts = append(parts, fmt.Sprintf("citations without references: %s", strings.Join(dangling, ", ")))
	}
	if len(orphaned) > 0 {
		parts = append(parts, fmt.Sprintf("references never cited: %s", strings.Join(orphaned, ", ")))
	}
	return fmt.Errorf("report: %s", strings.Join(parts, "; "))
}
