package brief

import "testing"

func TestParseHeading(t *testing.T) {
	b := Parse("# Battery storage economics\n\nAudience: utility planners\n\nsome notes\n")
	if b.Query != "Battery storage economics" {
		t.Fatalf("query = %q", b.Query)
	}
	if b.Audience != "utility planners" {
		t.Fatalf("audience = %q", b.Audience)
	}
	if got := b.EffectiveQuery(); got != "Battery storage economics (for utility planners)" {
		t.Fatalf("effective = %q", got)
	}
}

func TestParseFirstLineFallback(t *testing.T) {
	b := Parse("\n\nplain query text\nmore notes\n")
	if b.Query != "plain query text" {
		t.Fatalf("query = %q", b.Query)
	}
	if b.EffectiveQuery() != "plain query text" {
		t.Fatalf("effective = %q", b.EffectiveQuery())
	}
}

func TestParseEmpty(t *testing.T) {
	if b := Parse("   \n"); b.Query != "" {
		t.Fatalf("query = %q", b.Query)
	}
}
