package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/goweaver/internal/evidence"
)

func TestRenderReferences(t *testing.T) {
	bank, err := evidence.NewBank(t.TempDir(), zerolog.Nop(), func() time.Time {
		return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []struct{ url, title string }{
		{"https://a.example/", "Alpha Study"},
		{"https://b.example/", ""},
	} {
		if _, _, err := bank.Add(evidence.AddInput{
			Query:   "q",
			Source:  evidence.Source{URL: s.url, Title: s.title},
			RawText: s.url,
		}); err != nil {
			t.Fatal(err)
		}
	}
	got := RenderReferences(bank, map[string]bool{"ev_0002": true, "ev_0001": true, "ev_0099": true})
	if !strings.HasPrefix(got, "# References\n") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "[^ev_0001]: Alpha Study. https://a.example/") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "[^ev_0002]: Untitled. https://b.example/") {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "ev_0099") {
		t.Fatal("unknown id rendered")
	}
	if strings.Index(got, "ev_0001") > strings.Index(got, "ev_0002") {
		t.Fatal("references not sorted by id")
	}
}

func TestClean(t *testing.T) {
	in := strings.Join([]string{
		"## Section",
		"retrieve",
		`{"name": "retrieve", "arguments": {}}`,
		"Real content with {braces} inline.",
		"RETRIEVE",
		"{not json}",
	}, "\n")
	got := Clean(in)
	if strings.Contains(got, "retrieve") || strings.Contains(got, "RETRIEVE") {
		t.Fatalf("bare retrieve survived: %q", got)
	}
	if strings.Contains(got, `"arguments"`) {
		t.Fatalf("json line survived: %q", got)
	}
	if !strings.Contains(got, "Real content with {braces} inline.") {
		t.Fatalf("content lost: %q", got)
	}
	if !strings.Contains(got, "{not json}") {
		t.Fatalf("non-json braces line lost: %q", got)
	}
}

func TestWritePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	md := "# Title\n\nSome paragraph with a [link](https://example.com).\n\n## Sub\n\nMore text.\n"
	if err := WritePDF(md, path); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("empty pdf")
	}
}
