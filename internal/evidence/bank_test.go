package evidence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestBank(t *testing.T, dir string) *Bank {
	t.Helper()
	b, err := NewBank(dir, zerolog.Nop(), testClock)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	return b
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	b := newTestBank(t, t.TempDir())
	for i, url := range []string{"https://a.example/", "https://b.example/"} {
		ev, created, err := b.Add(AddInput{
			Query:   "solar power",
			Source:  Source{URL: url, Title: "t", RetrievedAt: "2025-03-01T12:00:00Z"},
			Summary: "s",
			RawText: "body " + url,
		})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if !created {
			t.Fatalf("record %d not created", i)
		}
		want := FormatID(i + 1)
		if ev.EvidenceID != want {
			t.Fatalf("id = %s, want %s", ev.EvidenceID, want)
		}
	}
	if b.Count() != 2 {
		t.Fatalf("count = %d", b.Count())
	}
}

func TestAddDeduplicatesByContentHash(t *testing.T) {
	b := newTestBank(t, t.TempDir())
	in := AddInput{
		Query:   "q",
		Source:  Source{URL: "https://a.example/", RetrievedAt: "2025-03-01T12:00:00Z"},
		Summary: "s",
		RawText: "same text",
	}
	first, _, err := b.Add(in)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	in.Query = "different query"
	again, created, err := b.Add(in)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if created {
		t.Fatal("duplicate content created a new record")
	}
	if again.EvidenceID != first.EvidenceID {
		t.Fatalf("dedup returned %s, want %s", again.EvidenceID, first.EvidenceID)
	}
	// Same text at a different URL is distinct.
	in.Source.URL = "https://b.example/"
	_, created, err = b.Add(in)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !created {
		t.Fatal("distinct URL was treated as a duplicate")
	}
}

func TestAddWithoutRawTextSkipsDedup(t *testing.T) {
	dir := t.TempDir()
	b := newTestBank(t, dir)
	in := AddInput{
		Query:   "q",
		Source:  Source{URL: "https://a.example/", RetrievedAt: "2025-03-01T12:00:00Z"},
		Summary: "s",
	}
	first, created, err := b.Add(in)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !created {
		t.Fatal("first add not created")
	}
	second, created, err := b.Add(in)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !created {
		t.Fatal("second add without raw text deduplicated")
	}
	if first.EvidenceID == second.EvidenceID {
		t.Fatalf("ids collided: %s", first.EvidenceID)
	}
	if first.ContentHash != "" || first.RawTextRef != "" {
		t.Fatalf("no-raw record carries hash %q ref %q", first.ContentHash, first.RawTextRef)
	}
	if first.Tags == nil || len(first.Tags) != 0 {
		t.Fatalf("tags = %#v, want empty slice", first.Tags)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "raw"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("raw sidecar written: %d files", len(entries))
	}
}

func TestReplaySkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	b := newTestBank(t, dir)
	if _, _, err := b.Add(AddInput{Query: "q", Source: Source{URL: "https://a.example/"}, RawText: "x"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, _, err := b.Add(AddInput{Query: "q", Source: Source{URL: "https://b.example/"}, RawText: "y"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	path := filepath.Join(dir, "evidence.jsonl")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	reopened := newTestBank(t, dir)
	if reopened.Count() != 2 {
		t.Fatalf("replayed count = %d, want 2", reopened.Count())
	}
	ev, _, err := reopened.Add(AddInput{Query: "q", Source: Source{URL: "https://c.example/"}, RawText: "z"})
	if err != nil {
		t.Fatalf("Add after replay: %v", err)
	}
	if ev.EvidenceID != "ev_0003" {
		t.Fatalf("id after replay = %s, want ev_0003", ev.EvidenceID)
	}
}

func TestGetUnknown(t *testing.T) {
	b := newTestBank(t, t.TempDir())
	if _, err := b.Get("ev_9999"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The AI boom, 2024! 储能 x")
	want := []string{"the", "ai", "boom", "2024", "储能"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokens = %v, want %v", got, want)
		}
	}
}

func TestRetrieveScored(t *testing.T) {
	b := newTestBank(t, t.TempDir())
	add := func(url, title, summary string) {
		t.Helper()
		if _, _, err := b.Add(AddInput{
			Query:   "seed",
			Source:  Source{URL: url, Title: title},
			Summary: summary,
			RawText: url,
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	add("https://1.example/", "Grid storage costs", "battery storage economics")
	add("https://2.example/", "Cooking recipes", "pasta and sauce")
	add("https://3.example/", "Battery chemistry", "lithium battery storage research")

	got := b.RetrieveScored("battery storage", 10)
	if len(got) != 2 {
		t.Fatalf("hits = %d, want 2", len(got))
	}
	// Both records match both tokens; ties keep insertion order.
	if got[0].Source.URL != "https://1.example/" || got[1].Source.URL != "https://3.example/" {
		t.Fatalf("order = %s, %s", got[0].Source.URL, got[1].Source.URL)
	}

	if got := b.RetrieveScored("battery storage", 1); len(got) != 1 {
		t.Fatalf("topK not applied: %d", len(got))
	}
	if got := b.RetrieveScored("quantum finance", 10); len(got) != 0 {
		t.Fatalf("zero-score records returned: %d", len(got))
	}
}
