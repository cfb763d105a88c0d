package writer

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperifyio/goweaver/internal/evidence"
	"github.com/hyperifyio/goweaver/internal/llm"
)

func TestParseActionRetrieve(t *testing.T) {
	act, err := ParseAction(`<tool_call>{"name":"retrieve","arguments":{"query":"grid costs","top_k":5,"citation_ids":["ev_0001"]}}</tool_call>`)
	if err != nil {
		t.Fatal(err)
	}
	ra, ok := act.(RetrieveAction)
	if !ok {
		t.Fatalf("act = %T", act)
	}
	if ra.Query != "grid costs" || ra.TopK != 5 || len(ra.CitationIDs) != 1 {
		t.Fatalf("ra = %+v", ra)
	}
}

func TestParseActionRetrieveDefaultsAndClamps(t *testing.T) {
	act, err := ParseAction(`<tool_call>{"name":"retrieve","arguments":{"query":"q"}}</tool_call>`)
	if err != nil {
		t.Fatal(err)
	}
	if act.(RetrieveAction).TopK != 8 {
		t.Fatalf("default topK = %d", act.(RetrieveAction).TopK)
	}
	act, err = ParseAction(`<tool_call>{"name":"retrieve","arguments":{"query":"q","top_k":500}}</tool_call>`)
	if err != nil {
		t.Fatal(err)
	}
	if act.(RetrieveAction).TopK != 50 {
		t.Fatalf("clamped topK = %d", act.(RetrieveAction).TopK)
	}
}

func TestParseActionWriteAndTerminate(t *testing.T) {
	act, err := ParseAction("<write>## Section\nbody [^ev_0001]</write>")
	if err != nil {
		t.Fatal(err)
	}
	if wa, ok := act.(WriteAction); !ok || !strings.Contains(wa.Text, "body") {
		t.Fatalf("act = %+v", act)
	}
	act, err = ParseAction("<terminate>draft complete</terminate>")
	if err != nil {
		t.Fatal(err)
	}
	if ta, ok := act.(TerminateAction); !ok || ta.Reason != "draft complete" {
		t.Fatalf("act = %+v", act)
	}
}

func TestParseActionRawBecomesWrite(t *testing.T) {
	act, err := ParseAction("Plain section text without tags.")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := act.(WriteAction); !ok {
		t.Fatalf("act = %T", act)
	}
}

func TestParseActionEmptyIsError(t *testing.T) {
	if _, err := ParseAction("   "); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseActionUnknownToolFallsThrough(t *testing.T) {
	// A tool call the writer does not know is not fatal; the reply is read
	// like any other output.
	act, err := ParseAction(`<tool_call>{"name":"search","arguments":{}}</tool_call> <write>kept text</write>`)
	if err != nil {
		t.Fatal(err)
	}
	w, ok := act.(WriteAction)
	if !ok || w.Text != "kept text" {
		t.Fatalf("act = %+v", act)
	}

	act, err = ParseAction(`<tool_call>{"name":"search","arguments":{}}</tool_call>`)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := act.(WriteAction); !ok {
		t.Fatalf("act = %T", act)
	}
}

func TestParseActionBadRetrieveArgs(t *testing.T) {
	if _, err := ParseAction(`<tool_call>{"name":"retrieve","arguments":"nope"}</tool_call>`); err == nil {
		t.Fatal("expected error")
	}
}

func ev(id, summary string, items ...string) *evidence.Evidence {
	e := &evidence.Evidence{EvidenceID: id, Summary: summary, Source: evidence.Source{URL: "https://x/" + id}}
	for _, c := range items {
		e.Items = append(e.Items, evidence.Item{Type: "fact", Content: c})
	}
	return e
}

func TestPruneRetrievedCapsAndBudget(t *testing.T) {
	evs := []*evidence.Evidence{
		ev("ev_0001", strings.Repeat("a", 100), "one", "two"),
		ev("ev_0002", strings.Repeat("b", 100), "three"),
		ev("ev_0003", strings.Repeat("c", 100)),
	}
	// Budget fits roughly two records (100 summary + ~overhead each).
	pruned, ids := PruneRetrieved(evs, 10, 4, 650)
	if len(pruned) != 2 || len(ids) != 2 {
		t.Fatalf("pruned = %d, ids = %v", len(pruned), ids)
	}
	if ids[0] != "ev_0001" || ids[1] != "ev_0002" {
		t.Fatalf("ids = %v", ids)
	}

	// maxEvidences trims before budget accounting.
	pruned, _ = PruneRetrieved(evs, 1, 4, 100000)
	if len(pruned) != 1 {
		t.Fatalf("pruned = %d", len(pruned))
	}
}

func TestPruneRetrievedDeduplicatesItems(t *testing.T) {
	e := ev("ev_0001", "s", "Fact A", "fact a", " FACT A ", "Fact B", "Fact C")
	pruned, _ := PruneRetrieved([]*evidence.Evidence{e}, 10, 2, 100000)
	if len(pruned) != 1 {
		t.Fatalf("pruned = %d", len(pruned))
	}
	items := pruned[0].Items
	if len(items) != 2 || items[0].Content != "Fact A" || items[1].Content != "Fact B" {
		t.Fatalf("items = %+v", items)
	}
}

func TestFormatToolResponse(t *testing.T) {
	pruned, _ := PruneRetrieved([]*evidence.Evidence{ev("ev_0007", "the summary", "a finding")}, 10, 4, 0)
	got := FormatToolResponse(pruned, 0)
	for _, want := range []string{"<tool_response><material>", "<ev_0007>", "Summary: the summary", "- fact: a finding", "URL: https://x/ev_0007", "</ev_0007>", "</material></tool_response>"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestFormatToolResponseEmpty(t *testing.T) {
	got := FormatToolResponse(nil, 0)
	if !strings.Contains(got, NoNewEvidence) {
		t.Fatalf("got %q", got)
	}
}

func TestFormatToolResponseTruncates(t *testing.T) {
	pruned, _ := PruneRetrieved([]*evidence.Evidence{ev("ev_0001", strings.Repeat("x", 5000))}, 10, 4, 0)
	if got := FormatToolResponse(pruned, 100); len(got) != 100 {
		t.Fatalf("len = %d", len(got))
	}
}

func TestAgentStep(t *testing.T) {
	client := llm.Func(func(_ context.Context, msgs []llm.Message, temp float32) (string, error) {
		if temp != 0.0 {
			t.Errorf("temperature = %v", temp)
		}
		if !strings.Contains(msgs[1].Content, "Decide next action.") {
			t.Errorf("prompt = %q", msgs[1].Content)
		}
		return "<write>done</write>", nil
	})
	a := &Agent{Client: client}
	act, _, err := a.Step(context.Background(), StepInput{Query: "q", SectionTitle: "S", Step: 1, MaxSteps: 18})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := act.(WriteAction); !ok {
		t.Fatalf("act = %T", act)
	}
}
