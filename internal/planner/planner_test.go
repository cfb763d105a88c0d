package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperifyio/goweaver/internal/evidence"
	"github.com/hyperifyio/goweaver/internal/llm"
)

func TestParseActionPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "outline wins over tool call",
			raw:  `<write_outline># Report</write_outline> <tool_call>{"name":"search","arguments":{"query":["x"]}}</tool_call>`,
			want: "outline",
		},
		{
			name: "terminate wins over tool call",
			raw:  `<terminate>done</terminate> <tool_call>{"name":"search","arguments":{"query":["x"]}}</tool_call>`,
			want: "terminate",
		},
		{
			name: "search tool call",
			raw:  `<tool_call>{"name":"search","arguments":{"query":["a", "b"],"goal":"cover basics"}}</tool_call>`,
			want: "search",
		},
		{
			name: "raw text falls back to outline",
			raw:  "# Report\n## Section 1",
			want: "outline",
		},
		{
			name: "empty reply terminates",
			raw:  "   \n  ",
			want: "terminate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAction(tt.raw)
			var kind string
			switch got.(type) {
			case SearchAction:
				kind = "search"
			case WriteOutlineAction:
				kind = "outline"
			case TerminateAction:
				kind = "terminate"
			}
			if kind != tt.want {
				t.Fatalf("kind = %s, want %s (%+v)", kind, tt.want, got)
			}
		})
	}
}

func TestParseActionSearchDetails(t *testing.T) {
	got := ParseAction(`<tool_call>{"name":"search","arguments":{"query":["a","","b"],"goal":"g"}}</tool_call>`)
	sa, ok := got.(SearchAction)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if len(sa.Queries) != 2 || sa.Queries[0] != "a" || sa.Queries[1] != "b" || sa.Goal != "g" {
		t.Fatalf("sa = %+v", sa)
	}
}

func TestParseActionCoercesStringQuery(t *testing.T) {
	got := ParseAction(`<tool_call>{"name":"search","arguments":{"query":"single query"}}</tool_call>`)
	sa, ok := got.(SearchAction)
	if !ok || len(sa.Queries) != 1 || sa.Queries[0] != "single query" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseActionQueriesAlias(t *testing.T) {
	got := ParseAction(`<tool_call>{"name":"search","arguments":{"queries":["a","b"]}}</tool_call>`)
	sa, ok := got.(SearchAction)
	if !ok || len(sa.Queries) != 2 || sa.Queries[0] != "a" || sa.Queries[1] != "b" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseActionUnsupportedTool(t *testing.T) {
	got := ParseAction(`<tool_call>{"name":"browse","arguments":{}}</tool_call>`)
	ta, ok := got.(TerminateAction)
	if !ok || ta.Reason != "unsupported_tool" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseActionNoQueries(t *testing.T) {
	got := ParseAction(`<tool_call>{"name":"search","arguments":{"query":[]}}</tool_call>`)
	ta, ok := got.(TerminateAction)
	if !ok || ta.Reason != "no_queries" {
		t.Fatalf("got %+v", got)
	}
}

func TestBuildPromptStateAndGuidance(t *testing.T) {
	a := &Agent{MaxSteps: 12}

	// No outline, enough evidence: push toward writing the outline.
	evs := []*evidence.Evidence{
		{EvidenceID: "ev_0001", Summary: "s1", Source: evidence.Source{Title: "T1"}},
		{EvidenceID: "ev_0002", Summary: "s2", Source: evidence.Source{Title: "T2"}},
		{EvidenceID: "ev_0003", Summary: "s3", Source: evidence.Source{Title: "T3"}},
	}
	p := a.buildPrompt(StepInput{Query: "q", Step: 2, Evidence: evs})
	if !strings.Contains(p, "Planning Step: 2 of 12") {
		t.Fatalf("prompt missing step: %q", p)
	}
	if !strings.Contains(p, "<none>") {
		t.Fatal("prompt should mark missing outline")
	}
	if !strings.Contains(p, "Write the outline now") {
		t.Fatalf("guidance = %q", p)
	}

	// Outline present near the budget edge: push toward termination.
	p = a.buildPrompt(StepInput{Query: "q", Step: 10, Outline: "## S"})
	if !strings.Contains(p, "Terminate now") {
		t.Fatalf("guidance = %q", p)
	}
}

func TestBuildPromptCapsEvidence(t *testing.T) {
	a := &Agent{MaxSteps: 12}
	var evs []*evidence.Evidence
	for i := 1; i <= 25; i++ {
		evs = append(evs, &evidence.Evidence{EvidenceID: evidence.FormatID(i), Summary: "s"})
	}
	p := a.buildPrompt(StepInput{Query: "q", Step: 1, Evidence: evs, Outline: "## S"})
	if strings.Contains(p, "ev_0005 ") || strings.Contains(p, "- ev_0005") {
		t.Fatal("old evidence not trimmed from prompt")
	}
	if !strings.Contains(p, "ev_0025") {
		t.Fatal("latest evidence missing from prompt")
	}
}

func TestAgentStepWrapsClient(t *testing.T) {
	client := llm.Func(func(_ context.Context, msgs []llm.Message, temp float32) (string, error) {
		if temp != 0.0 {
			t.Errorf("temperature = %v", temp)
		}
		if !strings.Contains(msgs[1].Content, "Research query: battery storage") {
			t.Errorf("prompt = %q", msgs[1].Content)
		}
		return `<terminate>enough</terminate>`, nil
	})
	a := &Agent{Client: client, MaxSteps: 12}
	act, raw, err := a.Step(context.Background(), StepInput{Query: "battery storage", Step: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := act.(TerminateAction); !ok {
		t.Fatalf("act = %+v", act)
	}
	if !strings.Contains(raw, "terminate") {
		t.Fatalf("raw = %q", raw)
	}
}
