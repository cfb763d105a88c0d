// Package writer implements the section-writing agent. For each outline
// section the model alternates between retrieving banked evidence and
// emitting section text, then terminates the section.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperifyio/goweaver/internal/llm"
	"github.com/hyperifyio/goweaver/internal/tags"
)

// Action is one of RetrieveAction, WriteAction or TerminateAction.
type Action interface{ isAction() }

// RetrieveAction asks the evidence bank for material.
type RetrieveAction struct {
	Query       string
	TopK        int
	CitationIDs []string
}

// WriteAction contributes text to the section draft.
type WriteAction struct {
	Text string
}

// TerminateAction finishes the section.
type TerminateAction struct {
	Reason string
}

func (RetrieveAction) isAction()  {}
func (WriteAction) isAction()     {}
func (TerminateAction) isAction() {}

const writerSystem = `You write one section of a research report using only banked evidence.

Each step, do exactly one of:
1. Retrieve evidence: reply with <tool_call>{"name": "retrieve", "arguments": {"query": "...", "top_k": 8, "citation_ids": ["ev_0001"]}}</tool_call>
2. Write or rewrite the section: reply with the full section Markdown inside <write>...</write>. Cite evidence inline as [^ev_0001].
3. Finish the section: reply with <terminate>reason</terminate> when the draft is complete.

Never invent facts that are not in retrieved evidence.`

// Agent drives the writing conversation for one section.
type Agent struct {
	Client llm.Client
}

// StepInput is the state the writing prompt is rendered from.
type StepInput struct {
	Query        string
	SectionTitle string
	Section      string // outline body for this section
	Draft        string
	ToolResponse string // latest retrieval result, if any
	Step         int
	MaxSteps     int
}

// Step renders the writing prompt and parses the reply.
func (a *Agent) Step(ctx context.Context, in StepInput) (Action, string, error) {
	out, err := a.Client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: writerSystem},
		{Role: llm.RoleUser, Content: buildPrompt(in)},
	}, 0.0)
	if err != nil {
		return nil, "", fmt.Errorf("writer: step %d: %w", in.Step, err)
	}
	act, perr := ParseAction(out)
	if perr != nil {
		return nil, out, fmt.Errorf("writer: step %d: %w", in.Step, perr)
	}
	return act, out, nil
}

func buildPrompt(in StepInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research query: %s\n\n", in.Query)
	fmt.Fprintf(&sb, "Section: %s\n%s\n\n", in.SectionTitle, in.Section)
	fmt.Fprintf(&sb, "Writing step %d of %d.\n\n", in.Step, in.MaxSteps)

	sb.WriteString("Current draft:\n")
	if strings.TrimSpace(in.Draft) == "" {
		sb.WriteString("<none>\n")
	} else {
		sb.WriteString(in.Draft + "\n")
	}
	if in.ToolResponse != "" {
		sb.WriteString("\nLatest retrieval:\n" + in.ToolResponse + "\n")
	}
	sb.WriteString("\nDecide next action.")
	return sb.String()
}

type retrieveArgs struct {
	Query       string   `json:"query"`
	TopK        int      `json:"top_k"`
	CitationIDs []string `json:"citation_ids"`
}

// ParseAction maps a raw model reply to an Action. A retrieve tool call has
// top priority; tool calls with any other name are ignored and parsing
// continues with <write> and <terminate> tags, then any non-empty raw text
// counts as section Markdown. An empty reply is an error.
func ParseAction(raw string) (Action, error) {
	if tc := tags.ParseToolCall(raw); tc != nil && tc.Name == "retrieve" {
		var args retrieveArgs
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			return nil, fmt.Errorf("retrieve arguments: %w", err)
		}
		if args.TopK <= 0 {
			args.TopK = 8
		}
		if args.TopK > 50 {
			args.TopK = 50
		}
		return RetrieveAction{Query: args.Query, TopK: args.TopK, CitationIDs: args.CitationIDs}, nil
	}
	if text, ok := tags.FindTagBlock(raw, "write"); ok {
		return WriteAction{Text: strings.TrimSpace(text)}, nil
	}
	if reason, ok := tags.FindTagBlock(raw, "terminate"); ok {
		return TerminateAction{Reason: strings.TrimSpace(reason)}, nil
	}
	if text := strings.TrimSpace(raw); text != "" {
		return WriteAction{Text: text}, nil
	}
	return nil, fmt.Errorf("empty reply")
}
