// Package planner implements the research-planning agent. Each step the
// model either requests searches, writes the report outline, or terminates
// the planning phase; its free-form reply is parsed fault-tolerantly.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperifyio/goweaver/internal/evidence"
	"github.com/hyperifyio/goweaver/internal/llm"
	"github.com/hyperifyio/goweaver/internal/tags"
)

// Action is one of SearchAction, WriteOutlineAction or TerminateAction.
type Action interface{ isAction() }

// SearchAction requests web searches for the listed queries.
type SearchAction struct {
	Queries []string
	Goal    string
}

// WriteOutlineAction proposes (or replaces) the report outline.
type WriteOutlineAction struct {
	Text string
}

// TerminateAction ends the planning phase.
type TerminateAction struct {
	Reason string
}

func (SearchAction) isAction()       {}
func (WriteOutlineAction) isAction() {}
func (TerminateAction) isAction()    {}

const plannerSystem = `You are a research planner. Your job is to gather evidence for a research query and produce a report outline.

Each step, do exactly one of:
1. Search the web: reply with <tool_call>{"name": "search", "arguments": {"query": ["...", "..."], "goal": "..."}}</tool_call>
2. Write or update the outline: reply with the full Markdown outline inside <write_outline>...</write_outline>. Use "## " section headings and bind evidence to sections with <citation>ev_0001, ev_0002</citation> tags.
3. Finish planning: reply with <terminate>reason</terminate> once the outline covers the query and enough evidence is banked.`

// Agent drives the planning conversation.
type Agent struct {
	Client   llm.Client
	MaxSteps int
}

// StepInput is the state the prompt is rendered from.
type StepInput struct {
	Query    string
	Step     int // 1-based
	Outline  string
	Evidence []*evidence.Evidence
}

// Step renders the planning prompt for in and parses the reply into an
// Action.
func (a *Agent) Step(ctx context.Context, in StepInput) (Action, string, error) {
	out, err := a.Client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: plannerSystem},
		{Role: llm.RoleUser, Content: a.buildPrompt(in)},
	}, 0.0)
	if err != nil {
		return nil, "", fmt.Errorf("planner: step %d: %w", in.Step, err)
	}
	return ParseAction(out), out, nil
}

const summaryCap = 400

func (a *Agent) buildPrompt(in StepInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research query: %s\n\n", in.Query)
	fmt.Fprintf(&sb, "Planning Step: %d of %d\n\n", in.Step, a.MaxSteps)

	sb.WriteString("Current outline:\n")
	if strings.TrimSpace(in.Outline) == "" {
		sb.WriteString("<none>\n")
	} else {
		sb.WriteString(in.Outline + "\n")
	}

	sb.WriteString("\nBanked evidence:\n")
	if len(in.Evidence) == 0 {
		sb.WriteString("<none>\n")
	} else {
		evs := in.Evidence
		if len(evs) > 20 {
			evs = evs[len(evs)-20:]
		}
		for _, ev := range evs {
			summary := ev.Summary
			if len(summary) > summaryCap {
				summary = summary[:summaryCap] + "..."
			}
			fmt.Fprintf(&sb, "- %s [%s] %s\n", ev.EvidenceID, ev.Source.Title, summary)
		}
	}

	sb.WriteString("\n" + a.guidance(in))
	return sb.String()
}

// guidance nudges the model toward finishing: outline early enough to leave
// room for revision, terminate before the step budget runs out.
func (a *Agent) guidance(in StepInput) string {
	switch {
	case strings.TrimSpace(in.Outline) == "" && (in.Step >= 4 || len(in.Evidence) >= 3):
		return "Guidance: enough evidence is banked to draft an outline. Write the outline now with <write_outline>."
	case strings.TrimSpace(in.Outline) != "" && in.Step >= a.MaxSteps-2:
		return "Guidance: the step budget is nearly exhausted. Terminate now, or update the outline once and then terminate."
	case len(in.Evidence) >= 8:
		return "Guidance: a solid evidence base exists. Prefer refining the outline over broad new searches."
	case strings.TrimSpace(in.Outline) == "":
		return "Guidance: search for evidence that covers the main facets of the query."
	default:
		return "Guidance: fill remaining gaps in the outline with targeted searches, or terminate if coverage is sufficient."
	}
}

type searchArgs struct {
	Query   json.RawMessage `json:"query"`
	Queries json.RawMessage `json:"queries"` // tolerated alias
	Goal    string          `json:"goal"`
}

// ParseAction maps a raw model reply to an Action. The precedence order is
// fixed: an explicit outline wins, then termination, then a tool call; any
// other non-empty reply is treated as an outline so a step is never wasted.
func ParseAction(raw string) Action {
	if text, ok := tags.FindTagBlock(raw, "write_outline"); ok {
		return WriteOutlineAction{Text: strings.TrimSpace(text)}
	}
	if reason, ok := tags.FindTagBlock(raw, "terminate"); ok {
		return TerminateAction{Reason: strings.TrimSpace(reason)}
	}
	if tc := tags.ParseToolCall(raw); tc != nil {
		if tc.Name != "search" {
			return TerminateAction{Reason: "unsupported_tool"}
		}
		var args searchArgs
		if err := json.Unmarshal(tc.Arguments, &args); err == nil {
			queries := coerceQueries(args.Query)
			if len(queries) == 0 {
				queries = coerceQueries(args.Queries)
			}
			if len(queries) > 0 {
				return SearchAction{Queries: queries, Goal: args.Goal}
			}
		}
		return TerminateAction{Reason: "no_queries"}
	}
	if text := strings.TrimSpace(raw); text != "" {
		return WriteOutlineAction{Text: text}
	}
	return TerminateAction{Reason: "unparseable_output"}
}

// coerceQueries accepts both a JSON array of strings and a single string.
func coerceQueries(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return nonEmpty(list)
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return nonEmpty([]string{one})
	}
	return nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
