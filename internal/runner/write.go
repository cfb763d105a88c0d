package runner

import (
	"context"
	"strconv"
	"strings"

	"github.com/hyperifyio/goweaver/internal/events"
	"github.com/hyperifyio/goweaver/internal/evidence"
	"github.com/hyperifyio/goweaver/internal/outline"
	"github.com/hyperifyio/goweaver/internal/report"
	"github.com/hyperifyio/goweaver/internal/writer"
)

// writePhase drafts every outline section, assembles the references block
// and returns the cleaned report plus the count of evidence actually cited.
// Used ids are shared across sections so no record is surfaced twice.
func (r *Runner) writePhase(
	ctx context.Context,
	query string,
	agent *writer.Agent,
	bank *evidence.Bank,
	ol outline.Outline,
	em *events.Emitter,
) (string, int, error) {
	usedIDs := map[string]bool{}
	var parts []string

	for i, sec := range outline.SplitSections(ol.Text) {
		if err := em.Emit(events.KindSystem, events.ContentWriterSectionStart, map[string]any{
			"section_index": i,
			"title":         sec.Title,
		}, nil); err != nil {
			return "", 0, err
		}
		draft, err := r.writeSection(ctx, query, agent, bank, sec, i, usedIDs, em)
		if err != nil {
			return "", 0, err
		}
		draft = strings.TrimSpace(outline.StripCitationTags(draft))
		if err := em.Emit(events.KindSystem, events.ContentWriterSectionDone, map[string]any{
			"section_index": i,
			"title":         sec.Title,
			"chars":         len(draft),
		}, nil); err != nil {
			return "", 0, err
		}
		parts = append(parts, "## "+sec.Title+"\n\n"+draft)
	}

	body := strings.Join(parts, "\n\n")
	full := report.Clean(body) + "\n\n" + report.RenderReferences(bank, usedIDs)
	if err := report.Validate(full); err != nil {
		r.log.Warn().Err(err).Msg("citation check flagged the report")
	}
	return full, len(usedIDs), nil
}

// writeSection runs the writing loop for one section. The draft accumulates
// across write steps and is cut back to its tail once it exceeds the section
// character limit. A failed step ends the section, never the run.
func (r *Runner) writeSection(
	ctx context.Context,
	query string,
	agent *writer.Agent,
	bank *evidence.Bank,
	sec outline.Section,
	secIdx int,
	usedIDs map[string]bool,
	em *events.Emitter,
) (string, error) {
	citationIDs := outline.ExtractCitationIDs(sec.Body)
	draft := ""
	toolResponse := ""

	for step := 1; step <= r.cfg.WriterStepsPerSection; step++ {
		if err := em.Emit(events.KindSystem, events.ContentWriterStep, map[string]any{
			"section_index": secIdx,
			"step":          step,
		}, nil); err != nil {
			return draft, err
		}
		if r.cfg.SectionMaxChars > 0 && len(draft) > r.cfg.SectionMaxChars {
			draft = draft[len(draft)-r.cfg.SectionMaxChars:]
		}
		act, _, err := agent.Step(ctx, writer.StepInput{
			Query:        query,
			SectionTitle: sec.Title,
			Section:      sec.Body,
			Draft:        draft,
			ToolResponse: toolResponse,
			Step:         step,
			MaxSteps:     r.cfg.WriterStepsPerSection,
		})
		if err != nil {
			r.log.Warn().Err(err).Str("section", sec.Title).Msg("writer step failed, keeping draft")
			if emitErr := em.Emit(events.KindError, events.ContentMessage, err.Error(), map[string]string{
				"stage":         "writer",
				"section_index": strconv.Itoa(secIdx),
				"step":          strconv.Itoa(step),
			}); emitErr != nil {
				return draft, emitErr
			}
			break
		}

		switch a := act.(type) {
		case writer.RetrieveAction:
			if err := em.Emit(events.KindTool, events.ContentWriterRetrieveQuery, map[string]any{
				"section_index": secIdx,
				"query":         a.Query,
			}, nil); err != nil {
				return draft, err
			}
			var ids []string
			toolResponse, ids = r.retrieve(bank, a, citationIDs, usedIDs)
			if err := em.Emit(events.KindTool, events.ContentWriterRetrieveResults, map[string]any{
				"section_index": secIdx,
				"count":         len(ids),
				"evidence_ids":  ids,
			}, nil); err != nil {
				return draft, err
			}
		case writer.WriteAction:
			draft = strings.TrimSpace(draft + "\n\n" + a.Text)
			toolResponse = ""
			if err := em.Emit(events.KindLLM, events.ContentWriterWrite, map[string]any{
				"section_index": secIdx,
				"chars":         len(a.Text),
			}, nil); err != nil {
				return draft, err
			}
		case writer.TerminateAction:
			if err := em.Emit(events.KindSystem, events.ContentWriterTerminate, map[string]any{
				"section_index": secIdx,
				"reason":        a.Reason,
			}, nil); err != nil {
				return draft, err
			}
			return draft, nil
		}
	}
	return draft, nil
}

// retrieve resolves a writer retrieval against the bank. Explicit citation
// ids win over the section's outline citations, which win over a lexical
// search; every path drops records already surfaced anywhere in the report.
func (r *Runner) retrieve(
	bank *evidence.Bank,
	a writer.RetrieveAction,
	sectionCitations []string,
	usedIDs map[string]bool,
) (string, []string) {
	topK := a.TopK
	if r.cfg.RetrieveTopK > 0 && topK > r.cfg.RetrieveTopK {
		topK = r.cfg.RetrieveTopK
	}

	sieve := func(candidates []*evidence.Evidence) []*evidence.Evidence {
		var fresh []*evidence.Evidence
		seen := map[string]bool{}
		for _, ev := range candidates {
			if seen[ev.EvidenceID] || usedIDs[ev.EvidenceID] {
				continue
			}
			seen[ev.EvidenceID] = true
			fresh = append(fresh, ev)
		}
		return fresh
	}

	var fresh []*evidence.Evidence
	switch {
	case len(a.CitationIDs) > 0:
		fresh = sieve(bank.BulkGet(a.CitationIDs))
		if topK > 0 && len(fresh) > topK {
			fresh = fresh[:topK]
		}
	case len(sectionCitations) > 0:
		fresh = sieve(bank.BulkGet(sectionCitations))
		if topK > 0 && len(fresh) > topK {
			fresh = fresh[:topK]
		}
	default:
		fresh = sieve(bank.RetrieveScored(a.Query, topK))
	}

	pruned, ids := writer.PruneRetrieved(fresh, r.cfg.SectionMaxEvidences, r.cfg.ItemsPerEvidence, r.cfg.ToolResponseMaxChars)
	for _, id := range ids {
		usedIDs[id] = true
	}
	return writer.FormatToolResponse(pruned, r.cfg.ToolResponseMaxChars), ids
}
