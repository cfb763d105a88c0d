package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/goweaver/internal/events"
	"github.com/hyperifyio/goweaver/internal/evidence"
	"github.com/hyperifyio/goweaver/internal/judge"
	"github.com/hyperifyio/goweaver/internal/llm"
	"github.com/hyperifyio/goweaver/internal/outline"
	"github.com/hyperifyio/goweaver/internal/pipeline"
	"github.com/hyperifyio/goweaver/internal/planner"
	"github.com/hyperifyio/goweaver/internal/search"
	"github.com/hyperifyio/goweaver/internal/tags"
	"github.com/hyperifyio/goweaver/internal/urlfilter"
)

// Run executes a full research run for query and returns its result.
func (r *Runner) Run(ctx context.Context, query string) (*Result, error) {
	return r.RunStream(ctx, query, nil)
}

// RunStream runs like Run and additionally delivers every emitted event to
// fn, in sequence order, as it is recorded.
func (r *Runner) RunStream(ctx context.Context, query string, fn func(events.RunEvent)) (*Result, error) {
	paths, err := r.preparePaths()
	if err != nil {
		return nil, err
	}
	fileRec, err := events.NewFileRecorder(paths.EventsFile)
	if err != nil {
		return nil, err
	}
	var mirrors []events.Recorder
	var redisRec *events.RedisRecorder
	if r.redis != nil {
		redisRec = events.NewRedisRecorder(r.redis, r.runID)
		mirrors = append(mirrors, redisRec)
	}
	if fn != nil {
		mirrors = append(mirrors, events.RecorderFunc(func(ev events.RunEvent) error {
			fn(ev)
			return nil
		}))
	}
	em := events.NewEmitter(r.runID, fileRec, r.log, r.clock, mirrors...)
	defer em.Close()

	if redisRec != nil {
		if err := redisRec.SetMeta(ctx, map[string]string{
			"query":      query,
			"status":     "running",
			"started_at": r.clock().UTC().Format("2006-01-02T15:04:05Z"),
		}); err != nil {
			r.log.Warn().Err(err).Msg("run metadata mirror failed")
		}
	}

	res, err := r.run(ctx, query, paths, em)
	if err != nil {
		if emitErr := em.Emit(events.KindError, events.ContentMessage, err.Error(), nil); emitErr != nil {
			r.log.Error().Err(emitErr).Msg("failed to record run failure")
		}
		if redisRec != nil {
			_ = redisRec.SetMeta(ctx, map[string]string{"status": "failed"})
		}
		return nil, err
	}
	if redisRec != nil {
		_ = redisRec.SetMeta(ctx, map[string]string{"status": "done"})
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, query string, paths RunPaths, em *events.Emitter) (*Result, error) {
	bank, err := evidence.NewBank(paths.EvidenceDir, r.log, r.clock)
	if err != nil {
		return nil, err
	}
	if err := em.Emit(events.KindSystem, events.ContentMessage, "run_started", map[string]string{"query": query}); err != nil {
		return nil, err
	}

	plannerAgent, writerAgent, filter, summarizer, extractor, fetcher := r.agents()

	ol, err := r.planPhase(ctx, query, plannerAgent, filter, summarizer, extractor, fetcher, bank, paths, em)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ol.Text) == "" {
		ol.Text = r.fallbackOutline(ctx, query, bank)
		ol.Version++
		if err := r.saveOutline(paths, ol, em); err != nil {
			return nil, err
		}
	}

	if r.cfg.CriteriaFile != "" {
		if err := r.judgeOutline(ctx, query, ol, paths, em); err != nil {
			r.log.Warn().Err(err).Msg("outline judgement failed")
			if emitErr := em.Emit(events.KindError, events.ContentMessage, err.Error(), map[string]string{"stage": "outline_judge"}); emitErr != nil {
				return nil, emitErr
			}
		}
	}

	report, used, err := r.writePhase(ctx, query, writerAgent, bank, ol, em)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(paths.ReportFile, []byte(report), 0o644); err != nil {
		return nil, fmt.Errorf("runner: write report: %w", err)
	}
	if err := em.Emit(events.KindSystem, events.ContentReportDone, map[string]any{
		"report_path":  paths.ReportFile,
		"outline_path": paths.OutlineFile,
		"events_path":  paths.EventsFile,
		"run_root":     paths.Root,
	}, nil); err != nil {
		return nil, err
	}
	return &Result{
		RunID:         r.runID,
		Query:         query,
		ReportPath:    paths.ReportFile,
		OutlinePath:   paths.OutlineFile,
		EvidenceCount: bank.Count(),
		UsedEvidence:  used,
	}, nil
}

// planPhase runs the planning loop until the agent terminates with an
// outline in hand or the step budget runs out.
func (r *Runner) planPhase(
	ctx context.Context,
	query string,
	agent *planner.Agent,
	filter *urlfilter.Filter,
	summarizer *pipeline.Summarizer,
	extractor *pipeline.Extractor,
	fetcher *pipeline.Fetcher,
	bank *evidence.Bank,
	paths RunPaths,
	em *events.Emitter,
) (outline.Outline, error) {
	var ol outline.Outline

	for step := 1; step <= r.cfg.PlannerMaxSteps; step++ {
		if err := em.Emit(events.KindSystem, events.ContentPlannerStep, map[string]any{
			"step":      step,
			"max_steps": r.cfg.PlannerMaxSteps,
		}, nil); err != nil {
			return ol, err
		}
		act, _, err := agent.Step(ctx, planner.StepInput{
			Query:    query,
			Step:     step,
			Outline:  ol.Text,
			Evidence: bank.ListAll(),
		})
		if err != nil {
			return ol, err
		}

		// A termination without an outline wastes the run; force a search on
		// the research query itself instead.
		if term, isTerm := act.(planner.TerminateAction); isTerm {
			if strings.TrimSpace(ol.Text) == "" {
				act = planner.SearchAction{Queries: []string{query}}
			} else {
				if err := em.Emit(events.KindSystem, events.ContentPlannerTerminate, term.Reason, nil); err != nil {
					return ol, err
				}
				return ol, nil
			}
		}

		switch a := act.(type) {
		case planner.SearchAction:
			queries := a.Queries
			if len(queries) > r.cfg.QueriesPerStep {
				queries = queries[:r.cfg.QueriesPerStep]
			}
			for _, q := range queries {
				if err := r.searchAndBank(ctx, query, q, filter, summarizer, extractor, fetcher, bank, em); err != nil {
					return ol, err
				}
			}
		case planner.WriteOutlineAction:
			ol.Text = a.Text
			ol.Version++
			if err := r.saveOutline(paths, ol, em); err != nil {
				return ol, err
			}
		}
	}
	return ol, nil
}

// searchAndBank executes one planner query end to end: search, URL
// selection, then a bounded parallel fetch of the chosen pages. Events for
// the fetched pages are emitted after the joins, in selection order, so the
// stream stays deterministic.
func (r *Runner) searchAndBank(
	ctx context.Context,
	runQuery, q string,
	filter *urlfilter.Filter,
	summarizer *pipeline.Summarizer,
	extractor *pipeline.Extractor,
	fetcher *pipeline.Fetcher,
	bank *evidence.Bank,
	em *events.Emitter,
) error {
	if err := em.Emit(events.KindTool, events.ContentSearchQuery, q, nil); err != nil {
		return err
	}
	results, err := r.provider.Search(ctx, q, r.cfg.SearchMaxResults)
	if err != nil {
		// A failed search costs one query, not the run.
		r.log.Warn().Err(err).Str("query", q).Msg("search failed")
		if emitErr := em.Emit(events.KindError, events.ContentMessage, err.Error(), map[string]string{
			"tool": "web_search", "provider": r.provider.Name(), "query": q,
		}); emitErr != nil {
			return emitErr
		}
		results = []search.Result{}
	}
	if err := em.Emit(events.KindTool, events.ContentSearchResults, results, map[string]string{
		"query": q, "provider": r.provider.Name(),
	}); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	selected, _, err := filter.Select(ctx, q, results)
	if err != nil {
		r.log.Warn().Err(err).Str("query", q).Msg("url filter unavailable, keeping top results")
		if emitErr := em.Emit(events.KindError, events.ContentMessage, err.Error(), map[string]string{
			"tool": "url_filter", "query": q,
		}); emitErr != nil {
			return emitErr
		}
		n := r.cfg.URLsPerQuery
		if n > len(results) {
			n = len(results)
		}
		selected = results[:n]
	}

	outcomes := r.fetchPages(ctx, q, selected, summarizer, extractor, fetcher)

	for i, out := range outcomes {
		url := selected[i].URL
		if err := em.Emit(events.KindTool, events.ContentURLSelected, url, map[string]string{"query": q}); err != nil {
			return err
		}
		if out.err != nil {
			if err := em.Emit(events.KindError, events.ContentMessage, out.err.Error(), map[string]string{"url": url}); err != nil {
				return err
			}
			continue
		}
		if out.skipped != "" {
			continue
		}
		ev, _, err := bank.Add(evidence.AddInput{
			Query:   q,
			Source:  out.source,
			Summary: out.summary,
			Items:   out.items,
			RawText: out.rawText,
		})
		if err != nil {
			return err
		}
		if err := em.Emit(events.KindTool, events.ContentEvidenceAdded, map[string]any{
			"evidence_id": ev.EvidenceID,
			"url":         url,
		}, nil); err != nil {
			return err
		}
	}
	return nil
}

type pageOutcome struct {
	source  evidence.Source
	summary string
	items   []evidence.Item
	rawText string
	skipped string // non-empty when the page was dropped without error
	err     error
}

// fetchPages processes selected URLs with bounded parallelism and returns
// one outcome per input, index-aligned.
func (r *Runner) fetchPages(
	ctx context.Context,
	q string,
	selected []search.Result,
	summarizer *pipeline.Summarizer,
	extractor *pipeline.Extractor,
	fetcher *pipeline.Fetcher,
) []pageOutcome {
	outcomes := make([]pageOutcome, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	limit := r.cfg.FetchParallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, sel := range selected {
		g.Go(func() error {
			outcomes[i] = r.processPage(gctx, q, sel, summarizer, extractor, fetcher)
			return nil
		})
	}
	// Workers never return errors; failures land in their outcome slot.
	_ = g.Wait()
	return outcomes
}

func (r *Runner) processPage(
	ctx context.Context,
	q string,
	sel search.Result,
	summarizer *pipeline.Summarizer,
	extractor *pipeline.Extractor,
	fetcher *pipeline.Fetcher,
) pageOutcome {
	page, err := fetcher.Fetch(ctx, sel.URL)
	if err != nil {
		return pageOutcome{err: err}
	}
	doc := pipeline.Parse(page)
	if strings.TrimSpace(doc.Text) == "" {
		return pageOutcome{skipped: "empty_page"}
	}
	summary, err := summarizer.Summarize(ctx, q, doc)
	if err != nil {
		return pageOutcome{err: err}
	}
	if pipeline.NotRelevant(summary) {
		return pageOutcome{summary: summary, skipped: "not_relevant"}
	}
	items := extractor.Extract(ctx, q, doc)
	title := doc.Title
	if title == "" {
		title = sel.Title
	}
	return pageOutcome{
		source: evidence.Source{
			URL:         page.FinalURL,
			Title:       title,
			Publisher:   doc.SiteName,
			Author:      doc.Byline,
			PublishedAt: doc.PublishedAt,
			RetrievedAt: r.clock().UTC().Format("2006-01-02T15:04:05Z"),
		},
		summary: summary,
		items:   items,
		rawText: doc.Text,
	}
}

func (r *Runner) saveOutline(paths RunPaths, ol outline.Outline, em *events.Emitter) error {
	if err := os.WriteFile(paths.OutlineFile, []byte(ol.Text), 0o644); err != nil {
		return fmt.Errorf("runner: write outline: %w", err)
	}
	return em.Emit(events.KindLLM, events.ContentOutlineUpdated, map[string]any{
		"version":      ol.Version,
		"outline_path": paths.OutlineFile,
	}, nil)
}

const fallbackOutlineShell = "# Report\n\n## References\n<citation></citation>\n"

// fallbackOutline asks the model once for an outline when the planning loop
// ended without one, degrading to a minimal shell so the writer always has
// something to work from.
func (r *Runner) fallbackOutline(ctx context.Context, query string, bank *evidence.Bank) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a Markdown report outline for the research query: %s\n\n", query)
	sb.WriteString("Use \"## \" section headings and <citation>ev_XXXX</citation> tags to bind evidence to sections.\n")
	sb.WriteString("Wrap the outline in <write_outline>...</write_outline>.\n\nBanked evidence:\n")
	for _, ev := range bank.ListAll() {
		fmt.Fprintf(&sb, "- %s [%s] %s\n", ev.EvidenceID, ev.Source.Title, ev.Summary)
	}
	out, err := r.client.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: sb.String()}}, 0.3)
	if err != nil {
		r.log.Warn().Err(err).Msg("fallback outline request failed")
		return fallbackOutlineShell
	}
	if text, ok := tags.FindTagBlock(out, "write_outline"); ok && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	if text := strings.TrimSpace(out); text != "" {
		return text
	}
	return fallbackOutlineShell
}

func (r *Runner) judgeOutline(ctx context.Context, query string, ol outline.Outline, paths RunPaths, em *events.Emitter) error {
	criteria, err := judge.LoadCriteria(r.cfg.CriteriaFile)
	if err != nil {
		return err
	}
	tmpl := ""
	if r.cfg.JudgeTemplateFile != "" {
		data, err := os.ReadFile(r.cfg.JudgeTemplateFile)
		if err != nil {
			return fmt.Errorf("runner: read judge template: %w", err)
		}
		tmpl = string(data)
	}
	j := &judge.Judge{Client: r.client, Template: tmpl, Log: r.log}
	res, err := j.Run(ctx, query, ol.Text, criteria)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(paths.JudgementFile, data, 0o644); err != nil {
		return fmt.Errorf("runner: write judgement: %w", err)
	}
	ratings := make(map[string]int, len(res.Results))
	for name, v := range res.Results {
		ratings[name] = v.Rating
	}
	return em.Emit(events.KindSystem, events.ContentOutlineJudgeResult, map[string]any{
		"path":    paths.JudgementFile,
		"ratings": ratings,
	}, nil)
}
