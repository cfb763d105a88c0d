// Package runner orchestrates a full research run: the planning loop that
// banks evidence and produces an outline, the optional outline judgement,
// and the section-writing loop that assembles the final report.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hyperifyio/goweaver/internal/config"
	"github.com/hyperifyio/goweaver/internal/llm"
	"github.com/hyperifyio/goweaver/internal/pipeline"
	"github.com/hyperifyio/goweaver/internal/planner"
	"github.com/hyperifyio/goweaver/internal/search"
	"github.com/hyperifyio/goweaver/internal/urlfilter"
	"github.com/hyperifyio/goweaver/internal/writer"
)

// RunPaths locates every artifact of one run under its directory.
type RunPaths struct {
	Root          string
	EvidenceDir   string
	EventsFile    string
	OutlineFile   string
	ReportFile    string
	JudgementFile string
}

// NewRunPaths lays out the artifact directory for runID.
func NewRunPaths(artifactsDir, runID string) RunPaths {
	root := filepath.Join(artifactsDir, "run_"+runID)
	return RunPaths{
		Root:          root,
		EvidenceDir:   filepath.Join(root, "evidence_bank"),
		EventsFile:    filepath.Join(root, "events.jsonl"),
		OutlineFile:   filepath.Join(root, "outline.md"),
		ReportFile:    filepath.Join(root, "report.md"),
		JudgementFile: filepath.Join(root, "outline_judgement.json"),
	}
}

// NewRunID returns a sortable, collision-resistant run id.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "_" + uuid.NewString()[:8]
}

// Result summarizes a completed run.
type Result struct {
	RunID         string
	Query         string
	ReportPath    string
	OutlinePath   string
	EvidenceCount int
	UsedEvidence  int
}

// Runner wires the agents, providers and stores for runs.
type Runner struct {
	cfg      config.Config
	log      zerolog.Logger
	client   llm.Client
	provider search.Provider
	redis    redis.UniversalClient
	clock    func() time.Time
	runID    string
}

// Option customizes a Runner, mainly for tests.
type Option func(*Runner)

// WithLLM injects the chat client.
func WithLLM(c llm.Client) Option { return func(r *Runner) { r.client = c } }

// WithSearch injects the search provider.
func WithSearch(p search.Provider) Option { return func(r *Runner) { r.provider = p } }

// WithClock injects the time source.
func WithClock(c func() time.Time) Option { return func(r *Runner) { r.clock = c } }

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option { return func(r *Runner) { r.runID = id } }

// WithRedis injects the event mirror client.
func WithRedis(c redis.UniversalClient) Option { return func(r *Runner) { r.redis = c } }

// New builds a Runner from cfg, constructing any dependency not injected
// through options.
func New(cfg config.Config, log zerolog.Logger, opts ...Option) (*Runner, error) {
	r := &Runner{cfg: cfg, log: log, clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		var c llm.Client = llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout)
		if cfg.LLMRPS > 0 {
			c = llm.NewRateLimited(c, cfg.LLMRPS, cfg.LLMBurst)
		}
		if cfg.LLMBreakerThreshold > 0 {
			c = llm.NewBreaker(c, cfg.LLMBreakerThreshold, cfg.LLMBreakerCooldown)
		}
		r.client = c
	}
	if r.provider == nil {
		p, err := buildProvider(cfg)
		if err != nil {
			return nil, err
		}
		r.provider = p
	}
	if r.redis == nil && cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	if r.runID == "" {
		r.runID = NewRunID(r.clock())
	}
	return r, nil
}

func buildProvider(cfg config.Config) (search.Provider, error) {
	switch strings.ToLower(cfg.SearchProvider) {
	case "", "tavily":
		if cfg.TavilyAPIKey == "" {
			return nil, fmt.Errorf("runner: tavily provider needs an api key")
		}
		return &search.Tavily{
			APIKey:      cfg.TavilyAPIKey,
			Endpoint:    cfg.TavilyEndpoint,
			SearchDepth: cfg.TavilyDepth,
			MaxRetries:  cfg.TavilyMaxRetries,
		}, nil
	case "searxng":
		if cfg.SearxURL == "" {
			return nil, fmt.Errorf("runner: searxng provider needs a base url")
		}
		return &search.SearxNG{BaseURL: cfg.SearxURL, APIKey: cfg.SearxKey, UserAgent: pipeline.DefaultUserAgent}, nil
	case "file":
		if cfg.SearchFile == "" {
			return nil, fmt.Errorf("runner: file provider needs a path")
		}
		return &search.FileProvider{Path: cfg.SearchFile}, nil
	default:
		return nil, fmt.Errorf("runner: unknown search provider %q", cfg.SearchProvider)
	}
}

// RunID returns the id this runner will use.
func (r *Runner) RunID() string { return r.runID }

func (r *Runner) preparePaths() (RunPaths, error) {
	paths := NewRunPaths(r.cfg.ArtifactsDir, r.runID)
	if err := os.MkdirAll(paths.EvidenceDir, 0o755); err != nil {
		return paths, fmt.Errorf("runner: create run dir: %w", err)
	}
	return paths, nil
}

func (r *Runner) agents() (*planner.Agent, *writer.Agent, *urlfilter.Filter, *pipeline.Summarizer, *pipeline.Extractor, *pipeline.Fetcher) {
	return &planner.Agent{Client: r.client, MaxSteps: r.cfg.PlannerMaxSteps},
		&writer.Agent{Client: r.client},
		&urlfilter.Filter{Client: r.client, MaxURLs: r.cfg.URLsPerQuery, Log: r.log},
		&pipeline.Summarizer{Client: r.client},
		&pipeline.Extractor{Client: r.client, MaxItems: r.cfg.ItemsPerEvidence, Log: r.log},
		&pipeline.Fetcher{PerRequestTimeout: r.cfg.HTTPTimeout, UserAgent: r.cfg.HTTPUserAgent}
}
