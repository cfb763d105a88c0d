// Package config carries all runtime knobs for a research run. Precedence
// is flags > environment (WEAVER_*) > config file > defaults; each layer
// only fills fields the previous layers left unset.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the flattened runtime configuration.
type Config struct {
	// LLM backend.
	LLMBaseURL          string
	LLMModel            string
	LLMAPIKey           string
	LLMTimeout          time.Duration
	LLMRPS              float64 // 0 disables rate limiting
	LLMBurst            int
	LLMBreakerThreshold int
	LLMBreakerCooldown  time.Duration

	// Search provider: "tavily", "searxng" or "file".
	SearchProvider   string
	TavilyAPIKey     string
	TavilyEndpoint   string // empty for the public API
	TavilyDepth      string // "basic" or "advanced"
	TavilyMaxRetries int
	SearxURL         string
	SearxKey         string
	SearchFile       string
	SearchMaxResults int

	// Planner loop.
	PlannerMaxSteps  int
	QueriesPerStep   int
	URLsPerQuery     int
	FetchParallelism int

	// Page pipeline.
	HTTPTimeout      time.Duration
	HTTPUserAgent    string // empty for the built-in browser UA
	ItemsPerEvidence int

	// Writer loop.
	WriterStepsPerSection int
	SectionMaxChars       int
	SectionMaxEvidences   int
	RetrieveTopK          int
	ToolResponseMaxChars  int

	// Outline judging; empty paths skip the judge.
	CriteriaFile      string
	JudgeTemplateFile string

	// Outputs.
	ArtifactsDir string
	RedisAddr    string // empty disables the event mirror
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		LLMModel:              "gpt-4o-mini",
		LLMTimeout:            120 * time.Second,
		LLMBurst:              1,
		LLMBreakerCooldown:    30 * time.Second,
		SearchProvider:        "tavily",
		SearchMaxResults:      10,
		PlannerMaxSteps:       12,
		QueriesPerStep:        4,
		URLsPerQuery:          4,
		FetchParallelism:      4,
		HTTPTimeout:           30 * time.Second,
		ItemsPerEvidence:      8,
		WriterStepsPerSection: 18,
		SectionMaxChars:       20000,
		SectionMaxEvidences:   12,
		RetrieveTopK:          12,
		ToolResponseMaxChars:  25000,
		ArtifactsDir:          ".",
	}
}

// ApplyDefaults fills any still-unset fields from Default. Call it after
// flags, env and file have had their chance.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	d := Default()
	if cfg.LLMModel == "" {
		cfg.LLMModel = d.LLMModel
	}
	if cfg.LLMTimeout == 0 {
		cfg.LLMTimeout = d.LLMTimeout
	}
	if cfg.LLMBurst == 0 {
		cfg.LLMBurst = d.LLMBurst
	}
	if cfg.LLMBreakerCooldown == 0 {
		cfg.LLMBreakerCooldown = d.LLMBreakerCooldown
	}
	if cfg.SearchProvider == "" {
		cfg.SearchProvider = d.SearchProvider
	}
	if cfg.SearchMaxResults == 0 {
		cfg.SearchMaxResults = d.SearchMaxResults
	}
	if cfg.PlannerMaxSteps == 0 {
		cfg.PlannerMaxSteps = d.PlannerMaxSteps
	}
	if cfg.QueriesPerStep == 0 {
		cfg.QueriesPerStep = d.QueriesPerStep
	}
	if cfg.URLsPerQuery == 0 {
		cfg.URLsPerQuery = d.URLsPerQuery
	}
	if cfg.FetchParallelism == 0 {
		cfg.FetchParallelism = d.FetchParallelism
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = d.HTTPTimeout
	}
	if cfg.ItemsPerEvidence == 0 {
		cfg.ItemsPerEvidence = d.ItemsPerEvidence
	}
	if cfg.WriterStepsPerSection == 0 {
		cfg.WriterStepsPerSection = d.WriterStepsPerSection
	}
	if cfg.SectionMaxChars == 0 {
		cfg.SectionMaxChars = d.SectionMaxChars
	}
	if cfg.SectionMaxEvidences == 0 {
		cfg.SectionMaxEvidences = d.SectionMaxEvidences
	}
	if cfg.RetrieveTopK == 0 {
		cfg.RetrieveTopK = d.RetrieveTopK
	}
	if cfg.ToolResponseMaxChars == 0 {
		cfg.ToolResponseMaxChars = d.ToolResponseMaxChars
	}
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = d.ArtifactsDir
	}
}

// ApplyEnv populates unset fields of cfg from WEAVER_* environment
// variables. Explicit cfg values take precedence over env.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	setString(&cfg.LLMBaseURL, "WEAVER_LLM_BASE_URL")
	setString(&cfg.LLMModel, "WEAVER_LLM_MODEL")
	setString(&cfg.LLMAPIKey, "WEAVER_LLM_API_KEY")
	setDuration(&cfg.LLMTimeout, "WEAVER_LLM_TIMEOUT")
	setFloat(&cfg.LLMRPS, "WEAVER_LLM_RPS")
	setInt(&cfg.LLMBurst, "WEAVER_LLM_BURST")
	setInt(&cfg.LLMBreakerThreshold, "WEAVER_LLM_BREAKER_THRESHOLD")
	setDuration(&cfg.LLMBreakerCooldown, "WEAVER_LLM_BREAKER_COOLDOWN")
	setString(&cfg.SearchProvider, "WEAVER_SEARCH_PROVIDER")
	setString(&cfg.TavilyAPIKey, "WEAVER_TAVILY_API_KEY")
	setString(&cfg.TavilyEndpoint, "WEAVER_TAVILY_ENDPOINT")
	setString(&cfg.TavilyDepth, "WEAVER_TAVILY_DEPTH")
	setInt(&cfg.TavilyMaxRetries, "WEAVER_TAVILY_MAX_RETRIES")
	setString(&cfg.SearxURL, "WEAVER_SEARX_URL")
	setString(&cfg.SearxKey, "WEAVER_SEARX_KEY")
	setString(&cfg.SearchFile, "WEAVER_SEARCH_FILE")
	setInt(&cfg.SearchMaxResults, "WEAVER_SEARCH_MAX_RESULTS")
	setInt(&cfg.PlannerMaxSteps, "WEAVER_PLANNER_MAX_STEPS")
	setInt(&cfg.QueriesPerStep, "WEAVER_QUERIES_PER_STEP")
	setInt(&cfg.URLsPerQuery, "WEAVER_URLS_PER_QUERY")
	setInt(&cfg.FetchParallelism, "WEAVER_FETCH_PARALLELISM")
	setDuration(&cfg.HTTPTimeout, "WEAVER_HTTP_TIMEOUT")
	setString(&cfg.HTTPUserAgent, "WEAVER_HTTP_USER_AGENT")
	setInt(&cfg.ItemsPerEvidence, "WEAVER_ITEMS_PER_EVIDENCE")
	setInt(&cfg.WriterStepsPerSection, "WEAVER_WRITER_STEPS_PER_SECTION")
	setInt(&cfg.SectionMaxChars, "WEAVER_SECTION_MAX_CHARS")
	setInt(&cfg.SectionMaxEvidences, "WEAVER_SECTION_MAX_EVIDENCES")
	setInt(&cfg.RetrieveTopK, "WEAVER_RETRIEVE_TOP_K")
	setInt(&cfg.ToolResponseMaxChars, "WEAVER_TOOL_RESPONSE_MAX_CHARS")
	setString(&cfg.CriteriaFile, "WEAVER_CRITERIA_FILE")
	setString(&cfg.JudgeTemplateFile, "WEAVER_JUDGE_TEMPLATE_FILE")
	setString(&cfg.ArtifactsDir, "WEAVER_ARTIFACTS_DIR")
	setString(&cfg.RedisAddr, "WEAVER_REDIS_ADDR")
}

func setString(dst *string, key string) {
	if *dst == "" {
		*dst = os.Getenv(key)
	}
}

func setInt(dst *int, key string) {
	if *dst != 0 {
		return
	}
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		*dst = n
	}
}

func setFloat(dst *float64, key string) {
	if *dst != 0 {
		return
	}
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		*dst = f
	}
}

func setDuration(dst *time.Duration, key string) {
	if *dst != 0 {
		return
	}
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		*dst = d
	}
}
