package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration schema. Nested sections map onto the
// flat Config.
type FileConfig struct {
	LLM struct {
		Base             string        `yaml:"base"`
		Model            string        `yaml:"model"`
		Key              string        `yaml:"key"`
		Timeout          time.Duration `yaml:"timeout"`
		RPS              float64       `yaml:"rps"`
		Burst            int           `yaml:"burst"`
		BreakerThreshold int           `yaml:"breakerThreshold"`
		BreakerCooldown  time.Duration `yaml:"breakerCooldown"`
	} `yaml:"llm"`

	Search struct {
		Provider         string `yaml:"provider"`
		TavilyKey        string `yaml:"tavilyKey"`
		TavilyEndpoint   string `yaml:"tavilyEndpoint"`
		TavilyDepth      string `yaml:"tavilyDepth"`
		TavilyMaxRetries int    `yaml:"tavilyMaxRetries"`
		SearxURL         string `yaml:"searxURL"`
		SearxKey         string `yaml:"searxKey"`
		File             string `yaml:"file"`
		MaxResults       int    `yaml:"maxResults"`
	} `yaml:"search"`

	Planner struct {
		MaxSteps       int `yaml:"maxSteps"`
		QueriesPerStep int `yaml:"queriesPerStep"`
		URLsPerQuery   int `yaml:"urlsPerQuery"`
		Parallelism    int `yaml:"parallelism"`
	} `yaml:"planner"`

	Writer struct {
		StepsPerSection      int `yaml:"stepsPerSection"`
		SectionMaxChars      int `yaml:"sectionMaxChars"`
		SectionMaxEvidences  int `yaml:"sectionMaxEvidences"`
		RetrieveTopK         int `yaml:"retrieveTopK"`
		ToolResponseMaxChars int `yaml:"toolResponseMaxChars"`
	} `yaml:"writer"`

	Judge struct {
		Criteria string `yaml:"criteria"`
		Template string `yaml:"template"`
	} `yaml:"judge"`

	HTTPTimeout   time.Duration `yaml:"httpTimeout"`
	HTTPUserAgent string        `yaml:"httpUserAgent"`
	ArtifactsDir  string        `yaml:"artifactsDir"`
	RedisAddr     string        `yaml:"redisAddr"`
}

// LoadFile reads a YAML config file and fills unset fields of cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	merge(cfg, fc)
	return nil
}

func merge(cfg *Config, fc FileConfig) {
	fillStr := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fillInt := func(dst *int, v int) {
		if *dst == 0 && v > 0 {
			*dst = v
		}
	}
	fillDur := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 && v > 0 {
			*dst = v
		}
	}
	fillStr(&cfg.LLMBaseURL, fc.LLM.Base)
	fillStr(&cfg.LLMModel, fc.LLM.Model)
	fillStr(&cfg.LLMAPIKey, fc.LLM.Key)
	fillDur(&cfg.LLMTimeout, fc.LLM.Timeout)
	if cfg.LLMRPS == 0 && fc.LLM.RPS > 0 {
		cfg.LLMRPS = fc.LLM.RPS
	}
	fillInt(&cfg.LLMBurst, fc.LLM.Burst)
	fillInt(&cfg.LLMBreakerThreshold, fc.LLM.BreakerThreshold)
	fillDur(&cfg.LLMBreakerCooldown, fc.LLM.BreakerCooldown)
	fillStr(&cfg.SearchProvider, fc.Search.Provider)
	fillStr(&cfg.TavilyAPIKey, fc.Search.TavilyKey)
	fillStr(&cfg.TavilyEndpoint, fc.Search.TavilyEndpoint)
	fillStr(&cfg.TavilyDepth, fc.Search.TavilyDepth)
	fillInt(&cfg.TavilyMaxRetries, fc.Search.TavilyMaxRetries)
	fillStr(&cfg.SearxURL, fc.Search.SearxURL)
	fillStr(&cfg.SearxKey, fc.Search.SearxKey)
	fillStr(&cfg.SearchFile, fc.Search.File)
	fillInt(&cfg.SearchMaxResults, fc.Search.MaxResults)
	fillInt(&cfg.PlannerMaxSteps, fc.Planner.MaxSteps)
	fillInt(&cfg.QueriesPerStep, fc.Planner.QueriesPerStep)
	fillInt(&cfg.URLsPerQuery, fc.Planner.URLsPerQuery)
	fillInt(&cfg.FetchParallelism, fc.Planner.Parallelism)
	fillInt(&cfg.WriterStepsPerSection, fc.Writer.StepsPerSection)
	fillInt(&cfg.SectionMaxChars, fc.Writer.SectionMaxChars)
	fillInt(&cfg.SectionMaxEvidences, fc.Writer.SectionMaxEvidences)
	fillInt(&cfg.RetrieveTopK, fc.Writer.RetrieveTopK)
	fillInt(&cfg.ToolResponseMaxChars, fc.Writer.ToolResponseMaxChars)
	fillStr(&cfg.CriteriaFile, fc.Judge.Criteria)
	fillStr(&cfg.JudgeTemplateFile, fc.Judge.Template)
	fillDur(&cfg.HTTPTimeout, fc.HTTPTimeout)
	fillStr(&cfg.HTTPUserAgent, fc.HTTPUserAgent)
	fillStr(&cfg.ArtifactsDir, fc.ArtifactsDir)
	fillStr(&cfg.RedisAddr, fc.RedisAddr)
}
