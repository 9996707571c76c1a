// Package config handles loading and validation of the clipsift pipeline
// configuration (clipsift.json or clipsift.yaml).
package config

import (
	"runtime"
	"time"
)

// Backend names for the state store and score ledger.
const (
	BackendJSON = "json"
	BackendBolt = "bolt"
)

// Stage kinds.
const (
	KindScore      = "score"      // external command prints one metric value
	KindTranscribe = "transcribe" // external command prints a transcript; the classifier labels it
)

// Reserved batch stages, always appended after the configured stages.
const (
	StageDecide  = "decide"
	StagePlan    = "plan"
	StageExecute = "execute"
	StageReport  = "report"
)

// BatchStages lists the reserved batch stages in execution order.
var BatchStages = []string{StageDecide, StagePlan, StageExecute, StageReport}

// Semantic providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
)

// Known semantic categories.
const (
	CategoryProduct    = "product_related"
	CategoryFunny      = "funny"
	CategoryGeneral    = "general"
	CategoryUnknown    = "unknown"
	CategoryLowQuality = "low_quality"
)

// Config is the parsed and validated pipeline configuration.
type Config struct {
	Version       int      `json:"version" yaml:"version"`
	Workers       int      `json:"workers,omitempty" yaml:"workers,omitempty"`
	Backend       string   `json:"backend,omitempty" yaml:"backend,omitempty"`
	ProcessingDir string   `json:"processing_dir,omitempty" yaml:"processing_dir,omitempty"`
	OutputDir     string   `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Policy        Policy   `json:"policy" yaml:"policy"`
	Stages        []Stage  `json:"stages,omitempty" yaml:"stages,omitempty"`
	Semantic      Semantic `json:"semantic" yaml:"semantic"`
}

// Policy holds the decision weights and thresholds.
//
// Weights are not required to sum to 1; the quality score is a raw weighted sum.
type Policy struct {
	Weights               map[string]float64 `json:"weights" yaml:"weights"`
	Labels                map[string]string  `json:"labels,omitempty" yaml:"labels,omitempty"`
	KeepThreshold         float64            `json:"keep_threshold" yaml:"keep_threshold"`
	BorderlineThreshold   float64            `json:"borderline_threshold" yaml:"borderline_threshold"` // 0 disables quarantine
	SemanticWeights       map[string]float64 `json:"semantic_weights,omitempty" yaml:"semantic_weights,omitempty"`
	SemanticDefaultWeight float64            `json:"semantic_default_weight" yaml:"semantic_default_weight"`
	Categories            []string           `json:"categories" yaml:"categories"`
	BorderlineRange       float64            `json:"borderline_range" yaml:"borderline_range"`
	MinSemanticQuality    float64            `json:"min_semantic_quality" yaml:"min_semantic_quality"`
}

// Stage is one configured per-unit stage.
type Stage struct {
	Name    string   `json:"name" yaml:"name"`
	Kind    string   `json:"kind" yaml:"kind"`
	Metric  string   `json:"metric,omitempty" yaml:"metric,omitempty"`
	Command []string `json:"command" yaml:"command"`
	Timeout string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultStageTimeout applies when a stage does not set timeout.
const DefaultStageTimeout = 5 * time.Minute

// TimeoutDuration returns the parsed timeout, or DefaultStageTimeout.
// Validation guarantees Timeout parses.
func (s Stage) TimeoutDuration() time.Duration {
	if s.Timeout == "" {
		return DefaultStageTimeout
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return DefaultStageTimeout
	}
	return d
}

// Semantic configures the LLM fallback of the classifier.
type Semantic struct {
	Provider  string `json:"provider" yaml:"provider"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
}

// DefaultPolicy returns the built-in decision policy.
func DefaultPolicy() Policy {
	return Policy{
		Weights: map[string]float64{"face": 0.4, "motion": 0.3, "speech": 0.3},
		Labels: map[string]string{
			"face":   "Face Visibility",
			"motion": "Motion",
			"speech": "Speech Presence",
		},
		KeepThreshold:       0.65,
		BorderlineThreshold: 0.5,
		SemanticWeights: map[string]float64{
			CategoryProduct: 1.0,
			CategoryFunny:   1.0,
			CategoryGeneral: 0.8,
		},
		SemanticDefaultWeight: 0.5,
		Categories:            []string{CategoryProduct, CategoryFunny, CategoryGeneral},
		BorderlineRange:       0.05,
		MinSemanticQuality:    0.4,
	}
}

// Default returns built-in defaults used when no config file exists.
func Default() Config {
	return Config{
		Version: 1,
		Backend: BackendJSON,
		Policy:  DefaultPolicy(),
		Semantic: Semantic{
			Provider:  ProviderNone,
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

// WorkerCount returns the per-stage pool size: Workers if set, else
// max(1, NumCPU-2).
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// StageNames returns the full declared pipeline: configured stages then the
// reserved batch stages.
func (c Config) StageNames() []string {
	names := make([]string, 0, len(c.Stages)+len(BatchStages))
	for _, s := range c.Stages {
		names = append(names, s.Name)
	}
	return append(names, BatchStages...)
}

// MetricLabel returns the human-readable label for metric.
func (p Policy) MetricLabel(metric string) string {
	if l, ok := p.Labels[metric]; ok && l != "" {
		return l
	}
	return metric
}

// IsKnownCategory reports whether cat is in the configured vocabulary.
func (p Policy) IsKnownCategory(cat string) bool {
	for _, c := range p.Categories {
		if c == cat {
			return true
		}
	}
	return false
}
