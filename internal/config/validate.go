package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
)

// Validate checks cfg and returns E_INVALID_CONFIG on the first violation.
func Validate(cfg Config) (Config, error) {
	if cfg.Version != 1 {
		return cfg, invalid("version must be 1")
	}
	if cfg.Workers < 0 {
		return cfg, invalid("workers must be >= 0")
	}
	switch cfg.Backend {
	case BackendJSON, BackendBolt:
	default:
		return cfg, invalid(fmt.Sprintf("backend must be %q or %q", BackendJSON, BackendBolt))
	}
	if err := validatePolicy(cfg.Policy); err != nil {
		return cfg, err
	}
	if err := validateStages(cfg.Stages); err != nil {
		return cfg, err
	}
	switch cfg.Semantic.Provider {
	case ProviderNone, "":
	case ProviderOpenAI:
		if cfg.Semantic.Model == "" {
			return cfg, invalid("semantic.model is required for provider openai")
		}
	default:
		return cfg, invalid("semantic.provider must be none or openai")
	}
	return cfg, nil
}

func validatePolicy(p Policy) error {
	if len(p.Weights) == 0 {
		return invalid("policy.weights must not be empty")
	}
	for m, w := range p.Weights {
		if strings.TrimSpace(m) == "" {
			return invalid("policy.weights has an empty metric name")
		}
		if w < 0 {
			return invalid("policy.weights." + m + " must be >= 0")
		}
	}
	if !inUnit(p.KeepThreshold) {
		return invalid("policy.keep_threshold must be in [0,1]")
	}
	if !inUnit(p.BorderlineThreshold) {
		return invalid("policy.borderline_threshold must be in [0,1]")
	}
	if p.BorderlineThreshold > 0 && p.BorderlineThreshold >= p.KeepThreshold {
		return invalid("policy.borderline_threshold must be below keep_threshold")
	}
	for c, w := range p.SemanticWeights {
		if w < 0 {
			return invalid("policy.semantic_weights." + c + " must be >= 0")
		}
	}
	if p.SemanticDefaultWeight < 0 {
		return invalid("policy.semantic_default_weight must be >= 0")
	}
	for _, c := range p.Categories {
		if strings.TrimSpace(c) == "" || strings.ContainsAny(c, `/\`) {
			return invalid(fmt.Sprintf("policy.categories has an invalid name %q", c))
		}
	}
	if !inUnit(p.BorderlineRange) {
		return invalid("policy.borderline_range must be in [0,1]")
	}
	if !inUnit(p.MinSemanticQuality) {
		return invalid("policy.min_semantic_quality must be in [0,1]")
	}
	return nil
}

func validateStages(stages []Stage) error {
	reserved := map[string]bool{}
	for _, b := range BatchStages {
		reserved[b] = true
	}
	seen := map[string]bool{}
	for i, s := range stages {
		field := fmt.Sprintf("stages[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			return invalid(field + ".name is required")
		}
		if reserved[s.Name] {
			return invalid(field + ".name " + s.Name + " is reserved")
		}
		if seen[s.Name] {
			return invalid(field + ".name " + s.Name + " is duplicated")
		}
		seen[s.Name] = true

		switch s.Kind {
		case KindScore:
			if s.Metric == "" {
				return invalid(field + ".metric is required for score stages")
			}
			if len(s.Command) == 0 || s.Command[0] == "" {
				return invalid(field + ".command is required for score stages")
			}
		case KindTranscribe:
			// Command is optional: without one the unit's sidecar .txt is used.
		default:
			return invalid(field + ".kind must be score or transcribe")
		}
		if s.Timeout != "" {
			d, err := time.ParseDuration(s.Timeout)
			if err != nil || d <= 0 {
				return invalid(field + ".timeout must be a positive duration")
			}
		}
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

func invalid(msg string) error {
	return errors.New(errors.EInvalidConfig, msg)
}
