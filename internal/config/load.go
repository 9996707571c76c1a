package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
)

// Candidate config file names, in lookup order.
var configNames = []string{"clipsift.yaml", "clipsift.yml", "clipsift.json"}

// file mirrors Config with pointer scalars so that absent fields keep their
// defaults while explicit zeros (e.g. borderline_threshold: 0) are honored.
type file struct {
	Version       *int         `json:"version" yaml:"version"`
	Workers       *int         `json:"workers" yaml:"workers"`
	Backend       *string      `json:"backend" yaml:"backend"`
	ProcessingDir *string      `json:"processing_dir" yaml:"processing_dir"`
	OutputDir     *string      `json:"output_dir" yaml:"output_dir"`
	Policy        *policyFile  `json:"policy" yaml:"policy"`
	Stages        []Stage      `json:"stages" yaml:"stages"`
	Semantic      *semanticRaw `json:"semantic" yaml:"semantic"`
}

type policyFile struct {
	Weights               map[string]float64 `json:"weights" yaml:"weights"`
	Labels                map[string]string  `json:"labels" yaml:"labels"`
	KeepThreshold         *float64           `json:"keep_threshold" yaml:"keep_threshold"`
	BorderlineThreshold   *float64           `json:"borderline_threshold" yaml:"borderline_threshold"`
	SemanticWeights       map[string]float64 `json:"semantic_weights" yaml:"semantic_weights"`
	SemanticDefaultWeight *float64           `json:"semantic_default_weight" yaml:"semantic_default_weight"`
	Categories            []string           `json:"categories" yaml:"categories"`
	BorderlineRange       *float64           `json:"borderline_range" yaml:"borderline_range"`
	MinSemanticQuality    *float64           `json:"min_semantic_quality" yaml:"min_semantic_quality"`
}

type semanticRaw struct {
	Provider  *string `json:"provider" yaml:"provider"`
	BaseURL   *string `json:"base_url" yaml:"base_url"`
	Model     *string `json:"model" yaml:"model"`
	APIKeyEnv *string `json:"api_key_env" yaml:"api_key_env"`
}

// Find returns the first existing config file in dir, or "" if none.
func Find(filesystem fs.FS, dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := filesystem.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads and validates the config at path.
// An empty path or a missing file yields defaults with found=false.
// A file that exists but is invalid returns E_INVALID_CONFIG.
func Load(filesystem fs.FS, path string) (Config, bool, error) {
	if path == "" {
		return Default(), false, nil
	}
	data, err := filesystem.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), false, nil
		}
		return Config{}, false, errors.WrapWithDetails(errors.EInvalidConfig, "failed to read config", err,
			map[string]string{"config": path})
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		if ce, ok := errors.AsClipError(err); ok {
			if ce.Details == nil {
				ce.Details = map[string]string{}
			}
			ce.Details["config"] = path
		}
		return Config{}, false, err
	}
	return cfg, true, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// Parse decodes data ("json" or "yaml") over the defaults and validates it.
// Unknown fields are rejected.
func Parse(data []byte, format string) (Config, error) {
	var raw file
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && err != io.EOF {
			return Config{}, errors.New(errors.EInvalidConfig, "invalid yaml: "+err.Error())
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return Config{}, errors.New(errors.EInvalidConfig, "invalid json: "+err.Error())
		}
	}

	cfg := raw.apply(Default())
	return Validate(cfg)
}

func (f file) apply(cfg Config) Config {
	if f.Version != nil {
		cfg.Version = *f.Version
	}
	if f.Workers != nil {
		cfg.Workers = *f.Workers
	}
	if f.Backend != nil {
		cfg.Backend = *f.Backend
	}
	if f.ProcessingDir != nil {
		cfg.ProcessingDir = *f.ProcessingDir
	}
	if f.OutputDir != nil {
		cfg.OutputDir = *f.OutputDir
	}
	if f.Stages != nil {
		cfg.Stages = f.Stages
	}
	if p := f.Policy; p != nil {
		if p.Weights != nil {
			cfg.Policy.Weights = p.Weights
		}
		for k, v := range p.Labels {
			cfg.Policy.Labels[k] = v
		}
		setFloat(&cfg.Policy.KeepThreshold, p.KeepThreshold)
		setFloat(&cfg.Policy.BorderlineThreshold, p.BorderlineThreshold)
		if p.SemanticWeights != nil {
			cfg.Policy.SemanticWeights = p.SemanticWeights
		}
		setFloat(&cfg.Policy.SemanticDefaultWeight, p.SemanticDefaultWeight)
		if p.Categories != nil {
			cfg.Policy.Categories = p.Categories
		}
		setFloat(&cfg.Policy.BorderlineRange, p.BorderlineRange)
		setFloat(&cfg.Policy.MinSemanticQuality, p.MinSemanticQuality)
	}
	if s := f.Semantic; s != nil {
		setString(&cfg.Semantic.Provider, s.Provider)
		setString(&cfg.Semantic.BaseURL, s.BaseURL)
		setString(&cfg.Semantic.Model, s.Model)
		setString(&cfg.Semantic.APIKeyEnv, s.APIKeyEnv)
	}
	return cfg
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
