package config

import (
	"io"
	iofs "io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
)

// stubFS is a test stub for the fs.FS interface.
type stubFS struct {
	files map[string][]byte
}

func newStubFS() *stubFS {
	return &stubFS{files: make(map[string][]byte)}
}

func (s *stubFS) ReadFile(path string) ([]byte, error) {
	data, ok := s.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (s *stubFS) Stat(path string) (iofs.FileInfo, error) {
	if _, ok := s.files[path]; ok {
		return nil, nil
	}
	return nil, os.ErrNotExist
}

func (s *stubFS) MkdirAll(path string, perm os.FileMode) error         { return nil }
func (s *stubFS) WriteFile(path string, d []byte, p os.FileMode) error { return nil }
func (s *stubFS) Rename(o, n string) error                             { return nil }
func (s *stubFS) Remove(path string) error                             { return nil }
func (s *stubFS) CreateTemp(dir, pattern string) (string, io.WriteCloser, error) {
	return "", nil, nil
}

var _ fs.FS = (*stubFS)(nil)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, found, err := Load(newStubFS(), "/cfg/clipsift.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("found should be false")
	}
	if cfg.Policy.KeepThreshold != 0.65 {
		t.Errorf("KeepThreshold = %v, want 0.65", cfg.Policy.KeepThreshold)
	}
	if cfg.Policy.SemanticDefaultWeight != 0.5 {
		t.Errorf("SemanticDefaultWeight = %v", cfg.Policy.SemanticDefaultWeight)
	}
	if cfg.Backend != BackendJSON {
		t.Errorf("Backend = %q", cfg.Backend)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	_, found, err := Load(newStubFS(), "")
	if err != nil || found {
		t.Errorf("Load(\"\") = found %v, err %v", found, err)
	}
}

func TestLoad_YAML(t *testing.T) {
	stub := newStubFS()
	stub.files["/cfg/clipsift.yaml"] = []byte(`
version: 1
workers: 3
backend: bolt
policy:
  weights: {face: 0.5, motion: 0.5}
  keep_threshold: 0.6
  borderline_threshold: 0
stages:
  - name: score_face
    kind: score
    metric: face
    command: ["face-score"]
    timeout: 30s
semantic:
  provider: openai
  base_url: http://localhost:11434/v1
`)
	cfg, found, err := Load(stub, "/cfg/clipsift.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Error("found should be true")
	}
	if cfg.Workers != 3 || cfg.WorkerCount() != 3 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.Backend != BackendBolt {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if len(cfg.Policy.Weights) != 2 {
		t.Errorf("weights should be replaced, got %v", cfg.Policy.Weights)
	}
	if cfg.Policy.BorderlineThreshold != 0 {
		t.Errorf("explicit zero borderline must be kept, got %v", cfg.Policy.BorderlineThreshold)
	}
	if cfg.Policy.SemanticDefaultWeight != 0.5 {
		t.Errorf("unset fields keep defaults, got %v", cfg.Policy.SemanticDefaultWeight)
	}
	if got := cfg.Stages[0].TimeoutDuration(); got != 30*time.Second {
		t.Errorf("TimeoutDuration() = %v", got)
	}
	if cfg.Semantic.Model != "gpt-4o-mini" {
		t.Errorf("Model default lost: %q", cfg.Semantic.Model)
	}
	want := []string{"score_face", StageDecide, StagePlan, StageExecute, StageReport}
	if got := strings.Join(cfg.StageNames(), ","); got != strings.Join(want, ",") {
		t.Errorf("StageNames() = %v", got)
	}
}

func TestParse_UnknownFields(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
	}{
		{"json top level", "json", `{"version":1,"bogus":true}`},
		{"json nested", "json", `{"version":1,"policy":{"keep":0.5}}`},
		{"yaml top level", "yaml", "version: 1\nbogus: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			if errors.GetCode(err) != errors.EInvalidConfig {
				t.Errorf("code = %q, want E_INVALID_CONFIG (err=%v)", errors.GetCode(err), err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"bad version", func(c *Config) { c.Version = 2 }, "version must be 1"},
		{"negative weight", func(c *Config) { c.Policy.Weights["face"] = -1 }, "policy.weights.face"},
		{"keep out of range", func(c *Config) { c.Policy.KeepThreshold = 1.5 }, "keep_threshold"},
		{"borderline above keep", func(c *Config) { c.Policy.BorderlineThreshold = 0.9 }, "below keep_threshold"},
		{"bad backend", func(c *Config) { c.Backend = "redis" }, "backend"},
		{"reserved stage", func(c *Config) {
			c.Stages = []Stage{{Name: "decide", Kind: KindScore, Metric: "m", Command: []string{"x"}}}
		}, "reserved"},
		{"duplicate stage", func(c *Config) {
			s := Stage{Name: "a", Kind: KindScore, Metric: "m", Command: []string{"x"}}
			c.Stages = []Stage{s, s}
		}, "duplicated"},
		{"score without metric", func(c *Config) {
			c.Stages = []Stage{{Name: "a", Kind: KindScore, Command: []string{"x"}}}
		}, "metric is required"},
		{"bad kind", func(c *Config) { c.Stages = []Stage{{Name: "a", Kind: "render"}} }, "kind"},
		{"bad timeout", func(c *Config) {
			c.Stages = []Stage{{Name: "a", Kind: KindTranscribe, Timeout: "soon"}}
		}, "timeout"},
		{"bad category", func(c *Config) { c.Policy.Categories = []string{"a/b"} }, "categories"},
		{"bad provider", func(c *Config) { c.Semantic.Provider = "bard" }, "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			_, err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.GetCode(err) != errors.EInvalidConfig {
				t.Errorf("code = %q", errors.GetCode(err))
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}

	if _, err := Validate(Default()); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestFind(t *testing.T) {
	stub := newStubFS()
	if got := Find(stub, "/p"); got != "" {
		t.Errorf("Find() = %q, want empty", got)
	}
	stub.files["/p/clipsift.json"] = []byte(`{"version":1}`)
	if got := Find(stub, "/p"); got != "/p/clipsift.json" {
		t.Errorf("Find() = %q", got)
	}
}

func TestPolicyHelpers(t *testing.T) {
	p := DefaultPolicy()
	if p.MetricLabel("speech") != "Speech Presence" {
		t.Errorf("MetricLabel(speech) = %q", p.MetricLabel("speech"))
	}
	if p.MetricLabel("blur") != "blur" {
		t.Errorf("unlabelled metric should echo its name")
	}
	if !p.IsKnownCategory(CategoryFunny) || p.IsKnownCategory(CategoryUnknown) {
		t.Error("IsKnownCategory mismatch")
	}
}
