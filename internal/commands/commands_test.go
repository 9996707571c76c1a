package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/events"
	"github.com/NielsdaWheelz/clipsift/internal/lock"
	"github.com/NielsdaWheelz/clipsift/internal/paths"
	"github.com/NielsdaWheelz/clipsift/internal/status"
	"github.com/NielsdaWheelz/clipsift/internal/store"
	"github.com/NielsdaWheelz/clipsift/internal/watchdog"
)

const testConfig = `version: 1
workers: 2
processing_dir: media
stages:
  - name: score_face
    kind: score
    metric: face
    command: ["sh", "-c", "echo 0.9"]
  - name: score_motion
    kind: score
    metric: motion
    command: ["sh", "-c", "echo 0.9"]
  - name: score_speech
    kind: score
    metric: speech
    command: ["sh", "-c", "echo 0.9"]
  - name: transcribe
    kind: transcribe
`

type testEnv struct {
	env    *Env
	cwd    string
	logOut *bytes.Buffer
	logErr *bytes.Buffer
}

// setupTestEnv writes cfg (if non-empty) to clipsift.yaml in a temp cwd and
// resolves an Env for namespace "test" under a temp data dir.
func setupTestEnv(t *testing.T, cfg string, media ...string) *testEnv {
	t.Helper()

	home := t.TempDir()
	cwd := t.TempDir()
	if cfg != "" {
		if err := os.WriteFile(filepath.Join(cwd, "clipsift.yaml"), []byte(cfg), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for _, m := range media {
		p := filepath.Join(cwd, "media", filepath.FromSlash(m))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("video:"+m), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(cwd, "media"), 0o755); err != nil {
		t.Fatal(err)
	}

	te := &testEnv{cwd: cwd, logOut: &bytes.Buffer{}, logErr: &bytes.Buffer{}}
	env, err := ResolveEnv(paths.MapEnv{paths.EnvDataDir: filepath.Join(home, "data")}, home, cwd,
		GlobalOpts{Namespace: "test", Color: "never"}, te.logOut, te.logErr)
	if err != nil {
		t.Fatalf("ResolveEnv: %v", err)
	}
	t.Cleanup(func() { _ = env.Close() })
	te.env = env
	return te
}

func withInteractive(t *testing.T, v bool) {
	t.Helper()
	orig := isInteractive
	isInteractive = func() bool { return v }
	t.Cleanup(func() { isInteractive = orig })
}

type runJSON struct {
	Units  int `json:"units"`
	Added  int `json:"added"`
	Stages []struct {
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"stages"`
}

func runOnce(t *testing.T, te *testEnv) runJSON {
	t.Helper()
	var out bytes.Buffer
	if err := Run(context.Background(), te.env, RunOpts{JSON: true}, &out); err != nil {
		t.Fatalf("Run: %v\nlog:\n%s%s", err, te.logOut, te.logErr)
	}
	var res runJSON
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("run output is not JSON: %v\n%s", err, out.String())
	}
	return res
}

func TestResolveEnv(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	envData := filepath.Join(home, "env-data")
	flagData := filepath.Join(home, "flag-data")
	var buf bytes.Buffer

	tests := []struct {
		name     string
		env      paths.MapEnv
		opts     GlobalOpts
		wantNS   string
		wantRoot string
		wantCode errors.Code
	}{
		{
			name:     "defaults",
			env:      paths.MapEnv{},
			wantNS:   paths.DefaultNamespace,
			wantRoot: filepath.Join(home, ".local", "share", "clipsift", "namespaces", paths.DefaultNamespace),
		},
		{
			name:     "env namespace and data dir",
			env:      paths.MapEnv{paths.EnvNamespace: "alice", paths.EnvDataDir: envData},
			wantNS:   "alice",
			wantRoot: filepath.Join(envData, "namespaces", "alice"),
		},
		{
			name:     "flags win over env",
			env:      paths.MapEnv{paths.EnvNamespace: "alice", paths.EnvDataDir: envData},
			opts:     GlobalOpts{Namespace: "bob", DataDir: flagData},
			wantNS:   "bob",
			wantRoot: filepath.Join(flagData, "namespaces", "bob"),
		},
		{
			name:     "invalid namespace",
			env:      paths.MapEnv{},
			opts:     GlobalOpts{Namespace: "../etc"},
			wantCode: errors.EUsage,
		},
		{
			name:     "explicit config missing",
			env:      paths.MapEnv{},
			opts:     GlobalOpts{ConfigPath: "nope.yaml"},
			wantCode: errors.EInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Color = "never"
			env, err := ResolveEnv(tt.env, home, cwd, tt.opts, &buf, &buf)
			if tt.wantCode != "" {
				if errors.GetCode(err) != tt.wantCode {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveEnv: %v", err)
			}
			defer func() { _ = env.Close() }()
			if env.Layout.Namespace != tt.wantNS {
				t.Errorf("namespace = %q, want %q", env.Layout.Namespace, tt.wantNS)
			}
			if env.Layout.Root() != tt.wantRoot {
				t.Errorf("root = %q, want %q", env.Layout.Root(), tt.wantRoot)
			}
			if env.ConfigPath != "" {
				t.Errorf("ConfigPath = %q, want defaults", env.ConfigPath)
			}
		})
	}
}

func TestResolveEnv_ConfigInCwd(t *testing.T) {
	te := setupTestEnv(t, testConfig)
	if te.env.ConfigPath != filepath.Join(te.cwd, "clipsift.yaml") {
		t.Errorf("ConfigPath = %q", te.env.ConfigPath)
	}
	if got := te.env.ProcessingDir(""); got != filepath.Join(te.cwd, "media") {
		t.Errorf("ProcessingDir = %q", got)
	}
	if got := te.env.OutputDir(""); got != te.env.Layout.OutputDir() {
		t.Errorf("OutputDir = %q", got)
	}
	if len(te.env.Config.Stages) != 4 {
		t.Errorf("stages = %d, want 4", len(te.env.Config.Stages))
	}
}

func TestRun_EndToEnd(t *testing.T) {
	te := setupTestEnv(t, testConfig, "day1/a.mp4", "day1/b.mov", "notes.txt")

	res := runOnce(t, te)
	if res.Units != 2 || res.Added != 2 {
		t.Fatalf("units = %d, added = %d, want 2/2", res.Units, res.Added)
	}
	for _, s := range res.Stages {
		if s.State != "done" {
			t.Errorf("stage %s = %s, want done", s.Name, s.State)
		}
	}

	// 0.9 quality * 0.8 general weight = 0.72 >= 0.65
	for _, name := range []string{"day1_a.mp4", "day1_b.mov"} {
		p := filepath.Join(te.env.Layout.OutputDir(), "general", name)
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected copy %s: %v", p, err)
		}
	}
	for _, p := range []string{
		te.env.Layout.DecisionsPath(),
		te.env.Layout.ActionPlanPath(),
		te.env.Layout.AuditPath(),
		te.env.Layout.SummaryPath(),
		te.env.Layout.ExplanationsPath(),
		te.env.Layout.LogPath(),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing artifact %s: %v", p, err)
		}
	}

	again := runOnce(t, te)
	for _, s := range again.Stages {
		if s.State != "skipped" {
			t.Errorf("second run: stage %s = %s, want skipped", s.Name, s.State)
		}
	}
}

func TestRun_NoUnits(t *testing.T) {
	te := setupTestEnv(t, testConfig)
	err := Run(context.Background(), te.env, RunOpts{}, &bytes.Buffer{})
	if errors.GetCode(err) != errors.ENoUnits {
		t.Fatalf("err = %v, want E_NO_UNITS", err)
	}
}

func TestRun_MissingProcessingDir(t *testing.T) {
	te := setupTestEnv(t, testConfig)
	err := Run(context.Background(), te.env, RunOpts{ProcessingDir: filepath.Join(te.cwd, "absent")}, &bytes.Buffer{})
	if errors.GetCode(err) != errors.EUsage {
		t.Fatalf("err = %v, want E_USAGE", err)
	}
}

func TestStatus(t *testing.T) {
	te := setupTestEnv(t, testConfig, "a.mp4")

	var before bytes.Buffer
	if err := Status(te.env, StatusOpts{}, &before); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(before.String(), "no units tracked") || !strings.Contains(before.String(), "run: idle") {
		t.Errorf("status before run:\n%s", before.String())
	}

	runOnce(t, te)

	var out bytes.Buffer
	if err := Status(te.env, StatusOpts{JSON: true}, &out); err != nil {
		t.Fatal(err)
	}
	var got statusJSON
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("status JSON: %v\n%s", err, out.String())
	}
	if got.Namespace != "test" || got.RunActive || got.StopRequested || got.Run != status.StatusCompleted {
		t.Errorf("status = %+v", got)
	}
	if got.Units["a.mp4"].Status != store.StatusCompleted {
		t.Errorf("a.mp4 = %+v, want COMPLETED", got.Units["a.mp4"])
	}
	if got.Counts[store.StatusCompleted] != 1 {
		t.Errorf("counts = %v", got.Counts)
	}
}

func TestStop(t *testing.T) {
	te := setupTestEnv(t, testConfig)
	stopPath := te.env.Layout.StopPath()

	var out bytes.Buffer
	if err := Stop(te.env, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "no active run") {
		t.Errorf("stop without run: %q", out.String())
	}
	if watchdog.StopRequested(stopPath) {
		t.Fatal("stop marker written without an active run")
	}

	if err := os.MkdirAll(te.env.Layout.Root(), 0o755); err != nil {
		t.Fatal(err)
	}
	unlock, err := lock.Exclusive(te.env.Layout.RunLockPath())
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	out.Reset()
	if err := Stop(te.env, &out); err != nil {
		t.Fatal(err)
	}
	if !watchdog.StopRequested(stopPath) {
		t.Error("stop marker not written")
	}
}

func TestReset_Confirmation(t *testing.T) {
	tests := []struct {
		name        string
		interactive bool
		input       string
		wantCode    errors.Code
	}{
		{name: "not interactive", interactive: false, wantCode: errors.EConfirmationRequired},
		{name: "wrong word", interactive: true, input: "yes\n", wantCode: errors.EConfirmationRequired},
		{name: "no input", interactive: true, input: "", wantCode: errors.EConfirmationRequired},
		{name: "confirmed", interactive: true, input: "reset\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := setupTestEnv(t, testConfig)
			withInteractive(t, tt.interactive)
			var stderr bytes.Buffer
			err := Reset(context.Background(), te.env, ResetOpts{}, strings.NewReader(tt.input), &stderr)
			if tt.wantCode != "" {
				if errors.GetCode(err) != tt.wantCode {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Reset: %v", err)
			}
			if !strings.Contains(stderr.String(), "type 'reset'") {
				t.Errorf("prompt missing: %q", stderr.String())
			}
		})
	}
}

func TestReset_WipesNamespace(t *testing.T) {
	te := setupTestEnv(t, testConfig, "a.mp4", "b.mp4")
	runOnce(t, te)
	if err := SetLabel(te.env, SetLabelOpts{UnitID: "a.mp4", Category: "funny"}, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	if err := Reset(context.Background(), te.env, ResetOpts{Yes: true}, nil, &bytes.Buffer{}); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	for _, p := range []string{
		te.env.Layout.StatePath(),
		te.env.Layout.ScoresPath(),
		te.env.Layout.LabelsPath(),
		te.env.Layout.DecisionsPath(),
		te.env.Layout.AuditPath(),
		te.env.Layout.SummaryPath(),
	} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists after reset", p)
		}
	}
	entries, err := os.ReadDir(te.env.Layout.OutputDir())
	if err != nil {
		t.Fatalf("output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("output not cleared: %d entries", len(entries))
	}
	if _, err := os.Stat(filepath.Join(te.cwd, "media", "a.mp4")); err != nil {
		t.Errorf("source media touched by reset: %v", err)
	}

	evs, _, err := events.ReadJSONL[events.Event](te.env.Layout.EventsPath())
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) == 0 || evs[len(evs)-1].Event != events.Reset {
		t.Errorf("last event is not reset: %+v", evs)
	}

	// A fresh run starts over.
	res := runOnce(t, te)
	if res.Added != 2 {
		t.Errorf("added after reset = %d, want 2", res.Added)
	}
}

func TestReset_ActiveRun(t *testing.T) {
	te := setupTestEnv(t, testConfig)
	if err := os.MkdirAll(te.env.Layout.Root(), 0o755); err != nil {
		t.Fatal(err)
	}
	// Hold the run lock through a separate file handle, as another process would.
	fl := flock.New(te.env.Layout.RunLockPath() + ".lock")
	if ok, err := fl.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer func() { _ = fl.Unlock() }()

	err := Reset(context.Background(), te.env, ResetOpts{Yes: true}, nil, &bytes.Buffer{})
	if errors.GetCode(err) != errors.ELockFailed {
		t.Fatalf("err = %v, want E_LOCK_FAILED", err)
	}
}

func TestShow(t *testing.T) {
	te := setupTestEnv(t, testConfig, "day1/a.mp4")
	runOnce(t, te)

	var out bytes.Buffer
	if err := Show(te.env, ShowOpts{UnitID: "day1/a.mp4"}, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"unit: day1/a.mp4", "status: COMPLETED", "verdict: keep", "face: 0.900"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("show missing %q:\n%s", want, out.String())
		}
	}

	var byBase bytes.Buffer
	if err := Show(te.env, ShowOpts{UnitID: "a.mp4"}, &byBase); err != nil {
		t.Fatalf("show by base name: %v", err)
	}
	if !strings.Contains(byBase.String(), "unit: day1/a.mp4") {
		t.Errorf("show by base name:\n%s", byBase.String())
	}

	err := Show(te.env, ShowOpts{UnitID: "nope.mp4"}, &out)
	if errors.GetCode(err) != errors.EUnitNotFound {
		t.Errorf("err = %v, want E_UNIT_NOT_FOUND", err)
	}
}

func TestSetScore(t *testing.T) {
	te := setupTestEnv(t, "")

	tests := []struct {
		name     string
		opts     SetScoreOpts
		wantOut  string
		wantCode errors.Code
	}{
		{name: "plain", opts: SetScoreOpts{UnitID: "a.mp4", Metric: "face", Value: "0.5"}, wantOut: "a.mp4 face = 0.500"},
		{name: "clamped", opts: SetScoreOpts{UnitID: "a.mp4", Metric: "motion", Value: "3"}, wantOut: "a.mp4 motion = 1.000"},
		{name: "not a number", opts: SetScoreOpts{UnitID: "a.mp4", Metric: "face", Value: "high"}, wantCode: errors.EInvalidValue},
		{name: "nan", opts: SetScoreOpts{UnitID: "a.mp4", Metric: "face", Value: "NaN"}, wantCode: errors.EInvalidValue},
		{name: "missing metric", opts: SetScoreOpts{UnitID: "a.mp4", Value: "1"}, wantCode: errors.EUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := SetScore(te.env, tt.opts, &out)
			if tt.wantCode != "" {
				if errors.GetCode(err) != tt.wantCode {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if strings.TrimSpace(out.String()) != tt.wantOut {
				t.Errorf("out = %q, want %q", out.String(), tt.wantOut)
			}
		})
	}

	// Scored but untracked units can still be shown.
	var out bytes.Buffer
	if err := Show(te.env, ShowOpts{UnitID: "a.mp4", JSON: true}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"UNTRACKED"`) {
		t.Errorf("show JSON:\n%s", out.String())
	}
}

func TestSetLabel(t *testing.T) {
	te := setupTestEnv(t, "")

	tests := []struct {
		name     string
		opts     SetLabelOpts
		wantOut  string
		wantCode errors.Code
	}{
		{name: "default manual", opts: SetLabelOpts{UnitID: "a.mp4", Category: "funny"}, wantOut: "a.mp4 labelled funny (manual)"},
		{name: "explicit attribution", opts: SetLabelOpts{UnitID: "b.mp4", Category: "unknown", Attribution: "llm"}, wantOut: "b.mp4 labelled unknown (llm)"},
		{name: "unknown category", opts: SetLabelOpts{UnitID: "a.mp4", Category: "cats"}, wantCode: errors.EInvalidValue},
		{name: "bad attribution", opts: SetLabelOpts{UnitID: "a.mp4", Category: "funny", Attribution: "guess"}, wantCode: errors.EInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := SetLabel(te.env, tt.opts, &out)
			if tt.wantCode != "" {
				if errors.GetCode(err) != tt.wantCode {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if strings.TrimSpace(out.String()) != tt.wantOut {
				t.Errorf("out = %q, want %q", out.String(), tt.wantOut)
			}
		})
	}

	l, ok := te.env.labels().Get("a.mp4")
	if !ok || l.Category != "funny" || l.UpdatedAt == "" {
		t.Errorf("label = %+v, %v", l, ok)
	}
}

func TestSummary(t *testing.T) {
	te := setupTestEnv(t, testConfig, "a.mp4")

	var live bytes.Buffer
	if err := Summary(te.env, SummaryOpts{}, &live); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(live.String(), "clips: 0") {
		t.Errorf("summary before run:\n%s", live.String())
	}

	runOnce(t, te)
	var out bytes.Buffer
	if err := Summary(te.env, SummaryOpts{JSON: true}, &out); err != nil {
		t.Fatal(err)
	}
	var s struct {
		RunID    string `json:"run_id"`
		Overview struct {
			TotalClips int `json:"total_clips"`
			Kept       int `json:"kept"`
		} `json:"overview"`
	}
	if err := json.Unmarshal(out.Bytes(), &s); err != nil {
		t.Fatalf("summary JSON: %v", err)
	}
	if s.RunID == "" || s.Overview.TotalClips != 1 || s.Overview.Kept != 1 {
		t.Errorf("summary = %+v", s)
	}
}
