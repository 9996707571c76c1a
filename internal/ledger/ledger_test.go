package ledger

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
)

type backend struct {
	name string
	open func(t *testing.T, dir string) Ledger
}

func backends() []backend {
	return []backend{
		{"json", func(t *testing.T, dir string) Ledger {
			return NewJSONLedger(fs.NewRealFS(), filepath.Join(dir, "scores.json"))
		}},
		{"bolt", func(t *testing.T, dir string) Ledger {
			l, err := OpenBolt(filepath.Join(dir, "scores.db"), nil)
			if err != nil {
				t.Fatalf("OpenBolt() error = %v", err)
			}
			t.Cleanup(func() { _ = l.Close() })
			return l
		}},
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{7, 1},
		{math.Inf(1), 1},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLedger_ClampsAndMerges(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			l := b.open(t, t.TempDir())

			if err := l.UpdateScore("u1", "face", 1.7); err != nil {
				t.Fatal(err)
			}
			if err := l.UpdateScore("u1", "motion", -3); err != nil {
				t.Fatal(err)
			}
			if err := l.UpdateScore("u1", "speech", 0.25); err != nil {
				t.Fatal(err)
			}

			got := l.Scores("u1")
			want := Scores{"face": 1, "motion": 0, "speech": 0.25}
			if len(got) != len(want) {
				t.Fatalf("Scores() = %v, want %v", got, want)
			}
			for k, v := range want {
				if got[k] != v {
					t.Errorf("Scores()[%s] = %v, want %v", k, got[k], v)
				}
			}

			if err := l.UpdateScore("u1", "face", 0.3); err != nil {
				t.Fatal(err)
			}
			if got := l.Scores("u1")["face"]; got != 0.3 {
				t.Errorf("last write should win, got %v", got)
			}
		})
	}
}

func TestLedger_UnknownUnitEmpty(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			l := b.open(t, t.TempDir())
			got := l.Scores("missing")
			if got == nil || len(got) != 0 {
				t.Errorf("Scores(missing) = %#v, want empty non-nil map", got)
			}
		})
	}
}

// Each worker writes its own unit and metric; none may be lost.
func TestLedger_ConcurrentWritersNoLostUpdates(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			l := b.open(t, t.TempDir())
			const n = 32

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					unit := fmt.Sprintf("batch/unit_%03d", i)
					metric := fmt.Sprintf("m%d", i)
					if err := l.UpdateScore(unit, metric, float64(i)/n); err != nil {
						t.Errorf("UpdateScore() error = %v", err)
					}
				}(i)
			}
			wg.Wait()

			all := l.All()
			if len(all) != n {
				t.Fatalf("len(All()) = %d, want %d", len(all), n)
			}
			for i := 0; i < n; i++ {
				s := all[fmt.Sprintf("batch/unit_%03d", i)]
				if got := s[fmt.Sprintf("m%d", i)]; got != float64(i)/n {
					t.Errorf("unit %d metric = %v", i, got)
				}
			}
		})
	}
}

func TestLedger_Reset(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			l := b.open(t, t.TempDir())
			_ = l.UpdateScore("u1", "face", 0.5)
			if err := l.Reset(); err != nil {
				t.Fatalf("Reset() error = %v", err)
			}
			if len(l.All()) != 0 {
				t.Errorf("All() after reset = %v", l.All())
			}
			if err := l.UpdateScore("u1", "face", 0.5); err != nil {
				t.Errorf("ledger unusable after reset: %v", err)
			}
		})
	}
}

func TestJSONLedger_CorruptTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	if err := os.WriteFile(path, []byte(`{"u1": {"face": "high"`), 0o644); err != nil {
		t.Fatal(err)
	}
	warned := 0
	l := NewJSONLedger(fs.NewRealFS(), path)
	l.Warn = func(string, ...any) { warned++ }

	if len(l.All()) != 0 {
		t.Error("corrupt ledger should read as empty")
	}
	if err := l.UpdateScore("u2", "motion", 0.9); err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}
	if got := l.Scores("u2")["motion"]; got != 0.9 {
		t.Errorf("motion = %v", got)
	}
	if warned == 0 {
		t.Error("expected corrupt warning")
	}
}

func TestJSONLedger_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	l := NewJSONLedger(fs.NewRealFS(), path)
	_ = l.UpdateScore("a/b.mp4", "face", 0.5)

	other := NewJSONLedger(fs.NewRealFS(), path)
	if got := other.Scores("a/b.mp4")["face"]; got != 0.5 {
		t.Errorf("second handle sees %v", got)
	}
}

// flakyFS fails the next ReadFile of failPath when armed.
type flakyFS struct {
	fs.RealFS
	failPath string
	armed    bool
}

func (f *flakyFS) ReadFile(path string) ([]byte, error) {
	if f.armed && path == f.failPath {
		f.armed = false
		return nil, &os.PathError{Op: "read", Path: path, Err: syscall.EIO}
	}
	return f.RealFS.ReadFile(path)
}

func TestJSONLedger_ReadErrorDoesNotEraseScores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	ffs := &flakyFS{failPath: path}
	l := NewJSONLedger(ffs, path)

	if err := l.UpdateScore("a", "face", 0.8); err != nil {
		t.Fatal(err)
	}

	ffs.armed = true
	if err := l.UpdateScore("b", "face", 0.3); errors.GetCode(err) != errors.EPersistFailed {
		t.Fatalf("UpdateScore() during read error = %v, want E_PERSIST_FAILED", err)
	}

	if got := l.Scores("a")["face"]; got != 0.8 {
		t.Errorf("a face = %v after read error, want 0.8", got)
	}
	if _, ok := l.All()["b"]; ok {
		t.Error("failed update must not be applied")
	}
}
