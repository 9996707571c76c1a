package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }

func TestLogger_PlainLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l, err := New(Options{Color: ColorNever, Out: &out, Err: &errOut, Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}

	l.Info("stage %s", "score_face")
	l.Success("done")
	l.Warn("source missing for %s", "a/b.mp4")
	l.Error("boom")
	l.Debug("hidden")

	got := out.String()
	for _, want := range []string{
		"2026-05-04 10:00:00 [INFO] stage score_face\n",
		"[SUCCESS] done\n",
		"[WARN] source missing for a/b.mp4\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("stdout missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "hidden") {
		t.Error("Debug should be suppressed when not verbose")
	}
	if !strings.Contains(errOut.String(), "[ERROR] boom") {
		t.Errorf("stderr = %q", errOut.String())
	}
	if strings.Contains(got, "\033[") {
		t.Error("ColorNever must not emit ANSI codes")
	}
}

func TestLogger_ColorAlways(t *testing.T) {
	var out bytes.Buffer
	l, _ := New(Options{Color: ColorAlways, Out: &out, Now: fixedNow})
	l.Info("x")
	if !strings.Contains(out.String(), "\033[1;94m[INFO]\033[0m") {
		t.Errorf("expected colored level, got %q", out.String())
	}
}

func TestLogger_ColorAutoNonTTY(t *testing.T) {
	var out bytes.Buffer
	l, _ := New(Options{Color: ColorAuto, Out: &out, Now: fixedNow})
	l.Info("x")
	if strings.Contains(out.String(), "\033[") {
		t.Error("auto mode on a buffer must not color")
	}
}

func TestLogger_FileSinkIsPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "clipsift.log")
	var out bytes.Buffer
	l, err := New(Options{Color: ColorAlways, LogFile: path, Out: &out, Verbose: true, Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("unit %d", 7)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "2026-05-04 10:00:00 [DEBUG] unit 7\n" {
		t.Errorf("file = %q", data)
	}
}

func TestLogger_NilAndDiscard(t *testing.T) {
	var l *Logger
	l.Info("no panic")
	_ = l.Close()
	Discard().Warn("nothing")
}
