package events

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAppendEvent(t *testing.T) {
	t.Run("creates file lazily", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "events.jsonl")

		event := Event{
			SchemaVersion: SchemaVersion,
			Timestamp:     "2026-01-10T12:00:00Z",
			Namespace:     "default_user",
			RunID:         "run-1",
			Event:         RunStarted,
			Data:          map[string]any{"units": 3},
		}
		if err := AppendEvent(path, event); err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !strings.HasSuffix(string(content), "\n") {
			t.Error("expected line to end with newline")
		}

		var parsed Event
		if err := json.Unmarshal(content, &parsed); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}
		if parsed.Event != RunStarted {
			t.Errorf("Event = %q, want %q", parsed.Event, RunStarted)
		}
		if parsed.Namespace != "default_user" {
			t.Errorf("Namespace = %q", parsed.Namespace)
		}
	})

	t.Run("appends multiple events", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "events.jsonl")
		for _, name := range []string{StageStarted, StageFinished} {
			if err := AppendEvent(path, Event{SchemaVersion: SchemaVersion, Event: name}); err != nil {
				t.Fatal(err)
			}
		}

		got, skipped, err := ReadJSONL[Event](path)
		if err != nil {
			t.Fatalf("ReadJSONL() error = %v", err)
		}
		if skipped != 0 {
			t.Errorf("skipped = %d", skipped)
		}
		if len(got) != 2 || got[0].Event != StageStarted || got[1].Event != StageFinished {
			t.Errorf("events = %+v", got)
		}
	})
}

func TestReadJSONL_SkipsTornLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	content := `{"event":"a"}` + "\n" + `{"event":"b"` + "\n\n" + `{"event":"c"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, skipped, err := ReadJSONL[Event](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestReadJSONL_Missing(t *testing.T) {
	got, _, err := ReadJSONL[Event](filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil || got != nil {
		t.Errorf("ReadJSONL(missing) = %v, %v", got, err)
	}
}

func TestAppendJSONL_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = AppendJSONL(path, map[string]int{"i": i})
		}(i)
	}
	wg.Wait()

	got, skipped, err := ReadJSONL[map[string]int](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != n || skipped != 0 {
		t.Errorf("got %d lines, %d skipped", len(got), skipped)
	}
}

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	r := &Recorder{Path: path, Namespace: "ns", RunID: "r1", Now: func() time.Time { return fixed }}

	r.Record(StageSkipped, StageData("score_face", 4))

	got, _, _ := ReadJSONL[Event](path)
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	e := got[0]
	if e.Timestamp != "2026-03-01T09:30:00Z" || e.RunID != "r1" || e.SchemaVersion != SchemaVersion {
		t.Errorf("event = %+v", e)
	}
	if e.Data["stage"] != "score_face" {
		t.Errorf("data = %v", e.Data)
	}

	var nilRec *Recorder
	nilRec.Record(RunStarted, nil) // must not panic
}

func TestLastEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	if _, ok, err := LastEvent(path); err != nil || ok {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}

	for _, name := range []string{RunStarted, StageStarted, RunStopped} {
		if err := AppendEvent(path, Event{SchemaVersion: SchemaVersion, Event: name}); err != nil {
			t.Fatal(err)
		}
	}
	e, ok, err := LastEvent(path)
	if err != nil || !ok {
		t.Fatalf("LastEvent: ok=%v err=%v", ok, err)
	}
	if e.Event != RunStopped {
		t.Errorf("last = %q, want %q", e.Event, RunStopped)
	}
}
