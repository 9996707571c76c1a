package errors

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(EUsage, "test message")

	if err.Error() != "E_USAGE: test message" {
		t.Errorf("Error() = %q, want %q", err.Error(), "E_USAGE: test message")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(EPersistFailed, "wrapped message", cause)

	if err.Error() != "E_PERSIST_FAILED: wrapped message" {
		t.Errorf("Error() = %q, want %q", err.Error(), "E_PERSIST_FAILED: wrapped message")
	}

	var ce *ClipError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As failed")
	}
	if ce.Cause != cause {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see the cause")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil error", nil, ""},
		{"clip error", New(EUsage, "x"), EUsage},
		{"wrapped clip error", Wrap(ELockFailed, "y", errors.New("z")), ELockFailed},
		{"non-clip error", errors.New("plain"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetCode(tt.err)
			if got != tt.want {
				t.Errorf("GetCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(EPersistFailed, "x"), true},
		{New(ELockFailed, "x"), true},
		{New(EScorerFailed, "x"), false},
		{New(ESourceMissing, "x"), false},
		{errors.New("plain"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.want {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"E_USAGE", New(EUsage, "x"), 2},
		{"E_STAGE_FAILED", New(EStageFailed, "x"), 1},
		{"non-clip error", errors.New("x"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExitCode(tt.err)
			if got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"E_USAGE", New(EUsage, "bad args"), "error_code: E_USAGE\nbad args\n"},
		{"plain", errors.New("boom"), "boom\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Print(&buf, tt.err)
			if got := buf.String(); got != tt.want {
				t.Errorf("Print() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewWithDetails_DefensiveCopy(t *testing.T) {
	details := map[string]string{"unit": "batchA/unit_0001.mp4"}
	err := NewWithDetails(EUnitNotFound, "unknown unit", details)

	details["unit"] = "modified"

	ce, ok := AsClipError(err)
	if !ok {
		t.Fatal("AsClipError failed")
	}
	if ce.Details["unit"] != "batchA/unit_0001.mp4" {
		t.Errorf("Details should be copied, got %q", ce.Details["unit"])
	}
}

func TestNewWithDetails_NilDetails(t *testing.T) {
	ce, _ := AsClipError(NewWithDetails(EUsage, "test", nil))
	if ce.Details != nil {
		t.Errorf("Details should be nil, got %v", ce.Details)
	}
}

func TestFormat(t *testing.T) {
	err := NewWithDetails(EStageFailed, "stage motion failed", map[string]string{
		"stage":     "motion",
		"namespace": "alice",
		"hint":      "state is preserved; rerun to resume",
		"run_id":    "abc",
	})

	t.Run("default", func(t *testing.T) {
		out := Format(err, PrintOptions{})
		lines := strings.Split(out, "\n")
		if lines[0] != "error_code: E_STAGE_FAILED" {
			t.Errorf("first line = %q", lines[0])
		}
		if lines[1] != "stage motion failed" {
			t.Errorf("second line = %q", lines[1])
		}
		if !strings.Contains(out, "namespace: alice\nstage: motion\n") {
			t.Errorf("context block missing or out of order:\n%s", out)
		}
		if strings.Contains(out, "run_id") {
			t.Errorf("run_id should only appear in verbose mode:\n%s", out)
		}
		if !strings.Contains(out, "hint: state is preserved; rerun to resume") {
			t.Errorf("missing hint:\n%s", out)
		}
		if !strings.Contains(out, "try: clipsift run --namespace alice") {
			t.Errorf("missing try line:\n%s", out)
		}
	})

	t.Run("verbose", func(t *testing.T) {
		out := Format(err, PrintOptions{Verbose: true})
		if !strings.Contains(out, "run_id: abc") {
			t.Errorf("verbose output should include run_id:\n%s", out)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		if got := Format(errors.New("boom"), PrintOptions{}); got != "boom\n" {
			t.Errorf("Format() = %q", got)
		}
	})
}

func TestSanitizeValue(t *testing.T) {
	got := sanitizeValue("line1\r\nline2\n", 100)
	if got != `line1\nline2` {
		t.Errorf("sanitizeValue() = %q", got)
	}
	long := strings.Repeat("x", 20)
	if got := sanitizeValue(long, 5); got != "xxxxx…" {
		t.Errorf("sanitizeValue() truncation = %q", got)
	}
}
