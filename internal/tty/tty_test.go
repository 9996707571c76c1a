package tty

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsTTY(t *testing.T) {
	if IsTTY(nil) {
		t.Error("IsTTY(nil) = true")
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "plain"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if IsTTY(f) {
		t.Error("regular file reported as TTY")
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = r.Close(); _ = w.Close() }()
	if IsTTY(r) {
		t.Error("pipe reported as TTY")
	}
}
