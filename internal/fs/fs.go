// Package fs provides filesystem utilities for clipsift.
// Records are written atomically via temp file + rename so a crash never
// leaves a half-written JSON document behind.
package fs

import (
	"encoding/json"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
)

// FS is the filesystem surface used by the stores and the executor.
// Tests substitute a stub; production code uses RealFS.
type FS interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (iofs.FileInfo, error)
	Rename(oldpath, newpath string) error
	Remove(path string) error
	CreateTemp(dir, pattern string) (string, io.WriteCloser, error)
}

// RealFS implements FS against the host filesystem.
type RealFS struct{}

// NewRealFS returns the host filesystem.
func NewRealFS() *RealFS { return &RealFS{} }

func (RealFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (RealFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}
func (RealFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (RealFS) Stat(path string) (iofs.FileInfo, error)     { return os.Stat(path) }
func (RealFS) Rename(oldpath, newpath string) error        { return os.Rename(oldpath, newpath) }
func (RealFS) Remove(path string) error                    { return os.Remove(path) }
func (RealFS) CreateTemp(dir, pattern string) (string, io.WriteCloser, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, err
	}
	return f.Name(), f, nil
}

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by rename. Parent directories are created as needed.
func WriteFileAtomic(fsys FS, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmpPath, w, err := fsys.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		_ = fsys.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := w.Close(); err != nil {
		_ = fsys.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if f, ok := w.(*os.File); ok && perm != 0 {
		_ = os.Chmod(f.Name(), perm)
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		_ = fsys.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// WriteJSONAtomic writes v as indented JSON via WriteFileAtomic.
func WriteJSONAtomic(fsys FS, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(fsys, path, append(data, '\n'), 0o644)
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(fsys FS, path string, v any) error {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// CopyFileAtomic copies src to dst, overwriting dst if it exists.
// The destination is replaced in one rename so readers never observe a
// partially copied file.
func CopyFileAtomic(src, dst string) (n int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err = io.Copy(tmp, in)
	if err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err = tmp.Close(); err != nil {
		return 0, err
	}
	_ = os.Chmod(tmpPath, info.Mode().Perm())
	_ = os.Chtimes(tmpPath, info.ModTime(), info.ModTime())
	if err = os.Rename(tmpPath, dst); err != nil {
		return 0, err
	}
	return n, nil
}

// Exists reports whether path exists (any type).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
