package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotUnderPrefix is returned when a target path is not under the allowed prefix.
type ErrNotUnderPrefix struct {
	Target string
	Prefix string
}

func (e *ErrNotUnderPrefix) Error() string {
	return fmt.Sprintf("target %q is not under allowed prefix %q", e.Target, e.Prefix)
}

// SafeRemoveAll removes target only if it resolves to a proper subpath of
// allowedPrefix. Symlinks are resolved on both sides first; a missing target
// is not an error.
func SafeRemoveAll(target, allowedPrefix string) error {
	resolvedTarget, resolvedPrefix, err := resolvePair(target, allowedPrefix)
	if err != nil {
		return err
	}
	if resolvedTarget == "" {
		return nil
	}
	if !IsSubpath(resolvedTarget, resolvedPrefix) {
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix}
	}
	return os.RemoveAll(filepath.Clean(target))
}

// ClearDir removes every entry inside dir but keeps dir itself, so bind
// mounts and open watchers on the directory stay valid. dir must be under
// allowedPrefix. A missing dir is not an error.
func ClearDir(dir, allowedPrefix string) error {
	resolvedDir, resolvedPrefix, err := resolvePair(dir, allowedPrefix)
	if err != nil {
		return err
	}
	if resolvedDir == "" {
		return nil
	}
	if resolvedDir != resolvedPrefix && !IsSubpath(resolvedDir, resolvedPrefix) {
		return &ErrNotUnderPrefix{Target: dir, Prefix: allowedPrefix}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// resolvePair cleans and resolves target and prefix. An empty resolved
// target means the target does not exist.
func resolvePair(target, prefix string) (string, string, error) {
	resolvedTarget, err := filepath.EvalSymlinks(filepath.Clean(target))
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", &ErrNotUnderPrefix{Target: target, Prefix: prefix}
	}
	resolvedPrefix, err := filepath.EvalSymlinks(filepath.Clean(prefix))
	if err != nil {
		return "", "", &ErrNotUnderPrefix{Target: target, Prefix: prefix}
	}
	return resolvedTarget, resolvedPrefix, nil
}

// IsSubpath returns true if target is a proper subpath of prefix.
// Both paths should already be cleaned and resolved.
func IsSubpath(target, prefix string) bool {
	prefixWithSep := prefix
	if !strings.HasSuffix(prefixWithSep, string(filepath.Separator)) {
		prefixWithSep = prefix + string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefixWithSep) && len(target) > len(prefix)
}
