// Package discover finds the media units under a processing root.
package discover

import (
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
)

// Supported media file extensions (lowercase, with leading dot).
var mediaExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
	".m4v":  true,
}

// IsMedia reports whether name has a supported media extension.
func IsMedia(name string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(name))]
}

// Units walks root and returns the unit ids of all media files, sorted.
// A unit id is the slash-separated path relative to root.
//
// Hidden entries and any directory listed in exclude (absolute paths, e.g.
// an output dir nested under root) are pruned.
func Units(root string, exclude ...string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewWithDetails(errors.EUsage, "processing directory does not exist",
				map[string]string{"path": root})
		}
		return nil, errors.WrapWithDetails(errors.EInternal, "failed to stat processing directory", err,
			map[string]string{"path": root})
	}
	if !info.IsDir() {
		return nil, errors.NewWithDetails(errors.EUsage, "processing path is not a directory",
			map[string]string{"path": root})
	}

	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			skip[abs] = true
		}
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to resolve processing directory", err)
	}

	var units []string
	err = filepath.WalkDir(rootAbs, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != rootAbs && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skip[path] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsMedia(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(rootAbs, path)
		if err != nil {
			return err
		}
		units = append(units, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EInternal, "failed to scan processing directory", err,
			map[string]string{"path": root})
	}
	sort.Strings(units)
	return units, nil
}
