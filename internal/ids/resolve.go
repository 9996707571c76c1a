// Package ids resolves user-typed unit references to unit ids.
package ids

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
)

// ErrNotFound indicates no unit matched the reference.
type ErrNotFound struct {
	Input string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("unit not found: %q", e.Input)
}

// ErrAmbiguous indicates the reference matched several units.
type ErrAmbiguous struct {
	Input      string
	Candidates []string // sorted ascending
}

func (e *ErrAmbiguous) Error() string {
	return fmt.Sprintf("ambiguous unit %q matches: %s", e.Input, strings.Join(e.Candidates, ", "))
}

// ResolveUnit resolves input against the known unit ids.
//
// Resolution rules, first match wins:
//  1. Exact id match.
//  2. Unique id prefix ("day1/cl" -> "day1/clip.mp4").
//  3. Unique base name ("clip.mp4" -> "day1/clip.mp4").
//
// Backslashes are normalized to slashes and surrounding whitespace trimmed;
// empty input is not found. Several matches at the first rule that matches
// at all is ambiguous.
func ResolveUnit(input string, known []string) (string, error) {
	input = strings.ReplaceAll(strings.TrimSpace(input), `\`, "/")
	if input == "" {
		return "", &ErrNotFound{Input: ""}
	}

	for _, id := range known {
		if id == input {
			return id, nil
		}
	}

	rules := []func(id string) bool{
		func(id string) bool { return strings.HasPrefix(id, input) },
		func(id string) bool { return path.Base(id) == input },
	}
	for _, match := range rules {
		var hits []string
		for _, id := range known {
			if match(id) {
				hits = append(hits, id)
			}
		}
		switch len(hits) {
		case 0:
			continue
		case 1:
			return hits[0], nil
		default:
			sort.Strings(hits)
			return "", &ErrAmbiguous{Input: input, Candidates: hits}
		}
	}
	return "", &ErrNotFound{Input: input}
}

// ToClipError converts a resolution error into the stable error code set.
func ToClipError(err error, namespace string) error {
	switch e := err.(type) {
	case nil:
		return nil
	case *ErrNotFound:
		return errors.NewWithDetails(errors.EUnitNotFound, "unit not found: "+e.Input,
			map[string]string{"unit": e.Input, "namespace": namespace})
	case *ErrAmbiguous:
		return errors.NewWithDetails(errors.EUnitAmbiguous, e.Error(),
			map[string]string{
				"unit":      e.Input,
				"namespace": namespace,
				"hint":      "use the full unit id",
			})
	default:
		return err
	}
}

// Merge returns the sorted union of several id lists.
func Merge(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range lists {
		for _, id := range l {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}
