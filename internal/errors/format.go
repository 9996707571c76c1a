// Package errors provides error formatting for clipsift CLI output.
package errors

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrintOptions controls error output formatting.
type PrintOptions struct {
	// Verbose enables detailed error output with more context keys.
	Verbose bool
}

// Context key whitelist (default mode, in order)
var defaultContextKeys = []string{
	"op",
	"namespace",
	"stage",
	"unit",
	"metric",
	"path",
	"destination",
}

// Additional context keys for verbose mode
var verboseContextKeys = []string{
	"op",
	"namespace",
	"run_id",
	"stage",
	"unit",
	"metric",
	"command",
	"exit_code",
	"path",
	"destination",
	"data_dir",
	"config",
}

const (
	maxValueLen      = 256
	maxExtraValueLen = 128
)

// Format formats an error for display without I/O.
func Format(err error, opts PrintOptions) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	ce, ok := AsClipError(err)
	if !ok {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("error_code: ")
	sb.WriteString(string(ce.Code))
	sb.WriteString("\n")
	sb.WriteString(ce.Msg)
	sb.WriteString("\n")

	if opts.Verbose && ce.Cause != nil {
		sb.WriteString("cause: ")
		sb.WriteString(sanitizeValue(ce.Cause.Error(), maxValueLen))
		sb.WriteString("\n")
	}

	contextKeys := defaultContextKeys
	if opts.Verbose {
		contextKeys = verboseContextKeys
	}

	printedKeys := make(map[string]bool)
	wroteBlank := false
	for _, key := range contextKeys {
		val, ok := ce.Details[key]
		if !ok || val == "" {
			continue
		}
		if !wroteBlank {
			sb.WriteString("\n")
			wroteBlank = true
		}
		printedKeys[key] = true
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(sanitizeValue(val, maxValueLen))
		sb.WriteString("\n")
	}

	if opts.Verbose && ce.Details != nil {
		var extraKeys []string
		for key := range ce.Details {
			if !printedKeys[key] && key != "hint" {
				extraKeys = append(extraKeys, key)
			}
		}
		if len(extraKeys) > 0 {
			sort.Strings(extraKeys)
			sb.WriteString("\nextra:\n")
			for _, key := range extraKeys {
				val := ce.Details[key]
				if val == "" {
					continue
				}
				sb.WriteString("  ")
				sb.WriteString(key)
				sb.WriteString(": ")
				sb.WriteString(sanitizeValue(val, maxExtraValueLen))
				sb.WriteString("\n")
			}
		}
	}

	if hint := ce.Details["hint"]; hint != "" {
		sb.WriteString("\nhint: ")
		sb.WriteString(hint)
		sb.WriteString("\n")
	}

	for _, try := range deriveTryLines(ce) {
		sb.WriteString("try: ")
		sb.WriteString(try)
		sb.WriteString("\n")
	}

	return sb.String()
}

// PrintWithOptions writes a formatted error to w with the given options.
func PrintWithOptions(w io.Writer, err error, opts PrintOptions) {
	if err == nil {
		return
	}
	_, _ = io.WriteString(w, Format(err, opts))
}

// sanitizeValue flattens a value onto one line and truncates it to maxLen.
func sanitizeValue(val string, maxLen int) string {
	val = strings.TrimRight(val, " \t\r\n")
	val = strings.ReplaceAll(val, "\r\n", "\n")
	val = strings.ReplaceAll(val, "\n", "\\n")
	if len(val) > maxLen {
		return val[:maxLen] + "…"
	}
	return val
}

// deriveTryLines returns actionable suggestions based on error code.
func deriveTryLines(ce *ClipError) []string {
	if ce == nil {
		return nil
	}

	ns := ce.Details["namespace"]
	nsFlag := ""
	if ns != "" {
		nsFlag = fmt.Sprintf(" --namespace %s", ns)
	}

	var lines []string
	switch ce.Code {
	case EStageFailed, EStopped:
		lines = append(lines, "clipsift run"+nsFlag)
	case EStoreCorrupt:
		lines = append(lines, "clipsift reset --yes"+nsFlag)
	case EConfirmationRequired:
		lines = append(lines, "clipsift reset --yes"+nsFlag)
	case EUnitNotFound, EUnitAmbiguous:
		lines = append(lines, "clipsift status"+nsFlag)
	}
	return lines
}

// GetHint extracts the hint from an error's details, if present.
func GetHint(err error) string {
	ce, ok := AsClipError(err)
	if !ok || ce.Details == nil {
		return ""
	}
	return ce.Details["hint"]
}
