package tty

import "regexp"

// ansiEscape matches CSI, OSC and DCS/PM/APC sequences, single-character
// escapes, and a dangling ESC at end of input.
var ansiEscape = regexp.MustCompile(
	`\x1b\[[0-9;:<=>?]*[ -/]*[@-~]` +
		`|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)?` +
		`|\x1b[PX^_][^\x1b]*\x1b\\` +
		`|\x1b[@-_]` +
		`|\x1b.` +
		`|\x1b\[?$`,
)

// StripANSI removes terminal escape sequences from s. Stage commands often
// colorize their output when they think they are attached to a terminal.
func StripANSI(s string) string {
	if s == "" {
		return s
	}
	return ansiEscape.ReplaceAllString(s, "")
}
