package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Truncate shortens s to at most width display columns, ending in an ellipsis when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// ANSILen returns the display width of a string, ignoring ANSI codes
func ANSILen(s string) int {
	return runewidth.StringWidth(StripANSI(s))
}

// Wrap hard-wraps each line of s at width display columns. Existing newlines are kept.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	var b strings.Builder
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		col := 0
		for _, r := range line {
			w := runewidth.RuneWidth(r)
			if col+w > width && col > 0 {
				b.WriteByte('\n')
				col = 0
			}
			b.WriteRune(r)
			col += w
		}
	}
	return b.String()
}

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
