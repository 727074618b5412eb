package normalize

import "strings"

// UnescapeCode turns literal backslash-n sequences into real line breaks. No other escape
// sequence is interpreted and the markup is not sanitized.
func UnescapeCode(code string) string {
	return strings.ReplaceAll(code, `\n`, "\n")
}
