package ui

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"
)

// Highlighter colors generated markup for the terminal and the web UI.
type Highlighter struct {
	lexer chroma.Lexer
	style *chroma.Style
}

// NewHighlighter creates a highlighter for language using the named chroma style.
// Unknown languages fall back to plain text, unknown styles to chroma's fallback.
func NewHighlighter(language, styleName string) *Highlighter {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &Highlighter{
		lexer: chroma.Coalesce(lexer),
		style: style,
	}
}

// CodeHighlighter is the highlighter for the code view under the current theme.
func CodeHighlighter() *Highlighter {
	return NewHighlighter("html", currentTheme.CodeStyle)
}

// ProfileFor reports the color support of w, honoring NO_COLOR and CLICOLOR_FORCE.
func ProfileFor(w io.Writer) termenv.Profile {
	return termenv.NewOutput(w).EnvColorProfile()
}

// ANSI highlights code for a terminal with the given color profile.
// On any error the code is returned unchanged.
func (h *Highlighter) ANSI(code string, profile termenv.Profile) string {
	if h == nil || profile == termenv.Ascii {
		return code
	}

	iterator, err := h.lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var formatter chroma.Formatter
	switch profile {
	case termenv.TrueColor:
		formatter = &noBgFormatter{style: h.style}
	case termenv.ANSI256:
		formatter = formatters.Get("terminal256")
	default:
		formatter = formatters.Get("terminal16")
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, h.style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// HTML highlights code as a standalone <pre> block with inline styles.
func (h *Highlighter) HTML(code string) (string, error) {
	iterator, err := h.lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise: %w", err)
	}
	formatter := chromahtml.New(
		chromahtml.WithClasses(false),
		chromahtml.WithLineNumbers(true),
		chromahtml.TabWidth(2),
	)
	var buf strings.Builder
	if err := formatter.Format(&buf, h.style, iterator); err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	return buf.String(), nil
}

// noBgFormatter applies true-color foregrounds only, so the terminal background shows
// through. Each line is styled separately so wrapping panes never bleed color.
type noBgFormatter struct {
	style *chroma.Style
}

func (f *noBgFormatter) Format(w io.Writer, _ *chroma.Style, iterator chroma.Iterator) error {
	for token := iterator(); token != chroma.EOF; token = iterator() {
		entry := f.style.Get(token.Type)

		var codes []string
		if entry.Colour.IsSet() {
			codes = append(codes, fmt.Sprintf("38;2;%d;%d;%d", entry.Colour.Red(), entry.Colour.Green(), entry.Colour.Blue()))
		}
		if entry.Bold == chroma.Yes {
			codes = append(codes, "1")
		}
		if entry.Italic == chroma.Yes {
			codes = append(codes, "3")
		}
		if entry.Underline == chroma.Yes {
			codes = append(codes, "4")
		}

		for i, part := range strings.Split(token.Value, "\n") {
			if i > 0 {
				fmt.Fprint(w, "\n")
			}
			if part == "" {
				continue
			}
			if len(codes) > 0 {
				fmt.Fprintf(w, "\x1b[%sm%s\x1b[0m", strings.Join(codes, ";"), part)
			} else {
				fmt.Fprint(w, part)
			}
		}
	}
	return nil
}

// ANSI escape code pattern for stripping/measuring
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripANSI removes all ANSI escape codes from a string
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
