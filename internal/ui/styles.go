package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/lipgloss"

	"github.com/samsaffron/vibe-llm/internal/config"
)

// Theme defines the color palette for the UI
type Theme struct {
	Primary   lipgloss.Color // accents, prompt, assistant label
	Secondary lipgloss.Color // borders, headings
	Success   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color // hints, timestamps
	Text      lipgloss.Color

	CodeStyle string // chroma style for the code view
}

// DefaultTheme returns the default color theme (gruvbox)
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#b8bb26"),
		Secondary: lipgloss.Color("#83a598"),
		Success:   lipgloss.Color("#b8bb26"),
		Error:     lipgloss.Color("#fb4934"),
		Muted:     lipgloss.Color("#928374"),
		Text:      lipgloss.Color("#ebdbb2"),
		CodeStyle: "gruvbox",
	}
}

// ThemeFromConfig starts from the named preset (or the default) and applies overrides.
func ThemeFromConfig(cfg config.ThemeConfig) *Theme {
	theme := DefaultTheme()
	if preset := GetPresetTheme(cfg.Preset); preset != nil {
		applyThemeConfig(theme, preset.Config)
	}
	applyThemeConfig(theme, cfg)
	return theme
}

func applyThemeConfig(theme *Theme, cfg config.ThemeConfig) {
	if cfg.Primary != "" {
		theme.Primary = lipgloss.Color(cfg.Primary)
	}
	if cfg.Secondary != "" {
		theme.Secondary = lipgloss.Color(cfg.Secondary)
	}
	if cfg.Success != "" {
		theme.Success = lipgloss.Color(cfg.Success)
	}
	if cfg.Error != "" {
		theme.Error = lipgloss.Color(cfg.Error)
	}
	if cfg.Muted != "" {
		theme.Muted = lipgloss.Color(cfg.Muted)
	}
	if cfg.Text != "" {
		theme.Text = lipgloss.Color(cfg.Text)
	}
	if cfg.Code != "" {
		theme.CodeStyle = cfg.Code
	}
}

var currentTheme = DefaultTheme()

// GetTheme returns the current active theme
func GetTheme() *Theme {
	return currentTheme
}

// InitTheme initializes the theme from config
func InitTheme(cfg config.ThemeConfig) {
	currentTheme = ThemeFromConfig(cfg)
}

// Status indicators
const (
	SuccessIcon = "✓"
	FailIcon    = "✗"
	UserIcon    = "❯"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer
	theme    *Theme

	Title       lipgloss.Style
	Success     lipgloss.Style
	Error       lipgloss.Style
	Muted       lipgloss.Style
	Bold        lipgloss.Style
	Highlighted lipgloss.Style

	User      lipgloss.Style // user chat turns
	Assistant lipgloss.Style // assistant chat turns
	Spinner   lipgloss.Style
	Footer    lipgloss.Style
	Pane      lipgloss.Style // bordered code pane
	Input     lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output io.Writer) *Styles {
	return NewStyledWithTheme(output, currentTheme)
}

// NewStyledWithTheme creates styles with a specific theme
func NewStyledWithTheme(output io.Writer, theme *Theme) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		renderer: r,
		theme:    theme,

		Title: r.NewStyle().
			Bold(true).
			Foreground(theme.Text),

		Success: r.NewStyle().
			Foreground(theme.Success),

		Error: r.NewStyle().
			Foreground(theme.Error),

		Muted: r.NewStyle().
			Foreground(theme.Muted),

		Bold: r.NewStyle().
			Bold(true),

		Highlighted: r.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		User: r.NewStyle().
			Foreground(theme.Secondary).
			Bold(true),

		Assistant: r.NewStyle().
			Foreground(theme.Text),

		Spinner: r.NewStyle().
			Foreground(theme.Primary),

		Footer: r.NewStyle().
			Foreground(theme.Muted),

		Pane: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Secondary).
			Padding(0, 1),

		Input: r.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(theme.Muted),
	}
}

// DefaultStyles returns styles for stderr (default TUI output)
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// Theme returns the theme used by these styles
func (s *Styles) Theme() *Theme {
	return s.theme
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// GlamourStyleFromTheme creates a glamour StyleConfig for chat turns.
func GlamourStyleFromTheme(theme *Theme) ansi.StyleConfig {
	primary := string(theme.Primary)
	secondary := string(theme.Secondary)
	muted := string(theme.Muted)
	text := string(theme.Text)
	zero := uint(0)

	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: &text},
			Margin:         &zero,
		},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: &muted, Italic: boolPtr(true)},
			Indent:         uintPtr(2),
		},
		List: ansi.StyleList{
			LevelIndent: 2,
			StyleBlock:  ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Color: &text}},
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: &secondary, Bold: boolPtr(true)},
		},
		Emph:   ansi.StylePrimitive{Italic: boolPtr(true)},
		Strong: ansi.StylePrimitive{Bold: boolPtr(true), Color: &primary},
		Item:   ansi.StylePrimitive{BlockPrefix: "• "},
		Enumeration: ansi.StylePrimitive{
			BlockPrefix: ". ",
			Color:       &secondary,
		},
		Link:     ansi.StylePrimitive{Color: &secondary, Underline: boolPtr(true)},
		LinkText: ansi.StylePrimitive{Color: &primary},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: &primary},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{Color: &text},
				Margin:         &zero,
			},
			Theme: theme.CodeStyle,
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func uintPtr(u uint) *uint {
	return &u
}
