package ui

import "github.com/samsaffron/vibe-llm/internal/config"

// ThemePreset represents a predefined color theme
type ThemePreset struct {
	Name        string
	Description string
	Config      config.ThemeConfig
}

// PresetThemeNames defines the display order of themes
var PresetThemeNames = []string{
	"gruvbox",
	"dracula",
	"nord",
	"solarized",
	"monokai",
}

// PresetThemes contains all predefined themes
var PresetThemes = map[string]ThemePreset{
	"dracula": {
		Name:        "dracula",
		Description: "Dark theme with purple accents",
		Config: config.ThemeConfig{
			Primary:   "#bd93f9", // purple
			Secondary: "#8be9fd", // cyan
			Success:   "#50fa7b",
			Error:     "#ff5555",
			Muted:     "#6272a4",
			Text:      "#f8f8f2",
			Code:      "dracula",
		},
	},
	"nord": {
		Name:        "nord",
		Description: "Arctic, north-bluish palette",
		Config: config.ThemeConfig{
			Primary:   "#88c0d0",
			Secondary: "#81a1c1",
			Success:   "#a3be8c",
			Error:     "#bf616a",
			Muted:     "#4c566a",
			Text:      "#eceff4",
			Code:      "nord",
		},
	},
	"solarized": {
		Name:        "solarized",
		Description: "Precision colors for machines and people",
		Config: config.ThemeConfig{
			Primary:   "#268bd2",
			Secondary: "#2aa198",
			Success:   "#859900",
			Error:     "#dc322f",
			Muted:     "#586e75",
			Text:      "#839496",
			Code:      "solarized-dark",
		},
	},
	"monokai": {
		Name:        "monokai",
		Description: "Vibrant colors inspired by Sublime Text",
		Config: config.ThemeConfig{
			Primary:   "#a6e22e",
			Secondary: "#66d9ef",
			Success:   "#a6e22e",
			Error:     "#f92672",
			Muted:     "#75715e",
			Text:      "#f8f8f2",
			Code:      "monokai",
		},
	},
	"gruvbox": {
		Name:        "gruvbox",
		Description: "Retro groove color scheme (default)",
		Config: config.ThemeConfig{
			Primary:   "#b8bb26",
			Secondary: "#83a598",
			Success:   "#b8bb26",
			Error:     "#fb4934",
			Muted:     "#928374",
			Text:      "#ebdbb2",
			Code:      "gruvbox",
		},
	},
}

// GetPresetTheme returns a preset by name, or nil if not found
func GetPresetTheme(name string) *ThemePreset {
	if preset, ok := PresetThemes[name]; ok {
		return &preset
	}
	return nil
}
