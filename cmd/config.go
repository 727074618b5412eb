package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/samsaffron/vibe-llm/internal/config"
	"github.com/samsaffron/vibe-llm/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vibe-llm configuration",
	Long: `View or edit your vibe-llm configuration.

Examples:
  vibe-llm config                     # show current config (keys masked)
  vibe-llm config init                # choose provider, key and theme
  vibe-llm config edit                # edit in $EDITOR
  vibe-llm config path                # print config file path`,
	Args: cobra.NoArgs,
	RunE: configShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration file path",
	Args:  cobra.NoArgs,
	RunE:  configPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file in $EDITOR",
	Args:  cobra.NoArgs,
	RunE:  configEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively write a configuration file",
	Args:  cobra.NoArgs,
	RunE:  configInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
}

func configShow(cmd *cobra.Command, args []string) error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyProviderOverrides(cfg, flagProvider); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if config.Exists() {
		fmt.Fprintf(out, "# %s\n\n", path)
	} else {
		fmt.Fprintf(out, "# No config file (using defaults)\n")
		fmt.Fprintf(out, "# Create one with: vibe-llm config init\n\n")
	}
	data, err := config.Marshal(cfg.Redacted())
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func configPath(cmd *cobra.Command, args []string) error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func configEdit(cmd *cobra.Command, args []string) error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if !config.Exists() {
		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	return editorCmd.Run()
}

var providerOptions = []huh.Option[string]{
	huh.NewOption("Groq (qwen-qwq-32b)", "groq"),
	huh.NewOption("OpenRouter", "openrouter"),
	huh.NewOption("Anthropic (Claude)", "anthropic"),
	huh.NewOption("OpenAI", "openai"),
	huh.NewOption("Google Gemini", "gemini"),
	huh.NewOption("Ollama (local)", "ollama"),
	huh.NewOption("Mock (offline, canned replies)", "mock"),
}

func configInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	provider := cfg.Provider
	apiKey := ""
	theme := cfg.Theme.Preset
	if theme == "" {
		theme = ui.PresetThemeNames[0]
	}
	themeOptions := make([]huh.Option[string], 0, len(ui.PresetThemeNames))
	for _, name := range ui.PresetThemeNames {
		label := name
		if preset := ui.GetPresetTheme(name); preset != nil {
			label = fmt.Sprintf("%s - %s", name, preset.Description)
		}
		themeOptions = append(themeOptions, huh.NewOption(label, name))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which LLM provider do you want to use?").
				Options(providerOptions...).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API key").
				Description("Leave empty to read it from the environment.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		).WithHideFunc(func() bool { return provider == "mock" || provider == "ollama" }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Theme").
				Options(themeOptions...).
				Value(&theme),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return fmt.Errorf("setup cancelled")
		}
		return err
	}

	cfg.Provider = provider
	cfg.Theme.Preset = theme
	if apiKey != "" {
		setAPIKey(cfg, provider, apiKey)
	}

	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", path)
	return nil
}

func setAPIKey(cfg *config.Config, provider, key string) {
	switch provider {
	case "anthropic":
		cfg.Anthropic.APIKey = key
	case "openai":
		cfg.OpenAI.APIKey = key
	case "gemini":
		cfg.Gemini.APIKey = key
	case "groq":
		cfg.Groq.APIKey = key
	case "openrouter":
		cfg.OpenRouter.APIKey = key
	case "openai-compat":
		cfg.OpenAICompat.APIKey = key
	}
}
