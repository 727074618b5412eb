package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samsaffron/vibe-llm/internal/config"
	"github.com/samsaffron/vibe-llm/internal/logging"
	"github.com/samsaffron/vibe-llm/internal/ui"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	flagProvider string
	flagDebug    bool
	flagLogFile  string
)

var rootCmd = &cobra.Command{
	Use:   "vibe-llm",
	Short: "Ask for a UI, get something else",
	Long: `vibe-llm sends your UI request to an LLM that builds the opposite, then shows the
reply, the generated HTML, and a live preview.

Examples:
  vibe-llm                                  # interactive chat (same as 'vibe-llm chat')
  vibe-llm ask "make a blue square"         # one-shot, prints reply and code
  vibe-llm ask "a login form" --preview out.html
  vibe-llm serve                            # web front-end on 127.0.0.1:8787
  vibe-llm --provider mock                  # offline, canned replies

  vibe-llm config                           # view configuration
  vibe-llm config init                      # pick a provider`,
	Version:           Version,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Args:              cobra.ArbitraryArgs,
	RunE:              runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "Override provider, optionally with model (e.g., groq:qwen-qwq-32b)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Log at debug level")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration, applies --provider and configures logging and the theme.
// logFile is used when neither --log-file nor the config names one; empty means stderr.
func setup(logFile string) (*config.Config, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyProviderOverrides(cfg, flagProvider); err != nil {
		return nil, nil, err
	}

	opts := logging.FromConfig(cfg.Log, flagDebug)
	switch {
	case flagLogFile != "":
		opts.File = flagLogFile
	case opts.File == "":
		opts.File = logFile
	}
	closer, err := logging.Setup(opts)
	if err != nil {
		return nil, nil, err
	}

	ui.InitTheme(cfg.Theme)
	logrus.WithFields(logrus.Fields{
		"provider": cfg.Provider,
		"version":  Version,
	}).Debug("configured")
	return cfg, closer, nil
}
