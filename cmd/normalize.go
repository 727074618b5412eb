package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samsaffron/vibe-llm/internal/config"
	"github.com/samsaffron/vibe-llm/internal/normalize"
)

var normalizeCodeOnly bool

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Normalize a raw model reply read from a file or stdin",
	Long: `Run a raw reply through the same pipeline the chat uses (strip reasoning, extract the
JSON payload, unescape the code) and print the result as JSON.

Examples:
  vibe-llm normalize reply.txt
  pbpaste | vibe-llm normalize --code-only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().BoolVar(&normalizeCodeOnly, "code-only", false, "Print only the code")
	rootCmd.AddCommand(normalizeCmd)
}

type normalizeOutput struct {
	Kind         normalize.Kind     `json:"kind"`
	Strategy     normalize.Strategy `json:"strategy,omitempty"`
	Conversation string             `json:"conversation"`
	Code         string             `json:"code"`
}

func runNormalize(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if len(args) == 1 && args[0] != "-" {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	n := normalize.New(normalize.Options{
		Tags: normalize.ReasoningTags{
			Open:  cfg.Normalize.ReasoningOpen,
			Close: cfg.Normalize.ReasoningClose,
		},
		Logger: logrus.NewEntry(logrus.StandardLogger()),
	})
	result := n.Normalize(string(raw))

	out := cmd.OutOrStdout()
	if normalizeCodeOnly {
		_, err := fmt.Fprintln(out, strings.TrimRight(result.Code(), "\n"))
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(normalizeOutput{
		Kind:         result.Kind,
		Strategy:     result.Strategy,
		Conversation: result.Conversation(),
		Code:         result.Code(),
	})
}
