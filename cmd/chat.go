package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/samsaffron/vibe-llm/internal/clipboard"
	"github.com/samsaffron/vibe-llm/internal/logging"
	"github.com/samsaffron/vibe-llm/internal/tui/chat"
	"github.com/samsaffron/vibe-llm/internal/ui"
)

var chatPreviewPath string

var chatCmd = &cobra.Command{
	Use:   "chat [request]",
	Short: "Interactive chat with a live code view",
	Long: `Start an interactive session. The left pane holds the conversation, the right pane
the generated code, re-rendered while the reply streams.

Commands inside the chat:
  /copy      copy the code to the clipboard
  /read      read the code aloud
  /preview   write a sandboxed HTML preview and open it
  /search    search this session's transcript
  /help      list commands`,
	Args: cobra.ArbitraryArgs,
	RunE: runChat,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, chatCmd} {
		c.Flags().StringVar(&chatPreviewPath, "preview-path", defaultPreviewPath(), "Where /preview writes the HTML document")
	}
	rootCmd.AddCommand(chatCmd)
}

func defaultPreviewPath() string {
	return filepath.Join(os.TempDir(), "vibe-llm-preview.html")
}

func runChat(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal, so logs go to a file.
	cfg, closer, err := setup(logging.DefaultFile())
	if err != nil {
		return err
	}

	bridge := chat.NewEventBridge(0)
	a, err := newApp(cfg, closer, bridge.Send)
	if err != nil {
		closer.Close()
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	model := chat.New(chat.Options{
		Studio:        a.studio,
		Events:        bridge.C(),
		Copier:        clipboard.NewSystemCopier(out),
		Speaker:       a.speaker,
		Store:         a.searchStore(),
		Styles:        ui.NewStyles(out),
		Profile:       ui.ProfileFor(out),
		Logger:        logging.Component("chat"),
		PreviewPath:   chatPreviewPath,
		Open:          openInBrowser,
		InitialPrompt: strings.Join(args, " "),
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}
