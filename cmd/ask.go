package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/samsaffron/vibe-llm/internal/conversation"
	"github.com/samsaffron/vibe-llm/internal/preview"
	"github.com/samsaffron/vibe-llm/internal/signal"
	"github.com/samsaffron/vibe-llm/internal/ui"
)

var (
	askRaw      bool
	askCodeOnly bool
	askPreview  string
	askOpen     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <request>",
	Short: "Send one request and print the reply and code",
	Long: `Send a single request. The reply is normalized the same way the chat does it: the
conversation text is printed first, then the generated code.

Examples:
  vibe-llm ask "make a blue square"
  vibe-llm ask "a pricing table" --code-only > page.html
  vibe-llm ask "a login form" --preview form.html --open
  vibe-llm ask "a clock" --raw          # unprocessed model output`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print the unprocessed model reply")
	askCmd.Flags().BoolVar(&askCodeOnly, "code-only", false, "Print only the generated code")
	askCmd.Flags().StringVar(&askPreview, "preview", "", "Write a sandboxed HTML preview to this file")
	askCmd.Flags().BoolVar(&askOpen, "open", false, "Open the preview in a browser (requires --preview)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askRaw && askCodeOnly {
		return fmt.Errorf("--raw and --code-only cannot be combined")
	}
	if askOpen && askPreview == "" {
		return fmt.Errorf("--open requires --preview")
	}

	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	cfg, closer, err := setup("")
	if err != nil {
		return err
	}
	a, err := newApp(cfg, closer, nil)
	if err != nil {
		closer.Close()
		return err
	}
	defer a.Close()

	if err := a.studio.Submit(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	if err := a.studio.LastError(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), cfg.Vibe.Apology)
		return fmt.Errorf("request failed: %w", err)
	}

	out := cmd.OutOrStdout()
	code := a.studio.Display().Code
	switch {
	case askRaw:
		fmt.Fprintln(out, a.studio.Raw())
	case askCodeOnly:
		fmt.Fprintln(out, code)
	default:
		writeAnswer(out, lastAssistant(a.studio.Turns()), code)
	}

	if askPreview != "" {
		if err := preview.WriteFile(askPreview, code); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Preview written to %s\n", askPreview)
		if askOpen {
			return openInBrowser(askPreview)
		}
	}
	return nil
}

func lastAssistant(turns []conversation.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleAssistant {
			return turns[i].Content
		}
	}
	return ""
}

// writeAnswer prints the reply and code, styled when out is a terminal.
func writeAnswer(out io.Writer, reply, code string) {
	width, styled := terminalWidth(out)
	if !styled {
		fmt.Fprintln(out, reply)
		if code != "" && code != reply {
			fmt.Fprintln(out)
			fmt.Fprintln(out, code)
		}
		return
	}

	styles := ui.NewStyles(out)
	fmt.Fprintln(out, strings.TrimRight(ui.RenderMarkdown(reply, width), "\n"))
	if code != "" && code != reply {
		fmt.Fprintln(out, styles.Muted.Render(strings.Repeat("─", min(width, 60))))
		fmt.Fprintln(out, ui.CodeHighlighter().ANSI(code, ui.ProfileFor(out)))
	}
}

func terminalWidth(out io.Writer) (int, bool) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	return width, true
}
