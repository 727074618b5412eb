package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/samsaffron/vibe-llm/internal/clipboard"
	"github.com/samsaffron/vibe-llm/internal/preview"
	"github.com/samsaffron/vibe-llm/internal/speech"
	"github.com/samsaffron/vibe-llm/internal/ui"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// AllCommands returns all available slash commands
func AllCommands() []Command {
	return []Command{
		{
			Name:        "copy",
			Aliases:     []string{"c", "y"},
			Description: "Copy the generated code",
			Usage:       "/copy",
		},
		{
			Name:        "read",
			Aliases:     []string{"say"},
			Description: "Read the generated code aloud",
			Usage:       "/read",
		},
		{
			Name:        "preview",
			Aliases:     []string{"p", "open"},
			Description: "Write the preview page and open it",
			Usage:       "/preview [path]",
		},
		{
			Name:        "search",
			Aliases:     []string{"s", "find"},
			Description: "Search this conversation",
			Usage:       "/search <words>",
		},
		{
			Name:        "help",
			Aliases:     []string{"h", "?"},
			Description: "Show help and available commands",
			Usage:       "/help",
		},
		{
			Name:        "quit",
			Aliases:     []string{"q", "exit"},
			Description: "Exit",
			Usage:       "/quit",
		},
	}
}

// CommandSource implements fuzzy.Source for command searching
type CommandSource []Command

func (c CommandSource) String(i int) string {
	return c[i].Name
}

func (c CommandSource) Len() int {
	return len(c)
}

// FilterCommands returns commands matching the query using fuzzy search
func FilterCommands(query string) []Command {
	commands := AllCommands()
	query = strings.TrimPrefix(query, "/")
	if query == "" {
		return commands
	}
	if idx := strings.Index(query, " "); idx != -1 {
		query = query[:idx]
	}
	queryLower := strings.ToLower(query)

	for _, cmd := range commands {
		if slices.Contains(cmd.Aliases, queryLower) {
			return []Command{cmd}
		}
	}

	var result []Command
	for _, match := range fuzzy.FindFrom(queryLower, CommandSource(commands)) {
		result = append(result, commands[match.Index])
	}
	return result
}

// findCommand resolves an exact name or alias.
func findCommand(name string) (Command, bool) {
	name = strings.ToLower(name)
	for _, cmd := range AllCommands() {
		if cmd.Name == name || slices.Contains(cmd.Aliases, name) {
			return cmd, true
		}
	}
	return Command{}, false
}

type (
	copiedMsg     struct{ err error }
	copiedDoneMsg struct{}
	readDoneMsg   struct{ err error }
	previewMsg    struct {
		path string
		err  error
	}
	searchMsg struct {
		query string
		lines []string
		err   error
	}
)

// ExecuteCommand handles slash command execution
func (m *Model) ExecuteCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return m, nil
	}
	cmd, ok := findCommand(parts[0])
	if !ok {
		if matches := FilterCommands(parts[0]); len(matches) == 1 {
			cmd = matches[0]
		} else {
			return m.showSystemMessage(fmt.Sprintf("Unknown command /%s. Type /help for the list.", parts[0]))
		}
	}
	args := strings.TrimSpace(strings.Join(parts[1:], " "))

	switch cmd.Name {
	case "copy":
		return m.copyCode()
	case "read":
		return m.readCode()
	case "preview":
		return m.writePreview(args)
	case "search":
		if args == "" {
			return m.showSystemMessage("Usage: /search <words>")
		}
		return m, m.searchCmd(args)
	case "help":
		return m.showSystemMessage(helpText())
	case "quit":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Describe a UI and press enter. Commands:\n")
	for _, cmd := range AllCommands() {
		fmt.Fprintf(&b, "  %-16s %s\n", cmd.Usage, cmd.Description)
	}
	b.WriteString("Keys: esc cancels a request, pgup/pgdown scroll the code, shift+↑/↓ scroll the chat.")
	return b.String()
}

func (m *Model) copyCode() (tea.Model, tea.Cmd) {
	code := m.studio.Display().Code
	if code == "" {
		return m.showSystemMessage("No code to copy yet.")
	}
	copier := m.copier
	return m, func() tea.Msg {
		return copiedMsg{err: copier.Copy(code)}
	}
}

func copiedTimeout() tea.Cmd {
	return tea.Tick(clipboard.CopiedIndicatorDuration, func(time.Time) tea.Msg {
		return copiedDoneMsg{}
	})
}

func (m *Model) readCode() (tea.Model, tea.Cmd) {
	if m.speaker == nil {
		return m.showSystemMessage("Read aloud is unavailable: " + speech.ErrUnavailable.Error())
	}
	code := m.studio.Display().Code
	if code == "" {
		return m.showSystemMessage("No code to read yet.")
	}
	if m.speaker.Speaking() {
		return m, nil
	}
	m.reading = true
	speaker := m.speaker
	return m, func() tea.Msg {
		return readDoneMsg{err: speaker.Speak(context.Background(), code)}
	}
}

func (m *Model) writePreview(path string) (tea.Model, tea.Cmd) {
	code := m.studio.Display().Code
	if code == "" {
		return m.showSystemMessage("No code to preview yet.")
	}
	if path == "" {
		path = m.previewPath
	}
	open := m.open
	return m, func() tea.Msg {
		if err := preview.WriteFile(path, code); err != nil {
			return previewMsg{path: path, err: err}
		}
		if open != nil {
			if err := open(path); err != nil {
				return previewMsg{path: path, err: fmt.Errorf("open: %w", err)}
			}
		}
		return previewMsg{path: path}
	}
}

func (m *Model) searchCmd(query string) tea.Cmd {
	store := m.store
	width := max(20, m.width-8)
	return func() tea.Msg {
		if store == nil {
			return searchMsg{query: query, err: errors.New("search is disabled")}
		}
		results, err := store.Search(context.Background(), query, 10)
		if err != nil {
			return searchMsg{query: query, err: err}
		}
		lines := make([]string, 0, len(results))
		for _, r := range results {
			line := fmt.Sprintf("#%d %s: %s", r.Sequence+1, r.Role, strings.ReplaceAll(r.Snippet, "\n", " "))
			lines = append(lines, ui.Truncate(line, width))
		}
		return searchMsg{query: query, lines: lines}
	}
}
