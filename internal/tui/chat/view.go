package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/samsaffron/vibe-llm/internal/conversation"
	"github.com/samsaffron/vibe-llm/internal/ui"
)

const (
	headerHeight = 1
	inputHeight  = 2
	footerHeight = 1
	paneChrome   = 2 // rounded border, top and bottom
)

// layout sizes the panes: chat takes two fifths of the width, code the rest.
func (m *Model) layout() {
	bodyHeight := max(3, m.height-headerHeight-inputHeight-footerHeight)
	chatWidth := max(20, m.width*2/5)
	codeWidth := max(20, m.width-chatWidth)

	m.chatView.Width = chatWidth - paneChrome - 2
	m.chatView.Height = bodyHeight - paneChrome
	m.codeView.Width = codeWidth - paneChrome - 2
	m.codeView.Height = bodyHeight - paneChrome
	m.input.Width = max(10, m.width-4)
}

// refresh reloads both panes from the studio.
func (m *Model) refresh() {
	atBottom := m.chatView.AtBottom()
	m.chatView.SetContent(m.renderChat(m.chatView.Width))
	if atBottom || m.studio.Busy() {
		m.chatView.GotoBottom()
	}

	code := m.studio.Display().Code
	if code != m.renderedCode || code == "" {
		m.renderedCode = code
		m.codeView.SetContent(m.renderCode(code, m.codeView.Width))
		m.codeView.GotoTop()
	}
}

func (m *Model) renderChat(width int) string {
	width = max(10, width)
	var b strings.Builder
	for i, turn := range m.studio.Turns() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderTurn(turn, width))
	}

	if m.studio.Busy() {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderProgress(width))
	}

	if m.notice != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.styles.Muted.Render(ui.Wrap(m.notice, width)))
	}
	return b.String()
}

func (m *Model) renderTurn(turn conversation.Turn, width int) string {
	switch turn.Role {
	case conversation.RoleUser:
		return m.styles.User.Render(ui.Wrap(ui.UserIcon+" "+turn.Content, width))
	default:
		return ui.RenderMarkdown(turn.Content, width)
	}
}

func (m *Model) renderProgress(width int) string {
	label := "vibing"
	if m.thinking {
		label = "thinking"
	}
	label += "..."
	if raw := m.studio.Raw(); raw != "" {
		label += fmt.Sprintf(" (%d chars)", len(raw))
	}
	return m.spinner.View() + " " + m.styles.Muted.Render(ui.Truncate(label, width-2))
}

func (m *Model) renderCode(code string, width int) string {
	if code == "" {
		if m.studio.Busy() {
			return m.styles.Muted.Render("Generating...")
		}
		return m.styles.Muted.Render("Nothing yet. Describe a UI and the code shows up here.")
	}
	return m.highlighter.ANSI(ui.Wrap(code, max(10, width)), m.profile)
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	chatWidth := m.chatView.Width + paneChrome + 2
	codeWidth := m.codeView.Width + paneChrome + 2
	chatPane := m.styles.Pane.Width(chatWidth - paneChrome).Render(m.chatView.View())
	codePane := m.styles.Pane.Width(codeWidth - paneChrome).Render(m.codeView.View())

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, chatPane, codePane))
	b.WriteString("\n")
	if popup := m.renderCompletions(); popup != "" {
		b.WriteString(popup)
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Input.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := m.styles.Highlighted.Render("vibe-llm") + m.styles.Muted.Render(" · "+m.studio.ProviderName())

	var status []string
	if m.studio.Busy() {
		status = append(status, m.spinner.View()+" generating")
	}
	if m.reading {
		status = append(status, "reading aloud")
	}
	if time.Now().Before(m.copiedUntil) {
		status = append(status, m.styles.Success.Render(ui.SuccessIcon+" copied"))
	}
	if len(status) == 0 {
		return title
	}
	return title + "  " + strings.Join(status, "  ")
}

func (m *Model) renderCompletions() string {
	if len(m.completions) == 0 {
		return ""
	}
	var lines []string
	for i, cmd := range m.completions {
		if i == 5 {
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s",
			m.styles.Highlighted.Render(fmt.Sprintf("%-10s", "/"+cmd.Name)),
			m.styles.Muted.Render(cmd.Description)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	var parts []string
	for _, b := range m.keyMap.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.styles.Footer.Render(ui.Truncate(strings.Join(parts, " · "), max(10, m.width)))
}
