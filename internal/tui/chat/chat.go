// Package chat is the interactive terminal front-end: chat on the left, generated code on
// the right, a prompt at the bottom.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"

	"github.com/samsaffron/vibe-llm/internal/clipboard"
	"github.com/samsaffron/vibe-llm/internal/session"
	"github.com/samsaffron/vibe-llm/internal/speech"
	"github.com/samsaffron/vibe-llm/internal/ui"
	"github.com/samsaffron/vibe-llm/internal/vibe"
)

// Options wires the model to its collaborators. Studio and Events are required.
type Options struct {
	Studio  *vibe.Studio
	Events  <-chan vibe.Event
	Copier  clipboard.Copier
	Speaker speech.Speaker // nil disables /read
	Store   session.Store  // nil disables /search
	Styles  *ui.Styles
	Profile termenv.Profile
	Logger  *logrus.Entry

	PreviewPath string                  // default target of /preview
	Open        func(path string) error // opens a written preview; nil only writes it

	InitialPrompt string // submitted on start when set
}

// Model is the bubbletea model of the chat TUI.
type Model struct {
	width  int
	height int

	input    textinput.Model
	spinner  spinner.Model
	chatView viewport.Model
	codeView viewport.Model
	styles   *ui.Styles
	keyMap   KeyMap

	studio      *vibe.Studio
	events      <-chan vibe.Event
	copier      clipboard.Copier
	speaker     speech.Speaker
	store       session.Store
	highlighter *ui.Highlighter
	profile     termenv.Profile
	log         *logrus.Entry
	previewPath string
	open        func(path string) error

	cancel      context.CancelFunc
	thinking    bool
	reading     bool
	copiedUntil time.Time
	notice      string // last system message, shown under the chat
	completions []Command
	quitting    bool
	initial     string

	renderedCode string // code currently loaded into codeView
}

type (
	studioEventMsg struct{ event vibe.Event }
	turnDoneMsg    struct{}
)

// New creates the model.
func New(opts Options) *Model {
	input := textinput.New()
	input.Placeholder = "Describe a UI (or /help)"
	input.Prompt = ui.UserIcon + " "
	input.CharLimit = 4000
	input.Focus()

	styles := opts.Styles
	if styles == nil {
		styles = ui.DefaultStyles()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	copier := opts.Copier
	if copier == nil {
		copier = clipboard.NewSystemCopier(nil)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Model{
		width:       100,
		height:      30,
		input:       input,
		spinner:     sp,
		chatView:    viewport.New(40, 20),
		codeView:    viewport.New(60, 20),
		styles:      styles,
		keyMap:      DefaultKeyMap(),
		studio:      opts.Studio,
		events:      opts.Events,
		copier:      copier,
		speaker:     opts.Speaker,
		store:       opts.Store,
		highlighter: ui.CodeHighlighter(),
		profile:     opts.Profile,
		log:         log.WithField("component", "tui"),
		previewPath: opts.PreviewPath,
		open:        opts.Open,
		initial:     strings.TrimSpace(opts.InitialPrompt),
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, m.listen()}
	if m.initial != "" {
		initial := m.initial
		cmds = append(cmds, func() tea.Msg { return submitMsg{text: initial} })
	}
	return tea.Batch(cmds...)
}

type submitMsg struct{ text string }

func (m *Model) listen() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return studioEventMsg{event: event}
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case submitMsg:
		return m.submit(msg.text)

	case studioEventMsg:
		switch msg.event.Type {
		case vibe.EventReasoning:
			m.thinking = true
		case vibe.EventDelta, vibe.EventDisplay, vibe.EventFinished:
			m.thinking = false
		}
		m.refresh()
		return m, m.listen()

	case turnDoneMsg:
		m.cancel = nil
		m.thinking = false
		if err := m.studio.LastError(); err != nil {
			m.log.WithError(err).Debug("turn ended with error")
			if !errors.Is(err, context.Canceled) {
				m.notice = "Request failed: " + err.Error()
			}
		}
		m.refresh()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Copy failed: " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		m.copiedUntil = time.Now().Add(clipboard.CopiedIndicatorDuration)
		return m, copiedTimeout()

	case copiedDoneMsg:
		if !time.Now().Before(m.copiedUntil) {
			m.copiedUntil = time.Time{}
		}
		return m, nil

	case readDoneMsg:
		m.reading = false
		if msg.err != nil && !errors.Is(msg.err, speech.ErrBusy) {
			m.notice = "Read aloud failed: " + msg.err.Error()
			m.refresh()
		}
		return m, nil

	case previewMsg:
		if msg.err != nil {
			m.notice = "Preview failed: " + msg.err.Error()
		} else {
			m.notice = "Preview written to " + msg.path
		}
		m.refresh()
		return m, nil

	case searchMsg:
		switch {
		case msg.err != nil:
			m.notice = "Search failed: " + msg.err.Error()
		case len(msg.lines) == 0:
			m.notice = fmt.Sprintf("No turns match %q.", msg.query)
		default:
			m.notice = fmt.Sprintf("Matches for %q:\n%s", msg.query, strings.Join(msg.lines, "\n"))
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Cancel):
		if m.cancel != nil {
			m.cancel()
			m.notice = "Cancelled."
			return m, nil
		}
		if m.input.Value() != "" {
			m.input.SetValue("")
			m.completions = nil
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Copy):
		return m.copyCode()

	case key.Matches(msg, m.keyMap.CodeUp):
		m.codeView.HalfPageUp()
		return m, nil
	case key.Matches(msg, m.keyMap.CodeDown):
		m.codeView.HalfPageDown()
		return m, nil
	case key.Matches(msg, m.keyMap.ChatUp):
		m.chatView.ScrollUp(1)
		return m, nil
	case key.Matches(msg, m.keyMap.ChatDown):
		m.chatView.ScrollDown(1)
		return m, nil

	case key.Matches(msg, m.keyMap.Complete):
		if len(m.completions) > 0 {
			m.input.SetValue("/" + m.completions[0].Name + " ")
			m.input.CursorEnd()
			m.completions = nil
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Send):
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return m, nil
		}
		if strings.HasPrefix(value, "/") {
			m.input.SetValue("")
			m.completions = nil
			return m.ExecuteCommand(value)
		}
		// Input stays put while a request runs.
		if m.studio.Busy() {
			return m, nil
		}
		return m.submit(value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.updateCompletions()
	return m, cmd
}

func (m *Model) submit(text string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	done, err := m.studio.Start(ctx, text)
	if err != nil {
		cancel()
		if errors.Is(err, vibe.ErrBusy) {
			return m, nil
		}
		return m.showSystemMessage(err.Error())
	}
	m.cancel = cancel
	m.notice = ""
	m.input.SetValue("")
	m.completions = nil
	m.refresh()

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		<-done
		cancel()
		return turnDoneMsg{}
	})
}

func (m *Model) updateCompletions() {
	value := m.input.Value()
	if !strings.HasPrefix(value, "/") || strings.Contains(value, " ") {
		m.completions = nil
		return
	}
	m.completions = FilterCommands(value)
}

func (m *Model) showSystemMessage(text string) (tea.Model, tea.Cmd) {
	m.notice = text
	m.refresh()
	return m, nil
}

// Quitting reports whether the user asked to exit.
func (m *Model) Quitting() bool {
	return m.quitting
}
