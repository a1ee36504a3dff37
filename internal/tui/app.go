// Package tui implements the interactive Epiderma chat screen.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/epiderma/internal/assistant"
	"github.com/raphaelgruber/epiderma/internal/conversation"
	"github.com/raphaelgruber/epiderma/internal/models"
)

const (
	placeholderIdle     = "Ask a question or paste an image path..."
	placeholderAnalysis = "Ask about the treatment suggestions..."

	imageCommand = "/image"

	minPaneWidth = 28
	maxPaneWidth = 50
	// Below this width the pane is hidden and the transcript takes the screen.
	narrowWidth = 70
)

// storeChangedMsg signals that the conversation store was mutated.
type storeChangedMsg struct{}

// actionDoneMsg carries the outcome of an orchestrator call.
type actionDoneMsg struct {
	err error
}

// Options configures the chat screen.
type Options struct {
	Theme  string
	Logger *slog.Logger
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctx     context.Context
	orch    *assistant.Orchestrator
	store   *conversation.Store
	logger  *slog.Logger
	changes chan struct{}

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	theme    Theme

	notice        string
	width, height int
	paneWidth     int
	ready         bool
}

// New creates the chat model and subscribes it to the orchestrator's store.
func New(ctx context.Context, orch *assistant.Orchestrator, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	input := textinput.New()
	input.Prompt = "› "
	input.Placeholder = placeholderIdle
	input.Focus()

	m := Model{
		ctx:      ctx,
		orch:     orch,
		store:    orch.Store(),
		logger:   logger,
		changes:  make(chan struct{}, 1),
		viewport: viewport.New(),
		input:    input,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:    ThemeFor(opts.Theme),
	}

	changes := m.changes
	m.store.Subscribe(func() {
		// Coalesce bursts; the UI re-reads the whole store anyway.
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	return m
}

// Init starts the spinner and the store watcher.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.changes))
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return storeChangedMsg{}
	}
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh(true)
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.PasteMsg:
		if cmd := m.intake(msg.Content, false); cmd != nil {
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case storeChangedMsg:
		m.refresh(true)
		return m, waitForChange(m.changes)

	case actionDoneMsg:
		m.handleActionResult(msg.err)
		m.refresh(false)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.orch.Busy() {
			m.refresh(false)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "ctrl+t":
		m.theme = m.theme.Toggled()
		m.logger.Debug("theme toggled", "theme", m.theme.Name)
		m.refresh(false)
		return m, nil

	case "ctrl+l":
		m.orch.Clear()
		m.notice = ""
		return m, nil

	case "pgup":
		m.viewport.PageUp()
		return m, nil

	case "pgdown":
		m.viewport.PageDown()
		return m, nil

	case "enter":
		cmd := m.intake(m.input.Value(), true)
		return m, cmd
	}

	m.notice = ""
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// intake routes a line of user input. Image paths, data URLs and /image
// commands submit an image; anything else is chat text when typed (pasted
// text is left to the input field). Returns nil when nothing was submitted.
func (m *Model) intake(raw string, typed bool) tea.Cmd {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	if m.orch.Busy() {
		// Input stays in the field so it can be resent once the reply lands.
		return nil
	}

	if text == imageCommand || strings.HasPrefix(text, imageCommand+" ") {
		path := strings.TrimSpace(strings.TrimPrefix(text, imageCommand))
		if path == "" {
			m.notice = "Usage: /image <path>"
			return nil
		}
		m.input.Reset()
		return m.submitPath(path)
	}

	switch assistant.ClassifyIntake(text) {
	case assistant.IntakeImagePath:
		m.input.Reset()
		return m.submitPath(text)
	case assistant.IntakeDataURL:
		m.input.Reset()
		return m.submitDataURL(text)
	}

	if !typed {
		return nil
	}
	m.input.Reset()
	m.notice = ""
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: orch.SendChatText(ctx, text)}
	}
}

func (m *Model) submitPath(path string) tea.Cmd {
	m.notice = ""
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		upload, err := assistant.LoadUpload(assistant.CleanPath(path), orch.MaxUploadBytes())
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{err: orch.SubmitImage(ctx, upload)}
	}
}

func (m *Model) submitDataURL(dataURL string) tea.Cmd {
	m.notice = ""
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		upload, err := assistant.UploadFromDataURL(dataURL, "")
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{err: orch.SubmitImage(ctx, upload)}
	}
}

func (m *Model) handleActionResult(err error) {
	switch {
	case err == nil:
	case errors.Is(err, assistant.ErrBusy):
		// Dropped while another action was in flight.
	default:
		if text, ok := assistant.UserMessage(err); ok {
			m.notice = text
			return
		}
		m.logger.Error("action failed", "error", err)
		m.notice = err.Error()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.ready = true

	m.paneWidth = 0
	if width >= narrowWidth {
		m.paneWidth = min(max(width*2/5, minPaneWidth), maxPaneWidth)
	}

	transcriptWidth := width - m.paneWidth - 2
	if m.paneWidth > 0 {
		transcriptWidth-- // pane border
	}
	m.viewport.SetWidth(max(transcriptWidth, 10))
	m.viewport.SetHeight(max(m.bodyHeight(), 1))
	m.input.SetWidth(max(width-4, 10))
}

// bodyHeight leaves room for the header, notice, input and footer lines.
func (m Model) bodyHeight() int {
	return m.height - 4
}

// refresh re-renders the transcript. follow scrolls to the newest message.
func (m *Model) refresh(follow bool) {
	if m.store.ActivePane().Analysis != nil {
		m.input.Placeholder = placeholderAnalysis
	} else {
		m.input.Placeholder = placeholderIdle
	}
	if !m.ready {
		return
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(renderTranscript(m.store.Messages(), m.theme, m.viewport.Width(), m.spinner.View()))
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

// View renders the chat screen.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	v.WindowTitle = "Epiderma"
	return v
}

func (m Model) render() string {
	if !m.ready {
		return "Loading...\n"
	}

	header := m.theme.brandStyle().Render("Epiderma") + " " +
		m.theme.mutedStyle().Render("AI skin analysis")
	keys := m.theme.hintStyle().Render("ctrl+t theme · ctrl+l clear · esc quit")
	gap := m.width - lipgloss.Width(header) - lipgloss.Width(keys)
	header += strings.Repeat(" ", max(gap, 1)) + keys

	transcript := lipgloss.NewStyle().PaddingLeft(1).Render(m.viewport.View())
	body := transcript
	if m.paneWidth > 0 {
		msgs := m.store.Messages()
		pane := renderPane(m.store.ActivePane(), pendingImage(msgs), m.theme,
			m.paneWidth-2, m.bodyHeight(), m.orch.MaxUploadBytes())
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.theme.paneStyle(m.paneWidth, m.bodyHeight()).Render(pane),
			transcript,
		)
	}

	notice := ""
	if m.notice != "" {
		notice = m.theme.errorStyle().Render(m.notice)
	}

	footer := m.theme.hintStyle().Render(models.DefaultDisclaimer)
	if stats := renderStats(m.orch.Metrics().Snapshot()); stats != "" {
		footer += m.theme.mutedStyle().Render("  │  " + stats)
	}

	return strings.Join([]string{header, body, notice, m.input.View(), footer}, "\n")
}

// Run starts the chat screen and blocks until the user quits.
func Run(ctx context.Context, orch *assistant.Orchestrator, opts Options, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(New(ctx, orch, opts),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
