package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
)

// errCancelled is returned when the user aborts a running request.
var errCancelled = errors.New("cancelled")

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// taskDoneMsg carries the result of the background task.
type taskDoneMsg struct {
	err error
}

// progressModel is the bubbletea model shown while a request is in flight.
type progressModel struct {
	label    string
	task     func() error
	spinner  spinner.Model
	theme    Theme
	start    time.Time
	elapsed  time.Duration
	done     bool
	quitting bool
	err      error
}

// newProgressModel creates a new progress model for task.
func newProgressModel(label string, task func() error) progressModel {
	return progressModel{
		label:   label,
		task:    task,
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		theme:   defaultTheme,
		start:   time.Now(),
	}
}

// Init starts the spinner and the task.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.runTask(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case taskDoneMsg:
		m.done = true
		m.err = msg.err
		m.elapsed = time.Since(m.start)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render("Cancelled.") + "\n"
	}
	if m.done {
		if m.err != nil {
			return m.theme.errorStyle().Render("✗ Failed") + "\n"
		}
		return m.theme.completedStyle().Render(fmt.Sprintf("✓ Done in %.1fs", m.elapsed.Seconds())) + "\n"
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")
	return fmt.Sprintf("%s %s\n%s\n", m.spinner.View(), m.theme.statusStyle().Render(m.label), hint)
}

// runTask runs the task in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) runTask() tea.Cmd {
	task := m.task
	return func() tea.Msg {
		return taskDoneMsg{err: task()}
	}
}

// runWithProgress runs task while showing a spinner on out. Without a
// terminal the task runs directly. Ctrl+C cancels the task's context.
func runWithProgress(ctx context.Context, out io.Writer, tty bool, label string, task func(context.Context) error) error {
	if !tty {
		return task(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newProgressModel(label, func() error { return task(ctx) })
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(out))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return errCancelled
		}
		return m.err
	}
	return nil
}
