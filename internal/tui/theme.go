package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/epiderma/internal/models"
)

// Theme holds the color scheme for the chat UI.
type Theme struct {
	Name string

	Brand  lipgloss.Color
	Text   lipgloss.Color
	Muted  lipgloss.Color
	Border lipgloss.Color
	Error  lipgloss.Color

	SeverityOK       lipgloss.Color
	SeverityModerate lipgloss.Color
	SeveritySevere   lipgloss.Color
	BadgeText        lipgloss.Color

	Whitehead lipgloss.Color
	Blackhead lipgloss.Color
	Red       lipgloss.Color
	Cyst      lipgloss.Color
}

var lightTheme = Theme{
	Name:             "light",
	Brand:            lipgloss.Color("#0284C7"), // sky blue
	Text:             lipgloss.Color("#1E293B"),
	Muted:            lipgloss.Color("#64748B"),
	Border:           lipgloss.Color("#CBD5E1"),
	Error:            lipgloss.Color("#DC2626"),
	SeverityOK:       lipgloss.Color("#22C55E"),
	SeverityModerate: lipgloss.Color("#EAB308"),
	SeveritySevere:   lipgloss.Color("#EF4444"),
	BadgeText:        lipgloss.Color("#FFFFFF"),
	Whitehead:        lipgloss.Color("#CA8A04"),
	Blackhead:        lipgloss.Color("#1E293B"), // slate
	Red:              lipgloss.Color("#EF4444"),
	Cyst:             lipgloss.Color("#A855F7"),
}

var darkTheme = Theme{
	Name:             "dark",
	Brand:            lipgloss.Color("#38BDF8"),
	Text:             lipgloss.Color("#E2E8F0"),
	Muted:            lipgloss.Color("#94A3B8"),
	Border:           lipgloss.Color("#334155"),
	Error:            lipgloss.Color("#F87171"),
	SeverityOK:       lipgloss.Color("#22C55E"),
	SeverityModerate: lipgloss.Color("#EAB308"),
	SeveritySevere:   lipgloss.Color("#EF4444"),
	BadgeText:        lipgloss.Color("#FFFFFF"),
	Whitehead:        lipgloss.Color("#FACC15"),
	Blackhead:        lipgloss.Color("#94A3B8"), // slate-400, visible on dark
	Red:              lipgloss.Color("#F87171"),
	Cyst:             lipgloss.Color("#C084FC"),
}

// ThemeFor returns the theme with the given name, falling back to light.
func ThemeFor(name string) Theme {
	if strings.EqualFold(name, darkTheme.Name) {
		return darkTheme
	}
	return lightTheme
}

// Toggled returns the opposite theme.
func (t Theme) Toggled() Theme {
	if t.Name == darkTheme.Name {
		return lightTheme
	}
	return darkTheme
}

// SeverityColor picks the badge color: red for severe, yellow for moderate,
// green otherwise.
func (t Theme) SeverityColor(s models.Severity) lipgloss.Color {
	switch s {
	case models.SeveritySevere:
		return t.SeveritySevere
	case models.SeverityModerate:
		return t.SeverityModerate
	default:
		return t.SeverityOK
	}
}

// LabelColor picks the overlay color for a lesion label.
func (t Theme) LabelColor(label string) lipgloss.Color {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "whitehead"):
		return t.Whitehead
	case strings.Contains(l, "blackhead"):
		return t.Blackhead
	case strings.Contains(l, "pustule"), strings.Contains(l, "papule"):
		return t.Red
	case strings.Contains(l, "cyst"):
		return t.Cyst
	default:
		return t.Brand
	}
}

// Style functions for dynamic theming

func (t Theme) brandStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Brand).Bold(true)
}

func (t Theme) textStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Text)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted).Italic(true)
}

func (t Theme) mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) badgeStyle(s models.Severity) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(t.BadgeText).
		Background(t.SeverityColor(s)).
		Bold(true).
		Padding(0, 1)
}

func (t Theme) paneStyle(width, height int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		MaxHeight(height).
		Padding(0, 1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(t.Border)
}
