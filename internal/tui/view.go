package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/epiderma/internal/conversation"
	"github.com/raphaelgruber/epiderma/internal/metrics"
	"github.com/raphaelgruber/epiderma/internal/models"
)

const (
	thinkingText = "Analyzing details..."
	timeLayout   = "15:04"
)

// renderTranscript renders the whole message sequence for the viewport.
// spin is the current spinner frame shown next to thinking placeholders.
func renderTranscript(msgs []models.Message, theme Theme, width int, spin string) string {
	blocks := make([]string, 0, len(msgs))
	for _, m := range msgs {
		blocks = append(blocks, renderMessage(m, theme, width, spin))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(m models.Message, theme Theme, width int, spin string) string {
	body := lipgloss.NewStyle().Width(width).Foreground(theme.Text)

	var who string
	if m.Sender == models.SenderUser {
		who = theme.textStyle().Bold(true).Render("You")
	} else {
		who = theme.brandStyle().Render("Epiderma")
	}
	lines := []string{who + "  " + theme.mutedStyle().Render(m.Timestamp.Format(timeLayout))}

	if m.Thinking {
		lines = append(lines, spin+" "+theme.hintStyle().Render(thinkingText))
		return strings.Join(lines, "\n")
	}

	if m.Text != "" {
		lines = append(lines, body.Render(m.Text))
	}
	if m.Image != nil && m.Sender == models.SenderUser {
		lines = append(lines, theme.mutedStyle().Render("[image] "+describeImage(m.Image)))
	}
	if m.Analysis != nil {
		lines = append(lines, renderAnalysisBlock(*m.Analysis, theme, width))
	}
	return strings.Join(lines, "\n")
}

func renderAnalysisBlock(a models.AnalysisResult, theme Theme, width int) string {
	dot := lipgloss.NewStyle().Foreground(theme.SeverityColor(a.Severity)).Render("●")
	lines := []string{
		theme.mutedStyle().Render(strings.Repeat("─", max(width, 1))),
		dot + " " + theme.textStyle().Bold(true).Render("SEVERITY: "+strings.ToUpper(string(a.Severity))),
	}
	if a.TreatmentSuggestions != "" {
		lines = append(lines,
			theme.mutedStyle().Bold(true).Render("RECOMMENDED APPROACH"),
			lipgloss.NewStyle().Width(width).Foreground(theme.Text).Render(a.TreatmentSuggestions),
		)
	}
	if a.Disclaimer != "" {
		lines = append(lines, lipgloss.NewStyle().Width(width).Inherit(theme.hintStyle()).Render("! "+a.Disclaimer))
	}
	return strings.Join(lines, "\n")
}

// pendingImage returns the image of the analysis currently in flight, if any.
func pendingImage(msgs []models.Message) *models.ImageRef {
	n := len(msgs)
	if n < 2 || !msgs[n-1].Thinking {
		return nil
	}
	return msgs[n-2].Image
}

// renderPane renders the active image/analysis pane into width columns.
func renderPane(pane conversation.ActivePane, pending *models.ImageRef, theme Theme, width, height int, maxUpload int64) string {
	switch {
	case pending != nil:
		return renderPendingPane(pending, theme, width)
	case pane.Analysis != nil:
		return renderActivePane(pane, theme, width, height)
	default:
		return renderUploadPane(theme, width, maxUpload)
	}
}

func renderUploadPane(theme Theme, width int, maxUpload int64) string {
	wrap := lipgloss.NewStyle().Width(width)
	lines := []string{
		"",
		theme.brandStyle().Render("Upload Photo"),
		"",
		wrap.Inherit(theme.textStyle()).Render("Paste an image path below, or type /image <path>."),
		"",
		theme.hintStyle().Render(fmt.Sprintf("Supports JPG, PNG (Max %s)", formatMB(maxUpload))),
	}
	return strings.Join(lines, "\n")
}

func renderPendingPane(img *models.ImageRef, theme Theme, width int) string {
	status := lipgloss.NewStyle().Foreground(theme.SeverityModerate).Render("●") + " " +
		theme.mutedStyle().Bold(true).Render("ANALYZING...")
	lines := []string{
		status,
		"",
		lipgloss.NewStyle().Width(width).Inherit(theme.textStyle()).Render(describeImage(img)),
	}
	return strings.Join(lines, "\n")
}

func renderActivePane(pane conversation.ActivePane, theme Theme, width, height int) string {
	a := *pane.Analysis

	status := lipgloss.NewStyle().Foreground(theme.SeverityOK).Render("●") + " " +
		theme.mutedStyle().Bold(true).Render("SCAN COMPLETE")
	badge := theme.badgeStyle(a.Severity).Render(strings.ToUpper(string(a.Severity)))
	gap := width - lipgloss.Width(status) - lipgloss.Width(badge)
	header := status + strings.Repeat(" ", max(gap, 1)) + badge

	lines := []string{header}
	if pane.Image != nil {
		lines = append(lines, theme.mutedStyle().Render(truncate(describeImage(pane.Image), width)))
	}

	caption := lipgloss.NewStyle().Width(width).Inherit(theme.textStyle()).Render(paneCaption(a))

	// Rows left for the overlay and the detections list, after the header,
	// the caption and the two blank separators.
	avail := height - len(lines) - lipgloss.Height(caption) - 2
	limit := avail - minOverlay
	if limit < 1 {
		limit = max(avail, 1)
	}
	entries := detectionEntries(a.Detections, theme, limit)

	if w, h := overlaySize(pane.Image, width, avail-len(entries)); h > 0 {
		lines = append(lines, drawDetections(a.Detections, w, h).Render(theme, a.Detections), "")
	}
	lines = append(lines, entries...)
	lines = append(lines, "", caption)
	return strings.Join(lines, "\n")
}

// detectionEntries lists at most limit rows, folding the rest into a
// "+N more" line.
func detectionEntries(dets []models.Detection, theme Theme, limit int) []string {
	shown := dets
	if len(dets) > limit {
		shown = dets[:max(limit-1, 0)]
	}

	entries := make([]string, 0, len(shown)+1)
	for i, d := range shown {
		swatch := lipgloss.NewStyle().Foreground(theme.LabelColor(d.Label)).Bold(true).Render(string(marker(i)))
		entry := swatch + " " + d.Label
		if d.Confidence > 0 {
			entry += theme.mutedStyle().Render(fmt.Sprintf(" %.0f%%", d.Confidence*100))
		}
		entries = append(entries, entry)
	}
	if rest := len(dets) - len(shown); rest > 0 {
		entries = append(entries, theme.mutedStyle().Render(fmt.Sprintf("+%d more", rest)))
	}
	return entries
}

func paneCaption(a models.AnalysisResult) string {
	return fmt.Sprintf("Found %d areas of concern. Check the chat for treatment plan.", len(a.Detections))
}

func describeImage(img *models.ImageRef) string {
	desc := img.Name
	if desc == "" {
		desc = "image"
	}
	if img.Width > 0 && img.Height > 0 {
		desc += fmt.Sprintf(" · %dx%d", img.Width, img.Height)
	}
	if img.Size > 0 {
		desc += fmt.Sprintf(" · %.1f KB", float64(img.Size)/1024)
	}
	return desc
}

// renderStats summarizes session metrics for the footer.
func renderStats(s metrics.Snapshot) string {
	var parts []string
	if s.Analyze != nil {
		parts = append(parts, fmt.Sprintf("%d scans (avg %.0fms)", s.Analyze.Count, s.Analyze.AvgTimeMs))
	}
	if s.Chat != nil {
		parts = append(parts, fmt.Sprintf("%d replies", s.Chat.Count))
	}
	if s.Dropped > 0 {
		parts = append(parts, fmt.Sprintf("%d ignored", s.Dropped))
	}
	return strings.Join(parts, " · ")
}

func formatMB(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%.1fMB", float64(n)/mb)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
