package assistant

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/epiderma/internal/models"
)

const (
	analyzeCaption = "Analyze this image."
	analyzeFailure = "I couldn't process that image. Please try a clearer photo."
	chatFailure    = "Connection error."

	// summaryTreatmentRunes bounds the treatment excerpt in the summary.
	summaryTreatmentRunes = 150
)

// lesionWord picks the singular or plural noun for n detections.
func lesionWord(n int) string {
	if n == 1 {
		return "lesion"
	}
	return "lesions"
}

// Summary is the bot text shown for a completed analysis: severity, lesion
// count and the start of the treatment suggestions.
func Summary(a models.AnalysisResult) string {
	n := len(a.Detections)

	var b strings.Builder
	b.WriteString("Analysis complete.\n")
	fmt.Fprintf(&b, "Severity: %s\n", a.Severity)
	fmt.Fprintf(&b, "Detected: %d %s.", n, lesionWord(n))

	if treatment := strings.TrimSpace(a.TreatmentSuggestions); treatment != "" {
		b.WriteString("\n\n")
		b.WriteString(truncateRunes(treatment, summaryTreatmentRunes))
	}
	return b.String()
}

// ContextualPrompt appends a bracketed clause describing the active analysis
// to the user's text. Without an analysis the text is returned unchanged.
func ContextualPrompt(text string, active *models.AnalysisResult) string {
	if active == nil {
		return text
	}
	return fmt.Sprintf("%s\n[Context: The user is asking about an image with %s acne, containing %s.]",
		text, active.Severity, strings.Join(active.Labels(), ", "))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimRight(string(runes[:n]), " \n\t") + "..."
}
