package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raphaelgruber/epiderma/internal/models"
)

func TestSummary(t *testing.T) {
	tests := []struct {
		name     string
		analysis models.AnalysisResult
		want     []string
		notWant  []string
	}{
		{
			name: "single lesion",
			analysis: models.AnalysisResult{
				Severity:   models.SeverityModerate,
				Detections: []models.Detection{{Label: "Pustule"}},
			},
			want:    []string{"Analysis complete.", "Severity: Moderate", "Detected: 1 lesion."},
			notWant: []string{"\n\n"},
		},
		{
			name: "several lesions with treatment",
			analysis: models.AnalysisResult{
				Severity:             models.SeveritySevere,
				Detections:           []models.Detection{{Label: "Cyst"}, {Label: "Nodule"}, {Label: "Papule"}},
				TreatmentSuggestions: "See a dermatologist about oral treatment.",
			},
			want: []string{"Severity: Severe", "Detected: 3 lesions.", "\n\nSee a dermatologist"},
		},
		{
			name:     "no lesions",
			analysis: models.AnalysisResult{Severity: models.SeverityNone},
			want:     []string{"Detected: 0 lesions."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summary(tt.analysis)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, got, nw)
			}
		})
	}
}

func TestSummaryTruncatesTreatment(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := Summary(models.AnalysisResult{Severity: models.SeverityMild, TreatmentSuggestions: long})

	_, excerpt, _ := strings.Cut(got, "\n\n")
	assert.Equal(t, strings.Repeat("a", 150)+"...", excerpt)
}

func TestSummaryKeepsShortTreatment(t *testing.T) {
	got := Summary(models.AnalysisResult{Severity: models.SeverityMild, TreatmentSuggestions: "Moisturize."})
	assert.True(t, strings.HasSuffix(got, "\n\nMoisturize."))
}

func TestContextualPrompt(t *testing.T) {
	assert.Equal(t, "hello", ContextualPrompt("hello", nil))

	active := &models.AnalysisResult{
		Severity:   models.SeverityMild,
		Detections: []models.Detection{{Label: "Whitehead"}, {Label: "Blackhead"}},
	}
	assert.Equal(t,
		"hello\n[Context: The user is asking about an image with Mild acne, containing Whitehead, Blackhead.]",
		ContextualPrompt("hello", active))
}
