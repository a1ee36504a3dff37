package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BoxScale is the upper bound of normalized bounding box coordinates.
const BoxScale = 1000

// DefaultDisclaimer is attached to results whose backend omitted one.
const DefaultDisclaimer = "Epiderma AI can make mistakes. Consult a doctor for medical advice."

// Severity is the coarse categorical summary produced by the analyzer.
type Severity string

const (
	SeverityNone     Severity = "None"
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

// ParseSeverity maps s onto a known severity, ignoring case and surrounding
// whitespace. Unknown values are returned verbatim.
func ParseSeverity(s string) Severity {
	trimmed := strings.TrimSpace(s)
	for _, known := range []Severity{SeverityNone, SeverityMild, SeverityModerate, SeveritySevere} {
		if strings.EqualFold(trimmed, string(known)) {
			return known
		}
	}
	return Severity(trimmed)
}

// Known reports whether s is one of the four canonical levels.
func (s Severity) Known() bool {
	return s.Rank() >= 0
}

// Rank orders severities from None (0) to Severe (3); unknown values are -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityNone:
		return 0
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	default:
		return -1
	}
}

// UnmarshalJSON accepts any casing ("moderate", "MODERATE").
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("severity: %w", err)
	}
	*s = ParseSeverity(raw)
	return nil
}

// BoundingBox is [yMin, xMin, yMax, xMax] normalized to 0..BoxScale.
type BoundingBox [4]float64

func (b BoundingBox) YMin() float64 { return b[0] }
func (b BoundingBox) XMin() float64 { return b[1] }
func (b BoundingBox) YMax() float64 { return b[2] }
func (b BoundingBox) XMax() float64 { return b[3] }

// Valid reports whether the box lies within the normalized range and has a
// non-negative extent on both axes.
func (b BoundingBox) Valid() bool {
	for _, v := range b {
		if v < 0 || v > BoxScale {
			return false
		}
	}
	return b.YMax() >= b.YMin() && b.XMax() >= b.XMin()
}

// Scale maps the box onto a grid of the given width and height, returning
// inclusive cell coordinates clamped to the grid.
func (b BoundingBox) Scale(width, height int) (top, left, bottom, right int) {
	cell := func(v float64, n int) int {
		c := int(v * float64(n) / BoxScale)
		if c < 0 {
			return 0
		}
		if c > n-1 {
			return n - 1
		}
		return c
	}
	return cell(b.YMin(), height), cell(b.XMin(), width), cell(b.YMax(), height), cell(b.XMax(), width)
}

// Detection is one located lesion finding.
type Detection struct {
	Label      string      `json:"label"`
	Box        BoundingBox `json:"box_2d"`
	Confidence float64     `json:"confidence"`
}

// UnmarshalJSON accepts the box under either "box_2d" or "bbox".
func (d *Detection) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label      string    `json:"label"`
		Box2D      []float64 `json:"box_2d"`
		BBox       []float64 `json:"bbox"`
		Confidence float64   `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("detection: %w", err)
	}

	box := raw.Box2D
	if box == nil {
		box = raw.BBox
	}
	if box != nil && len(box) != 4 {
		return fmt.Errorf("detection %q: bounding box has %d values, want 4", raw.Label, len(box))
	}

	d.Label = raw.Label
	d.Confidence = raw.Confidence
	d.Box = BoundingBox{}
	copy(d.Box[:], box)
	return nil
}

// AnalysisResult is the structured output of the remote analyzer.
type AnalysisResult struct {
	Severity             Severity    `json:"severity"`
	Detections           []Detection `json:"detections"`
	TreatmentSuggestions string      `json:"treatment_suggestions"`
	Disclaimer           string      `json:"disclaimer"`
}

// Normalize fills in defaults the backend may leave out.
func (a *AnalysisResult) Normalize() {
	if a.Severity == "" {
		a.Severity = SeverityNone
	}
	if a.Detections == nil {
		a.Detections = []Detection{}
	}
	if strings.TrimSpace(a.Disclaimer) == "" {
		a.Disclaimer = DefaultDisclaimer
	}
}

// Labels returns the detection labels in order.
func (a AnalysisResult) Labels() []string {
	labels := make([]string, 0, len(a.Detections))
	for _, d := range a.Detections {
		labels = append(labels, d.Label)
	}
	return labels
}

// Clone returns a deep copy.
func (a AnalysisResult) Clone() AnalysisResult {
	if a.Detections != nil {
		dets := make([]Detection, len(a.Detections))
		copy(dets, a.Detections)
		a.Detections = dets
	}
	return a
}
