// Package models defines data structures shared by the Epiderma client.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a conversation turn.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single turn in the conversation.
// A bot placeholder has Thinking set until its action settles; the final
// content is written into the same record.
type Message struct {
	ID        string          `json:"id"`
	Sender    Sender          `json:"sender"`
	Text      string          `json:"text,omitempty"`
	Image     *ImageRef       `json:"image,omitempty"`
	Analysis  *AnalysisResult `json:"analysis,omitempty"`
	Thinking  bool            `json:"is_thinking,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ImageRef is a display-only reference to an image attached to a turn.
type ImageRef struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// NewID returns a fresh message identifier.
func NewID() string {
	return uuid.NewString()
}

// HasImageAnalysis reports whether the message carries both an image and an
// analysis, i.e. whether it can back the active pane.
func (m Message) HasImageAnalysis() bool {
	return m.Image != nil && m.Analysis != nil
}

// Clone returns a copy that shares no pointers with m.
func (m Message) Clone() Message {
	if m.Image != nil {
		img := *m.Image
		m.Image = &img
	}
	if m.Analysis != nil {
		a := m.Analysis.Clone()
		m.Analysis = &a
	}
	return m
}
