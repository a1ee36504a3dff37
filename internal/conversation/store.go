// Package conversation holds the ordered message sequence and the active
// image/analysis pane derived from it.
package conversation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/epiderma/internal/models"
)

// WelcomeID is the fixed id of the canonical welcome message.
const WelcomeID = "init-1"

const welcomeText = "Welcome to Epiderma!\n\nI'm your AI dermatological assistant. Upload a picture to get an instant acne analysis and treatment suggestions."

var (
	ErrEmptyID     = errors.New("message id is empty")
	ErrDuplicateID = errors.New("message id already exists")
)

// Welcome returns the canonical first message of every conversation.
func Welcome(now time.Time) models.Message {
	return models.Message{
		ID:        WelcomeID,
		Sender:    models.SenderBot,
		Text:      welcomeText,
		Timestamp: now,
	}
}

// ActivePane is the image/analysis pair shown outside the transcript.
type ActivePane struct {
	Image    *models.ImageRef
	Analysis *models.AnalysisResult
}

// Empty reports whether the pane is cleared.
func (p ActivePane) Empty() bool {
	return p.Image == nil && p.Analysis == nil
}

// DeriveActivePane scans from the end for the most recent message carrying
// both an image and an analysis. The pane is cleared when there is none.
func DeriveActivePane(msgs []models.Message) ActivePane {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].HasImageAnalysis() {
			return ActivePane{Image: msgs[i].Image, Analysis: msgs[i].Analysis}
		}
	}
	return ActivePane{}
}

// Store owns the message sequence. It is append-only apart from in-place
// replacement of a message by id and a full Reset.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages []models.Message
	index    map[string]int
	pane     ActivePane

	now       func() time.Time
	logger    *slog.Logger
	listeners []func()
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for the welcome message.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used to report patch misses.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a store holding only the welcome message.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

// Subscribe registers fn to be called after every mutation.
// Listeners run outside the store lock.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Append adds msg to the end of the sequence.
func (s *Store) Append(msg models.Message) error {
	if msg.ID == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	if _, exists := s.index[msg.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("append %s: %w", msg.ID, ErrDuplicateID)
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg.Clone())
	s.recomputeLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Patch replaces the message with the given id by update(existing).
// It reports whether a message was found; a miss leaves the sequence
// untouched and indicates a sequencing bug in the caller.
func (s *Store) Patch(id string, update func(models.Message) models.Message) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Error("patch target not found", "id", id)
		return false
	}

	next := update(s.messages[i].Clone())
	next.ID = id
	s.messages[i] = next.Clone()
	s.recomputeLocked()
	s.mu.Unlock()

	s.notify()
	return true
}

// Reset replaces the sequence with the welcome message and clears the pane.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	s.notify()
}

// Messages returns a copy of the sequence.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Message{}, false
	}
	return s.messages[i].Clone(), true
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// ActivePane returns the pane derived after the latest mutation.
func (s *Store) ActivePane() ActivePane {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pane ActivePane
	if s.pane.Image != nil {
		img := *s.pane.Image
		pane.Image = &img
	}
	if s.pane.Analysis != nil {
		a := s.pane.Analysis.Clone()
		pane.Analysis = &a
	}
	return pane
}

func (s *Store) resetLocked() {
	s.messages = []models.Message{Welcome(s.now())}
	s.index = map[string]int{WelcomeID: 0}
	s.pane = ActivePane{}
}

// recomputeLocked re-derives the pane. Caller must hold the write lock.
func (s *Store) recomputeLocked() {
	s.pane = DeriveActivePane(s.messages)
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
