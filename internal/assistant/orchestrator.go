// Package assistant turns user actions into backend round trips, bracketing
// each with a thinking placeholder in the conversation store.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/raphaelgruber/epiderma/internal/client"
	"github.com/raphaelgruber/epiderma/internal/conversation"
	"github.com/raphaelgruber/epiderma/internal/metrics"
	"github.com/raphaelgruber/epiderma/internal/models"
)

const tracerName = "github.com/raphaelgruber/epiderma/internal/assistant"

// slowRoundTrip is the duration above which backend calls are logged at WARN level.
const slowRoundTrip = 15 * time.Second

// Backend is the remote analysis and chat service.
type Backend interface {
	Analyze(ctx context.Context, img client.ImageFile) (*models.AnalysisResult, error)
	Chat(ctx context.Context, text string) (string, error)
}

// Orchestrator mediates user actions. At most one action is in flight at a
// time; further actions are dropped until it settles.
type Orchestrator struct {
	backend Backend
	store   *conversation.Store
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
	now     func() time.Time

	maxUploadBytes int64
	timeout        time.Duration

	busy atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics sets the collector that records round-trip timings.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithMaxUploadBytes overrides the upload size limit.
func WithMaxUploadBytes(n int64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxUploadBytes = n
		}
	}
}

// WithTimeout bounds each backend call. Zero leaves calls unbounded.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// New creates an orchestrator writing to store.
func New(backend Backend, store *conversation.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:        backend,
		store:          store,
		logger:         slog.Default(),
		metrics:        metrics.NewCollector(),
		tracer:         otel.Tracer(tracerName),
		now:            time.Now,
		maxUploadBytes: MaxUploadBytes,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Store returns the conversation store the orchestrator writes to.
func (o *Orchestrator) Store() *conversation.Store {
	return o.store
}

// Metrics returns the round-trip collector.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// MaxUploadBytes returns the configured upload size limit.
func (o *Orchestrator) MaxUploadBytes() int64 {
	return o.maxUploadBytes
}

// Busy reports whether an action is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// SubmitImage sends an image for analysis. Invalid uploads are rejected with
// a *ValidationError before anything is appended; ErrBusy is returned when
// another action is in flight. Backend failures do not surface as errors:
// they settle into an apology message in the transcript.
func (o *Orchestrator) SubmitImage(ctx context.Context, u Upload) error {
	if err := checkUpload(u, o.maxUploadBytes); err != nil {
		o.logger.Info("image rejected", "name", u.Name, "size", u.Size(), "error", err)
		return err
	}
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	ctx, span := o.tracer.Start(ctx, "assistant.submit_image", trace.WithAttributes(
		attribute.String("image.name", u.Name),
		attribute.Int64("image.size", u.Size()),
	))
	defer span.End()

	preview := u.Preview()
	if err := o.store.Append(models.Message{
		ID:        models.NewID(),
		Sender:    models.SenderUser,
		Text:      analyzeCaption,
		Image:     preview,
		Timestamp: o.now(),
	}); err != nil {
		return fmt.Errorf("append user message: %w", err)
	}

	placeholderID, err := o.appendPlaceholder()
	if err != nil {
		return err
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	start := time.Now()
	result, err := o.backend.Analyze(callCtx, client.ImageFile{
		Name:     u.Name,
		MIMEType: u.MediaType(),
		Data:     u.Data,
	})
	if err == nil && result == nil {
		err = errors.New("analyze: empty result")
	}
	o.observe(metrics.OpAnalyze, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analyze failed")
		o.logger.Warn("analyze failed", "image", u.Name, "error", err)
		o.settle(placeholderID, func(m models.Message) models.Message {
			m.Text = analyzeFailure
			m.Analysis = nil
			return m
		})
		return nil
	}

	span.SetAttributes(
		attribute.String("analysis.severity", string(result.Severity)),
		attribute.Int("analysis.detections", len(result.Detections)),
	)
	if !result.Severity.Known() {
		o.logger.Warn("unrecognized severity", "image", u.Name, "severity", result.Severity)
	}
	o.logger.Info("analysis complete", "image", u.Name, "severity", result.Severity, "detections", len(result.Detections))
	o.settle(placeholderID, func(m models.Message) models.Message {
		m.Text = Summary(*result)
		m.Image = preview
		m.Analysis = result
		return m
	})
	return nil
}

// SendChatText sends a chat turn. Whitespace-only text is rejected with a
// *ValidationError and ErrBusy is returned when another action is in flight.
// The prompt carries a context clause describing the active analysis.
func (o *Orchestrator) SendChatText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return newValidationError(ErrEmptyText, "Type a message first.")
	}
	if !o.acquire() {
		return ErrBusy
	}
	defer o.release()

	ctx, span := o.tracer.Start(ctx, "assistant.send_chat")
	defer span.End()

	if err := o.store.Append(models.Message{
		ID:        models.NewID(),
		Sender:    models.SenderUser,
		Text:      text,
		Timestamp: o.now(),
	}); err != nil {
		return fmt.Errorf("append user message: %w", err)
	}

	placeholderID, err := o.appendPlaceholder()
	if err != nil {
		return err
	}

	pane := o.store.ActivePane()
	prompt := ContextualPrompt(text, pane.Analysis)
	span.SetAttributes(attribute.Bool("chat.has_context", pane.Analysis != nil))

	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	start := time.Now()
	reply, err := o.backend.Chat(callCtx, prompt)
	o.observe(metrics.OpChat, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		o.logger.Warn("chat failed", "error", err)
		o.settle(placeholderID, func(m models.Message) models.Message {
			m.Text = chatFailure
			return m
		})
		return nil
	}

	o.logger.Debug("chat reply received", "length", len(reply))
	o.settle(placeholderID, func(m models.Message) models.Message {
		m.Text = reply
		return m
	})
	return nil
}

// Clear resets the conversation to the welcome message. No network call is
// made. A round trip still in flight settles into a patch miss.
func (o *Orchestrator) Clear() {
	o.store.Reset()
	o.logger.Debug("conversation cleared")
}

func (o *Orchestrator) acquire() bool {
	if o.busy.CompareAndSwap(false, true) {
		return true
	}
	o.metrics.RecordDropped()
	o.logger.Debug("action dropped while busy")
	return false
}

func (o *Orchestrator) release() {
	o.busy.Store(false)
}

func (o *Orchestrator) appendPlaceholder() (string, error) {
	id := models.NewID()
	if err := o.store.Append(models.Message{
		ID:        id,
		Sender:    models.SenderBot,
		Thinking:  true,
		Timestamp: o.now(),
	}); err != nil {
		return "", fmt.Errorf("append placeholder: %w", err)
	}
	return id, nil
}

// settle replaces the placeholder with its final, non-thinking content.
func (o *Orchestrator) settle(id string, fill func(models.Message) models.Message) {
	o.store.Patch(id, func(m models.Message) models.Message {
		m = fill(m)
		m.Thinking = false
		return m
	})
}

// observe records the round trip and flags slow ones.
func (o *Orchestrator) observe(op string, start time.Time, err error) {
	d := time.Since(start)
	o.metrics.RecordTiming(op, d, err)
	if d > slowRoundTrip {
		o.logger.Warn("slow backend round trip", "op", op, "duration_ms", d.Milliseconds())
	}
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}
