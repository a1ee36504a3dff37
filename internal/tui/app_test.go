package tui

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/epiderma/internal/assistant"
	"github.com/raphaelgruber/epiderma/internal/client"
	"github.com/raphaelgruber/epiderma/internal/conversation"
	"github.com/raphaelgruber/epiderma/internal/models"
)

type stubBackend struct {
	mu      sync.Mutex
	prompts []string
	images  []string
	result  *models.AnalysisResult
}

func (s *stubBackend) Analyze(_ context.Context, img client.ImageFile) (*models.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, img.Name)
	r := s.result.Clone()
	return &r, nil
}

func (s *stubBackend) Chat(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, text)
	return "Use a gentle cleanser.", nil
}

func newTestModel(t *testing.T) (Model, *stubBackend) {
	t.Helper()
	backend := &stubBackend{result: &models.AnalysisResult{
		Severity:             models.SeverityMild,
		Detections:           []models.Detection{{Label: "Whitehead", Box: models.BoundingBox{100, 100, 300, 300}, Confidence: 0.9}},
		TreatmentSuggestions: "Salicylic acid cleanser twice daily.",
		Disclaimer:           models.DefaultDisclaimer,
	}}
	orch := assistant.New(backend, conversation.NewStore())
	m := New(context.Background(), orch, Options{})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), backend
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func press(t *testing.T, m Model, k tea.KeyPressMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

var enter = tea.KeyPressMsg{Code: tea.KeyEnter}

func TestEnterSendsChatText(t *testing.T) {
	m, backend := newTestModel(t)
	m.input.SetValue("is this normal?")

	m, cmd := press(t, m, enter)
	assert.Empty(t, m.input.Value())
	m = run(t, m, cmd)

	assert.Equal(t, []string{"is this normal?"}, backend.prompts)
	msgs := m.store.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Use a gentle cleanser.", msgs[2].Text)
	assert.Empty(t, m.notice)
}

func TestEnterOnBlankInputDoesNothing(t *testing.T) {
	m, backend := newTestModel(t)
	m.input.SetValue("   ")

	_, cmd := press(t, m, enter)
	assert.Nil(t, cmd)
	assert.Empty(t, backend.prompts)
}

func TestImageCommandSubmitsImage(t *testing.T) {
	m, backend := newTestModel(t)
	path := writePNG(t, t.TempDir(), "cheek.png")
	m.input.SetValue("/image " + path)

	m, cmd := press(t, m, enter)
	m = run(t, m, cmd)

	assert.Equal(t, []string{"cheek.png"}, backend.images)
	pane := m.store.ActivePane()
	require.NotNil(t, pane.Analysis)
	assert.Equal(t, models.SeverityMild, pane.Analysis.Severity)
	assert.Equal(t, placeholderAnalysis, m.input.Placeholder)
}

func TestImageCommandWithoutPath(t *testing.T) {
	m, _ := newTestModel(t)
	m.input.SetValue("/image")

	m, cmd := press(t, m, enter)
	assert.Nil(t, cmd)
	assert.Equal(t, "Usage: /image <path>", m.notice)
}

func TestOversizedImageShowsNotice(t *testing.T) {
	m, backend := newTestModel(t)
	path := filepath.Join(t.TempDir(), "big.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(6*1024*1024))
	require.NoError(t, f.Close())

	m.input.SetValue(path)
	m, cmd := press(t, m, enter)
	m = run(t, m, cmd)

	assert.Equal(t, "Image size too large. Please use an image under 5MB.", m.notice)
	assert.Empty(t, backend.images)
	assert.Equal(t, 1, m.store.Len(), "transcript untouched")
}

func TestPastedImagePathSubmits(t *testing.T) {
	m, backend := newTestModel(t)
	path := writePNG(t, t.TempDir(), "pasted.png")

	next, cmd := m.Update(tea.PasteMsg{Content: "'" + path + "'"})
	m = run(t, next.(Model), cmd)

	assert.Equal(t, []string{"pasted.png"}, backend.images)
}

func TestPastedTextGoesToInput(t *testing.T) {
	m, backend := newTestModel(t)

	next, _ := m.Update(tea.PasteMsg{Content: "some words"})
	m = next.(Model)

	assert.Equal(t, "some words", m.input.Value())
	assert.Empty(t, backend.prompts)
}

func TestClearResetsConversation(t *testing.T) {
	m, _ := newTestModel(t)
	m.input.SetValue("hello")
	m, cmd := press(t, m, enter)
	m = run(t, m, cmd)
	require.Equal(t, 3, m.store.Len())

	m, _ = press(t, m, tea.KeyPressMsg{Code: 'l', Mod: tea.ModCtrl})

	msgs := m.store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.WelcomeID, msgs[0].ID)
}

func TestToggleTheme(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, "light", m.theme.Name)

	m, _ = press(t, m, tea.KeyPressMsg{Code: 't', Mod: tea.ModCtrl})
	assert.Equal(t, "dark", m.theme.Name)

	m, _ = press(t, m, tea.KeyPressMsg{Code: 't', Mod: tea.ModCtrl})
	assert.Equal(t, "light", m.theme.Name)
}

func TestQuitKeys(t *testing.T) {
	m, _ := newTestModel(t)

	for _, k := range []tea.KeyPressMsg{
		{Code: tea.KeyEscape},
		{Code: 'c', Mod: tea.ModCtrl},
	} {
		_, cmd := press(t, m, k)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestRenderShowsWelcomeAndDisclaimer(t *testing.T) {
	m, _ := newTestModel(t)
	out := m.render()

	assert.Contains(t, out, "Welcome to Epiderma!")
	assert.Contains(t, out, "Upload Photo")
	assert.Contains(t, out, "Max 5MB")
	assert.Contains(t, out, models.DefaultDisclaimer)
}

func TestRenderActivePaneAfterAnalysis(t *testing.T) {
	m, _ := newTestModel(t)
	path := writePNG(t, t.TempDir(), "chin.png")
	m.input.SetValue(path)
	m, cmd := press(t, m, enter)
	m = run(t, m, cmd)

	out := m.render()
	assert.Contains(t, out, "SCAN COMPLETE")
	assert.Contains(t, out, "MILD")
	assert.Contains(t, out, "Found 1 areas of concern.")
	assert.Contains(t, out, "RECOMMENDED APPROACH")
}

func TestRenderFitsTerminalWithManyDetections(t *testing.T) {
	for _, n := range []int{1, 12, 30} {
		m, _ := newTestModel(t)
		next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
		m = next.(Model)

		dets := make([]models.Detection, n)
		for i := range dets {
			dets[i] = models.Detection{Label: "Papule", Box: models.BoundingBox{100, 100, 200, 200}, Confidence: 0.8}
		}
		require.NoError(t, m.store.Append(models.Message{
			ID:       models.NewID(),
			Sender:   models.SenderBot,
			Text:     "Analysis complete.",
			Image:    &models.ImageRef{Name: "portrait.jpg", Width: 3000, Height: 4000},
			Analysis: &models.AnalysisResult{Severity: models.SeveritySevere, Detections: dets},
		}))
		next, _ = m.Update(storeChangedMsg{})
		m = next.(Model)

		out := m.render()
		assert.Len(t, strings.Split(out, "\n"), 30, "detections=%d", n)
		assert.Contains(t, out, "SCAN COMPLETE")
		assert.Contains(t, out, models.DefaultDisclaimer)
		if n == 30 {
			assert.Contains(t, out, " more")
		}
	}
}
