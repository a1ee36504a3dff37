package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/epiderma/internal/client"
	"github.com/raphaelgruber/epiderma/internal/models"
)

func TestNewDefaultsBaseURL(t *testing.T) {
	c := client.New("")
	assert.Equal(t, client.DefaultBaseURL, c.BaseURL())

	c = client.New("http://backend:9000/")
	assert.Equal(t, "http://backend:9000", c.BaseURL(), "trailing slash is trimmed")
}

func TestAnalyzeSendsMultipartFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		assert.Equal(t, "face.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte("png-bytes"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"severity": "moderate",
			"detections": [{"label": "Pustule", "bbox": [1, 2, 3, 4], "confidence": 0.8}],
			"treatment_suggestions": "Cleanse twice daily.",
			"disclaimer": "Not medical advice."
		}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	result, err := c.Analyze(context.Background(), client.ImageFile{
		Name:     "face.png",
		MIMEType: "image/png",
		Data:     []byte("png-bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.SeverityModerate, result.Severity)
	require.Len(t, result.Detections, 1)
	assert.Equal(t, "Pustule", result.Detections[0].Label)
	assert.Equal(t, models.BoundingBox{1, 2, 3, 4}, result.Detections[0].Box)
	assert.Equal(t, "Cleanse twice daily.", result.TreatmentSuggestions)
	assert.Equal(t, "Not medical advice.", result.Disclaimer)
}

func TestAnalyzeNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).Analyze(context.Background(), client.ImageFile{Name: "a.jpg", Data: []byte("x")})
	require.Error(t, err)

	var statusErr *client.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.HTTPStatusCode())
	assert.Equal(t, "/analyze", statusErr.Endpoint)
	assert.Equal(t, "model crashed", statusErr.Body)
}

func TestAnalyzeMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"severity":`)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).Analyze(context.Background(), client.ImageFile{Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestChatSendsTextField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "how do I treat this?", r.FormValue("text"))
		assert.Equal(t, "epiderma/test", r.Header.Get("User-Agent"))

		_, _ = io.WriteString(w, `{"reply": "Hey there I'm Epiderma"}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithUserAgent("epiderma/test"))
	reply, err := c.Chat(context.Background(), "how do I treat this?")
	require.NoError(t, err)
	assert.Equal(t, "Hey there I'm Epiderma", reply)
}

func TestChatNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).Chat(context.Background(), "hi")

	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestChatConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := client.New(url).Chat(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute request")
}

func TestAnalyzeResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Valid JSON, just larger than the client accepts.
		_, _ = io.WriteString(w, `{"severity":"Mild","treatment_suggestions":"`+strings.Repeat("a", 1<<20)+`"}`)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).Analyze(context.Background(), client.ImageFile{Name: "a.png", Data: []byte("x")})
	require.ErrorIs(t, err, client.ErrResponseTooLarge)
	assert.NotContains(t, err.Error(), "unmarshal")
}
