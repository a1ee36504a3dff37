// Package client provides an HTTP client for the Epiderma analysis backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/raphaelgruber/epiderma/internal/models"
)

// DefaultBaseURL is the backend address used when none is configured.
const DefaultBaseURL = "http://localhost:8000"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// ErrResponseTooLarge is returned when a response body exceeds maxResponseBytes.
var ErrResponseTooLarge = errors.New("response too large")

// Client talks to the /analyze and /chat endpoints.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the backend at baseURL.
// If baseURL is empty, DefaultBaseURL is used.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "epiderma",
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server error: %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: server error: %d %s - %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// HTTPStatusCode returns the response status.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// ImageFile is the payload of an analyze request.
type ImageFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// chatResponse is the response payload of /chat.
type chatResponse struct {
	Reply string `json:"reply"`
}

// Analyze uploads an image as the multipart field "file" and decodes the
// analysis result.
func (c *Client) Analyze(ctx context.Context, img ImageFile) (*models.AnalysisResult, error) {
	body, contentType, err := multipartFile("file", img)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	var result models.AnalysisResult
	if err := c.post(ctx, "/analyze", contentType, body, &result); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	result.Normalize()
	return &result, nil
}

// Chat sends text as the multipart field "text" and returns the reply.
func (c *Client) Chat(ctx context.Context, text string) (string, error) {
	body, contentType, err := multipartField("text", text)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat", contentType, body, &resp); err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return resp.Reply, nil
}

// post sends a form body and decodes a JSON response into result.
func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(respBody) > maxResponseBytes {
		return fmt.Errorf("read response: %w (over %d bytes)", ErrResponseTooLarge, maxResponseBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func multipartFile(field string, img ImageFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := img.Name
	if name == "" {
		name = "image"
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func multipartField(field, value string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField(field, value); err != nil {
		return nil, "", fmt.Errorf("write form field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
