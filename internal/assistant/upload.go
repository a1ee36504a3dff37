package assistant

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/epiderma/internal/models"
)

// MaxUploadBytes is the largest image accepted for analysis (5 MiB).
const MaxUploadBytes int64 = 5 * 1024 * 1024

const tooLargeMessage = "Image size too large. Please use an image under 5MB."

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".heic": true, ".tif": true, ".tiff": true,
}

// Types the mime package only knows from the host's mime.types file.
var extraImageTypes = map[string]string{
	".bmp":  "image/bmp",
	".heic": "image/heic",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

func init() {
	for ext, typ := range extraImageTypes {
		if err := mime.AddExtensionType(ext, typ); err != nil {
			panic(err)
		}
	}
}

// Upload is an image handed to SubmitImage.
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the payload length in bytes.
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// MediaType returns the declared MIME type, sniffing the payload when none
// was given.
func (u Upload) MediaType() string {
	if u.MIMEType != "" {
		return u.MIMEType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(u.Name))); t != "" {
		return t
	}
	return http.DetectContentType(u.Data)
}

// Preview builds the display reference attached to messages.
func (u Upload) Preview() *models.ImageRef {
	ref := &models.ImageRef{
		Name:     u.Name,
		MIMEType: u.MediaType(),
		Size:     u.Size(),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Data)); err == nil {
		ref.Width = cfg.Width
		ref.Height = cfg.Height
	}
	return ref
}

// checkUpload validates size and media type against maxBytes.
func checkUpload(u Upload, maxBytes int64) error {
	if u.Size() > maxBytes {
		return newValidationError(ErrImageTooLarge, tooLargeMessage)
	}
	if !strings.HasPrefix(u.MediaType(), "image/") {
		return newValidationError(ErrNotAnImage, "Please choose an image file (JPG, PNG).")
	}
	return nil
}

// LoadUpload reads the image at path. The size limit is checked before the
// file is read.
func LoadUpload(path string, maxBytes int64) (Upload, error) {
	path = CleanPath(path)

	info, err := os.Stat(path)
	if err != nil {
		return Upload{}, fmt.Errorf("stat image: %w", err)
	}
	if info.IsDir() {
		return Upload{}, newValidationError(ErrNotAnImage, fmt.Sprintf("%s is a directory.", filepath.Base(path)))
	}
	if info.Size() > maxBytes {
		return Upload{}, newValidationError(ErrImageTooLarge, tooLargeMessage)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("read image: %w", err)
	}

	return Upload{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:     data,
	}, nil
}

// UploadFromDataURL decodes a "data:<mime>;base64,<payload>" string.
// The MIME type defaults to image/jpeg when the header omits it.
func UploadFromDataURL(s, name string) (Upload, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return Upload{}, fmt.Errorf("decode data url: missing data: prefix")
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return Upload{}, fmt.Errorf("decode data url: missing payload")
	}
	if !strings.HasSuffix(header, ";base64") {
		return Upload{}, fmt.Errorf("decode data url: only base64 payloads are supported")
	}

	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Upload{}, fmt.Errorf("decode data url: %w", err)
	}

	if name == "" {
		name = "pasted-image"
		if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
			name += exts[0]
		}
	}
	return Upload{Name: name, MIMEType: mimeType, Data: data}, nil
}

// CleanPath undoes the quoting terminals apply when a file is dropped onto
// them: surrounding quotes, backslash-escaped spaces, file:// URLs and a
// leading ~.
func CleanPath(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			s = s[1 : len(s)-1]
		}
	}
	if strings.HasPrefix(s, "file://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Path
		}
	}
	s = strings.ReplaceAll(s, `\ `, " ")
	if strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, s[2:])
		}
	}
	return s
}

// IntakeKind classifies pasted or typed input.
type IntakeKind int

const (
	IntakeText IntakeKind = iota
	IntakeImagePath
	IntakeDataURL
)

func (k IntakeKind) String() string {
	switch k {
	case IntakeText:
		return "text"
	case IntakeImagePath:
		return "image_path"
	case IntakeDataURL:
		return "data_url"
	default:
		return "unknown"
	}
}

// ClassifyIntake decides whether s is chat text, a path to an existing image
// file, or an inline image data URL.
func ClassifyIntake(s string) IntakeKind {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "data:image/") {
		return IntakeDataURL
	}
	if strings.ContainsAny(trimmed, "\n") {
		return IntakeText
	}
	path := CleanPath(trimmed)
	if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return IntakeText
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return IntakeImagePath
	}
	return IntakeText
}
