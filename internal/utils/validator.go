package utils

import (
	"fmt"
	"io"
	"mime/multipart"

	models "github.com/fathima-sithara/image-service/internal/media"
)

// DefaultMaxUploadBytes bounds a single file part.
const DefaultMaxUploadBytes = 20 * 1024 * 1024

// ValidateFileHeader rejects empty or oversized parts. The media type is
// checked later against the content itself, never against the header.
func ValidateFileHeader(h *multipart.FileHeader, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if h.Size == 0 {
		return fmt.Errorf("%w: %s is empty", models.ErrUnsupportedMedia, h.Filename)
	}
	if h.Size > maxBytes {
		return fmt.Errorf("%w: %s exceeds %d bytes", models.ErrUnsupportedMedia, h.Filename, maxBytes)
	}
	return nil
}

// ReadFileHeader returns the whole content of an uploaded part.
func ReadFileHeader(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
