// Package ocr reads text from lab report captures and picks out marker values.
package ocr

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by the stub engine in builds without Tesseract
var ErrUnavailable = errors.New("ocr engine unavailable: build with -tags tesseract")

// Engine recognizes text in encoded image bytes
type Engine interface {
	Recognize(ctx context.Context, data []byte) (string, error)
	Close() error
}
