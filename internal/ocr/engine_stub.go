//go:build !tesseract
// +build !tesseract

package ocr

import "context"

type stubEngine struct{}

// NewEngine returns an engine that always fails with ErrUnavailable
func NewEngine(language string) (Engine, error) {
	return stubEngine{}, nil
}

func (stubEngine) Recognize(context.Context, []byte) (string, error) {
	return "", ErrUnavailable
}

func (stubEngine) Close() error { return nil }
