// Package storage fetches captured image bytes from the places a capture
// reference can point to.
package storage

import (
	"context"
	"errors"
)

// DefaultMaxImageBytes caps how much a fetcher will read for one image
const DefaultMaxImageBytes int64 = 25 * 1024 * 1024

// MaxImagePixels caps the decoded size of one image. A compressed file far
// below the byte cap can still expand to gigabytes of pixels.
const MaxImagePixels = 50 * 1000 * 1000

var (
	// ErrImageTooLarge is returned when an image exceeds the fetcher's byte limit
	ErrImageTooLarge = errors.New("image exceeds maximum size")

	// ErrImageNotFound is returned when the reference points at nothing
	ErrImageNotFound = errors.New("image not found")
)

// ImageFetcher loads the encoded bytes behind an image reference
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// ImageUploader stores encoded image bytes and returns a reference to them
type ImageUploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}
