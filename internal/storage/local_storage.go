package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileFetcher reads images from the local filesystem
type LocalFileFetcher struct {
	maxBytes int64
}

// NewLocalFileFetcher creates a local file fetcher
func NewLocalFileFetcher(maxBytes int64) *LocalFileFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &LocalFileFetcher{maxBytes: maxBytes}
}

// Fetch accepts a file:// URL or a plain path
func (l *LocalFileFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := LocalPath(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrImageNotFound)
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return readLimited(f, l.maxBytes)
}

// LocalPath resolves a file reference to a filesystem path
func LocalPath(ref string) (string, error) {
	if !strings.HasPrefix(ref, "file://") {
		return filepath.Clean(ref), nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid file URL: %w", err)
	}
	if u.Path == "" {
		return "", fmt.Errorf("file URL has no path")
	}
	return filepath.FromSlash(u.Path), nil
}
