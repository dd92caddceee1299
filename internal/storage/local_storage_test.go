package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.png")
	if err := os.WriteFile(path, testImageBytes, 0o600); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	fetcher := NewLocalFileFetcher(0)

	tests := []struct {
		name string
		ref  string
	}{
		{"plain path", path},
		{"file url", "file://" + filepath.ToSlash(path)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := fetcher.Fetch(context.Background(), tt.ref)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(data) != string(testImageBytes) {
				t.Errorf("Expected file contents, got %v", data)
			}
		})
	}
}

func TestLocalFileFetcher_Errors(t *testing.T) {
	dir := t.TempDir()
	fetcher := NewLocalFileFetcher(4)

	if _, err := fetcher.Fetch(context.Background(), filepath.Join(dir, "missing.png")); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Expected ErrImageNotFound, got %v", err)
	}

	big := filepath.Join(dir, "big.png")
	if err := os.WriteFile(big, testImageBytes, 0o600); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if _, err := fetcher.Fetch(context.Background(), big); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Expected ErrImageTooLarge, got %v", err)
	}
}

func TestLocalPath(t *testing.T) {
	if _, err := LocalPath("file://"); err == nil {
		t.Error("Expected error for file URL without a path")
	}
	got, err := LocalPath("/tmp/../tmp/a.png")
	if err != nil || got != filepath.Clean("/tmp/a.png") {
		t.Errorf("Expected cleaned path, got %q (%v)", got, err)
	}
}
