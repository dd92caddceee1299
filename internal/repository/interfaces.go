// Package repository persists finished analysis results.
package repository

import (
	"context"
	"io"

	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// HistoryRepository stores analysis results once a session has produced them.
// It never sees sessions in flight.
type HistoryRepository interface {
	// Save stores a result. Saving an id that already exists is a no-op.
	Save(ctx context.Context, result models.AnalysisResult) error

	// Get retrieves a stored result by id
	Get(ctx context.Context, id string) (models.AnalysisResult, error)

	// List returns results newest first
	List(ctx context.Context, filter HistoryFilter) ([]models.AnalysisResult, error)

	// Export writes every stored result as a JSON array and returns the count
	Export(ctx context.Context, w io.Writer) (int, error)

	// Import reads a JSON array of results and returns how many were new
	Import(ctx context.Context, r io.Reader) (int, error)

	Close() error
}

// HistoryFilter narrows List. Zero values match everything.
type HistoryFilter struct {
	SceneID   string
	SessionID string
	Limit     int
}
