// Package handlers implements the builtin scene handlers.
package handlers

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// Option configures a handler
type Option func(*base)

// WithClock sets the clock used to timestamp results
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithMinImages sets how many accepted images a session needs
func WithMinImages(n int) Option {
	return func(b *base) {
		if n > 0 {
			b.minImages = n
		}
	}
}

// base carries the input contract shared by every builtin handler
type base struct {
	sceneID        string
	requiredFields []string
	minImages      int
	now            func() time.Time
}

func newBase(sceneID string, requiredFields []string, opts []Option) base {
	b := base{
		sceneID:        sceneID,
		requiredFields: append([]string(nil), requiredFields...),
		minImages:      1,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) RequiredFields() []string {
	return append([]string(nil), b.requiredFields...)
}

func (b *base) ValidateInput(session models.Session) models.ValidationResult {
	var errs []string
	if session.SceneID != b.sceneID {
		errs = append(errs, fmt.Sprintf("Session belongs to scene %q, not %q.", session.SceneID, b.sceneID))
	}
	if len(session.Images) < b.minImages {
		if b.minImages == 1 {
			errs = append(errs, "At least one accepted image is required.")
		} else {
			errs = append(errs, fmt.Sprintf("At least %d accepted images are required.", b.minImages))
		}
	}
	for _, field := range b.requiredFields {
		if session.Field(field) == "" {
			errs = append(errs, fmt.Sprintf("Field %q is required.", field))
		}
	}
	return models.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (b *base) newResult(session models.Session) models.AnalysisResult {
	return models.AnalysisResult{
		ID:        uuid.NewString(),
		SceneID:   b.sceneID,
		SessionID: session.ID,
		Timestamp: b.now().UTC(),
	}
}
