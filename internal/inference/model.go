// Package inference defines the model contract scene handlers call into.
// The output shape is fixed so a real model can replace the signal model
// without changing any handler.
package inference

import (
	"context"

	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// ImageInput is one accepted capture handed to a model
type ImageInput struct {
	Ref     string
	Quality models.QualityResult
	// Data is only populated for models that read pixels
	Data []byte
}

// Input is everything a model may look at for one session
type Input struct {
	SceneID string
	Images  []ImageInput
	Fields  map[string]string
	// Findings are label names the caller wants scored
	Findings []string
}

// Label is a named finding with a score in [0,1]
type Label struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Output is the fixed-shape model result
type Output struct {
	Features     map[string]float64 `json:"features,omitempty"`
	Labels       []Label            `json:"labels,omitempty"`
	Measurements map[string]float64 `json:"measurements,omitempty"`
	Observations []string           `json:"observations,omitempty"`
	Confidence   float64            `json:"confidence"`
}

// TopLabel returns the highest scoring label, if any
func (o Output) TopLabel() (Label, bool) {
	if len(o.Labels) == 0 {
		return Label{}, false
	}
	best := o.Labels[0]
	for _, l := range o.Labels[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return best, true
}

// Model produces an Output for a session's images
type Model interface {
	Name() string
	// RequiresImageData reports whether Input.Images[].Data must be filled
	RequiresImageData() bool
	Infer(ctx context.Context, in Input) (Output, error)
}
