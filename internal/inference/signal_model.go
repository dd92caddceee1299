package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// ErrNoImages is returned when a model is asked to infer on nothing
var ErrNoImages = errors.New("no images to analyze")

// SignalModel derives its output from the quality signals the gate already
// measured. It reads no pixels and always returns the same output for the
// same input.
type SignalModel struct{}

var _ Model = SignalModel{}

func NewSignalModel() SignalModel {
	return SignalModel{}
}

func (SignalModel) Name() string { return "signal" }

func (SignalModel) RequiresImageData() bool { return false }

func (SignalModel) Infer(ctx context.Context, in Input) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if len(in.Images) == 0 {
		return Output{}, ErrNoImages
	}

	n := float64(len(in.Images))
	features := map[string]float64{}
	var scoreSum, scaleImages float64
	for _, img := range in.Images {
		s := img.Quality.Signals
		features["sharpness"] += s.Sharpness / n
		features["brightness"] += s.Brightness / n
		features["color_accuracy"] += s.ColorAccuracy / n
		features["roi_coverage"] += s.ROICoverage / n
		features["composition"] += s.Composition / n
		features["noise"] += s.Noise / n
		features["stability"] += s.Stability / n
		scoreSum += float64(img.Quality.QualityScore)
		if !img.Quality.HasDefect(models.DefectNoScaleReference) {
			scaleImages++
		}
	}

	meanScore := scoreSum / n
	out := Output{
		Features: features,
		Labels: []Label{
			{Name: "subject_visible", Score: features["roi_coverage"]},
			{Name: "capture_consistent", Score: features["stability"]},
		},
		Measurements: map[string]float64{
			"images":             n,
			"mean_quality_score": meanScore,
			"scale_referenced":   scaleImages,
		},
		Observations: []string{
			fmt.Sprintf("Analyzed %d image(s) with mean quality score %.0f.", len(in.Images), meanScore),
		},
		Confidence: meanScore / 100,
	}
	return out, nil
}
