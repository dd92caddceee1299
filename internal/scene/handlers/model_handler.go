package handlers

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/inference"
	"github.com/anime-shed/capture-inspector-go/internal/logger"
	"github.com/anime-shed/capture-inspector-go/internal/storage"
	"github.com/anime-shed/capture-inspector-go/internal/strategy"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// ModelHandler analyzes a scene by running an inference model and
// interpreting its output with the scene's strategy
type ModelHandler struct {
	base
	model    inference.Model
	fetcher  storage.ImageFetcher
	strategy strategy.InterpretationStrategy
	findings []string
}

// NewModelHandler creates a model-backed handler. The fetcher is only used
// when the model reads pixels and may be nil otherwise.
func NewModelHandler(sceneID string, model inference.Model, fetcher storage.ImageFetcher, s strategy.InterpretationStrategy, requiredFields []string, opts ...Option) (*ModelHandler, error) {
	if model == nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("scene %q: model is required", sceneID), nil)
	}
	if s == nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("scene %q: interpretation strategy is required", sceneID), nil)
	}
	if model.RequiresImageData() && fetcher == nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("scene %q: model %s needs an image fetcher", sceneID, model.Name()), nil)
	}

	h := &ModelHandler{
		base:     newBase(sceneID, requiredFields, opts),
		model:    model,
		fetcher:  fetcher,
		strategy: s,
	}
	if r, ok := s.(interface{ Rules() strategy.Rules }); ok {
		h.findings = r.Rules().Findings()
	}
	return h, nil
}

func (h *ModelHandler) Analyze(ctx context.Context, session models.Session) (models.AnalysisResult, error) {
	if v := h.ValidateInput(session); !v.Valid {
		return models.AnalysisResult{}, apperrors.NewValidationError(strings.Join(v.Errors, " "), nil).
			WithGuidance(v.Errors...)
	}

	in := inference.Input{
		SceneID:  h.sceneID,
		Fields:   session.Fields,
		Findings: h.findings,
	}
	for _, img := range session.Images {
		input := inference.ImageInput{Ref: img.URL, Quality: img.QAResult}
		if h.model.RequiresImageData() {
			data, err := h.fetcher.Fetch(ctx, img.URL)
			if err != nil {
				return models.AnalysisResult{}, fmt.Errorf("failed to load image %s: %w", img.ID, err)
			}
			input.Data = data
		}
		in.Images = append(in.Images, input)
	}

	out, err := h.model.Infer(ctx, in)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("model %s failed: %w", h.model.Name(), err)
	}

	interp := h.strategy.Interpret(out, session)

	result := h.newResult(session)
	features := make(map[string]float64, len(out.Features)+len(out.Labels))
	for k, v := range out.Features {
		features[k] = v
	}
	for _, l := range out.Labels {
		features["label."+l.Name] = l.Score
	}
	result.ImageAnalysis = models.ImageAnalysis{
		Features:     features,
		Measurements: out.Measurements,
		Observations: out.Observations,
	}
	result.RiskAssessment = interp.Risk
	result.Recommendations = interp.Recommendations
	result.RequiresManualReview = interp.ManualReview
	result.Confidence = out.Confidence

	logger.Component("scene_handler").WithFields(map[string]interface{}{
		"scene_id":   h.sceneID,
		"session_id": session.ID,
		"model":      h.model.Name(),
		"strategy":   h.strategy.GetStrategyName(),
		"risk":       interp.Risk.Level,
	}).Debug("Scene analysis finished")

	return result, nil
}
