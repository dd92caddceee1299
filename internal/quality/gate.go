// Package quality implements the image quality gate: it measures a capture,
// scores it, classifies its defects and decides whether it may enter a session.
package quality

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/anime-shed/capture-inspector-go/internal/analyzer"
	"github.com/anime-shed/capture-inspector-go/internal/config"
	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/logger"
	"github.com/anime-shed/capture-inspector-go/internal/requirements"
	"github.com/anime-shed/capture-inspector-go/internal/storage"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
	"github.com/anime-shed/capture-inspector-go/pkg/validation"
)

// RequirementSource looks up capture requirements by scene id
type RequirementSource interface {
	Get(sceneID string) (requirements.Requirement, error)
}

// Assessor is the gate contract consumed by the session state machine
type Assessor interface {
	Assess(ctx context.Context, ref, sceneID string, meta *models.CaptureMetadata) (models.QualityResult, error)
}

// Thresholds are the score limits applied to one scene
type Thresholds struct {
	MinScore    int
	BlockFloor  int
	StrictFloor int
}

// Gate scores captures against their scene's requirements
type Gate struct {
	fetcher      storage.ImageFetcher
	extractor    analyzer.SignalExtractor
	requirements RequirementSource
	scorer       *validation.QualityValidator
	refValidator *validation.RefValidator
	defaults     config.QualityConfig
}

var _ Assessor = (*Gate)(nil)

// NewGate creates a quality gate. defaults apply to scenes without their own thresholds.
func NewGate(fetcher storage.ImageFetcher, extractor analyzer.SignalExtractor, reqs RequirementSource, defaults config.QualityConfig) *Gate {
	return &Gate{
		fetcher:      fetcher,
		extractor:    extractor,
		requirements: reqs,
		scorer:       validation.NewQualityValidator(),
		refValidator: validation.NewRefValidator(),
		defaults:     defaults,
	}
}

// Assess fetches, measures and judges one capture for a scene
func (g *Gate) Assess(ctx context.Context, ref, sceneID string, meta *models.CaptureMetadata) (models.QualityResult, error) {
	req, err := g.requirements.Get(sceneID)
	if err != nil {
		return models.QualityResult{}, err
	}

	if err := g.refValidator.Validate(ref); err != nil {
		if appErr, ok := apperrors.As(err); ok && len(appErr.Guidance) == 0 {
			appErr.WithGuidance(reuploadGuidance)
		}
		return models.QualityResult{}, err
	}

	data, err := g.fetcher.Fetch(ctx, ref)
	if err != nil {
		return models.QualityResult{}, fetchError(err)
	}

	extraction, err := g.extractor.Extract(ctx, data)
	if err != nil {
		return models.QualityResult{}, extractError(err)
	}

	result := g.Evaluate(req, extraction, meta)
	logger.WithFields(map[string]interface{}{
		"scene_id":      sceneID,
		"quality_score": result.QualityScore,
		"defects":       len(result.Defects),
		"blocking":      result.Blocking,
		"passed":        result.Passed,
	}).Debug("Capture assessed")
	return result, nil
}

// Evaluate turns an extraction into a quality result for the requirement.
// It does no I/O.
func (g *Gate) Evaluate(req requirements.Requirement, extraction analyzer.Extraction, meta *models.CaptureMetadata) models.QualityResult {
	resolution := extraction.Resolution
	if !resolution.Known() && meta != nil && meta.Resolution != nil {
		resolution = *meta.Resolution
	}

	hasScale := extraction.ScaleReference
	if meta != nil && meta.HasScaleReference != nil {
		hasScale = *meta.HasScaleReference
	}

	signals := validation.ApplyResolutionPenalty(extraction.Signals, resolution, req.MinResolution)
	score := g.scorer.Score(signals)
	defects := g.scorer.DetectDefects(signals, req.RequiresScaleReference, hasScale)
	th := g.ThresholdsFor(req)

	result := models.QualityResult{
		QualityScore: score,
		Defects:      defects,
		MinScore:     th.MinScore,
		Signals:      signals,
		Resolution:   resolution,
	}
	result.Blocking = score < th.BlockFloor ||
		result.HighSeverityCount() >= 2 ||
		(req.Strict && score < th.StrictFloor)
	result.Passed = !result.Blocking && score >= th.MinScore
	result.RetakeGuidance = Guidance(req, result)
	return result
}

// ThresholdsFor resolves the limits for a scene, preferring its own values
func (g *Gate) ThresholdsFor(req requirements.Requirement) Thresholds {
	th := Thresholds{
		MinScore:    g.defaults.MinScore,
		BlockFloor:  g.defaults.BlockFloor,
		StrictFloor: g.defaults.StrictFloor,
	}
	if req.Strict {
		th.MinScore = g.defaults.StrictMinScore
	}
	if o := req.Thresholds; o != nil {
		if o.MinScore != nil {
			th.MinScore = *o.MinScore
		}
		if o.BlockFloor != nil {
			th.BlockFloor = *o.BlockFloor
		}
		if o.StrictFloor != nil {
			th.StrictFloor = *o.StrictFloor
		}
	}
	return th
}

// fetchError maps storage failures to the error taxonomy
func fetchError(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Timed out fetching image", err).WithGuidance(reuploadGuidance)
	case errors.Is(err, storage.ErrImageNotFound):
		return apperrors.NewNotFoundError("Image not found", err).WithGuidance(reuploadGuidance)
	case errors.Is(err, storage.ErrImageTooLarge):
		return apperrors.NewValidationError("Image is too large", err).WithGuidance(smallerImageGuidance)
	case isNetTimeout(err):
		return apperrors.NewTimeoutError("Timed out fetching image", err).WithGuidance(reuploadGuidance)
	case isTransportError(err):
		return apperrors.NewNetworkError("Image storage could not be reached", err).
			WithGuidance("Check the connection and try again.")
	default:
		return apperrors.NewProcessingError("Failed to fetch image", err).WithGuidance(reuploadGuidance)
	}
}

// extractError maps decode and measurement failures to the error taxonomy
func extractError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Image assessment timed out", err).WithGuidance(reuploadGuidance)
	case errors.Is(err, analyzer.ErrTooManyPixels):
		return apperrors.NewValidationError("Image resolution is too large", err).WithGuidance(smallerImageGuidance)
	default:
		return apperrors.NewProcessingError("Image could not be read", err).
			WithGuidance(unreadableGuidance, reuploadGuidance)
	}
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isTransportError reports a failure to reach storage. URL parse errors
// are *url.Error too but are not transport failures.
func isTransportError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Op != "parse"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
