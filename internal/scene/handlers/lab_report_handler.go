package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/logger"
	"github.com/anime-shed/capture-inspector-go/internal/ocr"
	"github.com/anime-shed/capture-inspector-go/internal/requirements"
	"github.com/anime-shed/capture-inspector-go/internal/storage"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// minReadingConfidence is the mean marker confidence below which lab results are reviewed
const minReadingConfidence = 0.7

// LabReportHandler reads marker values off photographed lab reports
type LabReportHandler struct {
	base
	engine  ocr.Engine
	fetcher storage.ImageFetcher
	markers []ocr.Marker
}

// NewLabReportHandler creates the OCR-backed lab report handler
func NewLabReportHandler(engine ocr.Engine, fetcher storage.ImageFetcher, markers []ocr.Marker, opts ...Option) (*LabReportHandler, error) {
	if engine == nil {
		return nil, apperrors.NewConfigurationError("lab report handler: OCR engine is required", nil)
	}
	if fetcher == nil {
		return nil, apperrors.NewConfigurationError("lab report handler: image fetcher is required", nil)
	}
	if len(markers) == 0 {
		markers = ocr.DefaultMarkers()
	}
	return &LabReportHandler{
		base:    newBase(requirements.SceneLabReport, nil, opts),
		engine:  engine,
		fetcher: fetcher,
		markers: markers,
	}, nil
}

func (h *LabReportHandler) Analyze(ctx context.Context, session models.Session) (models.AnalysisResult, error) {
	if v := h.ValidateInput(session); !v.Valid {
		return models.AnalysisResult{}, apperrors.NewValidationError(strings.Join(v.Errors, " "), nil).
			WithGuidance(v.Errors...)
	}

	var readings []ocr.Reading
	seen := make(map[string]bool)
	recognized := 0
	var lastErr error

	for _, img := range session.Images {
		data, err := h.fetcher.Fetch(ctx, img.URL)
		if err != nil {
			return models.AnalysisResult{}, fmt.Errorf("failed to load image %s: %w", img.ID, err)
		}
		text, err := h.engine.Recognize(ctx, data)
		if err != nil {
			if errors.Is(err, ocr.ErrUnavailable) || ctx.Err() != nil {
				return models.AnalysisResult{}, err
			}
			logger.Component("lab_report").WithError(err).WithField("image_id", img.ID).Warn("OCR failed for image")
			lastErr = err
			continue
		}
		recognized++

		// earlier pages win when a marker repeats
		for _, r := range ocr.ExtractReadings(text, h.markers) {
			if seen[r.Marker] {
				continue
			}
			seen[r.Marker] = true
			readings = append(readings, r)
		}
	}

	if recognized == 0 {
		return models.AnalysisResult{}, fmt.Errorf("no text could be read from the report: %w", lastErr)
	}

	result := h.newResult(session)
	features := make(map[string]float64, len(readings))
	measurements := make(map[string]float64, len(readings))
	observations := make([]string, 0, len(readings))
	var confSum float64
	for _, r := range readings {
		measurements[r.Marker] = r.Value
		features["confidence."+r.Marker] = r.Confidence
		observations = append(observations, fmt.Sprintf("Read %s: %g %s", r.Marker, r.Value, r.Unit))
		confSum += r.Confidence
	}
	result.ImageAnalysis = models.ImageAnalysis{
		Features:     features,
		Measurements: measurements,
		Observations: observations,
	}

	risk := models.RiskAssessment{Level: models.RiskLow}
	if len(readings) > 0 {
		result.Confidence = confSum / float64(len(readings))
	}
	if len(readings) == 0 {
		risk.Flags = append(risk.Flags, "no_markers_found")
	} else if result.Confidence < minReadingConfidence {
		risk.Flags = append(risk.Flags, "low_confidence")
	}
	for _, m := range h.markers {
		if !seen[m.Name] {
			risk.Factors = append(risk.Factors, "not found: "+m.Name)
		}
	}
	result.RiskAssessment = risk
	result.RequiresManualReview = len(risk.Flags) > 0

	if len(readings) == 0 {
		result.Recommendations = []string{"Retake the report photo flat and fully in frame, or enter the values by hand."}
	} else {
		result.Recommendations = []string{"Check the extracted values against the printed report."}
	}
	return result, nil
}
