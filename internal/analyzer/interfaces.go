package analyzer

import (
	"context"
	"image"

	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// Extraction is the outcome of measuring one image
type Extraction struct {
	Signals    models.QualitySignals
	Resolution models.Resolution
	// ScaleReference reports whether a calibration marker was found
	ScaleReference bool
}

// SignalExtractor turns encoded image bytes into normalized quality signals
type SignalExtractor interface {
	Extract(ctx context.Context, data []byte) (Extraction, error)
}

// MetricsCalculator handles pixel-level measurements
type MetricsCalculator interface {
	CalculateColorStats(img image.Image) colorStats
	CalculateLaplacianVariance(gray *image.Gray) float64
	CalculateBrightness(gray *image.Gray) float64
	EstimateNoise(gray *image.Gray) float64
	CalculateSubjectRegion(gray *image.Gray) subjectRegion
	CalculateGradientEnergy(gray *image.Gray) (gx, gy float64)
}

// MarkerDetector finds calibration markers such as a printed measuring card
type MarkerDetector interface {
	DetectMarker(gray *image.Gray) bool
}

// colorStats holds per-channel means in [0,1]
type colorStats struct {
	avgLuminance     float64
	avgR, avgG, avgB float64
}

// subjectRegion describes the pixels that differ from the background
type subjectRegion struct {
	coverage             float64
	centroidX, centroidY float64
	pixels               int
}
