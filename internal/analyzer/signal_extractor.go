package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"math"
	"sync"

	"github.com/anime-shed/capture-inspector-go/internal/storage"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

const (
	// sharpnessScale is the Laplacian variance at which sharpness reaches 1-1/e
	sharpnessScale = 250.0
	// noiseCeiling is the noise sigma, in gray levels, that maps to 1
	noiseCeiling = 20.0
	// colorCastCeiling is the channel spread that maps to zero color accuracy
	colorCastCeiling = 0.5
)

var (
	// ErrEmptyImage is returned when there are no bytes to decode
	ErrEmptyImage = errors.New("image data is empty")

	// ErrTooManyPixels is returned when the declared dimensions exceed the pixel limit
	ErrTooManyPixels = errors.New("image dimensions exceed pixel limit")
)

// signalExtractor measures decoded images and normalizes the measurements
type signalExtractor struct {
	metricsCalculator MetricsCalculator
	markerDetector    MarkerDetector
	maxPixels         int
	grayPool          sync.Pool
}

// NewSignalExtractor creates a new signal extractor with all components
func NewSignalExtractor() SignalExtractor {
	return NewSignalExtractorWithLimit(storage.MaxImagePixels)
}

// NewSignalExtractorWithLimit creates a signal extractor that refuses images
// larger than maxPixels before decoding them
func NewSignalExtractorWithLimit(maxPixels int) SignalExtractor {
	return &signalExtractor{
		metricsCalculator: NewMetricsCalculator(),
		markerDetector:    NewMarkerDetector(),
		maxPixels:         maxPixels,
		grayPool: sync.Pool{
			New: func() interface{} {
				return &image.Gray{}
			},
		},
	}
}

// Extract checks the declared dimensions, decodes the image and measures it
func (se *signalExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if len(data) == 0 {
		return Extraction{}, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	if se.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(se.maxPixels) {
		return Extraction{}, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooManyPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return se.Measure(ctx, img)
}

// Measure computes quality signals for an already decoded image. ctx is
// checked between passes over the pixels.
func (se *signalExtractor) Measure(ctx context.Context, img image.Image) (Extraction, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := Extraction{Resolution: models.Resolution{Width: width, Height: height}}
	if width == 0 || height == 0 {
		return out, nil
	}

	gray := se.grayPool.Get().(*image.Gray)
	defer se.grayPool.Put(gray)

	var (
		colors    colorStats
		region    subjectRegion
		gx, gy    float64
		laplacian float64
		noise     float64
	)
	passes := []func(){
		func() { se.toGray(gray, img) },
		func() { colors = se.metricsCalculator.CalculateColorStats(img) },
		func() { region = se.metricsCalculator.CalculateSubjectRegion(gray) },
		func() { gx, gy = se.metricsCalculator.CalculateGradientEnergy(gray) },
		func() { laplacian = se.metricsCalculator.CalculateLaplacianVariance(gray) },
		func() { noise = se.metricsCalculator.EstimateNoise(gray) },
		func() { out.ScaleReference = se.markerDetector.DetectMarker(gray) },
	}
	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return Extraction{}, err
		}
		pass()
	}

	out.Signals = models.QualitySignals{
		Sharpness:     1 - math.Exp(-laplacian/sharpnessScale),
		Brightness:    clamp01(se.metricsCalculator.CalculateBrightness(gray)),
		ColorAccuracy: colorAccuracy(colors),
		ROICoverage:   clamp01(region.coverage),
		Composition:   composition(region, width, height),
		Noise:         clamp01(noise / noiseCeiling),
		Stability:     stability(gx, gy),
	}
	return out, nil
}

// toGray converts img into the pooled gray buffer, reusing its pixels when large enough
func (se *signalExtractor) toGray(gray *image.Gray, img image.Image) {
	bounds := img.Bounds()
	size := bounds.Dx() * bounds.Dy()
	if cap(gray.Pix) < size {
		gray.Pix = make([]uint8, size)
	}
	gray.Pix = gray.Pix[:size]
	gray.Stride = bounds.Dx()
	gray.Rect = bounds
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
}

// colorAccuracy penalizes a cast toward any single channel
func colorAccuracy(c colorStats) float64 {
	hi := math.Max(c.avgR, math.Max(c.avgG, c.avgB))
	lo := math.Min(c.avgR, math.Min(c.avgG, c.avgB))
	return 1 - clamp01((hi-lo)/colorCastCeiling)
}

// composition scores how close the subject's centroid sits to the frame center
func composition(region subjectRegion, width, height int) float64 {
	if region.pixels == 0 {
		return 0.5
	}
	cx, cy := float64(width-1)/2, float64(height-1)/2
	maxDist := math.Hypot(float64(width)/2, float64(height)/2)
	dist := math.Hypot(region.centroidX-cx, region.centroidY-cy)
	return 1 - clamp01(dist/maxDist)
}

// stability compares gradient energy across axes; motion smears one axis
func stability(gx, gy float64) float64 {
	hi := math.Max(gx, gy)
	if hi < 1e-9 {
		return 1
	}
	return clamp01(2 * math.Min(gx, gy) / hi)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
