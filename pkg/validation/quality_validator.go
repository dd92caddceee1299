package validation

import (
	"fmt"
	"math"

	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// Weights defines the contribution of each signal to the quality score.
// The weights must sum to 1.0.
type Weights struct {
	Sharpness     float64
	Lighting      float64
	ColorAccuracy float64
	ROICoverage   float64
	Composition   float64
	Noise         float64
	Stability     float64
}

// DefaultWeights returns the fixed scoring weights
func DefaultWeights() Weights {
	return Weights{
		Sharpness:     0.25,
		Lighting:      0.20,
		ColorAccuracy: 0.15,
		ROICoverage:   0.15,
		Composition:   0.10,
		Noise:         0.10,
		Stability:     0.05,
	}
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.Sharpness + w.Lighting + w.ColorAccuracy + w.ROICoverage + w.Composition + w.Noise + w.Stability
}

// Validate checks that no weight is negative and that they sum to 1.0
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"sharpness":      w.Sharpness,
		"lighting":       w.Lighting,
		"color_accuracy": w.ColorAccuracy,
		"roi_coverage":   w.ROICoverage,
		"composition":    w.Composition,
		"noise":          w.Noise,
		"stability":      w.Stability,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must be >= 0 (got %f)", name, v)
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0 (got %f)", w.Sum())
	}
	return nil
}

// QualityThresholds defines the per-dimension defect rules
type QualityThresholds struct {
	// Sharpness thresholds
	BlurBelow       float64
	OutOfFocusBelow float64

	// Brightness thresholds
	UnderexposedBelow float64
	OverexposedAbove  float64
	DimBelow          float64
	HarshAbove        float64

	// Framing and color
	MinROICoverage   float64
	MinColorAccuracy float64

	// Steadiness
	MaxNoise     float64
	MinStability float64

	// IdealBrightness is where lighting quality peaks
	IdealBrightness float64
}

// DefaultQualityThresholds returns the default defect thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		BlurBelow:         0.6,
		OutOfFocusBelow:   0.75,
		UnderexposedBelow: 0.3,
		OverexposedAbove:  0.8,
		DimBelow:          0.4,
		HarshAbove:        0.7,
		MinROICoverage:    0.4,
		MinColorAccuracy:  0.5,
		MaxNoise:          0.3,
		MinStability:      0.5,
		IdealBrightness:   0.55,
	}
}

// QualityValidator scores quality signals and classifies defects
type QualityValidator struct {
	thresholds QualityThresholds
	weights    Weights
}

// NewQualityValidator creates a new quality validator with default thresholds and weights
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
		weights:    DefaultWeights(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds, weights Weights) (*QualityValidator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &QualityValidator{
		thresholds: thresholds,
		weights:    weights,
	}, nil
}

// Thresholds returns the defect thresholds in use
func (qv *QualityValidator) Thresholds() QualityThresholds {
	return qv.thresholds
}

// LightingQuality maps brightness to a lighting score that peaks at the ideal brightness
func (qv *QualityValidator) LightingQuality(brightness float64) float64 {
	return clamp01(1 - 2*math.Abs(clamp01(brightness)-qv.thresholds.IdealBrightness))
}

// Score computes the 0-100 weighted quality score.
// Noise is inverted before weighting.
func (qv *QualityValidator) Score(s models.QualitySignals) int {
	w := qv.weights
	total := w.Sharpness*clamp01(s.Sharpness) +
		w.Lighting*qv.LightingQuality(s.Brightness) +
		w.ColorAccuracy*clamp01(s.ColorAccuracy) +
		w.ROICoverage*clamp01(s.ROICoverage) +
		w.Composition*clamp01(s.Composition) +
		w.Noise*(1-clamp01(s.Noise)) +
		w.Stability*clamp01(s.Stability)
	return int(math.Round(100 * total))
}

// DetectDefects applies the independent per-dimension rules in a fixed order
func (qv *QualityValidator) DetectDefects(s models.QualitySignals, requiresScaleReference, hasScaleReference bool) []models.Defect {
	t := qv.thresholds
	var defects []models.Defect

	// 1. Sharpness
	if s.Sharpness < t.BlurBelow {
		defects = append(defects, models.Defect{
			Type:        models.DefectBlur,
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("Image is blurry (sharpness %.2f).", s.Sharpness),
		})
	} else if s.Sharpness < t.OutOfFocusBelow {
		defects = append(defects, models.Defect{
			Type:        models.DefectOutOfFocus,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("Subject is slightly out of focus (sharpness %.2f).", s.Sharpness),
		})
	}

	// 2. Exposure
	switch {
	case s.Brightness < t.UnderexposedBelow:
		defects = append(defects, models.Defect{
			Type:        models.DefectUnderexposure,
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("Image is too dark (brightness %.2f).", s.Brightness),
		})
	case s.Brightness > t.OverexposedAbove:
		defects = append(defects, models.Defect{
			Type:        models.DefectOverexposure,
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("Image is too bright (brightness %.2f).", s.Brightness),
		})
	case s.Brightness < t.DimBelow || s.Brightness > t.HarshAbove:
		defects = append(defects, models.Defect{
			Type:        models.DefectPoorLighting,
			Severity:    models.SeverityLow,
			Description: fmt.Sprintf("Lighting is uneven (brightness %.2f).", s.Brightness),
		})
	}

	// 3. Framing
	if s.ROICoverage < t.MinROICoverage {
		defects = append(defects, models.Defect{
			Type:        models.DefectInsufficientROI,
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("Subject fills too little of the frame (coverage %.2f).", s.ROICoverage),
		})
	}

	// 4. Color
	if s.ColorAccuracy < t.MinColorAccuracy {
		defects = append(defects, models.Defect{
			Type:        models.DefectColorDistortion,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("Colors look distorted (accuracy %.2f).", s.ColorAccuracy),
		})
	}

	// 5. Steadiness
	if s.Noise > t.MaxNoise {
		defects = append(defects, models.Defect{
			Type:        models.DefectMotionBlur,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("Image is noisy or shaken (noise %.2f).", s.Noise),
		})
	}
	if s.Stability < t.MinStability {
		defects = append(defects, models.Defect{
			Type:        models.DefectMotionBlur,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("Camera moved during capture (stability %.2f).", s.Stability),
		})
	}

	// 6. Scale reference
	if requiresScaleReference && !hasScaleReference {
		defects = append(defects, models.Defect{
			Type:        models.DefectNoScaleReference,
			Severity:    models.SeverityMedium,
			Description: "No scale reference is visible next to the subject.",
		})
	}

	return defects
}

// ResolutionPenalty returns the sharpness multiplier for an image of the given
// size against a scene's minimum. An unknown size or floor carries no penalty.
func ResolutionPenalty(actual, floor models.Resolution) float64 {
	if !actual.Known() || !floor.Known() {
		return 1.0
	}
	ratio := float64(actual.Pixels()) / float64(floor.Pixels())
	switch {
	case ratio >= 1.5:
		return 1.0
	case ratio >= 1.0:
		return 0.9
	case ratio >= 0.8:
		return 0.7
	case ratio >= 0.6:
		return 0.5
	default:
		return 0.3
	}
}

// ApplyResolutionPenalty folds the resolution penalty into the sharpness signal
func ApplyResolutionPenalty(s models.QualitySignals, actual, floor models.Resolution) models.QualitySignals {
	s.Sharpness = clamp01(s.Sharpness) * ResolutionPenalty(actual, floor)
	return s
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
