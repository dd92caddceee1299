package models

import "time"

// RiskLevel grades the assessed risk of an analysis
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskUrgent   RiskLevel = "urgent"
)

// AnalysisResult is the scene-agnostic envelope produced by a scene handler.
// It is immutable once stored on a session.
type AnalysisResult struct {
	ID                   string         `json:"id"`
	SceneID              string         `json:"scene_id"`
	SessionID            string         `json:"session_id,omitempty"`
	Timestamp            time.Time      `json:"timestamp"`
	ImageAnalysis        ImageAnalysis  `json:"image_analysis"`
	RiskAssessment       RiskAssessment `json:"risk_assessment"`
	Recommendations      []string       `json:"recommendations"`
	RequiresManualReview bool           `json:"requires_manual_review"`
	Confidence           float64        `json:"confidence"`
}

// ImageAnalysis holds what was read from the captured images
type ImageAnalysis struct {
	Features     map[string]float64 `json:"features,omitempty"`
	Measurements map[string]float64 `json:"measurements,omitempty"`
	Observations []string           `json:"observations,omitempty"`
}

// RiskAssessment summarizes the risk implied by the analysis
type RiskAssessment struct {
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors,omitempty"`
	Flags   []string  `json:"flags,omitempty"`
}

// Clone returns a deep copy of the result
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	out.ImageAnalysis.Features = cloneFloatMap(r.ImageAnalysis.Features)
	out.ImageAnalysis.Measurements = cloneFloatMap(r.ImageAnalysis.Measurements)
	out.ImageAnalysis.Observations = cloneStrings(r.ImageAnalysis.Observations)
	out.RiskAssessment.Factors = cloneStrings(r.RiskAssessment.Factors)
	out.RiskAssessment.Flags = cloneStrings(r.RiskAssessment.Flags)
	out.Recommendations = cloneStrings(r.Recommendations)
	return out
}

// ValidationResult reports whether a session carries enough input for analysis
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func cloneFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
