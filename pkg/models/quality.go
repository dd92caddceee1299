package models

// DefectType identifies a class of image quality problem
type DefectType string

const (
	DefectBlur             DefectType = "blur"
	DefectPoorLighting     DefectType = "poor_lighting"
	DefectOverexposure     DefectType = "overexposure"
	DefectUnderexposure    DefectType = "underexposure"
	DefectOcclusion        DefectType = "occlusion"
	DefectInsufficientROI  DefectType = "insufficient_roi"
	DefectNoScaleReference DefectType = "no_scale_reference"
	DefectColorDistortion  DefectType = "color_distortion"
	DefectMotionBlur       DefectType = "motion_blur"
	DefectOutOfFocus       DefectType = "out_of_focus"
)

// Severity grades how much a defect harms the capture
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Defect is a single detected quality problem
type Defect struct {
	Type        DefectType `json:"type"`
	Severity    Severity   `json:"severity"`
	Description string     `json:"description"`
}

// Resolution is an image size in pixels
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Pixels returns the total pixel count
func (r Resolution) Pixels() int {
	return r.Width * r.Height
}

// Known reports whether both dimensions are set
func (r Resolution) Known() bool {
	return r.Width > 0 && r.Height > 0
}

// CaptureMetadata is the capture-time context supplied with an image
type CaptureMetadata struct {
	Device            string      `json:"device,omitempty"`
	Resolution        *Resolution `json:"resolution,omitempty"`
	HasScaleReference *bool       `json:"has_scale_reference,omitempty"`
}

// QualitySignals are the per-dimension measurements a score is computed from.
// Every field is normalized to [0,1].
type QualitySignals struct {
	Sharpness     float64 `json:"sharpness"`
	Brightness    float64 `json:"brightness"`
	ColorAccuracy float64 `json:"color_accuracy"`
	ROICoverage   float64 `json:"roi_coverage"`
	Composition   float64 `json:"composition"`
	Noise         float64 `json:"noise"`
	Stability     float64 `json:"stability"`
}

// QualityResult is the outcome of one quality assessment
type QualityResult struct {
	QualityScore   int            `json:"quality_score"`
	Defects        []Defect       `json:"defects"`
	Blocking       bool           `json:"blocking"`
	Passed         bool           `json:"passed"`
	RetakeGuidance []string       `json:"retake_guidance"`
	MinScore       int            `json:"min_score"`
	Signals        QualitySignals `json:"signals"`
	Resolution     Resolution     `json:"resolution"`
}

// HighSeverityCount returns the number of high severity defects
func (r QualityResult) HighSeverityCount() int {
	n := 0
	for _, d := range r.Defects {
		if d.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

// HasDefect reports whether a defect of the given type was detected
func (r QualityResult) HasDefect(t DefectType) bool {
	for _, d := range r.Defects {
		if d.Type == t {
			return true
		}
	}
	return false
}
