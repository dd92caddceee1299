package models

import (
	"strings"
	"time"
)

// SessionStatus is the lifecycle stage of a capture session
type SessionStatus string

const (
	StatusCapturing SessionStatus = "capturing"
	StatusQA        SessionStatus = "qa"
	StatusAnalyzing SessionStatus = "analyzing"
	StatusReviewing SessionStatus = "reviewing"
	StatusCompleted SessionStatus = "completed"
)

var allStatuses = []SessionStatus{
	StatusCapturing,
	StatusQA,
	StatusAnalyzing,
	StatusReviewing,
	StatusCompleted,
}

// AllStatuses returns the ordered list of session statuses
func AllStatuses() []SessionStatus {
	cp := make([]SessionStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known SessionStatus
func ParseStatus(value string) (SessionStatus, bool) {
	normalized := SessionStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// AcceptsImages reports whether images may be added in this status
func (s SessionStatus) AcceptsImages() bool {
	return s == StatusCapturing || s == StatusQA
}

// Analyzed reports whether the session already holds a result
func (s SessionStatus) Analyzed() bool {
	return s == StatusReviewing || s == StatusCompleted
}

// CapturedImage is one photograph admitted by the quality gate
type CapturedImage struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Timestamp time.Time       `json:"timestamp"`
	QAResult  QualityResult   `json:"qa_result"`
	Metadata  CaptureMetadata `json:"metadata"`
}

// Session is one in-flight unit of capture work
type Session struct {
	ID        string            `json:"id"`
	SceneID   string            `json:"scene_id"`
	Status    SessionStatus     `json:"status"`
	Images    []CapturedImage   `json:"images"`
	Fields    map[string]string `json:"fields,omitempty"`
	Result    *AnalysisResult   `json:"result,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy that shares no mutable state with s
func (s *Session) Clone() Session {
	out := *s
	out.Images = make([]CapturedImage, len(s.Images))
	for i, img := range s.Images {
		out.Images[i] = img.clone()
	}
	if s.Fields != nil {
		out.Fields = make(map[string]string, len(s.Fields))
		for k, v := range s.Fields {
			out.Fields[k] = v
		}
	}
	if s.Result != nil {
		r := s.Result.Clone()
		out.Result = &r
	}
	return out
}

// Field returns a trimmed input field value
func (s Session) Field(key string) string {
	return strings.TrimSpace(s.Fields[key])
}

func (img CapturedImage) clone() CapturedImage {
	out := img
	out.QAResult.Defects = append([]Defect(nil), img.QAResult.Defects...)
	out.QAResult.RetakeGuidance = cloneStrings(img.QAResult.RetakeGuidance)
	if img.Metadata.Resolution != nil {
		r := *img.Metadata.Resolution
		out.Metadata.Resolution = &r
	}
	if img.Metadata.HasScaleReference != nil {
		v := *img.Metadata.HasScaleReference
		out.Metadata.HasScaleReference = &v
	}
	return out
}
