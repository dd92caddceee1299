package models

// CreateSessionRequest starts a capture session for a scene
type CreateSessionRequest struct {
	SceneID string `json:"scene_id" binding:"required"`
}

// AddImageRequest submits a captured image reference to a session
type AddImageRequest struct {
	URL      string           `json:"url" binding:"required"`
	Metadata *CaptureMetadata `json:"metadata,omitempty"`
}

// AssessRequest runs the quality gate without a session
type AssessRequest struct {
	SceneID  string           `json:"scene_id" binding:"required"`
	URL      string           `json:"url" binding:"required"`
	Metadata *CaptureMetadata `json:"metadata,omitempty"`
}

// SetFieldRequest stores a required input field on a session
type SetFieldRequest struct {
	Value string `json:"value"`
}

// ErrorResponse is the failure body returned by the HTTP adapter.
// Guidance is always populated for rejections so the caller can instruct the user.
type ErrorResponse struct {
	Success  bool           `json:"success"`
	Error    string         `json:"error"`
	Type     string         `json:"type,omitempty"`
	Message  string         `json:"message,omitempty"`
	Guidance []string       `json:"guidance,omitempty"`
	Quality  *QualityResult `json:"quality,omitempty"`
}

// SessionResponse wraps a session snapshot
type SessionResponse struct {
	Success bool           `json:"success"`
	Session Session        `json:"session"`
	Quality *QualityResult `json:"quality,omitempty"`
}

// SessionListResponse wraps a list of session snapshots
type SessionListResponse struct {
	Success  bool      `json:"success"`
	Sessions []Session `json:"sessions"`
}

// AssessResponse wraps a standalone quality result
type AssessResponse struct {
	Success bool          `json:"success"`
	Quality QualityResult `json:"quality"`
}
