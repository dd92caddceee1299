package repository

import "errors"

var (
	// ErrAnalysisNotFound indicates the analysis result was not found
	ErrAnalysisNotFound = errors.New("analysis result not found")

	// ErrRepositoryUnavailable indicates the repository is closed or unreachable
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrInvalidResult indicates a result without the fields history is keyed on
	ErrInvalidResult = errors.New("analysis result is missing id or scene")
)
