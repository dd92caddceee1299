package quality

import (
	"errors"
	"fmt"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// RejectionError reports an image refused by the gate together with the
// result that refused it. It unwraps to a quality_rejected AppError.
type RejectionError struct {
	Result models.QualityResult
	err    *apperrors.AppError
}

// NewRejection wraps a failing result
func NewRejection(result models.QualityResult) *RejectionError {
	msg := fmt.Sprintf("Image rejected by quality gate (score %d, minimum %d)", result.QualityScore, result.MinScore)
	if result.Blocking {
		msg = fmt.Sprintf("Image blocked by quality gate (score %d)", result.QualityScore)
	}
	return &RejectionError{
		Result: result,
		err:    apperrors.NewQualityRejectedError(msg, result.RetakeGuidance),
	}
}

func (e *RejectionError) Error() string {
	return e.err.Error()
}

func (e *RejectionError) Unwrap() error {
	return e.err
}

// RejectionOf extracts a RejectionError from err's chain
func RejectionOf(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
