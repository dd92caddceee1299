// Package service drives capture sessions through their lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/logger"
	"github.com/anime-shed/capture-inspector-go/internal/observer"
	"github.com/anime-shed/capture-inspector-go/internal/quality"
	"github.com/anime-shed/capture-inspector-go/internal/repository"
	"github.com/anime-shed/capture-inspector-go/internal/scene"
	"github.com/anime-shed/capture-inspector-go/internal/session"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// DefaultAnalysisTimeout bounds a scene handler run when no timeout is configured
const DefaultAnalysisTimeout = 30 * time.Second

const (
	retryAnalysisGuidance = "Try the analysis again, or retake the photos."
	analyzeFirstGuidance  = "Run the analysis before completing the session."
)

// CaptureService defines the session lifecycle operations
type CaptureService interface {
	CreateSession(ctx context.Context, sceneID string) (models.Session, error)
	AddImage(ctx context.Context, sessionID, ref string, meta *models.CaptureMetadata) (models.Session, models.QualityResult, error)
	SetField(ctx context.Context, sessionID, key, value string) (models.Session, error)
	Analyze(ctx context.Context, sessionID string) (models.Session, error)
	CompleteSession(ctx context.Context, sessionID string) (models.Session, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) []models.Session
	Dispose(ctx context.Context, sessionID string) error

	// Assess runs the quality gate without a session
	Assess(ctx context.Context, ref, sceneID string, meta *models.CaptureMetadata) (models.QualityResult, error)
	Scenes() []scene.Registration
	Scene(sceneID string) (scene.Configuration, error)
}

// SessionFilter narrows ListSessions. Zero fields match everything.
type SessionFilter struct {
	SceneID string
	Status  models.SessionStatus
}

// ParseSessionFilter builds a filter from raw query values
func ParseSessionFilter(sceneID, status string) (SessionFilter, error) {
	filter := SessionFilter{SceneID: strings.TrimSpace(sceneID)}
	if strings.TrimSpace(status) == "" {
		return filter, nil
	}
	parsed, ok := models.ParseStatus(status)
	if !ok {
		names := make([]string, 0, len(models.AllStatuses()))
		for _, st := range models.AllStatuses() {
			names = append(names, string(st))
		}
		return SessionFilter{}, apperrors.NewValidationError(fmt.Sprintf("Unknown session status %q", status), nil).
			WithGuidance("Use one of: " + strings.Join(names, ", ") + ".")
	}
	filter.Status = parsed
	return filter, nil
}

// SceneSource resolves scene configuration and handlers
type SceneSource interface {
	Get(sceneID string) (scene.Configuration, error)
	Handler(sceneID string) (scene.Handler, error)
	List() []scene.Registration
}

// Options configures a capture service. Zero values pick defaults.
type Options struct {
	AnalysisTimeout time.Duration
	// History receives finished results; nil disables persistence
	History repository.HistoryRepository
	Events  observer.Subject
	Clock   func() time.Time
}

type captureService struct {
	store   *session.Store
	scenes  SceneSource
	gate    quality.Assessor
	history repository.HistoryRepository
	events  observer.Subject
	timeout time.Duration
	now     func() time.Time
}

// NewCaptureService creates the session state machine
func NewCaptureService(store *session.Store, scenes SceneSource, gate quality.Assessor, opts Options) CaptureService {
	s := &captureService{
		store:   store,
		scenes:  scenes,
		gate:    gate,
		history: opts.History,
		events:  opts.Events,
		timeout: opts.AnalysisTimeout,
		now:     opts.Clock,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultAnalysisTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *captureService) CreateSession(ctx context.Context, sceneID string) (models.Session, error) {
	sceneID = strings.TrimSpace(sceneID)
	if _, err := s.scenes.Get(sceneID); err != nil {
		return models.Session{}, err
	}
	if _, err := s.scenes.Handler(sceneID); err != nil {
		return models.Session{}, err
	}

	now := s.now().UTC()
	sess := models.Session{
		ID:        uuid.NewString(),
		SceneID:   sceneID,
		Status:    models.StatusCapturing,
		Images:    []models.CapturedImage{},
		Fields:    map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(sess); err != nil {
		return models.Session{}, err
	}

	s.emit(ctx, observer.SessionEvent{
		EventType: observer.SessionCreated,
		SessionID: sess.ID,
		SceneID:   sceneID,
		Status:    string(sess.Status),
		Success:   true,
	})
	return sess.Clone(), nil
}

func (s *captureService) AddImage(ctx context.Context, sessionID, ref string, meta *models.CaptureMetadata) (models.Session, models.QualityResult, error) {
	sess, err := s.store.Acquire(sessionID)
	if err != nil {
		return models.Session{}, models.QualityResult{}, err
	}
	defer s.store.Release(sessionID)

	if !sess.Status.AcceptsImages() {
		return sess, models.QualityResult{}, apperrors.NewConflictError(
			fmt.Sprintf("images cannot be added to a session in status %s", sess.Status), nil).
			WithGuidance("Start a new capture session to take more photos.")
	}

	prev := sess.Status
	sess.Status = models.StatusQA
	if err := s.store.Save(sess); err != nil {
		return models.Session{}, models.QualityResult{}, err
	}

	result, err := s.gate.Assess(ctx, ref, sess.SceneID, meta)
	if err != nil {
		sess.Status = prev
		s.save(sess)
		return sess, models.QualityResult{}, err
	}

	if !result.Passed {
		sess.Status = prev
		s.save(sess)
		rejection := quality.NewRejection(result)
		s.emit(ctx, observer.SessionEvent{
			EventType:    observer.ImageRejected,
			SessionID:    sess.ID,
			SceneID:      sess.SceneID,
			Status:       string(sess.Status),
			ErrorMessage: rejection.Error(),
			Metadata: map[string]interface{}{
				"quality_score": result.QualityScore,
				"blocking":      result.Blocking,
				"defects":       len(result.Defects),
			},
		})
		return sess, result, rejection
	}

	now := s.now().UTC()
	img := models.CapturedImage{
		ID:        uuid.NewString(),
		URL:       ref,
		Timestamp: now,
		QAResult:  result,
	}
	if meta != nil {
		img.Metadata = *meta
	}
	sess.Images = append(sess.Images, img)
	sess.Status = models.StatusQA
	sess.UpdatedAt = now
	if err := s.store.Save(sess); err != nil {
		return models.Session{}, result, err
	}

	s.emit(ctx, observer.SessionEvent{
		EventType: observer.ImageAccepted,
		SessionID: sess.ID,
		SceneID:   sess.SceneID,
		ImageID:   img.ID,
		Status:    string(sess.Status),
		Success:   true,
		Metadata:  map[string]interface{}{"quality_score": result.QualityScore},
	})
	return sess.Clone(), result, nil
}

func (s *captureService) SetField(ctx context.Context, sessionID, key, value string) (models.Session, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return models.Session{}, apperrors.NewValidationError("field name is required", nil).
			WithGuidance("Name the field you want to set.")
	}

	sess, err := s.store.Acquire(sessionID)
	if err != nil {
		return models.Session{}, err
	}
	defer s.store.Release(sessionID)

	if !sess.Status.AcceptsImages() {
		return sess, apperrors.NewConflictError(
			fmt.Sprintf("fields cannot be changed on a session in status %s", sess.Status), nil).
			WithGuidance("Start a new capture session to change the details.")
	}

	if sess.Fields == nil {
		sess.Fields = map[string]string{}
	}
	if v := strings.TrimSpace(value); v == "" {
		delete(sess.Fields, key)
	} else {
		sess.Fields[key] = v
	}
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(sess); err != nil {
		return models.Session{}, err
	}
	return sess.Clone(), nil
}

func (s *captureService) Analyze(ctx context.Context, sessionID string) (models.Session, error) {
	sess, err := s.store.Acquire(sessionID)
	if err != nil {
		return models.Session{}, err
	}
	defer s.store.Release(sessionID)

	if sess.Status.Analyzed() || sess.Result != nil {
		return sess, apperrors.NewConflictError("session has already been analyzed", nil).
			WithGuidance("Start a new capture session to analyze new photos.")
	}

	handler, err := s.scenes.Handler(sess.SceneID)
	if err != nil {
		return sess, err
	}

	if len(sess.Images) == 0 {
		return sess, apperrors.NewValidationError("no accepted images to analyze", nil).
			WithGuidance("Add at least one photo that passes the quality check.")
	}
	if v := handler.ValidateInput(sess.Clone()); !v.Valid {
		return sess, apperrors.NewValidationError("session input is incomplete", nil).
			WithDetails(strings.Join(v.Errors, " ")).
			WithGuidance(v.Errors...)
	}

	sess.Status = models.StatusAnalyzing
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(sess); err != nil {
		return models.Session{}, err
	}
	s.emit(ctx, observer.SessionEvent{
		EventType: observer.AnalysisStarted,
		SessionID: sess.ID,
		SceneID:   sess.SceneID,
		Status:    string(sess.Status),
	})

	started := time.Now()
	result, err := s.runHandler(ctx, handler, sess.Clone())
	elapsed := time.Since(started)

	if err != nil {
		err = analysisError(err)
		sess.Status = models.StatusCapturing
		sess.LastError = err.Error()
		sess.UpdatedAt = s.now().UTC()
		s.save(sess)
		s.emit(ctx, observer.SessionEvent{
			EventType:    observer.AnalysisFailed,
			SessionID:    sess.ID,
			SceneID:      sess.SceneID,
			Status:       string(sess.Status),
			Duration:     elapsed,
			ErrorMessage: err.Error(),
		})
		return sess, err
	}

	if result.SessionID == "" {
		result.SessionID = sess.ID
	}
	if result.SceneID == "" {
		result.SceneID = sess.SceneID
	}
	stored := result.Clone()
	sess.Result = &stored
	sess.LastError = ""
	if result.RequiresManualReview {
		sess.Status = models.StatusReviewing
	} else {
		sess.Status = models.StatusCompleted
	}
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(sess); err != nil {
		return models.Session{}, err
	}

	s.emit(ctx, observer.SessionEvent{
		EventType: observer.AnalysisCompleted,
		SessionID: sess.ID,
		SceneID:   sess.SceneID,
		Status:    string(sess.Status),
		Duration:  elapsed,
		Success:   true,
		Metadata: map[string]interface{}{
			"risk_level":    result.RiskAssessment.Level,
			"manual_review": result.RequiresManualReview,
		},
	})
	s.record(ctx, result)
	return sess.Clone(), nil
}

func (s *captureService) CompleteSession(ctx context.Context, sessionID string) (models.Session, error) {
	sess, err := s.store.Acquire(sessionID)
	if err != nil {
		return models.Session{}, err
	}
	defer s.store.Release(sessionID)

	switch sess.Status {
	case models.StatusCompleted:
		return sess, nil
	case models.StatusReviewing:
	default:
		return sess, apperrors.NewConflictError(
			fmt.Sprintf("session in status %s cannot be completed", sess.Status), nil).
			WithGuidance(analyzeFirstGuidance)
	}

	sess.Status = models.StatusCompleted
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(sess); err != nil {
		return models.Session{}, err
	}
	s.emit(ctx, observer.SessionEvent{
		EventType: observer.SessionCompleted,
		SessionID: sess.ID,
		SceneID:   sess.SceneID,
		Status:    string(sess.Status),
		Success:   true,
	})
	return sess.Clone(), nil
}

func (s *captureService) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	return s.store.Get(sessionID)
}

// ListSessions returns copies of the matching sessions, oldest first
func (s *captureService) ListSessions(ctx context.Context, filter SessionFilter) []models.Session {
	all := s.store.List()
	out := make([]models.Session, 0, len(all))
	for _, sess := range all {
		if filter.SceneID != "" && sess.SceneID != filter.SceneID {
			continue
		}
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		out = append(out, sess)
	}
	return out
}

func (s *captureService) Dispose(ctx context.Context, sessionID string) error {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return err
	}
	if err := s.store.Dispose(sessionID); err != nil {
		return err
	}
	s.emit(ctx, observer.SessionEvent{
		EventType: observer.SessionDisposed,
		SessionID: sessionID,
		SceneID:   sess.SceneID,
		Status:    string(sess.Status),
		Success:   true,
	})
	return nil
}

func (s *captureService) Assess(ctx context.Context, ref, sceneID string, meta *models.CaptureMetadata) (models.QualityResult, error) {
	return s.gate.Assess(ctx, ref, strings.TrimSpace(sceneID), meta)
}

func (s *captureService) Scenes() []scene.Registration {
	return s.scenes.List()
}

func (s *captureService) Scene(sceneID string) (scene.Configuration, error) {
	return s.scenes.Get(sceneID)
}

// runHandler runs the handler under the analysis timeout. A handler that
// ignores its context is abandoned when the timeout fires.
func (s *captureService) runHandler(ctx context.Context, h scene.Handler, sess models.Session) (models.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		result models.AnalysisResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Component("capture_service").WithFields(map[string]interface{}{
					"session_id": sess.ID,
					"scene_id":   sess.SceneID,
					"panic":      r,
				}).Error("Scene handler panicked")
				done <- outcome{err: apperrors.NewInternalError(fmt.Sprintf("scene handler panicked: %v", r), nil)}
			}
		}()
		result, err := h.Analyze(ctx, sess)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return models.AnalysisResult{}, ctx.Err()
	}
}

// analysisError gives every handler failure a kind and guidance
func analysisError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("scene analysis timed out", err).
			WithGuidance("Try the analysis again.")
	case errors.Is(err, context.Canceled):
		return apperrors.NewProcessingError("scene analysis was cancelled", err).
			WithGuidance("Try the analysis again.")
	}
	if appErr, ok := apperrors.As(err); ok {
		if len(appErr.Guidance) == 0 {
			appErr.WithGuidance(retryAnalysisGuidance)
		}
		return err
	}
	return apperrors.NewProcessingError("scene analysis failed", err).
		WithGuidance(retryAnalysisGuidance)
}

// save writes the session back on a path that is already returning an error
func (s *captureService) save(sess models.Session) {
	if err := s.store.Save(sess); err != nil {
		logger.Component("capture_service").WithError(err).WithField("session_id", sess.ID).
			Warn("Failed to restore session state")
	}
}

// record hands a finished result to history. Failures never change the session.
func (s *captureService) record(ctx context.Context, result models.AnalysisResult) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, result); err != nil {
		logger.Component("capture_service").WithError(err).WithFields(map[string]interface{}{
			"session_id": result.SessionID,
			"result_id":  result.ID,
		}).Warn("Failed to record analysis history")
	}
}

func (s *captureService) emit(ctx context.Context, event observer.SessionEvent) {
	if s.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	s.events.NotifyObservers(ctx, event)
}
