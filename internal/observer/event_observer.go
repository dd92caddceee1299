package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionEvent represents a capture session lifecycle event
type SessionEvent struct {
	EventType    EventType              `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	SessionID    string                 `json:"session_id"`
	SceneID      string                 `json:"scene_id"`
	ImageID      string                 `json:"image_id,omitempty"`
	Status       string                 `json:"status,omitempty"`
	Duration     time.Duration          `json:"duration,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of session event
type EventType string

const (
	SessionCreated    EventType = "session_created"
	ImageAccepted     EventType = "image_accepted"
	ImageRejected     EventType = "image_rejected"
	AnalysisStarted   EventType = "analysis_started"
	AnalysisCompleted EventType = "analysis_completed"
	AnalysisFailed    EventType = "analysis_failed"
	SessionCompleted  EventType = "session_completed"
	SessionDisposed   EventType = "session_disposed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event SessionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event SessionEvent)
}

// LoggingObserver logs session events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles session events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event SessionEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"session_id": event.SessionID,
		"scene_id":   event.SceneID,
		"success":    event.Success,
	}
	if event.ImageID != "" {
		fields["image_id"] = event.ImageID
	}
	if event.Status != "" {
		fields["status"] = event.Status
	}
	if event.Duration > 0 {
		fields["duration"] = event.Duration
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case SessionCreated:
		entry.Info("Capture session created")
	case ImageAccepted:
		entry.Info("Image accepted by quality gate")
	case ImageRejected:
		entry.Warn("Image rejected by quality gate")
	case AnalysisStarted:
		entry.Debug("Scene analysis started")
	case AnalysisCompleted:
		entry.Info("Scene analysis completed")
	case AnalysisFailed:
		entry.Error("Scene analysis failed")
	case SessionCompleted:
		entry.Info("Capture session completed")
	case SessionDisposed:
		entry.Debug("Capture session disposed")
	default:
		entry.Info("Session event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver counts session events
type MetricsObserver struct {
	mu                 sync.RWMutex
	sessionsCreated    int64
	sessionsCompleted  int64
	imagesAccepted     int64
	imagesRejected     int64
	totalAnalyses      int64
	successfulAnalyses int64
	failedAnalyses     int64
	totalAnalysisTime  time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles session events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event SessionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case SessionCreated:
		o.sessionsCreated++
	case SessionCompleted:
		o.sessionsCompleted++
	case ImageAccepted:
		o.imagesAccepted++
	case ImageRejected:
		o.imagesRejected++
	case AnalysisStarted:
		o.totalAnalyses++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalAnalysisTime += event.Duration
	case AnalysisFailed:
		o.failedAnalyses++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgAnalysisTime := time.Duration(0)
	if o.successfulAnalyses > 0 {
		avgAnalysisTime = o.totalAnalysisTime / time.Duration(o.successfulAnalyses)
	}

	return map[string]interface{}{
		"sessions_created":    o.sessionsCreated,
		"sessions_completed":  o.sessionsCompleted,
		"images_accepted":     o.imagesAccepted,
		"images_rejected":     o.imagesRejected,
		"total_analyses":      o.totalAnalyses,
		"successful_analyses": o.successfulAnalyses,
		"failed_analyses":     o.failedAnalyses,
		"avg_analysis_time":   avgAnalysisTime.String(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers an event to every observer in subscription order.
// Observers run on the caller's goroutine and must not block.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event SessionEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event SessionEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
