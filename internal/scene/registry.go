// Package scene maps scene ids to their configuration and analysis handler.
package scene

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/logger"
	"github.com/anime-shed/capture-inspector-go/internal/requirements"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// Handler is the analysis contract every scene implements
type Handler interface {
	Analyze(ctx context.Context, session models.Session) (models.AnalysisResult, error)
	ValidateInput(session models.Session) models.ValidationResult
	RequiredFields() []string
}

// Configuration describes a scene to callers
type Configuration struct {
	Name           string                   `json:"name"`
	Description    string                   `json:"description"`
	WorkflowSteps  []string                 `json:"workflow_steps"`
	RequiredFields []string                 `json:"required_fields,omitempty"`
	Capture        requirements.Requirement `json:"capture"`
}

func (c Configuration) clone() Configuration {
	out := c
	out.WorkflowSteps = append([]string(nil), c.WorkflowSteps...)
	out.RequiredFields = append([]string(nil), c.RequiredFields...)
	out.Capture.Avoid = append([]string(nil), c.Capture.Avoid...)
	out.Capture.Tips = append([]string(nil), c.Capture.Tips...)
	return out
}

// Registration is one entry as returned by List
type Registration struct {
	SceneID       string        `json:"scene_id"`
	Configuration Configuration `json:"configuration"`
	HasHandler    bool          `json:"has_handler"`
}

// Registry holds scene configurations and handlers. It is meant to be filled
// at startup and sealed before serving.
type Registry struct {
	mu       sync.RWMutex
	configs  map[string]Configuration
	handlers map[string]Handler
	sealed   bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		configs:  make(map[string]Configuration),
		handlers: make(map[string]Handler),
	}
}

// Register stores the configuration for a scene. A second registration for
// the same id replaces the first and is logged.
func (r *Registry) Register(sceneID string, cfg Configuration) error {
	sceneID = strings.TrimSpace(sceneID)
	if sceneID == "" {
		return apperrors.NewConfigurationError("scene id is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return apperrors.NewConfigurationError(fmt.Sprintf("scene registry is sealed; cannot register %q", sceneID), nil)
	}
	if _, exists := r.configs[sceneID]; exists {
		logger.Component("scene_registry").WithField("scene_id", sceneID).Warn("Scene configuration overwritten")
	}
	r.configs[sceneID] = cfg.clone()
	return nil
}

// RegisterHandler stores the handler for a scene. Nil handlers are rejected.
func (r *Registry) RegisterHandler(sceneID string, h Handler) error {
	sceneID = strings.TrimSpace(sceneID)
	if sceneID == "" {
		return apperrors.NewConfigurationError("scene id is required", nil)
	}
	if isNil(h) {
		return apperrors.NewConfigurationError(fmt.Sprintf("handler for scene %q is nil", sceneID), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return apperrors.NewConfigurationError(fmt.Sprintf("scene registry is sealed; cannot register handler for %q", sceneID), nil)
	}
	if _, exists := r.handlers[sceneID]; exists {
		logger.Component("scene_registry").WithField("scene_id", sceneID).Warn("Scene handler overwritten")
	}
	r.handlers[sceneID] = h
	return nil
}

// Get returns the configuration for a scene
func (r *Registry) Get(sceneID string) (Configuration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[sceneID]
	if !ok {
		return Configuration{}, unregistered(sceneID)
	}
	return cfg.clone(), nil
}

// Handler returns the handler for a scene
func (r *Registry) Handler(sceneID string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[sceneID]
	if !ok {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("no handler registered for scene %q", sceneID), nil)
	}
	return h, nil
}

// Seal makes the registry read-only
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry is read-only
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// List returns every configured scene ordered by id
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, 0, len(r.configs))
	for id, cfg := range r.configs {
		_, ok := r.handlers[id]
		out = append(out, Registration{SceneID: id, Configuration: cfg.clone(), HasHandler: ok})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SceneID < out[j].SceneID })
	return out
}

func unregistered(sceneID string) error {
	return apperrors.NewConfigurationError(fmt.Sprintf("scene %q is not registered", sceneID), nil).
		WithGuidance("Choose one of the available scenes.")
}

func isNil(h Handler) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}
