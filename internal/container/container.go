package container

import (
	"fmt"
	"net/http"

	"github.com/anime-shed/capture-inspector-go/internal/config"
	"github.com/anime-shed/capture-inspector-go/internal/factory"
	"github.com/anime-shed/capture-inspector-go/internal/inference"
	"github.com/anime-shed/capture-inspector-go/internal/logger"
	"github.com/anime-shed/capture-inspector-go/internal/observer"
	"github.com/anime-shed/capture-inspector-go/internal/ocr"
	"github.com/anime-shed/capture-inspector-go/internal/quality"
	"github.com/anime-shed/capture-inspector-go/internal/repository"
	"github.com/anime-shed/capture-inspector-go/internal/requirements"
	"github.com/anime-shed/capture-inspector-go/internal/scene"
	"github.com/anime-shed/capture-inspector-go/internal/scene/handlers"
	"github.com/anime-shed/capture-inspector-go/internal/service"
	"github.com/anime-shed/capture-inspector-go/internal/session"
	"github.com/anime-shed/capture-inspector-go/internal/storage"
	"github.com/anime-shed/capture-inspector-go/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	requirements *requirements.Registry
	scenes       *scene.Registry
	fetcher      *factory.StorageResolver
	uploader     storage.ImageUploader
	ocrEngine    ocr.Engine
	history      repository.HistoryRepository
	metrics      *observer.MetricsObserver
	service      service.CaptureService
	handler      http.Handler
}

// NewContainer builds the dependency graph for cfg
func NewContainer(cfg *config.Config) (*Container, error) {
	reqs := requirements.NewBuiltinRegistry()
	if cfg.ScenesFile != "" {
		if err := reqs.LoadOverrides(cfg.ScenesFile); err != nil {
			return nil, fmt.Errorf("failed to load scene overrides: %w", err)
		}
	}

	components := factory.NewComponentFactory(factory.StorageOptions{
		MaxImageBytes:  storage.DefaultMaxImageBytes,
		AzureAccount:   cfg.AzureAccount,
		AzureKey:       cfg.AzureKey,
		AzureContainer: cfg.AzureContainer,
		HTTPOptions:    []storage.HTTPOption{storage.WithTimeout(cfg.ImageFetchTimeout)},
	})
	resolver, err := components.CreateResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	c := &Container{
		config:       cfg,
		requirements: reqs,
		fetcher:      resolver,
	}
	if cfg.AzureEnabled() {
		blob, err := components.CreateBlobStore()
		if err != nil {
			return nil, fmt.Errorf("failed to create blob store: %w", err)
		}
		c.uploader = blob
	}

	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}

	c.ocrEngine, err = ocr.NewEngine(cfg.OCRLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	c.scenes = scene.NewRegistry()
	if err := handlers.RegisterBuiltin(c.scenes, reqs, handlers.Dependencies{
		Model:   model,
		Fetcher: resolver,
		OCR:     c.ocrEngine,
	}); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to register scenes: %w", err)
	}
	c.scenes.Seal()

	if cfg.HistoryDBPath != "" {
		history, err := repository.OpenSQLiteHistory(cfg.HistoryDBPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		c.history = history
	}

	c.metrics = observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(c.metrics)

	gate := quality.NewGate(resolver, components.CreateExtractor(), reqs, cfg.Quality)
	c.service = service.NewCaptureService(session.NewStore(), c.scenes, gate, service.Options{
		AnalysisTimeout: cfg.AnalysisTimeout,
		History:         c.history,
		Events:          events,
	})

	c.handler = transport.NewHandler(transport.Dependencies{
		Service: c.service,
		History: c.history,
		Metrics: c.metrics,
		Config:  cfg,
	})

	logger.WithFields(map[string]interface{}{
		"scenes":  len(c.scenes.List()),
		"model":   model.Name(),
		"azure":   cfg.AzureEnabled(),
		"history": cfg.HistoryDBPath,
	}).Info("Container initialized")

	return c, nil
}

func newModel(cfg *config.Config) (inference.Model, error) {
	switch cfg.ModelProvider {
	case "", "signal":
		return inference.NewSignalModel(), nil
	case "gemini":
		m, err := inference.NewGeminiModel(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini model: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the capture session service
func (c *Container) Service() service.CaptureService {
	return c.service
}

// History returns the history repository, or nil when disabled
func (c *Container) History() repository.HistoryRepository {
	return c.history
}

// Metrics returns the lifecycle counters
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Uploader returns the capture uploader, or nil without Azure credentials
func (c *Container) Uploader() storage.ImageUploader {
	return c.uploader
}

// Close releases the history database and the OCR engine
func (c *Container) Close() error {
	var firstErr error
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			firstErr = err
		}
	}
	if c.ocrEngine != nil {
		if err := c.ocrEngine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
