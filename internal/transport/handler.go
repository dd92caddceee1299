package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/capture-inspector-go/internal/config"
	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/logger"
	"github.com/anime-shed/capture-inspector-go/internal/quality"
	"github.com/anime-shed/capture-inspector-go/internal/repository"
	"github.com/anime-shed/capture-inspector-go/internal/service"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// Version is reported by the health check
var Version = "1.0.0"

// MetricsSource exposes lifecycle counters
type MetricsSource interface {
	GetMetrics() map[string]interface{}
}

// Dependencies are what the HTTP adapter calls into. History and Metrics may be nil.
type Dependencies struct {
	Service service.CaptureService
	History repository.HistoryRepository
	Metrics MetricsSource
	Config  *config.Config
}

type handlers struct {
	svc     service.CaptureService
	history repository.HistoryRepository
	metrics MetricsSource
	cfg     *config.Config
}

func NewHandler(deps Dependencies) http.Handler {
	r := gin.New()
	h := &handlers{svc: deps.Service, history: deps.History, metrics: deps.Metrics, cfg: deps.Config}

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(deps.Config.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/scenes", h.listScenes)
	r.GET("/scenes/:id", h.getScene)
	r.POST("/assess", h.assess)

	sessions := r.Group("/sessions")
	sessions.POST("", h.createSession)
	sessions.GET("", h.listSessions)
	sessions.GET("/:id", h.getSession)
	sessions.DELETE("/:id", h.disposeSession)
	sessions.POST("/:id/images", h.addImage)
	sessions.PUT("/:id/fields/:key", h.setField)
	sessions.POST("/:id/analyze", h.analyze)
	sessions.POST("/:id/complete", h.complete)

	if h.history != nil {
		r.GET("/history", h.listHistory)
		r.GET("/history/export", h.exportHistory)
		r.POST("/history/import", h.importHistory)
	}
	if h.metrics != nil {
		r.GET("/metrics", h.getMetrics)
	}

	return r
}

func (h *handlers) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

func (h *handlers) listScenes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "scenes": h.svc.Scenes()})
}

func (h *handlers) getScene(c *gin.Context) {
	cfg, err := h.svc.Scene(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "scene_id": c.Param("id"), "scene": cfg})
}

func (h *handlers) assess(c *gin.Context) {
	var req models.AssessRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.svc.Assess(ctx, req.URL, req.SceneID, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AssessResponse{Success: true, Quality: result})
}

func (h *handlers) createSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	sess, err := h.svc.CreateSession(ctx, req.SceneID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.SessionResponse{Success: true, Session: sess})
}

func (h *handlers) getSession(c *gin.Context) {
	sess, err := h.svc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{Success: true, Session: sess})
}

func (h *handlers) listSessions(c *gin.Context) {
	filter, err := service.ParseSessionFilter(c.Query("scene"), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SessionListResponse{
		Success:  true,
		Sessions: h.svc.ListSessions(c.Request.Context(), filter),
	})
}

func (h *handlers) disposeSession(c *gin.Context) {
	if err := h.svc.Dispose(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) addImage(c *gin.Context) {
	var req models.AddImageRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	sess, result, err := h.svc.AddImage(ctx, c.Param("id"), req.URL, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{Success: true, Session: sess, Quality: &result})
}

func (h *handlers) setField(c *gin.Context) {
	var req models.SetFieldRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.svc.SetField(c.Request.Context(), c.Param("id"), c.Param("key"), req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{Success: true, Session: sess})
}

func (h *handlers) analyze(c *gin.Context) {
	// the service bounds the handler with its own analysis timeout
	sess, err := h.svc.Analyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{Success: true, Session: sess})
}

func (h *handlers) complete(c *gin.Context) {
	sess, err := h.svc.CompleteSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SessionResponse{Success: true, Session: sess})
}

func (h *handlers) listHistory(c *gin.Context) {
	filter := repository.HistoryFilter{
		SceneID:   c.Query("scene"),
		SessionID: c.Query("session"),
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			respondError(c, apperrors.NewValidationError("limit must be a non-negative integer", err).
				WithGuidance("Pass a whole number as limit."))
			return
		}
		filter.Limit = n
	}

	results, err := h.history.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, apperrors.NewInternalError("failed to read history", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

func (h *handlers) exportHistory(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="capture-history.json"`)
	c.Status(http.StatusOK)
	if _, err := h.history.Export(c.Request.Context(), c.Writer); err != nil {
		logger.WithError(err).Error("History export failed")
	}
}

func (h *handlers) importHistory(c *gin.Context) {
	n, err := h.history.Import(c.Request.Context(), c.Request.Body)
	if err != nil {
		respondError(c, apperrors.NewValidationError("history import failed", err).
			WithGuidance("Upload a JSON array of analysis results."))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imported": n})
}

func (h *handlers) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "metrics": h.metrics.GetMetrics()})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// bindJSON decodes the request body and reports a validation error when it fails
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request format", err).
			WithGuidance("Check the request body and try again."))
		return false
	}
	return true
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Info("Request handled")
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	body := models.ErrorResponse{
		Success: false,
		Error:   http.StatusText(code),
	}
	if appErr, ok := apperrors.As(err); ok {
		body.Type = appErr.ErrorKind()
		body.Error = appErr.Message
		body.Message = appErr.Details
		body.Guidance = appErr.Guidance
	}
	if rej, ok := quality.RejectionOf(err); ok {
		result := rej.Result
		body.Quality = &result
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, body)
}
