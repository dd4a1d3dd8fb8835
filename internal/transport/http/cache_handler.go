package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "cellpulse/internal/errors"
)

// CacheHandler exposes cache administration endpoints
type CacheHandler struct {
	service      CacheServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(service CacheServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CacheHandler {
	return &CacheHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "cache_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// Routes returns the cache administration routes
func (h *CacheHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/stats", h.Stats)
	r.Get("/files", h.Files)
	r.Post("/clear-expired", h.ClearExpired)
	r.Post("/preload", h.Preload)

	return r
}

// Stats handles GET /api/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.CacheStats(r.Context()))
}

// Files handles GET /api/cache/files
func (h *CacheHandler) Files(w http.ResponseWriter, r *http.Request) {
	files := h.service.CachedFiles(r.Context())
	render.JSON(w, r, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}

// ClearExpired handles POST /api/cache/clear-expired
func (h *CacheHandler) ClearExpired(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.ClearExpired(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to clear expired entries",
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusInternalServerError, "CACHE_ERROR", "Cache operation failed", err.Error()))
		return
	}

	render.JSON(w, r, map[string]interface{}{"removed": removed})
}

// PreloadRequest is the payload for POST /api/cache/preload
type PreloadRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100"`
}

// Bind implements render.Binder
func (pr *PreloadRequest) Bind(r *http.Request) error {
	return nil
}

// Preload handles POST /api/cache/preload. The batch runs in the
// background, detached from the request deadline, so pacing and downloads
// are not cut short by the HTTP timeout; completion reaches clients over
// the websocket hub. An empty body uses the default preload limit.
func (h *CacheHandler) Preload(w http.ResponseWriter, r *http.Request) {
	req := PreloadRequest{}
	if r.ContentLength > 0 {
		if err := render.Bind(r, &req); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		if err := h.validate.Struct(&req); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", err.Error()))
			return
		}
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.service.TriggerPreload(ctx, req.Limit); err != nil {
			h.logger.ErrorContext(ctx, "preload failed",
				slog.String("error", err.Error()))
		}
	}()

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"status": "started",
		"limit":  req.Limit,
	})
}
