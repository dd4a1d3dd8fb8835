package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "cellpulse/internal/errors"
	"cellpulse/internal/services"
)

// DataHandler handles data-related HTTP requests with RFC 7807 compliance
type DataHandler struct {
	service      DataServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewDataHandler creates a new data handler with RFC 7807 error handling
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// Routes returns the data routes with proper Chi patterns
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/files", h.ListFiles)
	r.Post("/combine", h.Combine)

	r.Route("/{fileID}", func(r chi.Router) {
		r.Use(h.FileCtx)
		r.Get("/", h.GetTable)
		r.Get("/columns", h.GetColumns)
	})

	return r
}

// FileCtx middleware validates the file id parameter
func (h *DataHandler) FileCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fileID := chi.URLParam(r, "fileID")
		if fileID == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("fileID", "File identifier is required"))
			return
		}
		if len(fileID) > 256 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("fileID", "File identifier too long"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListFiles handles GET /api/data/files
func (h *DataHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.ListFiles(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoFilesFound) {
			render.Status(r, http.StatusOK)
			render.JSON(w, r, map[string]interface{}{"files": []services.FileEntry{}})
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to list files",
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.RemoteStoreError("list", err))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}

// GetTable handles GET /api/data/{fileID}
func (h *DataHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	opts, apiErr := tableOptionsFromQuery(r)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	result, err := h.service.GetTable(r.Context(), fileID, opts)
	if err != nil {
		h.handleServiceError(w, r, fileID, err)
		return
	}

	render.JSON(w, r, result)
}

// GetColumns handles GET /api/data/{fileID}/columns
func (h *DataHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	result, err := h.service.GetColumns(r.Context(), fileID)
	if err != nil {
		h.handleServiceError(w, r, fileID, err)
		return
	}

	render.JSON(w, r, result)
}

// CombineRequest is the payload for POST /api/data/combine
type CombineRequest struct {
	FileIDs  []string `json:"file_ids" validate:"required,min=1,max=20,dive,required"`
	Labels   []string `json:"labels" validate:"omitempty,max=20"`
	Resample string   `json:"resample" validate:"omitempty,max=10"`
}

// Bind implements render.Binder
func (cr *CombineRequest) Bind(r *http.Request) error {
	return nil
}

// Combine handles POST /api/data/combine
func (h *DataHandler) Combine(w http.ResponseWriter, r *http.Request) {
	var req CombineRequest
	if err := render.Bind(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", err.Error()))
		return
	}

	result, err := h.service.Combine(r.Context(), req.FileIDs, req.Labels, req.Resample)
	if err != nil {
		h.handleServiceError(w, r, strings.Join(req.FileIDs, ","), err)
		return
	}

	render.JSON(w, r, result)
}

// handleServiceError maps service errors onto API errors
func (h *DataHandler) handleServiceError(w http.ResponseWriter, r *http.Request, fileID string, err error) {
	h.logger.ErrorContext(r.Context(), "data request failed",
		slog.String("file_id", fileID),
		slog.String("error", err.Error()))

	switch {
	case errors.Is(err, services.ErrFileNotFound):
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("file "+fileID))
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidResampleRule),
		errors.Is(err, services.ErrNoDatasets):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest, "INVALID_PARAMETER", "Invalid request parameter", err.Error()))
	case errors.Is(err, services.ErrEmptyTable):
		h.errorHandler.HandleError(w, r, apierrors.MalformedDataError(err))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// tableOptionsFromQuery parses the preprocess, resample and columns query
// parameters.
func tableOptionsFromQuery(r *http.Request) (services.TableOptions, *apierrors.APIError) {
	opts := services.TableOptions{}
	query := r.URL.Query()

	if raw := query.Get("preprocess"); raw != "" {
		preprocess, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, apierrors.ErrValidation("preprocess", "must be a boolean")
		}
		opts.Raw = !preprocess
	}

	opts.Resample = query.Get("resample")

	if raw := query.Get("columns"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.Columns = append(opts.Columns, name)
			}
		}
	}

	return opts, nil
}
