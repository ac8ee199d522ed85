package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/gallery-service/internal/delivery/http/request"
	"github.com/user/gallery-service/internal/delivery/http/response"
	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/repository"
	"github.com/user/gallery-service/internal/usecase"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	galleries usecase.GalleryManager
	options   repository.OptionsRepository
	logger    *zap.Logger
}

// NewHandler builds the HTTP handlers. options may be nil, in which case
// every profile uses the default options and saving is unavailable.
func NewHandler(galleries usecase.GalleryManager, options repository.OptionsRepository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		galleries: galleries,
		options:   options,
		logger:    logger,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}

// HandleOpenGallery loads a page and runs the first discovery on it.
func (h *Handler) HandleOpenGallery(w http.ResponseWriter, r *http.Request) {
	var req request.OpenGalleryRequest
	if !h.decode(w, r, &req) {
		return
	}

	opts := req.Apply(h.loadOptions(r, req.Profile))
	status, err := h.galleries.Open(r.Context(), usecase.OpenRequest{
		URL:        req.URL,
		Window:     opts.Window(),
		AutoScroll: opts.AutoScroll(),
	})
	if err != nil && !errors.Is(err, usecase.ErrPipeline) {
		h.writeUsecaseError(w, err, "Failed to open gallery", zap.String("url", req.URL))
		return
	}
	if err != nil {
		h.logger.Warn("Gallery opened without images", zap.String("url", req.URL), zap.Error(err))
	}

	h.writeJSON(w, http.StatusCreated, response.NewGalleryResponse(status))
}

func (h *Handler) HandleGetGallery(w http.ResponseWriter, r *http.Request) {
	status, err := h.galleries.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeUsecaseError(w, err, "Failed to get gallery")
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewGalleryResponse(status))
}

// HandleReloadGallery re-runs discovery without scrolling.
func (h *Handler) HandleReloadGallery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := h.galleries.Get(id)
	if err != nil {
		h.writeUsecaseError(w, err, "Failed to reload gallery")
		return
	}

	var req request.ReloadRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	status, err := h.galleries.Reload(r.Context(), id, req.Apply(current.Window))
	if err != nil && !errors.Is(err, usecase.ErrPipeline) {
		h.writeUsecaseError(w, err, "Failed to reload gallery", zap.String("session_id", id))
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewGalleryResponse(status))
}

func (h *Handler) HandleSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req request.SelectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		status *entity.GalleryStatus
		err    error
	)
	switch req.Action {
	case request.ActionToggle:
		if req.URL == "" {
			h.writeJSONError(w, "url is required for toggle", http.StatusBadRequest)
			return
		}
		status, err = h.galleries.ToggleSelection(id, req.URL)
	case request.ActionSelectAll:
		status, err = h.galleries.SelectAll(id)
	case request.ActionDeselectAll:
		status, err = h.galleries.DeselectAll(id)
	default:
		h.writeJSONError(w, "action must be one of toggle, select_all, deselect_all", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeUsecaseError(w, err, "Failed to update selection")
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewGalleryResponse(status))
}

// HandleDownload streams the selected images as images.zip.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := h.galleries.Get(id)
	if err != nil {
		h.writeUsecaseError(w, err, "Failed to download gallery")
		return
	}
	if response.NewGalleryResponse(status).SelectedCount == 0 {
		h.writeUsecaseError(w, usecase.ErrNothingSelected, "Failed to download gallery")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="images.zip"`)
	if _, err := h.galleries.Download(r.Context(), id, w); err != nil {
		// Headers are gone; the truncated archive is all the client gets.
		h.logger.Error("Failed to stream archive", zap.String("session_id", id), zap.Error(err))
	}
}

func (h *Handler) HandleCloseGallery(w http.ResponseWriter, r *http.Request) {
	if err := h.galleries.Close(chi.URLParam(r, "id")); err != nil {
		h.writeUsecaseError(w, err, "Failed to close gallery")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGetOptions(w http.ResponseWriter, r *http.Request) {
	profile := chi.URLParam(r, "profile")
	h.writeJSON(w, http.StatusOK, response.OptionsResponse{Profile: profile, Options: h.loadOptions(r, profile)})
}

func (h *Handler) HandlePutOptions(w http.ResponseWriter, r *http.Request) {
	if h.options == nil {
		h.writeJSONError(w, "Options storage is not configured", http.StatusServiceUnavailable)
		return
	}

	profile := chi.URLParam(r, "profile")
	opts := h.loadOptions(r, profile)
	if !h.decode(w, r, &opts) {
		return
	}
	if err := opts.Validate(); err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.options.Save(r.Context(), profile, opts); err != nil {
		h.logger.Error("Failed to save options", zap.String("profile", profile), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.OptionsResponse{Profile: profile, Options: opts})
}

// HandleListScans returns the discovery history of a page, newest first.
func (h *Handler) HandleListScans(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		h.writeJSONError(w, "URL query parameter is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.galleries.History(r.Context(), pageURL, limit)
	if err != nil {
		h.writeUsecaseError(w, err, "Failed to list scans", zap.String("url", pageURL))
		return
	}
	h.writeJSON(w, http.StatusOK, response.ScanHistoryResponse{URL: pageURL, Runs: runs})
}

// loadOptions returns the saved options for profile, or the defaults when
// none are saved or the store is unavailable.
func (h *Handler) loadOptions(r *http.Request, profile string) entity.Options {
	if h.options == nil {
		return entity.DefaultOptions()
	}
	opts, err := h.options.Get(r.Context(), profile)
	if err != nil {
		h.logger.Warn("Failed to load options, using defaults", zap.String("profile", profile), zap.Error(err))
		return entity.DefaultOptions()
	}
	return opts
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeUsecaseError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound), errors.Is(err, usecase.ErrImageNotFound):
		h.writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, usecase.ErrInvalidInput), errors.Is(err, usecase.ErrNothingSelected):
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, usecase.ErrSuperseded):
		h.writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.logger.Warn(msg, append(fields, zap.Error(err))...)
		h.writeJSONError(w, "Request timed out", http.StatusGatewayTimeout)
	case errors.Is(err, usecase.ErrPageLoad):
		h.logger.Warn(msg, append(fields, zap.Error(err))...)
		h.writeJSONError(w, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
