package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/repository"
	"github.com/ChrisHK/label-printer/internal/service"
	"github.com/ChrisHK/label-printer/pkg/apierror"
	"github.com/ChrisHK/label-printer/pkg/response"

	"github.com/go-chi/chi/v5"
)

const maxPageLimit = 100

// LogHandler serves processing log queries and maintenance.
type LogHandler struct {
	logs     *service.LogService
	archiver *service.LogArchiver
}

// NewLogHandler creates a new log handler.
func NewLogHandler(logs *service.LogService, archiver *service.LogArchiver) *LogHandler {
	return &LogHandler{logs: logs, archiver: archiver}
}

// ListResponse is one page of processing logs.
type ListResponse struct {
	Success    bool                  `json:"success"`
	Logs       []model.ProcessingLog `json:"logs"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	TotalPages int                   `json:"totalPages"`
	Timestamp  string                `json:"timestamp"`
}

// List handles GET /api/v1/data-process/logs
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = repository.DefaultPage
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > maxPageLimit {
		limit = repository.DefaultLimit
	}

	result, err := h.logs.List(r.Context(), repository.ListQuery{
		Page:   page,
		Limit:  limit,
		Status: model.LogStatus(q.Get("status")),
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, ListResponse{
		Success:    true,
		Logs:       result.Logs,
		Total:      result.Total,
		Page:       result.Page,
		TotalPages: result.TotalPages,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// Status handles GET /api/v1/data-process/status/{batch_id}
func (h *LogHandler) Status(w http.ResponseWriter, r *http.Request) {
	entry, err := h.logs.Get(r.Context(), chi.URLParam(r, "batch_id"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			response.Error(w, apierror.NotFound("Batch not found"))
			return
		}
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]any{
		"success": true,
		"status":  entry,
	})
}

// Archive handles POST /api/v1/data-process/logs/archive
func (h *LogHandler) Archive(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Error(w, apierror.BadRequest("days must be a positive integer"))
			return
		}
		days = n
	}

	result, err := h.archiver.Archive(r.Context(), days)
	if err != nil {
		response.Error(w, apierror.InternalError("Failed to archive logs").WithDetails(err.Error()))
		return
	}

	message := "No logs to archive"
	if result.Cleared > 0 {
		message = fmt.Sprintf("%d logs archived successfully", result.Cleared)
	}
	response.OK(w, map[string]any{
		"success": true,
		"cleared": result.Cleared,
		"message": message,
	})
}

// Delete handles DELETE /api/v1/data-process/logs/{batch_id}
func (h *LogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.logs.Delete(r.Context(), chi.URLParam(r, "batch_id")); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			response.Error(w, apierror.NotFound("Log record not found"))
			return
		}
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]any{
		"success": true,
		"message": "Log record deleted successfully",
	})
}

// Export handles GET /api/v1/data-process/logs/export
func (h *LogHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := h.logs.Export(r.Context(), &buf, model.LogStatus(r.URL.Query().Get("status"))); err != nil {
		response.Error(w, err)
		return
	}

	filename := fmt.Sprintf("processing-logs-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
