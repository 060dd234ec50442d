package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ChrisHK/label-printer/internal/checksum"
	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/service"
	"github.com/ChrisHK/label-printer/pkg/apierror"
	"github.com/ChrisHK/label-printer/pkg/response"

	"github.com/go-chi/chi/v5"
)

// RecordHandler answers record and checksum queries.
type RecordHandler struct {
	records *service.RecordService
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(records *service.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

// SyncStatus handles POST /api/v1/data-process/sync-status
func (h *RecordHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, err)
		return
	}

	var serials []string
	if raw, ok := body["serialnumbers"]; !ok || json.Unmarshal(raw, &serials) != nil || serials == nil {
		response.Error(w, apierror.BadRequest("serialnumbers must be an array"))
		return
	}

	statuses, err := h.records.SyncStatuses(r.Context(), serials)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]any{
		"success":  true,
		"statuses": statuses,
	})
}

// History handles GET /api/v1/data-process/records/{serialnumber}
func (h *RecordHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.records.History(r.Context(), chi.URLParam(r, "serialnumber"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			response.Error(w, apierror.NotFound("Record not found"))
			return
		}
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]any{
		"success": true,
		"records": history,
	})
}

// checksumRequest is the body of an on-demand checksum call.
type checksumRequest struct {
	Items    json.RawMessage `json:"items"`
	Checksum string          `json:"checksum,omitempty" validate:"omitempty,hexadecimal,len=64"`
}

// Checksum handles POST /api/v1/data-process/checksum
func (h *RecordHandler) Checksum(w http.ResponseWriter, r *http.Request) {
	var req checksumRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := validateStruct(req); err != nil {
		response.Error(w, err)
		return
	}

	items, err := checksum.DecodeItems(req.Items)
	if err != nil {
		response.Error(w, err)
		return
	}
	digest, err := checksum.Calculate(items)
	if err != nil {
		response.Error(w, err)
		return
	}

	body := map[string]any{
		"success":  true,
		"checksum": digest,
	}
	if req.Checksum != "" {
		body["valid"] = checksum.Verify(items, req.Checksum)
	}
	response.OK(w, body)
}
