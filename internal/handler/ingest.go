package handler

import (
	"errors"
	"net/http"

	"github.com/ChrisHK/label-printer/internal/model"
	"github.com/ChrisHK/label-printer/internal/service"
	"github.com/ChrisHK/label-printer/pkg/apierror"
	"github.com/ChrisHK/label-printer/pkg/response"
)

// IngestHandler accepts inventory batches.
type IngestHandler struct {
	ingestor     *service.BatchIngestor
	maxBodyBytes int64
}

// NewIngestHandler creates a new ingest handler. maxBodyBytes <= 0 disables the limit.
func NewIngestHandler(ingestor *service.BatchIngestor, maxBodyBytes int64) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, maxBodyBytes: maxBodyBytes}
}

// IngestResponse is the body of a processed batch.
type IngestResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	BatchID string             `json:"batchId"`
	Details *model.BatchResult `json:"details"`
}

// Ingest handles POST /api/v1/data-process/inventory
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req model.IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := validateStruct(req); err != nil {
		response.Error(w, err)
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), req)
	if err != nil {
		var txErr *model.TransactionError
		if errors.As(err, &txErr) {
			response.Error(w, apierror.InternalError("Failed to process inventory data").WithDetails(txErr.Err.Error()))
			return
		}
		response.Error(w, err)
		return
	}

	response.OK(w, IngestResponse{
		Success: true,
		Message: "Data processing completed",
		BatchID: result.BatchID,
		Details: result,
	})
}
