package client

import "time"

// Batch statuses reported by the API.
const (
	StatusProcessing          = "processing"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusFailed              = "failed"
)

// Item is one inventory item as sent to the API. Keys are the wire field
// names, e.g. "serialnumber", "cpu", "ram_gb".
type Item map[string]any

// IngestRequest is a batch submitted for processing.
type IngestRequest struct {
	BatchID  string         `json:"batch_id,omitempty"`
	Items    []Item         `json:"items"`
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ItemError is why one item of a batch was not stored.
type ItemError struct {
	SerialNumber string `json:"serialnumber"`
	Error        string `json:"error"`
}

// BatchResult is the outcome of a processed batch.
type BatchResult struct {
	BatchID        string      `json:"batch_id"`
	TotalItems     int         `json:"total_items"`
	ProcessedCount int         `json:"processed_count"`
	ErrorCount     int         `json:"error_count"`
	Status         string      `json:"status"`
	Errors         []ItemError `json:"errors,omitempty"`
}

// IngestResponse is the API's answer to a processed batch.
type IngestResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	BatchID string      `json:"batchId"`
	Details BatchResult `json:"details"`
}

// SyncStatus is the sync state of one serial number.
type SyncStatus struct {
	SyncStatus   string     `json:"sync_status"`
	SyncVersion  string     `json:"sync_version"`
	LastSyncTime *time.Time `json:"last_sync_time"`
}

// ProcessingLog is the server's record of one batch run.
type ProcessingLog struct {
	ID             int64       `json:"id"`
	BatchID        string      `json:"batch_id"`
	Source         string      `json:"source"`
	Status         string      `json:"status"`
	TotalItems     int         `json:"total_items"`
	ProcessedCount int         `json:"processed_count"`
	ErrorCount     int         `json:"error_count"`
	Errors         []ItemError `json:"errors"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    *time.Time  `json:"completed_at"`
	CreatedAt      time.Time   `json:"created_at"`
}
