package model

import "time"

// LogStatus is the lifecycle state of a processing log.
type LogStatus string

const (
	StatusProcessing          LogStatus = "processing"
	StatusCompleted           LogStatus = "completed"
	StatusCompletedWithErrors LogStatus = "completed_with_errors"
	StatusFailed              LogStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s LogStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected.
func (s LogStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCompletedWithErrors || s == StatusFailed
}

// ItemError records why a single item of a batch was not stored.
type ItemError struct {
	SerialNumber string `json:"serialnumber"`
	Error        string `json:"error"`
}

// ProcessingLog is the audit row for one ingestion run.
type ProcessingLog struct {
	ID             int64       `json:"id"`
	BatchID        string      `json:"batch_id"`
	Source         string      `json:"source"`
	Status         LogStatus   `json:"status"`
	TotalItems     int         `json:"total_items"`
	ProcessedCount int         `json:"processed_count"`
	ErrorCount     int         `json:"error_count"`
	Errors         []ItemError `json:"errors"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    *time.Time  `json:"completed_at"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ArchivedLog is a processing log moved to cold storage.
type ArchivedLog struct {
	ProcessingLog
	OriginalID int64     `json:"original_id"`
	ArchivedAt time.Time `json:"archived_at"`
}

// LogPage is one page of processing logs.
type LogPage struct {
	Logs       []ProcessingLog
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// LogStats summarizes the processing log tables.
type LogStats struct {
	ByStatus      map[LogStatus]int `json:"by_status"`
	Archived      int               `json:"archived"`
	Records       int               `json:"records"`
	CurrentRecord int               `json:"current_records"`
}
