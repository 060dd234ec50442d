package model

// IngestRequest is one batch submitted for processing.
type IngestRequest struct {
	BatchID  string         `json:"batch_id" validate:"omitempty,max=100"`
	Items    []RawItem      `json:"items"`
	Source   string         `json:"source,omitempty" validate:"omitempty,max=50"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BatchMetadata is the recognized part of an ingest request's metadata.
type BatchMetadata struct {
	Checksum   string `mapstructure:"checksum"`
	TotalItems int    `mapstructure:"total_items"`
	Version    string `mapstructure:"version"`
}

// BatchResult is the outcome of a processed batch.
type BatchResult struct {
	BatchID        string      `json:"batch_id"`
	TotalItems     int         `json:"total_items"`
	ProcessedCount int         `json:"processed_count"`
	ErrorCount     int         `json:"error_count"`
	Status         LogStatus   `json:"status"`
	Errors         []ItemError `json:"errors,omitempty"`
}
