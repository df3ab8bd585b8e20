// Package documents provides document upload, storage, and lifecycle management.
// Documents move through a processing pipeline that rasterizes their pages and
// analyzes each page image; the document row tracks that pipeline's state.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Status identifies a document's position in the processing pipeline.
type Status string

// Document pipeline states. Pending documents have not been picked up by a
// worker yet; completed and failed are terminal.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known document status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress checkpoints recorded on the document row as the pipeline advances.
const (
	ProgressUploaded   = 0
	ProgressRasterized = 50
	ProgressCompleted  = 100
)

// Document represents an uploaded PDF and its processing state.
type Document struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   int       `json:"page_count"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`
	Error       *string   `json:"error,omitempty"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateCommand contains the data required to create a new document.
// Data holds the raw file bytes to be stored.
type CreateCommand struct {
	Name        string
	Filename    string
	ContentType string
	SizeBytes   int64
	Data        []byte
}
