// Package images manages rendered document pages and their analysis results.
// One image row exists per document page; pages start pending and reach a
// terminal analyzed or failed state exactly once.
package images

import (
	"time"

	"github.com/google/uuid"
)

// Status identifies an image's analysis state.
type Status string

// Image analysis states. Pending images await analysis; analyzed and failed
// are terminal.
const (
	StatusPending  Status = "pending"
	StatusAnalyzed Status = "analyzed"
	StatusFailed   Status = "failed"
)

// Valid reports whether s is a known image status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAnalyzed, StatusFailed:
		return true
	}
	return false
}

// Image represents a single rasterized document page.
type Image struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	PageNumber int       `json:"page_number"`
	StorageKey string    `json:"storage_key"`
	Format     string    `json:"format"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Status     Status    `json:"status"`
	Analysis   *Analysis `json:"analysis,omitempty"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Analysis holds the detection results for one page image.
type Analysis struct {
	Text       string     `json:"text"`
	Labels     []Label    `json:"labels"`
	Objects    []Object   `json:"objects"`
	SafeSearch SafeSearch `json:"safe_search"`
}

// Label is a whole-image classification with a confidence score.
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Object is a localized detection with a normalized bounding box.
type Object struct {
	Name        string      `json:"name"`
	Score       float64     `json:"score"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// BoundingBox holds normalized [0,1] coordinates within the page image.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// SafeSearch holds content classification likelihoods.
type SafeSearch struct {
	Adult    string `json:"adult"`
	Violence string `json:"violence"`
	Racy     string `json:"racy"`
}

// CreateCommand contains the data required to register a rendered page.
type CreateCommand struct {
	DocumentID uuid.UUID
	PageNumber int
	StorageKey string
	Format     string
	Width      int
	Height     int
}
