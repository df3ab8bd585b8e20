// Package keywords maintains the searchable keyword index derived from page
// analysis results. The index is a materialized view: it is rebuilt from image
// analysis payloads and is never edited directly.
package keywords

import (
	"github.com/google/uuid"
)

// Kind identifies which part of the analysis payload a keyword came from.
type Kind string

// Keyword source kinds.
const (
	KindLabel  Kind = "label"
	KindObject Kind = "object"
	KindText   Kind = "text"
)

// Valid reports whether k is a known keyword kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLabel, KindObject, KindText:
		return true
	}
	return false
}

// Entry is one normalized keyword occurrence on a document page.
type Entry struct {
	DocumentID uuid.UUID `json:"document_id"`
	PageNumber int       `json:"page_number"`
	Keyword    string    `json:"keyword"`
	Kind       Kind      `json:"kind"`
	Confidence float64   `json:"confidence"`
}

// SearchResult is a keyword match joined with its owning document.
type SearchResult struct {
	DocumentID   uuid.UUID `json:"document_id"`
	DocumentName string    `json:"document_name"`
	PageNumber   int       `json:"page_number"`
	Keyword      string    `json:"keyword"`
	Kind         Kind      `json:"kind"`
	Confidence   float64   `json:"confidence"`
}
