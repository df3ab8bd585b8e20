package keywords

import (
	"context"

	"github.com/docsight/docsight/internal/images"
	"github.com/docsight/docsight/pkg/pagination"
	"github.com/google/uuid"
)

// System defines the keyword index operations.
type System interface {
	// Rebuild replaces the keyword entries for one page with entries derived
	// from the given analysis payload. Safe to repeat: the result depends
	// only on the payload, never on prior index state.
	Rebuild(ctx context.Context, documentID uuid.UUID, pageNumber int, analysis images.Analysis) error

	// Search returns keyword matches for a term, optionally restricted to
	// specific kinds, ordered by confidence.
	Search(ctx context.Context, term string, kinds []Kind, page pagination.PageRequest) (*pagination.PageResult[SearchResult], error)

	// Suggest returns distinct label and object keywords containing the
	// term, capped at a small fixed count.
	Suggest(ctx context.Context, term string) ([]string, error)
}
