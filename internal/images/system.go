package images

import (
	"context"

	"github.com/google/uuid"
)

// System defines the image management operations.
type System interface {
	// CreatePending registers a rendered page in the pending state. The
	// operation is idempotent per (documentID, pageNumber): redelivered
	// ingestion jobs re-observe the existing row instead of duplicating it.
	// The returned bool reports whether a new row was inserted.
	CreatePending(ctx context.Context, cmd CreateCommand) (*Image, bool, error)

	Find(ctx context.Context, id uuid.UUID) (*Image, error)

	// ListByDocument returns all images for a document in page order.
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Image, error)

	// Data retrieves the raw image bytes and content type for an image.
	Data(ctx context.Context, id uuid.UUID) ([]byte, string, error)

	// SetAnalyzed attaches the analysis payload and transitions the image
	// from pending to analyzed. Returns ErrTerminal if the image already
	// left the pending state.
	SetAnalyzed(ctx context.Context, id uuid.UUID, analysis Analysis) error

	// SetFailed transitions the image from pending to failed, recording the
	// reason. Returns ErrTerminal if the image already left pending.
	SetFailed(ctx context.Context, id uuid.UUID, reason string) error

	// CountPending returns the number of images still pending for a
	// document. Always a fresh read; completion decisions depend on it.
	CountPending(ctx context.Context, documentID uuid.UUID) (int, error)
}
