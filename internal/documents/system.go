package documents

import (
	"context"

	"github.com/docsight/docsight/pkg/pagination"
	"github.com/google/uuid"
)

// System defines the document management operations.
// Implementations handle blob storage and database persistence.
type System interface {
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Document], error)
	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Data retrieves the stored PDF bytes and content type for a document.
	Data(ctx context.Context, id uuid.UUID) ([]byte, string, error)

	// MarkProcessing transitions a document to processing when its ingestion
	// job is dequeued. Safe to repeat on job redelivery.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// SetRasterized records the page count after successful rasterization and
	// advances progress to the rasterized checkpoint.
	SetRasterized(ctx context.Context, id uuid.UUID, pageCount int) error

	// Complete transitions a processing document to completed with full
	// progress. It reports whether the transition occurred: documents already
	// completed, or failed, are left untouched.
	Complete(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkFailed transitions a document to failed, recording the reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}
