package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/docsight/docsight/internal/storage"
	"github.com/docsight/docsight/pkg/pagination"
	"github.com/google/uuid"
)

const documentColumns = `id, name, filename, content_type, size_bytes, page_count,
	status, progress, error, storage_key, created_at, updated_at`

type repo struct {
	db      *sql.DB
	storage storage.System
	logger  *slog.Logger
	paging  pagination.Config
}

// New creates a document repository with database and blob storage integration.
func New(db *sql.DB, store storage.System, logger *slog.Logger, paging pagination.Config) System {
	return &repo{
		db:      db,
		storage: store,
		logger:  logger.With("system", "documents"),
		paging:  paging,
	}
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Document], error) {
	page.Normalize(r.paging)

	where, args := filters.whereClause(page.Search)

	var total int
	countQuery := "SELECT COUNT(*) FROM documents" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageQuery := fmt.Sprintf(
		"SELECT %s FROM documents%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		documentColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, page.PageSize, page.Offset())

	rows, err := r.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE id = $1", documentColumns)

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Document, error) {
	id := uuid.New()
	storageKey := buildStorageKey(id, cmd.Filename)

	if err := r.storage.Store(ctx, storageKey, cmd.Data); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO documents (id, name, filename, content_type, size_bytes, status, progress, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s`, documentColumns)

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query,
		id, cmd.Name, cmd.Filename, cmd.ContentType, cmd.SizeBytes,
		StatusPending, ProgressUploaded, storageKey,
	))
	if err != nil {
		if delErr := r.storage.Delete(ctx, storageKey); delErr != nil {
			r.logger.Error("cleanup failed after db error", "storage_key", storageKey, "error", delErr)
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}

	r.logger.Info("document created", "id", doc.ID, "name", doc.Name, "storage_key", storageKey)
	return &doc, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := r.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	// Image and keyword rows cascade with the document row.
	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if err := r.storage.Delete(ctx, doc.StorageKey); err != nil {
		r.logger.Warn("failed to delete document file", "id", id, "error", err)
	}
	if err := r.storage.DeletePrefix(ctx, imagePrefix(id)); err != nil {
		r.logger.Warn("failed to delete page images", "id", id, "error", err)
	}

	r.logger.Info("document deleted", "id", id)
	return nil
}

func (r *repo) Data(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return nil, "", err
	}

	data, err := r.storage.Retrieve(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("retrieve file: %w", err)
	}

	return data, doc.ContentType, nil
}

func (r *repo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE documents SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)`

	if _, err := r.db.ExecContext(ctx, query, StatusProcessing, id, StatusPending, StatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

func (r *repo) SetRasterized(ctx context.Context, id uuid.UUID, pageCount int) error {
	query := `UPDATE documents SET page_count = $1, progress = $2, updated_at = NOW()
		WHERE id = $3`

	if _, err := r.db.ExecContext(ctx, query, pageCount, ProgressRasterized, id); err != nil {
		return fmt.Errorf("set rasterized: %w", err)
	}
	return nil
}

func (r *repo) Complete(ctx context.Context, id uuid.UUID) (bool, error) {
	// Conditional on status so redelivered jobs observing a zero pending
	// count cannot resurrect a failed document or double-complete.
	query := `UPDATE documents SET status = $1, progress = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	res, err := r.db.ExecContext(ctx, query, StatusCompleted, ProgressCompleted, id, StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("complete document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete document: %w", err)
	}
	if n > 0 {
		r.logger.Info("document completed", "id", id)
	}
	return n > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE documents SET status = $1, error = $2, updated_at = NOW()
		WHERE id = $3 AND status != $4`

	if _, err := r.db.ExecContext(ctx, query, StatusFailed, reason, id, StatusCompleted); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	r.logger.Warn("document failed", "id", id, "reason", reason)
	return nil
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return filepath.Join("documents", id.String(), filename)
}

func imagePrefix(id uuid.UUID) string {
	return filepath.Join("images", id.String())
}
