package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docsight/docsight/internal/storage"
	"github.com/google/uuid"
)

const imageColumns = `id, document_id, page_number, storage_key, format, width, height,
	status, analysis, error, created_at, updated_at`

type repo struct {
	db      *sql.DB
	storage storage.System
	logger  *slog.Logger
}

// New creates an image repository with database and blob storage integration.
func New(db *sql.DB, store storage.System, logger *slog.Logger) System {
	return &repo{
		db:      db,
		storage: store,
		logger:  logger.With("system", "images"),
	}
}

func (r *repo) CreatePending(ctx context.Context, cmd CreateCommand) (*Image, bool, error) {
	id := uuid.New()

	query := fmt.Sprintf(`INSERT INTO images (id, document_id, page_number, storage_key, format, width, height, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id, page_number) DO NOTHING
		RETURNING %s`, imageColumns)

	img, err := scanImage(r.db.QueryRowContext(ctx, query,
		id, cmd.DocumentID, cmd.PageNumber, cmd.StorageKey,
		cmd.Format, cmd.Width, cmd.Height, StatusPending,
	))
	if err == nil {
		r.logger.Info("image created", "id", img.ID, "document_id", img.DocumentID, "page", img.PageNumber)
		return &img, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert image: %w", err)
	}

	// Conflict: the page already exists from an earlier delivery.
	existing, err := r.findByPage(ctx, cmd.DocumentID, cmd.PageNumber)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Image, error) {
	query := fmt.Sprintf("SELECT %s FROM images WHERE id = $1", imageColumns)

	img, err := scanImage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find image: %w", err)
	}
	return &img, nil
}

func (r *repo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Image, error) {
	query := fmt.Sprintf("SELECT %s FROM images WHERE document_id = $1 ORDER BY page_number", imageColumns)

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var imgs []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		imgs = append(imgs, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}

	return imgs, nil
}

func (r *repo) Data(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	img, err := r.Find(ctx, id)
	if err != nil {
		return nil, "", err
	}

	data, err := r.storage.Retrieve(ctx, img.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("retrieve image: %w", err)
	}

	return data, contentType(img.Format), nil
}

func (r *repo) SetAnalyzed(ctx context.Context, id uuid.UUID, analysis Analysis) error {
	payload, err := marshalAnalysis(&analysis)
	if err != nil {
		return err
	}

	query := `UPDATE images SET status = $1, analysis = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	res, err := r.db.ExecContext(ctx, query, StatusAnalyzed, payload, id, StatusPending)
	if err != nil {
		return fmt.Errorf("set analyzed: %w", err)
	}

	return r.assertTransition(ctx, res, id, StatusAnalyzed)
}

func (r *repo) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE images SET status = $1, error = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	res, err := r.db.ExecContext(ctx, query, StatusFailed, reason, id, StatusPending)
	if err != nil {
		return fmt.Errorf("set failed: %w", err)
	}

	return r.assertTransition(ctx, res, id, StatusFailed)
}

func (r *repo) CountPending(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM images WHERE document_id = $1 AND status = $2"

	if err := r.db.QueryRowContext(ctx, query, documentID, StatusPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending images: %w", err)
	}
	return count, nil
}

func (r *repo) findByPage(ctx context.Context, documentID uuid.UUID, pageNumber int) (*Image, error) {
	query := fmt.Sprintf("SELECT %s FROM images WHERE document_id = $1 AND page_number = $2", imageColumns)

	img, err := scanImage(r.db.QueryRowContext(ctx, query, documentID, pageNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find image by page: %w", err)
	}
	return &img, nil
}

// assertTransition distinguishes a missing row from one that already left
// pending, so redelivered jobs can treat ErrTerminal as a no-op.
func (r *repo) assertTransition(ctx context.Context, res sql.Result, id uuid.UUID, target Status) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		r.logger.Info("image transitioned", "id", id, "status", target)
		return nil
	}

	if _, err := r.Find(ctx, id); err != nil {
		return err
	}
	return ErrTerminal
}

func contentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
