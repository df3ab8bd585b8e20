package keywords

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docsight/docsight/internal/images"
	"github.com/docsight/docsight/pkg/pagination"
	"github.com/google/uuid"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
	paging pagination.Config
}

// New creates a keyword index repository.
func New(db *sql.DB, logger *slog.Logger, paging pagination.Config) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "keywords"),
		paging: paging,
	}
}

func (r *repo) Rebuild(ctx context.Context, documentID uuid.UUID, pageNumber int, analysis images.Analysis) error {
	entries := Derive(documentID, pageNumber, analysis)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM keyword_entries WHERE document_id = $1 AND page_number = $2",
		documentID, pageNumber,
	); err != nil {
		return fmt.Errorf("clear page keywords: %w", err)
	}

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO keyword_entries (document_id, page_number, keyword, kind, confidence)
			VALUES ($1, $2, $3, $4, $5)`,
			e.DocumentID, e.PageNumber, e.Keyword, e.Kind, e.Confidence,
		); err != nil {
			return fmt.Errorf("insert keyword: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}

	r.logger.Debug("keyword index rebuilt",
		"document_id", documentID, "page", pageNumber, "entries", len(entries))
	return nil
}

// suggestionLimit caps the suggestion list returned for one term.
const suggestionLimit = 10

func (r *repo) Suggest(ctx context.Context, term string) ([]string, error) {
	suggestions := []string{}

	term = Normalize(term)
	if term == "" {
		return suggestions, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT keyword FROM keyword_entries
		WHERE keyword LIKE $1 AND kind IN ($2, $3)
		ORDER BY keyword
		LIMIT $4`,
		"%"+term+"%", KindLabel, KindObject, suggestionLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var keyword string
		if err := rows.Scan(&keyword); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, keyword)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return suggestions, nil
}

func (r *repo) Search(ctx context.Context, term string, kinds []Kind, page pagination.PageRequest) (*pagination.PageResult[SearchResult], error) {
	page.Normalize(r.paging)

	term = Normalize(term)
	if term == "" {
		empty := pagination.NewPageResult([]SearchResult{}, 0, page.Page, page.PageSize)
		return &empty, nil
	}

	where := "WHERE k.keyword LIKE $1"
	args := []any{"%" + term + "%"}

	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, kind := range kinds {
			args = append(args, kind)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where += fmt.Sprintf(" AND k.kind IN (%s)", strings.Join(placeholders, ", "))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM keyword_entries k " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count matches: %w", err)
	}

	query := fmt.Sprintf(`SELECT k.document_id, d.name, k.page_number, k.keyword, k.kind, k.confidence
		FROM keyword_entries k
		JOIN documents d ON d.id = k.document_id
		%s
		ORDER BY k.confidence DESC, d.created_at DESC, k.page_number
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, page.PageSize, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var sr SearchResult
		if err := rows.Scan(&sr.DocumentID, &sr.DocumentName, &sr.PageNumber, &sr.Keyword, &sr.Kind, &sr.Confidence); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		results = append(results, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	result := pagination.NewPageResult(results, total, page.Page, page.PageSize)
	return &result, nil
}
