package documents

import (
	"fmt"
	"net/url"
)

// scanner abstracts sql.Row and sql.Rows for row mapping.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.Name,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.Status,
		&d.Progress,
		&d.Error,
		&d.StorageKey,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}

// Filters contains optional criteria for filtering document queries.
type Filters struct {
	Status *Status
}

// FiltersFromQuery extracts document filters from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		status := Status(s)
		if status.Valid() {
			f.Status = &status
		}
	}

	return f
}

func (f Filters) whereClause(search *string) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != nil {
		args = append(args, *f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	if search != nil {
		args = append(args, "%"+*search+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR filename ILIKE $%d)", len(args), len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}

	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}
