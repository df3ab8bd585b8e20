package images

import (
	"encoding/json"
	"fmt"
)

// scanner abstracts sql.Row and sql.Rows for row mapping.
type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (Image, error) {
	var (
		img     Image
		payload []byte
	)

	err := s.Scan(
		&img.ID,
		&img.DocumentID,
		&img.PageNumber,
		&img.StorageKey,
		&img.Format,
		&img.Width,
		&img.Height,
		&img.Status,
		&payload,
		&img.Error,
		&img.CreatedAt,
		&img.UpdatedAt,
	)
	if err != nil {
		return img, err
	}

	if len(payload) > 0 {
		var analysis Analysis
		if err := json.Unmarshal(payload, &analysis); err != nil {
			return img, fmt.Errorf("decode analysis: %w", err)
		}
		img.Analysis = &analysis
	}

	return img, nil
}

func marshalAnalysis(a *Analysis) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return payload, nil
}
