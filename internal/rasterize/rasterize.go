// Package rasterize renders PDF documents into per-page JPEG images.
package rasterize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"

	"github.com/docsight/docsight/internal/config"
	"github.com/docsight/docsight/internal/storage"
	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Rasterization errors.
var (
	// ErrRasterization indicates the PDF could not be opened or rendered.
	// Wraps the underlying parser or renderer failure.
	ErrRasterization = errors.New("rasterize: rasterization failed")

	// ErrTooManyPages indicates the document exceeds the configured page limit.
	ErrTooManyPages = errors.New("rasterize: page limit exceeded")
)

// Page describes one rendered page stored as a blob.
type Page struct {
	Number     int
	StorageKey string
	Format     string
	Width      int
	Height     int
}

// Rasterizer renders every page of a stored PDF into image blobs.
type Rasterizer interface {
	// Rasterize validates the PDF at storageKey, renders each page to JPEG
	// under the document's image prefix, and returns the pages in ascending
	// order. A validation or render failure leaves no partial claim on the
	// document: callers decide how to surface it.
	Rasterize(ctx context.Context, documentID uuid.UUID, storageKey string) ([]Page, error)
}

type fitzRasterizer struct {
	storage  storage.System
	quality  int
	maxPages int
	logger   *slog.Logger
}

// New creates a Rasterizer backed by MuPDF rendering with pdfcpu validation.
func New(store storage.System, cfg *config.RasterizerConfig, logger *slog.Logger) Rasterizer {
	return &fitzRasterizer{
		storage:  store,
		quality:  cfg.Quality,
		maxPages: cfg.MaxPages,
		logger:   logger.With("system", "rasterize"),
	}
}

func (r *fitzRasterizer) Rasterize(ctx context.Context, documentID uuid.UUID, storageKey string) ([]Page, error) {
	path, err := r.storage.Path(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("resolve document blob: %w", err)
	}

	// Structural validation up front produces a cleaner failure than a
	// renderer crash partway through the page loop.
	if err := api.ValidateFile(path, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterization, err)
	}

	declared, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterization, err)
	}
	if declared > r.maxPages {
		return nil, fmt.Errorf("%w: %d pages, limit %d", ErrTooManyPages, declared, r.maxPages)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterization, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total != declared {
		r.logger.Warn("page count mismatch between parser and renderer",
			"document_id", documentID,
			"declared", declared,
			"rendered", total)
	}
	if total > r.maxPages {
		return nil, fmt.Errorf("%w: %d pages, limit %d", ErrTooManyPages, total, r.maxPages)
	}

	pages := make([]Page, 0, total)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrRasterization, i+1, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}

		page := Page{
			Number:     i + 1,
			StorageKey: PageKey(documentID, i+1),
			Format:     "jpeg",
			Width:      img.Bounds().Dx(),
			Height:     img.Bounds().Dy(),
		}
		if err := r.storage.Store(ctx, page.StorageKey, buf.Bytes()); err != nil {
			return nil, fmt.Errorf("store page %d: %w", page.Number, err)
		}
		pages = append(pages, page)
	}

	r.logger.Info("document rasterized", "document_id", documentID, "pages", len(pages))
	return pages, nil
}

// PageKey returns the storage key for a rendered page image.
func PageKey(documentID uuid.UUID, pageNumber int) string {
	return fmt.Sprintf("images/%s/page-%04d.jpg", documentID, pageNumber)
}
