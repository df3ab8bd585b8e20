package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docsight/docsight/internal/documents"
	"github.com/docsight/docsight/internal/images"
	"github.com/docsight/docsight/internal/queue"
)

// processDocument handles one ingestion delivery: rasterize the PDF,
// register a pending image per page, and fan out analysis jobs. Failures
// are recorded on the document before the error is returned, so domain
// state and queue bookkeeping agree even across a crash.
func (p *Pipeline) processDocument(ctx context.Context, d *queue.Delivery) error {
	var job DocumentJob
	if err := json.Unmarshal(d.Payload, &job); err != nil {
		return fmt.Errorf("decode document job: %w", err)
	}

	log := p.logger.With("stage", StageDocuments, "document_id", job.DocumentID, "job_id", d.ID)

	if _, err := p.documents.Find(ctx, job.DocumentID); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			// Deleted while queued. Nothing to process.
			log.Info("document gone, dropping job")
			return nil
		}
		return fmt.Errorf("find document: %w", err)
	}

	if err := p.documents.MarkProcessing(ctx, job.DocumentID); err != nil {
		return p.failDocument(ctx, log, job, fmt.Errorf("mark processing: %w", err))
	}

	pages, err := p.rasterizer.Rasterize(ctx, job.DocumentID, job.StorageKey)
	if err != nil {
		return p.failDocument(ctx, log, job, err)
	}

	if err := p.documents.SetRasterized(ctx, job.DocumentID, len(pages)); err != nil {
		return p.failDocument(ctx, log, job, fmt.Errorf("record page count: %w", err))
	}

	log.Info("rasterization complete", "pages", len(pages))

	for _, page := range pages {
		img, created, err := p.images.CreatePending(ctx, images.CreateCommand{
			DocumentID: job.DocumentID,
			PageNumber: page.Number,
			StorageKey: page.StorageKey,
			Format:     page.Format,
			Width:      page.Width,
			Height:     page.Height,
		})
		if err != nil {
			return p.failDocument(ctx, log, job, fmt.Errorf("register page %d: %w", page.Number, err))
		}

		// Redelivered jobs re-observe existing rows. Pages already in a
		// terminal state need no job; pending ones are re-enqueued in case
		// the previous attempt died between insert and enqueue.
		if img.Status != images.StatusPending {
			continue
		}
		if !created {
			log.Debug("page already registered", "page", page.Number)
		}

		_, err = p.queue.Enqueue(ctx, StageImages, ImageJob{
			ImageID:    img.ID,
			DocumentID: job.DocumentID,
			StorageKey: img.StorageKey,
		})
		if err != nil {
			return p.failDocument(ctx, log, job, fmt.Errorf("enqueue page %d: %w", page.Number, err))
		}
	}

	// Zero-page documents, and redeliveries arriving after every page
	// already reached a terminal state, complete here instead of waiting on
	// an analysis job that will never run.
	return p.checkCompletion(ctx, job.DocumentID)
}

// failDocument records the failure on the document, then propagates the
// error to the queue for its retry bookkeeping.
func (p *Pipeline) failDocument(ctx context.Context, log *slog.Logger, job DocumentJob, cause error) error {
	if err := p.documents.MarkFailed(ctx, job.DocumentID, cause.Error()); err != nil {
		log.Error("recording failure on document", "error", err, "cause", cause)
	}
	return cause
}

// documentExhausted marks a document failed once its ingestion job has no
// attempts left, covering stalled deliveries that never reached a handler.
func (p *Pipeline) documentExhausted(ctx context.Context, d *queue.Delivery, cause error) {
	var job DocumentJob
	if err := json.Unmarshal(d.Payload, &job); err != nil {
		p.logger.Error("exhausted document job has undecodable payload", "job_id", d.ID, "error", err)
		return
	}

	if err := p.documents.MarkFailed(ctx, job.DocumentID, cause.Error()); err != nil {
		p.logger.Error("marking exhausted document failed",
			"document_id", job.DocumentID,
			"job_id", d.ID,
			"error", err)
	}
}
