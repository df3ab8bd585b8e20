package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docsight/docsight/internal/images"
	"github.com/docsight/docsight/internal/queue"
	"github.com/google/uuid"
)

// processImage handles one analysis delivery: run the analyzer over the
// rendered page, rebuild the page's keyword entries, mark the image
// analyzed, then re-check the owning document for completion. Images
// already in a terminal state make the delivery a domain no-op.
func (p *Pipeline) processImage(ctx context.Context, d *queue.Delivery) error {
	var job ImageJob
	if err := json.Unmarshal(d.Payload, &job); err != nil {
		return fmt.Errorf("decode image job: %w", err)
	}

	log := p.logger.With("stage", StageImages, "image_id", job.ImageID, "job_id", d.ID)

	img, err := p.images.Find(ctx, job.ImageID)
	if err != nil {
		if errors.Is(err, images.ErrNotFound) {
			// Parent document deleted while queued.
			log.Info("image gone, dropping job")
			return nil
		}
		return fmt.Errorf("find image: %w", err)
	}

	if img.Status != images.StatusPending {
		// Redelivery after the terminal transition. Domain state is final;
		// the completion check still runs in case the earlier attempt died
		// before reaching it.
		log.Debug("image already terminal", "status", img.Status)
		return p.checkCompletion(ctx, img.DocumentID)
	}

	data, err := p.storage.Retrieve(ctx, img.StorageKey)
	if err != nil {
		return p.failImage(ctx, log, img, fmt.Errorf("retrieve page image: %w", err))
	}

	analysis, err := p.analyzer.Analyze(ctx, data)
	if err != nil {
		return p.failImage(ctx, log, img, err)
	}

	// The keyword rebuild precedes the terminal transition: a redelivery
	// after a crash between the two re-runs the rebuild, while the reverse
	// order would skip it forever behind the terminal check above.
	if err := p.keywords.Rebuild(ctx, img.DocumentID, img.PageNumber, *analysis); err != nil {
		return p.failImage(ctx, log, img, fmt.Errorf("rebuild keywords: %w", err))
	}

	if err := p.images.SetAnalyzed(ctx, img.ID, *analysis); err != nil {
		if errors.Is(err, images.ErrTerminal) {
			// A concurrent duplicate delivery won the transition.
			return p.checkCompletion(ctx, img.DocumentID)
		}
		return fmt.Errorf("mark analyzed: %w", err)
	}

	log.Info("page analyzed",
		"document_id", img.DocumentID,
		"page", img.PageNumber,
		"labels", len(analysis.Labels),
		"objects", len(analysis.Objects))

	return p.checkCompletion(ctx, img.DocumentID)
}

// failImage records the analysis failure on the image, re-checks document
// completion, and propagates the cause for queue retry bookkeeping. An
// image that already left pending keeps its original terminal state.
func (p *Pipeline) failImage(ctx context.Context, log *slog.Logger, img *images.Image, cause error) error {
	if err := p.images.SetFailed(ctx, img.ID, cause.Error()); err != nil && !errors.Is(err, images.ErrTerminal) {
		log.Error("recording failure on image", "error", err, "cause", cause)
	}
	if err := p.checkCompletion(ctx, img.DocumentID); err != nil {
		log.Error("completion check after image failure", "error", err)
	}
	return cause
}

// imageExhausted marks an image failed once its analysis job has no
// attempts left, so the owning document's pending count can reach zero.
func (p *Pipeline) imageExhausted(ctx context.Context, d *queue.Delivery, cause error) {
	var job ImageJob
	if err := json.Unmarshal(d.Payload, &job); err != nil {
		p.logger.Error("exhausted image job has undecodable payload", "job_id", d.ID, "error", err)
		return
	}

	if err := p.images.SetFailed(ctx, job.ImageID, cause.Error()); err != nil {
		if !errors.Is(err, images.ErrTerminal) && !errors.Is(err, images.ErrNotFound) {
			p.logger.Error("marking exhausted image failed",
				"image_id", job.ImageID,
				"job_id", d.ID,
				"error", err)
			return
		}
	}

	if err := p.checkCompletion(ctx, job.DocumentID); err != nil {
		p.logger.Error("completion check after exhausted image",
			"document_id", job.DocumentID,
			"error", err)
	}
}

// checkCompletion re-reads the document's pending page count and, when it
// reaches zero, attempts the completion transition. The count is always a
// fresh read after the caller's own update committed; the transition is
// conditional in the store, so concurrent observers complete the document
// exactly once and failed documents stay failed.
func (p *Pipeline) checkCompletion(ctx context.Context, documentID uuid.UUID) error {
	pending, err := p.images.CountPending(ctx, documentID)
	if err != nil {
		return fmt.Errorf("count pending pages: %w", err)
	}
	if pending > 0 {
		return nil
	}

	completed, err := p.documents.Complete(ctx, documentID)
	if err != nil {
		return fmt.Errorf("complete document: %w", err)
	}
	if completed {
		p.logger.Info("all pages terminal, document completed", "document_id", documentID)
	}
	return nil
}
