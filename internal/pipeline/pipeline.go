// Package pipeline orchestrates the two-stage document processing flow:
// ingestion jobs rasterize uploaded PDFs into per-page images, analysis
// jobs run each image through the analyzer and complete the owning
// document once no page remains pending.
//
// Both stages consume from the durable queue under at-least-once delivery,
// so every handler mutation is an idempotent set of computed state. The
// document completion decision always re-reads the pending page count from
// the store after the triggering update commits.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docsight/docsight/internal/config"
	"github.com/docsight/docsight/internal/documents"
	"github.com/docsight/docsight/internal/images"
	"github.com/docsight/docsight/internal/keywords"
	"github.com/docsight/docsight/internal/queue"
	"github.com/docsight/docsight/internal/rasterize"
	"github.com/docsight/docsight/internal/storage"
	"github.com/docsight/docsight/internal/vision"
	"github.com/google/uuid"
)

// Queue stage names.
const (
	// StageDocuments carries ingestion jobs from upload to rasterization.
	StageDocuments = "document-processing"

	// StageImages carries per-page analysis jobs.
	StageImages = "image-analysis"
)

// Stages lists every pipeline stage, in flow order.
var Stages = []string{StageDocuments, StageImages}

// DocumentJob is the ingestion job payload. It identifies work; results
// live in the domain stores.
type DocumentJob struct {
	DocumentID uuid.UUID `json:"document_id"`
	StorageKey string    `json:"storage_key"`
}

// ImageJob is the analysis job payload for a single rendered page.
type ImageJob struct {
	ImageID    uuid.UUID `json:"image_id"`
	DocumentID uuid.UUID `json:"document_id"`
	StorageKey string    `json:"storage_key"`
}

// Pipeline wires the queue stages to the domain systems.
type Pipeline struct {
	queue      *queue.Queue
	documents  documents.System
	images     images.System
	keywords   keywords.System
	storage    storage.System
	rasterizer rasterize.Rasterizer
	analyzer   vision.Analyzer

	documentWorkers int
	imageWorkers    int
	logger          *slog.Logger
}

// New assembles the pipeline. It does not start any workers; call Start.
func New(
	q *queue.Queue,
	docs documents.System,
	imgs images.System,
	kws keywords.System,
	store storage.System,
	rasterizer rasterize.Rasterizer,
	analyzer vision.Analyzer,
	cfg *config.QueueConfig,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		queue:           q,
		documents:       docs,
		images:          imgs,
		keywords:        kws,
		storage:         store,
		rasterizer:      rasterizer,
		analyzer:        analyzer,
		documentWorkers: cfg.DocumentWorkers,
		imageWorkers:    cfg.ImageWorkers,
		logger:          logger.With("system", "pipeline"),
	}
}

// Start launches worker pools for both stages. Workers drain when ctx is
// cancelled; block on the queue's Wait for shutdown.
func (p *Pipeline) Start(ctx context.Context) error {
	err := p.queue.Consume(ctx, StageDocuments, queue.ConsumeOptions{
		Workers:     p.documentWorkers,
		Handler:     p.processDocument,
		OnExhausted: p.documentExhausted,
		OnStalled:   p.logStalled,
	})
	if err != nil {
		return fmt.Errorf("start document stage: %w", err)
	}

	err = p.queue.Consume(ctx, StageImages, queue.ConsumeOptions{
		Workers:     p.imageWorkers,
		Handler:     p.processImage,
		OnExhausted: p.imageExhausted,
		OnStalled:   p.logStalled,
	})
	if err != nil {
		return fmt.Errorf("start image stage: %w", err)
	}
	return nil
}

// EnqueueDocument submits an uploaded document for processing and returns
// the job ID. Satisfies the upload handler's ingestor dependency.
func (p *Pipeline) EnqueueDocument(ctx context.Context, documentID uuid.UUID, storageKey string) (string, error) {
	return p.queue.Enqueue(ctx, StageDocuments, DocumentJob{
		DocumentID: documentID,
		StorageKey: storageKey,
	})
}

// Stats reports queue depths for every stage.
func (p *Pipeline) Stats(ctx context.Context) ([]queue.Stats, error) {
	stats := make([]queue.Stats, 0, len(Stages))
	for _, stage := range Stages {
		s, err := p.queue.Stats(ctx, stage)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (p *Pipeline) logStalled(d *queue.Delivery) {
	p.logger.Warn("stalled job redelivered",
		"stage", d.Stage,
		"job_id", d.ID,
		"attempt", d.Attempt,
		"max_attempts", d.MaxAttempts)
}
