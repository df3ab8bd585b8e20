package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/docsight/docsight/internal/config"
	"github.com/docsight/docsight/internal/queue"
)

// Supervisor runs the pipeline's periodic maintenance: health reporting on
// a short interval and terminal-job cleanup on a long one. It observes and
// prunes queue bookkeeping only; domain records are never touched.
type Supervisor struct {
	queue          *queue.Queue
	healthInterval time.Duration
	cleanupEvery   time.Duration
	retention      time.Duration
	logger         *slog.Logger

	wg sync.WaitGroup
}

// NewSupervisor creates a supervisor over the shared queue.
func NewSupervisor(q *queue.Queue, cfg *config.QueueConfig, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		queue:          q,
		healthInterval: cfg.HealthIntervalValue(),
		cleanupEvery:   cfg.CleanupIntervalValue(),
		retention:      cfg.RetentionValue(),
		logger:         logger.With("system", "supervisor"),
	}
}

// Start launches the health and cleanup loops. They stop when ctx is
// cancelled; call Wait to block on shutdown.
func (s *Supervisor) Start(ctx context.Context) {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.healthLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.cleanupLoop(ctx)
	}()

	s.logger.Info("supervisor started",
		"health_interval", s.healthInterval,
		"cleanup_interval", s.cleanupEvery,
		"retention", s.retention)
}

// Wait blocks until both loops have exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reportHealth(ctx)
		}
	}
}

func (s *Supervisor) reportHealth(ctx context.Context) {
	for _, stage := range Stages {
		stats, err := s.queue.Stats(ctx, stage)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("health check failed", "stage", stage, "error", err)
			}
			continue
		}
		s.logger.Info("queue health",
			"stage", stats.Stage,
			"waiting", stats.Waiting,
			"active", stats.Active,
			"completed", stats.Completed,
			"failed", stats.Failed)
	}
}

func (s *Supervisor) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *Supervisor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention).UnixMilli()
	for _, stage := range Stages {
		removed, err := s.queue.Clean(ctx, stage, cutoff)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("cleanup failed", "stage", stage, "error", err)
			}
			continue
		}
		if removed > 0 {
			s.logger.Info("terminal jobs cleaned", "stage", stage, "removed", removed)
		}
	}
}
