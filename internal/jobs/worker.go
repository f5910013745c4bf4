package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
)

type Worker struct {
	db             *gorm.DB
	log            *logger.Logger
	repo           repos.CalibrationRunRepo
	registry       *Registry
	heartbeatEvery time.Duration
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.CalibrationRunRepo, registry *Registry) *Worker {
	return &Worker{
		db:             db,
		log:            baseLog.With("component", "JobWorker"),
		repo:           repo,
		registry:       registry,
		heartbeatEvery: 30 * time.Second,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()
}

// runOnce claims at most one runnable row and executes it. Returns whether
// a run was claimed.
func (w *Worker) runOnce(ctx context.Context) bool {
	const maxAttempts = 3
	retryDelay := 30 * time.Second
	staleRunning := 5 * time.Minute

	run, err := w.repo.ClaimNextRunnable(ctx, w.db, maxAttempts, retryDelay, staleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "error", err)
		return false
	}
	if run == nil {
		return false
	}
	jc := NewContext(ctx, w.db, run, w.repo)
	h, ok := w.registry.Get(run.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "job_type", run.JobType, "run_id", run.ID)
		jc.Fail("dispatch", &missingHandlerError{JobType: run.JobType})
		return true
	}

	// Refresh the heartbeat while the handler runs, so a slow batch pass
	// is not requeued as stale mid-execution.
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(w.heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := w.repo.Heartbeat(hbCtx, nil, run.ID); err != nil {
					w.log.Warn("Heartbeat failed", "run_id", run.ID, "error", err)
				}
			}
		}
	}()
	defer stopHeartbeat()

	// A handler panic must mark the run failed, not kill the loop.
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic", "run_id", run.ID, "job_type", run.JobType, "panic", r)
			jc.Fail("panic", errFromRecover(r))
		}
	}()
	if err := h.Run(jc); err != nil {
		w.log.Warn("Job handler failed", "run_id", run.ID, "job_type", run.JobType, "error", err)
	}
	return true
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error {
	return &panicError{Val: v}
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return "panic: unexpected error" }
