package jobs

import (
	"context"
	"time"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/config"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

// Scheduler enqueues the interval-driven runs: recalibration every
// CalibrationInterval and a bias scan alongside it. Response-count
// triggering lives in the calibration watcher; this covers banks with
// low traffic. An interval with no new responses enqueues nothing.
type Scheduler struct {
	log       *logger.Logger
	repo      repos.CalibrationRunRepo
	responses repos.ResponseRepo
	policy    config.Policy
}

func NewScheduler(repo repos.CalibrationRunRepo, responses repos.ResponseRepo, policy config.Policy, baseLog *logger.Logger) *Scheduler {
	return &Scheduler{
		log:       baseLog.With("component", "JobScheduler"),
		repo:      repo,
		responses: responses,
		policy:    policy,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.policy.CalibrationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	count, err := s.responses.CountSince(ctx, nil, time.Now().Add(-s.policy.CalibrationInterval))
	if err != nil {
		s.log.Warn("Response count check failed", "error", err)
		return
	}
	if count == 0 {
		s.log.Debug("No responses this interval, skipping scheduled runs")
		return
	}
	s.enqueueIfIdle(ctx, types.JobTypeCalibration)
	s.enqueueIfIdle(ctx, types.JobTypeBiasScan)
}

func (s *Scheduler) enqueueIfIdle(ctx context.Context, jobType string) {
	active, err := s.repo.HasActive(ctx, nil, jobType)
	if err != nil {
		s.log.Warn("HasActive check failed", "job_type", jobType, "error", err)
		return
	}
	if active {
		return
	}
	run, err := s.repo.Enqueue(ctx, nil, &types.CalibrationRun{
		JobType: jobType,
		Status:  types.RunStatusQueued,
		Stage:   "queued",
	})
	if err != nil {
		s.log.Warn("Scheduled enqueue failed", "job_type", jobType, "error", err)
		return
	}
	s.log.Info("Scheduled run enqueued", "job_type", jobType, "run_id", run.ID)
}
