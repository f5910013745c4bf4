package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
)

type EffectivenessEvent struct {
	QuestionID      uuid.UUID
	Score           float64
	PredictionError float64
	Information     float64
	At              time.Time
}

// EffectivenessPipeline folds response outcomes into the per-question
// aggregate table. It runs off the interview path: Emit never blocks the
// caller, writes are retried, and a full buffer drops the event with a
// warning rather than stalling a live session.
type EffectivenessPipeline struct {
	log     *logger.Logger
	repo    repos.EffectivenessRepo
	events  chan EffectivenessEvent
	retries int
}

func NewEffectivenessPipeline(repo repos.EffectivenessRepo, baseLog *logger.Logger) *EffectivenessPipeline {
	return &EffectivenessPipeline{
		log:     baseLog.With("component", "EffectivenessPipeline"),
		repo:    repo,
		events:  make(chan EffectivenessEvent, 1024),
		retries: 3,
	}
}

func (p *EffectivenessPipeline) Emit(ev EffectivenessEvent) {
	select {
	case p.events <- ev:
	default:
		p.log.Warn("Effectiveness buffer full, dropping event", "question_id", ev.QuestionID)
	}
}

func (p *EffectivenessPipeline) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-p.events:
				p.record(ctx, ev)
			}
		}
	}()
}

func (p *EffectivenessPipeline) record(ctx context.Context, ev EffectivenessEvent) {
	var err error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		err = p.repo.Record(ctx, nil, ev.QuestionID, ev.Score, ev.PredictionError, ev.Information, ev.At)
		if err == nil {
			return
		}
	}
	p.log.Error("Effectiveness aggregation failed after retries", "question_id", ev.QuestionID, "error", err)
}

// Drain processes whatever is buffered right now, synchronously. Tests use
// it instead of racing the consumer goroutine.
func (p *EffectivenessPipeline) Drain(ctx context.Context) {
	for {
		select {
		case ev := <-p.events:
			p.record(ctx, ev)
		default:
			return
		}
	}
}
