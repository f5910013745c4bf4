package services

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/bank"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/config"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/irt"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

// CalibrationWatcher enqueues a calibration run once enough new responses
// have accumulated. The live path only bumps a counter; everything else is
// the batch worker's problem.
type CalibrationWatcher struct {
	log      *logger.Logger
	runRepo  repos.CalibrationRunRepo
	triggerN int64
	count    atomic.Int64
}

func NewCalibrationWatcher(runRepo repos.CalibrationRunRepo, policy config.Policy, baseLog *logger.Logger) *CalibrationWatcher {
	triggerN := int64(policy.CalibrationTriggerN)
	if !policy.AutoCalibration {
		// Manual triggering via the API stays available.
		triggerN = 0
	}
	return &CalibrationWatcher{
		log:      baseLog.With("component", "CalibrationWatcher"),
		runRepo:  runRepo,
		triggerN: triggerN,
	}
}

func (w *CalibrationWatcher) NoteResponse(ctx context.Context) {
	if w.triggerN <= 0 {
		return
	}
	if w.count.Add(1)%w.triggerN != 0 {
		return
	}
	if _, err := w.enqueue(ctx); err != nil {
		w.log.Warn("Calibration auto-enqueue failed", "error", err)
	}
}

func (w *CalibrationWatcher) enqueue(ctx context.Context) (*types.CalibrationRun, error) {
	active, err := w.runRepo.HasActive(ctx, nil, types.JobTypeCalibration)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, nil
	}
	run := &types.CalibrationRun{
		ID:      uuid.New(),
		JobType: types.JobTypeCalibration,
		Status:  types.RunStatusQueued,
		Stage:   "queued",
	}
	return w.runRepo.Enqueue(ctx, nil, run)
}

type CalibrationReport struct {
	ItemsExamined   int   `json:"items_examined"`
	ItemsUpdated    int   `json:"items_updated"`
	ItemsSkipped    int   `json:"items_skipped"`
	ItemsFlagged    int   `json:"items_flagged"`
	SnapshotVersion int64 `json:"snapshot_version"`
}

type CalibrationService interface {
	// Trigger enqueues a run unless one is already queued or running, in
	// which case the existing pressure is enough and nil is returned.
	Trigger(ctx context.Context) (*types.CalibrationRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (*types.CalibrationRun, error)
	// Run executes one full recalibration pass. It is invoked by the batch
	// worker, never by the interview path.
	Run(ctx context.Context, stage func(string)) (*CalibrationReport, error)
}

type calibrationService struct {
	db                *gorm.DB
	log               *logger.Logger
	policy            config.Policy
	questionRepo      repos.QuestionRepo
	responseRepo      repos.ResponseRepo
	effectivenessRepo repos.EffectivenessRepo
	runRepo           repos.CalibrationRunRepo
	bankStore         *bank.Store
}

func NewCalibrationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	questionRepo repos.QuestionRepo,
	responseRepo repos.ResponseRepo,
	effectivenessRepo repos.EffectivenessRepo,
	runRepo repos.CalibrationRunRepo,
	bankStore *bank.Store,
) CalibrationService {
	return &calibrationService{
		db:                db,
		log:               baseLog.With("service", "CalibrationService"),
		policy:            policy,
		questionRepo:      questionRepo,
		responseRepo:      responseRepo,
		effectivenessRepo: effectivenessRepo,
		runRepo:           runRepo,
		bankStore:         bankStore,
	}
}

func (s *calibrationService) Trigger(ctx context.Context) (*types.CalibrationRun, error) {
	active, err := s.runRepo.HasActive(ctx, nil, types.JobTypeCalibration)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, nil
	}
	run := &types.CalibrationRun{
		ID:      uuid.New(),
		JobType: types.JobTypeCalibration,
		Status:  types.RunStatusQueued,
		Stage:   "queued",
	}
	return s.runRepo.Enqueue(ctx, nil, run)
}

func (s *calibrationService) GetRun(ctx context.Context, id uuid.UUID) (*types.CalibrationRun, error) {
	return s.runRepo.GetByID(ctx, nil, id)
}

func (s *calibrationService) Run(ctx context.Context, stage func(string)) (*CalibrationReport, error) {
	if stage == nil {
		stage = func(string) {}
	}
	stage("load_items")
	questions, err := s.questionRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	// The effectiveness aggregate decides which items are dense enough to
	// touch; raw response rows are only fetched for those.
	entries, err := s.effectivenessRepo.ListWithSampleAtLeast(ctx, nil, int64(s.policy.MinCalibrationSample))
	if err != nil {
		return nil, err
	}
	aggregates := make(map[uuid.UUID]*types.EffectivenessLogEntry, len(entries))
	for _, entry := range entries {
		aggregates[entry.QuestionID] = entry
	}
	currentVersion, err := s.questionRepo.MaxSnapshotVersion(ctx, nil)
	if err != nil {
		return nil, err
	}
	newVersion := currentVersion + 1

	stage("estimate_parameters")
	report := &CalibrationReport{SnapshotVersion: newVersion}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, q := range questions {
		q := q
		g.Go(func() error {
			mu.Lock()
			report.ItemsExamined++
			mu.Unlock()

			// Sparse items keep their parameters: updating on a handful of
			// responses overfits.
			aggregate, dense := aggregates[q.ID]
			if !dense {
				mu.Lock()
				report.ItemsSkipped++
				mu.Unlock()
				return nil
			}

			rows, err := s.responseRepo.ListByQuestion(gctx, nil, q.ID)
			if err != nil {
				return err
			}
			if len(rows) < s.policy.MinCalibrationSample {
				mu.Lock()
				report.ItemsSkipped++
				mu.Unlock()
				return nil
			}

			fitted := s.fitItem(irt.ParamsFromQuestion(q), rows)
			if fitted.Validate() != nil {
				// Never write parameters the ingest gate would refuse.
				mu.Lock()
				report.ItemsSkipped++
				mu.Unlock()
				return nil
			}

			flagged, reason := s.reviewFlags(q, fitted, aggregate)
			if err := s.questionRepo.UpdateParameters(gctx, nil, q.ID, fitted.A, fitted.B, fitted.C, fitted.D, newVersion); err != nil {
				return err
			}
			if flagged {
				if err := s.questionRepo.UpdateFields(gctx, nil, q.ID, map[string]interface{}{
					"review_required": true,
					"review_reason":   reason,
				}); err != nil {
					return err
				}
			}

			mu.Lock()
			report.ItemsUpdated++
			if flagged {
				report.ItemsFlagged++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if report.ItemsUpdated == 0 {
		s.log.Info("Calibration pass had no updatable items", "examined", report.ItemsExamined)
		return report, types.ErrCalibrationInsufficientData
	}

	stage("publish_snapshot")
	if _, err := s.bankStore.Refresh(ctx); err != nil {
		return nil, err
	}
	s.log.Info("Calibration pass complete",
		"examined", report.ItemsExamined,
		"updated", report.ItemsUpdated,
		"skipped", report.ItemsSkipped,
		"flagged", report.ItemsFlagged,
		"snapshot_version", newVersion,
	)
	return report, nil
}

// fitItem re-estimates the 4PL parameters via gradient sweeps of the joint
// likelihood, using each response's post-answer theta as the latent ability
// value for that candidate (the E step reuses the trajectory the estimator
// already produced; the M step below maximizes over the item parameters).
func (s *calibrationService) fitItem(p irt.Params, rows []*types.Response) irt.Params {
	sweeps := s.policy.CalibrationEMSweeps
	if sweeps <= 0 {
		sweeps = 5
	}
	n := float64(len(rows))
	const lrAB = 0.1
	const lrCD = 0.01

	for sweep := 0; sweep < sweeps; sweep++ {
		var gradA, gradB, gradC, gradD float64
		for _, row := range rows {
			theta := row.ThetaAfter
			z := p.A * (theta - p.B)
			u := 1 / (1 + math.Exp(-z))
			prob := p.C + (p.D-p.C)*u
			if prob <= 1e-9 || prob >= 1-1e-9 {
				continue
			}
			dLdP := (row.Score - prob) / (prob * (1 - prob))
			uPrime := u * (1 - u)
			gradA += dLdP * (p.D - p.C) * uPrime * (theta - p.B)
			gradB += dLdP * (p.D - p.C) * uPrime * -p.A
			gradC += dLdP * (1 - u)
			gradD += dLdP * u
		}
		p.A += lrAB * gradA / n
		p.B += lrAB * gradB / n
		p.C += lrCD * gradC / n
		p.D += lrCD * gradD / n
		p = clampParams(p)
	}
	return p
}

func clampParams(p irt.Params) irt.Params {
	p.A = clamp(p.A, 0.2, 3.0)
	p.B = clamp(p.B, -4, 4)
	p.C = clamp(p.C, 0, 0.35)
	p.D = clamp(p.D, 0.7, 1.0)
	if p.C >= p.D-0.05 {
		p.C = p.D - 0.05
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// reviewFlags marks items for human review; nothing here deactivates an
// item automatically. The degradation baseline is the mean information the
// item actually delivered, per the effectiveness aggregate, falling back to
// the live EMA when no aggregate exists.
func (s *calibrationService) reviewFlags(q *types.Question, fitted irt.Params, aggregate *types.EffectivenessLogEntry) (bool, string) {
	if fitted.A < s.policy.DiscriminationFloor {
		return true, "discrimination_below_floor"
	}
	baseline := q.InformationValue
	if aggregate != nil && aggregate.MeanInformation > 0 {
		baseline = aggregate.MeanInformation
	}
	if baseline > 0 {
		peak := irt.FisherInformation(fitted.B, fitted)
		if peak < 0.5*baseline {
			return true, "information_degraded"
		}
	}
	return false, ""
}

func MetadataFromReport(report *CalibrationReport) datatypes.JSON {
	if report == nil {
		return nil
	}
	raw, _ := json.Marshal(report)
	return datatypes.JSON(raw)
}
