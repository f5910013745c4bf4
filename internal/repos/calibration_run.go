package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

type CalibrationRunRepo interface {
  Enqueue(ctx context.Context, tx *gorm.DB, run *types.CalibrationRun) (*types.CalibrationRun, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CalibrationRun, error)
  // ClaimNextRunnable picks one queued / retriable / stale-running row and
  // marks it running under SKIP LOCKED so concurrent workers never double
  // claim.
  ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.CalibrationRun, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  HasActive(ctx context.Context, tx *gorm.DB, jobType string) (bool, error)
}

type calibrationRunRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCalibrationRunRepo(db *gorm.DB, baseLog *logger.Logger) CalibrationRunRepo {
  return &calibrationRunRepo{db: db, log: baseLog.With("repo", "CalibrationRunRepo")}
}

func (r *calibrationRunRepo) Enqueue(ctx context.Context, tx *gorm.DB, run *types.CalibrationRun) (*types.CalibrationRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if run == nil {
    return nil, errors.New("nil run")
  }
  if run.Status == "" {
    run.Status = types.RunStatusQueued
  }
  if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
    return nil, err
  }
  return run, nil
}

func (r *calibrationRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CalibrationRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var run types.CalibrationRun
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&run).Error
  if err != nil {
    return nil, err
  }
  if run.ID == uuid.Nil {
    return nil, nil
  }
  return &run, nil
}

func (r *calibrationRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.CalibrationRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  now := time.Now()
  retryCutoff := now.Add(-retryDelay)
  staleCutoff := now.Add(-staleRunning)
  var claimed *types.CalibrationRun
  err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    var run types.CalibrationRun
    q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
      Where(`
        (
          status = ?
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.RunStatusQueued, types.RunStatusFailed, maxAttempts, retryCutoff, types.RunStatusRunning, staleCutoff).
      Order("created_at ASC")
    qErr := q.First(&run).Error
    if errors.Is(qErr, gorm.ErrRecordNotFound) {
      return nil
    }
    if qErr != nil {
      return qErr
    }
    uErr := txx.Model(&types.CalibrationRun{}).
      Where("id = ?", run.ID).
      Updates(map[string]interface{}{
        "status":       types.RunStatusRunning,
        "attempts":     gorm.Expr("attempts + 1"),
        "locked_at":    now,
        "heartbeat_at": now,
        "updated_at":   now,
      }).Error
    if uErr != nil {
      return uErr
    }
    claimed = &run
    return nil
  })
  if err != nil {
    return nil, err
  }
  return claimed, nil
}

func (r *calibrationRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  if updates == nil {
    updates = map[string]interface{}{}
  }
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  return transaction.WithContext(ctx).
    Model(&types.CalibrationRun{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *calibrationRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  now := time.Now()
  return transaction.WithContext(ctx).
    Model(&types.CalibrationRun{}).
    Where("id = ? AND status = ?", id, types.RunStatusRunning).
    Updates(map[string]interface{}{
      "heartbeat_at": now,
      "updated_at":   now,
    }).Error
}

func (r *calibrationRunRepo) HasActive(ctx context.Context, tx *gorm.DB, jobType string) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  err := transaction.WithContext(ctx).
    Model(&types.CalibrationRun{}).
    Where("job_type = ? AND status IN ?", jobType, []string{types.RunStatusQueued, types.RunStatusRunning}).
    Count(&count).Error
  if err != nil {
    return false, err
  }
  return count > 0, nil
}
