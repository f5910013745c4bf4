package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

type QuestionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error)
  ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Question, error)
  ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Question, error)
  // RecordUsage bumps the usage counters atomically; concurrent sessions may
  // answer the same item at once.
  RecordUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID, correct bool) error
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  // UpdateParameters is the calibration write path: new 4PL parameters plus
  // the snapshot version they belong to.
  UpdateParameters(ctx context.Context, tx *gorm.DB, id uuid.UUID, a, b, c, d float64, snapshotVersion int64) error
  MaxSnapshotVersion(ctx context.Context, tx *gorm.DB) (int64, error)
  SetActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, active bool) error
}

type questionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
  return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(questions) == 0 {
    return []*types.Question{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&questions).Error; err != nil {
    return nil, err
  }
  return questions, nil
}

func (r *questionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Question
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *questionRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Question
  if err := transaction.WithContext(ctx).
    Where("active = ?", true).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *questionRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Question
  if err := transaction.WithContext(ctx).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *questionRepo) RecordUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID, correct bool) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  updates := map[string]interface{}{
    "times_asked": gorm.Expr("times_asked + 1"),
  }
  if correct {
    updates["times_correct"] = gorm.Expr("times_correct + 1")
  }
  return transaction.WithContext(ctx).
    Model(&types.Question{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *questionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(updates) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.Question{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *questionRepo) UpdateParameters(ctx context.Context, tx *gorm.DB, id uuid.UUID, a, b, c, d float64, snapshotVersion int64) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Model(&types.Question{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "discrimination":   a,
      "difficulty":       b,
      "guessing":         c,
      "upper_asymptote":  d,
      "snapshot_version": snapshotVersion,
    }).Error
}

func (r *questionRepo) MaxSnapshotVersion(ctx context.Context, tx *gorm.DB) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var version int64
  err := transaction.WithContext(ctx).
    Model(&types.Question{}).
    Select("COALESCE(MAX(snapshot_version), 1)").
    Scan(&version).Error
  if err != nil {
    return 0, err
  }
  return version, nil
}

func (r *questionRepo) SetActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, active bool) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Model(&types.Question{}).
    Where("id = ?", id).
    Update("active", active).Error
}
