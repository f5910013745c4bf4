package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

type BiasResultRepo interface {
  Create(ctx context.Context, tx *gorm.DB, results []*types.BiasDetectionResult) ([]*types.BiasDetectionResult, error)
  GetLatestByQuestion(ctx context.Context, tx *gorm.DB, questionID uuid.UUID) (*types.BiasDetectionResult, error)
  GetLatestByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.BiasDetectionResult, error)
  ListInterventionRequired(ctx context.Context, tx *gorm.DB) ([]*types.BiasDetectionResult, error)
}

type biasResultRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewBiasResultRepo(db *gorm.DB, baseLog *logger.Logger) BiasResultRepo {
  return &biasResultRepo{db: db, log: baseLog.With("repo", "BiasResultRepo")}
}

func (r *biasResultRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.BiasDetectionResult) ([]*types.BiasDetectionResult, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(results) == 0 {
    return []*types.BiasDetectionResult{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *biasResultRepo) GetLatestByQuestion(ctx context.Context, tx *gorm.DB, questionID uuid.UUID) (*types.BiasDetectionResult, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var result types.BiasDetectionResult
  err := transaction.WithContext(ctx).
    Where("question_id = ?", questionID).
    Order("created_at DESC").
    Limit(1).
    Find(&result).Error
  if err != nil {
    return nil, err
  }
  if result.ID == uuid.Nil {
    return nil, nil
  }
  return &result, nil
}

func (r *biasResultRepo) GetLatestByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.BiasDetectionResult, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  results := make([]*types.BiasDetectionResult, 0, len(questionIDs))
  for _, id := range questionIDs {
    latest, err := r.GetLatestByQuestion(ctx, transaction, id)
    if err != nil {
      return nil, err
    }
    if latest != nil {
      results = append(results, latest)
    }
  }
  return results, nil
}

func (r *biasResultRepo) ListInterventionRequired(ctx context.Context, tx *gorm.DB) ([]*types.BiasDetectionResult, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.BiasDetectionResult
  if err := transaction.WithContext(ctx).
    Where("intervention_required = ?", true).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
