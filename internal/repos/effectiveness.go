package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

type EffectivenessRepo interface {
  // Record folds one response into the per-question aggregate.
  Record(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, score, predictionError, information float64, at time.Time) error
  // ListWithSampleAtLeast returns the aggregates the calibration engine
  // considers dense enough to re-estimate from.
  ListWithSampleAtLeast(ctx context.Context, tx *gorm.DB, minSample int64) ([]*types.EffectivenessLogEntry, error)
}

type effectivenessRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewEffectivenessRepo(db *gorm.DB, baseLog *logger.Logger) EffectivenessRepo {
  return &effectivenessRepo{db: db, log: baseLog.With("repo", "EffectivenessRepo")}
}

func (r *effectivenessRepo) Record(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, score, predictionError, information float64, at time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  entry := &types.EffectivenessLogEntry{
    ID:                  uuid.New(),
    QuestionID:          questionID,
    SampleSize:          1,
    MeanScore:           score,
    MeanPredictionError: predictionError,
    MeanInformation:     information,
    LastResponseAt:      &at,
  }
  // Running means update in a single statement so concurrent recorders
  // cannot clobber each other.
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "question_id"}},
      DoUpdates: clause.Assignments(map[string]interface{}{
        "mean_score":            gorm.Expr("(effectiveness_log_entry.mean_score * effectiveness_log_entry.sample_size + ?) / (effectiveness_log_entry.sample_size + 1)", score),
        "mean_prediction_error": gorm.Expr("(effectiveness_log_entry.mean_prediction_error * effectiveness_log_entry.sample_size + ?) / (effectiveness_log_entry.sample_size + 1)", predictionError),
        "mean_information":      gorm.Expr("(effectiveness_log_entry.mean_information * effectiveness_log_entry.sample_size + ?) / (effectiveness_log_entry.sample_size + 1)", information),
        "sample_size":           gorm.Expr("effectiveness_log_entry.sample_size + 1"),
        "last_response_at":      at,
      }),
    }).
    Create(entry).Error
}

func (r *effectivenessRepo) ListWithSampleAtLeast(ctx context.Context, tx *gorm.DB, minSample int64) ([]*types.EffectivenessLogEntry, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.EffectivenessLogEntry
  if err := transaction.WithContext(ctx).
    Where("sample_size >= ?", minSample).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
