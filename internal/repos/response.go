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

type ResponseRepo interface {
  // Create inserts the row; a (session_id, question_id) conflict is reported
  // as types.ErrDuplicateResponse, not as a write.
  Create(ctx context.Context, tx *gorm.DB, response *types.Response) (*types.Response, error)
  GetBySessionAndQuestion(ctx context.Context, tx *gorm.DB, sessionID, questionID uuid.UUID) (*types.Response, error)
  ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Response, error)
  ListByQuestion(ctx context.Context, tx *gorm.DB, questionID uuid.UUID) ([]*types.Response, error)
  ListByQuestionWithDemographics(ctx context.Context, tx *gorm.DB, questionID uuid.UUID) ([]*types.Response, error)
  CountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error)
  DistinctQuestionIDsSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]uuid.UUID, error)
}

type responseRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewResponseRepo(db *gorm.DB, baseLog *logger.Logger) ResponseRepo {
  return &responseRepo{db: db, log: baseLog.With("repo", "ResponseRepo")}
}

func (r *responseRepo) Create(ctx context.Context, tx *gorm.DB, response *types.Response) (*types.Response, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if response == nil {
    return nil, errors.New("nil response")
  }
  res := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
      DoNothing: true,
    }).
    Create(response)
  if res.Error != nil {
    return nil, res.Error
  }
  if res.RowsAffected == 0 {
    return nil, types.ErrDuplicateResponse
  }
  return response, nil
}

func (r *responseRepo) GetBySessionAndQuestion(ctx context.Context, tx *gorm.DB, sessionID, questionID uuid.UUID) (*types.Response, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var response types.Response
  err := transaction.WithContext(ctx).
    Where("session_id = ? AND question_id = ?", sessionID, questionID).
    Limit(1).
    Find(&response).Error
  if err != nil {
    return nil, err
  }
  if response.ID == uuid.Nil {
    return nil, nil
  }
  return &response, nil
}

func (r *responseRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Response, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Response
  if err := transaction.WithContext(ctx).
    Where("session_id = ?", sessionID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *responseRepo) ListByQuestion(ctx context.Context, tx *gorm.DB, questionID uuid.UUID) ([]*types.Response, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Response
  if err := transaction.WithContext(ctx).
    Where("question_id = ?", questionID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *responseRepo) ListByQuestionWithDemographics(ctx context.Context, tx *gorm.DB, questionID uuid.UUID) ([]*types.Response, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Response
  if err := transaction.WithContext(ctx).
    Where("question_id = ? AND demographic_group <> ''", questionID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *responseRepo) CountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  err := transaction.WithContext(ctx).
    Model(&types.Response{}).
    Where("created_at > ?", since).
    Count(&count).Error
  return count, err
}

func (r *responseRepo) DistinctQuestionIDsSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]uuid.UUID, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var ids []uuid.UUID
  err := transaction.WithContext(ctx).
    Model(&types.Response{}).
    Where("created_at > ?", since).
    Distinct("question_id").
    Pluck("question_id", &ids).Error
  return ids, err
}
