package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

type SessionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, session *types.InterviewSession) (*types.InterviewSession, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.InterviewSession, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  // AdvanceStatus transitions the session forward. It refuses backward or
  // terminal-to-anything moves and reports how many rows changed so callers
  // can detect a lost race.
  AdvanceStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string) error
}

type sessionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
  return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.InterviewSession) (*types.InterviewSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if session == nil {
    return nil, errors.New("nil session")
  }
  if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
    return nil, err
  }
  return session, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.InterviewSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var session types.InterviewSession
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&session).Error
  if err != nil {
    return nil, err
  }
  if session.ID == uuid.Nil {
    return nil, types.ErrSessionNotFound
  }
  return &session, nil
}

func (r *sessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(updates) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.InterviewSession{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *sessionRepo) AdvanceStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if !types.SessionStatusCanAdvance(from, to) {
    return types.ErrInvalidSessionState
  }
  res := transaction.WithContext(ctx).
    Model(&types.InterviewSession{}).
    Where("id = ? AND status = ?", id, from).
    Update("status", to)
  if res.Error != nil {
    return res.Error
  }
  if res.RowsAffected == 0 {
    return types.ErrInvalidSessionState
  }
  return nil
}
