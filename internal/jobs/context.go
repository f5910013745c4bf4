package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

// Context is the execution handle for one claimed run. Handlers report
// lifecycle through Progress/Fail/Succeed; they never write the run row
// directly.
type Context struct {
	Ctx  context.Context
	DB   *gorm.DB
	Run  *types.CalibrationRun
	Repo repos.CalibrationRunRepo
}

func NewContext(ctx context.Context, db *gorm.DB, run *types.CalibrationRun, repo repos.CalibrationRunRepo) *Context {
	return &Context{Ctx: ctx, DB: db, Run: run, Repo: repo}
}

// Progress persists the current stage and refreshes the heartbeat so a
// long-running run is not requeued as stale.
func (c *Context) Progress(stage string) {
	if c == nil || c.Run == nil || c.Run.ID == uuid.Nil {
		return
	}
	now := time.Now()
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Run.ID, map[string]interface{}{
		"stage":        stage,
		"heartbeat_at": now,
	})
	c.Run.Stage = stage
	c.Run.HeartbeatAt = &now
}

func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Run == nil || c.Run.ID == uuid.Nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Run.ID, map[string]interface{}{
		"status":        types.RunStatusFailed,
		"stage":         stage,
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
	})
	c.Run.Status = types.RunStatusFailed
	c.Run.Stage = stage
	c.Run.Error = msg
	c.Run.LastErrorAt = &now
	c.Run.LockedAt = nil
}

func (c *Context) Succeed(finalStage string, metadata datatypes.JSON) {
	if c == nil || c.Run == nil || c.Run.ID == uuid.Nil {
		return
	}
	now := time.Now()
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Run.ID, map[string]interface{}{
		"status":       types.RunStatusSucceeded,
		"stage":        finalStage,
		"error":        "",
		"metadata":     metadata,
		"locked_at":    nil,
		"heartbeat_at": now,
	})
	c.Run.Status = types.RunStatusSucceeded
	c.Run.Stage = finalStage
	c.Run.Error = ""
	c.Run.Metadata = metadata
	c.Run.LockedAt = nil
	c.Run.HeartbeatAt = &now
}
