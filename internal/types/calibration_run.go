package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobTypeCalibration = "calibration"
	JobTypeBiasScan    = "bias_scan"

	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// CalibrationRun is the claim table for batch jobs (item recalibration and
// bias scans). Workers claim queued rows, heartbeat while running, and
// stale rows get requeued.
type CalibrationRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"` // calibration|bias_scan
	Status      string         `gorm:"column:status;not null;index" json:"status"`     // queued|running|succeeded|failed
	Stage       string         `gorm:"column:stage;not null" json:"stage"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string         `gorm:"column:error" json:"error"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CalibrationRun) TableName() string { return "calibration_run" }
