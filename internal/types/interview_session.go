package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionStatusScheduled  = "scheduled"
	SessionStatusInProgress = "in_progress"
	SessionStatusCompleted  = "completed"
	SessionStatusCancelled  = "cancelled"
)

// SessionStatusCanAdvance reports whether a session may move from -> to.
// Transitions only run forward; terminal states never change again.
func SessionStatusCanAdvance(from, to string) bool {
	switch from {
	case SessionStatusScheduled:
		return to == SessionStatusInProgress || to == SessionStatusCancelled
	case SessionStatusInProgress:
		return to == SessionStatusCompleted || to == SessionStatusCancelled
	}
	return false
}

func SessionStatusTerminal(status string) bool {
	return status == SessionStatusCompleted || status == SessionStatusCancelled
}

type InterviewSession struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CandidateID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"candidate_id"`
	Status          string         `gorm:"column:status;not null;index" json:"status"` // scheduled|in_progress|completed|cancelled
	JobRole         string         `gorm:"column:job_role" json:"job_role"`
	ExperienceLevel string         `gorm:"column:experience_level" json:"experience_level"`
	Technologies    datatypes.JSON `gorm:"type:jsonb;column:technologies" json:"technologies"`
	SkillAreas      datatypes.JSON `gorm:"type:jsonb;column:skill_areas" json:"skill_areas"`
	CurrentTheta    float64        `gorm:"column:current_theta;not null;default:0" json:"current_theta"`
	CurrentSE       float64        `gorm:"column:current_se;not null;default:1" json:"current_se"`
	AskedIDs        datatypes.JSON `gorm:"type:jsonb;column:asked_ids" json:"asked_ids"`
	MinQuestions    int            `gorm:"column:min_questions;not null" json:"min_questions"`
	MaxQuestions    int            `gorm:"column:max_questions;not null" json:"max_questions"`
	TargetSE        float64        `gorm:"column:target_se;not null" json:"target_se"`
	SnapshotVersion int64          `gorm:"column:snapshot_version;not null" json:"snapshot_version"`
	LowConfidence   bool           `gorm:"column:low_confidence;not null;default:false" json:"low_confidence"`
	TerminatedFor   string         `gorm:"column:terminated_for" json:"terminated_for,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (InterviewSession) TableName() string { return "interview_session" }
