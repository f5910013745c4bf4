package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EffectivenessLogEntry aggregates response rows per question. The async
// effectiveness pipeline upserts these; the calibration engine reads them to
// decide which items have enough fresh data to re-estimate.
type EffectivenessLogEntry struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	QuestionID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"question_id"`
	Question            *Question      `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID;references:ID" json:"question,omitempty"`
	SampleSize          int64          `gorm:"column:sample_size;not null;default:0" json:"sample_size"`
	MeanScore           float64        `gorm:"column:mean_score;not null;default:0" json:"mean_score"`
	MeanPredictionError float64        `gorm:"column:mean_prediction_error;not null;default:0" json:"mean_prediction_error"`
	MeanInformation     float64        `gorm:"column:mean_information;not null;default:0" json:"mean_information"`
	LastResponseAt      *time.Time     `gorm:"column:last_response_at" json:"last_response_at,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (EffectivenessLogEntry) TableName() string { return "effectiveness_log_entry" }
