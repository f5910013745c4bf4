package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BiasDetectionResult is one differential-item-functioning verdict for a
// question, produced by the bias monitor. InterventionRequired is a soft
// flag for human review; it never deactivates an item by itself.
type BiasDetectionResult struct {
	ID                   uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	QuestionID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"question_id"`
	Question             *Question      `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID;references:ID" json:"question,omitempty"`
	OverallBiasScore     float64        `gorm:"column:overall_bias_score;not null" json:"overall_bias_score"`
	Confidence           float64        `gorm:"column:confidence;not null" json:"confidence"`
	InterventionRequired bool           `gorm:"column:intervention_required;not null;default:false;index" json:"intervention_required"`
	GroupDivergence      datatypes.JSON `gorm:"type:jsonb;column:group_divergence" json:"group_divergence,omitempty"`
	SampleSize           int64          `gorm:"column:sample_size;not null;default:0" json:"sample_size"`
	CreatedAt            time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (BiasDetectionResult) TableName() string { return "bias_detection_result" }
