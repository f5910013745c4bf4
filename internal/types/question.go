package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	QuestionTypeTechnical    = "technical"
	QuestionTypeCoding       = "coding"
	QuestionTypeSystemDesign = "system_design"
	QuestionTypeBehavioral   = "behavioral"
	QuestionTypeConceptual   = "conceptual"
)

// Question is a calibrated item in the bank. Item parameters follow the
// 4PL model; a 2PL-authored item carries Guessing=0, UpperAsymptote=1.
// Usage stats are written only by the response recorder, item parameters
// only by the calibration engine.
type Question struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Text             string         `gorm:"column:text;not null" json:"text"`
	Type             string         `gorm:"column:type;not null;index" json:"type"`
	Difficulty       float64        `gorm:"column:difficulty;not null" json:"difficulty"`
	Discrimination   float64        `gorm:"column:discrimination;not null" json:"discrimination"`
	Guessing         float64        `gorm:"column:guessing;not null;default:0" json:"guessing"`
	UpperAsymptote   float64        `gorm:"column:upper_asymptote;not null;default:1" json:"upper_asymptote"`
	Technologies     datatypes.JSON `gorm:"type:jsonb;column:technologies" json:"technologies"`
	SkillAreas       datatypes.JSON `gorm:"type:jsonb;column:skill_areas" json:"skill_areas"`
	AnswerKey        datatypes.JSON `gorm:"type:jsonb;column:answer_key" json:"answer_key,omitempty"`
	Active           bool           `gorm:"column:active;not null;default:true;index" json:"active"`
	Validated        bool           `gorm:"column:validated;not null;default:false" json:"validated"`
	TimesAsked       int64          `gorm:"column:times_asked;not null;default:0" json:"times_asked"`
	TimesCorrect     int64          `gorm:"column:times_correct;not null;default:0" json:"times_correct"`
	AvgResponseMS    float64        `gorm:"column:avg_response_ms;not null;default:0" json:"avg_response_ms"`
	EngagementScore  float64        `gorm:"column:engagement_score;not null;default:0" json:"engagement_score"`
	InformationValue float64        `gorm:"column:information_value;not null;default:0" json:"information_value"`
	BiasScore        float64        `gorm:"column:bias_score;not null;default:0" json:"bias_score"`
	ReviewRequired   bool           `gorm:"column:review_required;not null;default:false" json:"review_required"`
	ReviewReason     string         `gorm:"column:review_reason" json:"review_reason,omitempty"`
	SnapshotVersion  int64          `gorm:"column:snapshot_version;not null;default:1;index" json:"snapshot_version"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Question) TableName() string { return "question" }
