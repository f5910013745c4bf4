package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Response is the append-only record of one answered question. Rows are
// never updated after creation; a replayed submit returns the stored row.
type Response struct {
	ID                   uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID            uuid.UUID      `gorm:"type:uuid;not null;index:idx_session_question,unique" json:"session_id"`
	Session              *InterviewSession `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	QuestionID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_session_question,unique;index" json:"question_id"`
	Question             *Question      `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID;references:ID" json:"question,omitempty"`
	AnswerPayload        datatypes.JSON `gorm:"type:jsonb;column:answer_payload" json:"answer_payload,omitempty"`
	Score                float64        `gorm:"column:score;not null" json:"score"`
	ResponseTimeMS       int            `gorm:"column:response_time_ms;not null" json:"response_time_ms"`
	ThetaBefore          float64        `gorm:"column:theta_before;not null" json:"theta_before"`
	ThetaAfter           float64        `gorm:"column:theta_after;not null" json:"theta_after"`
	SEBefore             float64        `gorm:"column:se_before;not null" json:"se_before"`
	SEAfter              float64        `gorm:"column:se_after;not null" json:"se_after"`
	InformationProvided  float64        `gorm:"column:information_provided;not null" json:"information_provided"`
	PredictedProbability float64        `gorm:"column:predicted_probability;not null" json:"predicted_probability"`
	PredictionError      float64        `gorm:"column:prediction_error;not null" json:"prediction_error"`
	Anomalous            bool           `gorm:"column:anomalous;not null;default:false" json:"anomalous"`
	DemographicGroup     string         `gorm:"column:demographic_group;index" json:"demographic_group,omitempty"`
	CreatedAt            time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Response) TableName() string { return "response" }
