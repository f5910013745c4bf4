package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/bank"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/irt"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

type CreateQuestionInput struct {
	Text           string          `json:"text"`
	Type           string          `json:"type"`
	Difficulty     float64         `json:"difficulty"`
	Discrimination float64         `json:"discrimination"`
	Guessing       float64         `json:"guessing"`
	UpperAsymptote *float64        `json:"upper_asymptote,omitempty"`
	Technologies   []string        `json:"technologies"`
	SkillAreas     []string        `json:"skill_areas"`
	AnswerKey      json.RawMessage `json:"answer_key"`
}

type QuestionBankService interface {
	// CreateQuestions validates item parameters at ingest; malformed
	// parameters are refused here so runtime code never sees them.
	CreateQuestions(ctx context.Context, inputs []CreateQuestionInput) ([]*types.Question, error)
	SetActive(ctx context.Context, questionID uuid.UUID, active bool) error
}

type questionBankService struct {
	db           *gorm.DB
	log          *logger.Logger
	questionRepo repos.QuestionRepo
	bankStore    *bank.Store
}

func NewQuestionBankService(db *gorm.DB, baseLog *logger.Logger, questionRepo repos.QuestionRepo, bankStore *bank.Store) QuestionBankService {
	return &questionBankService{
		db:           db,
		log:          baseLog.With("service", "QuestionBankService"),
		questionRepo: questionRepo,
		bankStore:    bankStore,
	}
}

func (s *questionBankService) CreateQuestions(ctx context.Context, inputs []CreateQuestionInput) ([]*types.Question, error) {
	if len(inputs) == 0 {
		return []*types.Question{}, nil
	}
	snap := s.bankStore.Current()
	version := int64(1)
	if snap != nil {
		version = snap.Version()
	}

	questions := make([]*types.Question, 0, len(inputs))
	for i, input := range inputs {
		if input.Text == "" {
			return nil, fmt.Errorf("question %d: text required", i)
		}
		upper := 1.0
		if input.UpperAsymptote != nil {
			upper = *input.UpperAsymptote
		}
		params := irt.Params{
			A: input.Discrimination,
			B: input.Difficulty,
			C: input.Guessing,
			D: upper,
		}
		if err := params.Validate(); err != nil {
			return nil, fmt.Errorf("question %d (%q): %w", i, input.Text, err)
		}
		questions = append(questions, &types.Question{
			ID:              uuid.New(),
			Text:            input.Text,
			Type:            input.Type,
			Difficulty:      params.B,
			Discrimination:  params.A,
			Guessing:        params.C,
			UpperAsymptote:  params.D,
			Technologies:    types.StringsToJSON(input.Technologies),
			SkillAreas:      types.StringsToJSON(input.SkillAreas),
			AnswerKey:       datatypes.JSON(input.AnswerKey),
			Active:          true,
			SnapshotVersion: version,
		})
	}

	created, err := s.questionRepo.Create(ctx, nil, questions)
	if err != nil {
		return nil, err
	}
	if _, err := s.bankStore.Refresh(ctx); err != nil {
		s.log.Warn("Bank refresh after ingest failed", "error", err)
	}
	return created, nil
}

func (s *questionBankService) SetActive(ctx context.Context, questionID uuid.UUID, active bool) error {
	if err := s.questionRepo.SetActive(ctx, nil, questionID, active); err != nil {
		return err
	}
	_, err := s.bankStore.Refresh(ctx)
	return err
}
