package services

import (
	"context"
	"errors"
	"testing"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/bank"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

func TestCreateQuestionsValidatesAndDefaults(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNop()
	questionRepo := newFakeQuestionRepo()
	bankStore := bank.NewStore(questionRepo, log)
	if _, err := bankStore.Refresh(ctx); err != nil {
		t.Fatalf("bank refresh: %v", err)
	}
	svc := NewQuestionBankService(nil, log, questionRepo, bankStore)

	created, err := svc.CreateQuestions(ctx, []CreateQuestionInput{{
		Text:           "What does a channel close do?",
		Type:           types.QuestionTypeTechnical,
		Difficulty:     0.4,
		Discrimination: 1.1,
	}})
	if err != nil {
		t.Fatalf("CreateQuestions: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %d items", len(created))
	}
	// A two-parameter authored item gets the full model's defaults.
	if created[0].Guessing != 0 || created[0].UpperAsymptote != 1 {
		t.Fatalf("defaults not applied: c=%v d=%v", created[0].Guessing, created[0].UpperAsymptote)
	}
	if !created[0].Active {
		t.Fatalf("new question not active")
	}
	if bankStore.Current().Len() != 1 {
		t.Fatalf("bank not refreshed after ingest")
	}
}

func TestCreateQuestionsRejectsInvalidParameters(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNop()
	questionRepo := newFakeQuestionRepo()
	bankStore := bank.NewStore(questionRepo, log)
	if _, err := bankStore.Refresh(ctx); err != nil {
		t.Fatalf("bank refresh: %v", err)
	}
	svc := NewQuestionBankService(nil, log, questionRepo, bankStore)

	tests := []struct {
		name  string
		input CreateQuestionInput
	}{
		{"negative discrimination", CreateQuestionInput{Text: "q", Type: types.QuestionTypeTechnical, Difficulty: 0, Discrimination: -0.5}},
		{"guessing above asymptote", CreateQuestionInput{Text: "q", Type: types.QuestionTypeTechnical, Difficulty: 0, Discrimination: 1, Guessing: 1.1}},
		{"difficulty out of range", CreateQuestionInput{Text: "q", Type: types.QuestionTypeTechnical, Difficulty: 7, Discrimination: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateQuestions(ctx, []CreateQuestionInput{tt.input})
			if !errors.Is(err, types.ErrInvalidItemParameters) {
				t.Fatalf("err = %v, want ErrInvalidItemParameters", err)
			}
		})
	}
	if all, _ := questionRepo.ListAll(ctx, nil); len(all) != 0 {
		t.Fatalf("invalid batch partially persisted: %d rows", len(all))
	}
}
