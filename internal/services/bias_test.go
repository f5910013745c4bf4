package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/config"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

func seedDemographicResponses(repo *fakeResponseRepo, questionID uuid.UUID, group string, score, predicted float64, n int) {
	seedDemographicResponsesAt(repo, questionID, group, score, predicted, n, time.Now())
}

func seedDemographicResponsesAt(repo *fakeResponseRepo, questionID uuid.UUID, group string, score, predicted float64, n int, at time.Time) {
	for i := 0; i < n; i++ {
		repo.responses = append(repo.responses, &types.Response{
			ID:                   uuid.New(),
			SessionID:            uuid.New(),
			QuestionID:           questionID,
			Score:                score,
			ThetaBefore:          0.25,
			PredictedProbability: predicted,
			DemographicGroup:     group,
			CreatedAt:            at,
		})
	}
}

func newBiasFixture(t *testing.T, questions []*types.Question) (BiasService, *fakeQuestionRepo, *fakeResponseRepo, *fakeBiasResultRepo) {
	t.Helper()
	policy := config.DefaultPolicy()
	policy.BiasMinGroupSample = 5

	questionRepo := newFakeQuestionRepo()
	if _, err := questionRepo.Create(context.Background(), nil, questions); err != nil {
		t.Fatalf("seed questions: %v", err)
	}
	responseRepo := newFakeResponseRepo()
	resultRepo := newFakeBiasResultRepo()
	svc := NewBiasService(nil, logger.NewNop(), policy, questionRepo, responseRepo, resultRepo)
	return svc, questionRepo, responseRepo, resultRepo
}

func TestScanQuestionFlagsDivergentGroups(t *testing.T) {
	ctx := context.Background()
	q := testQuestion(0, 1.2)
	svc, questionRepo, responseRepo, _ := newBiasFixture(t, []*types.Question{q})

	// Same ability band, same predicted success, one group scores 20 points
	// lower than the model expects.
	seedDemographicResponses(responseRepo, q.ID, "group_a", 0.6, 0.6, 8)
	seedDemographicResponses(responseRepo, q.ID, "group_b", 0.4, 0.6, 8)

	result, err := svc.ScanQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("ScanQuestion: %v", err)
	}
	if !result.InterventionRequired {
		t.Fatalf("intervention not flagged, result = %+v", result)
	}
	if result.OverallBiasScore < 0.19 || result.OverallBiasScore > 0.21 {
		t.Fatalf("overall bias = %v, want ~0.2", result.OverallBiasScore)
	}
	if result.SampleSize != 16 {
		t.Fatalf("sample size = %d, want 16", result.SampleSize)
	}
	if result.Confidence <= 0 {
		t.Fatalf("confidence = %v, want > 0", result.Confidence)
	}

	got, _ := questionRepo.GetByIDs(ctx, nil, []uuid.UUID{q.ID})
	if !got[0].ReviewRequired || got[0].ReviewReason != "bias_threshold_exceeded" {
		t.Fatalf("review flag not set: %+v", got[0])
	}
	if got[0].BiasScore != result.OverallBiasScore {
		t.Fatalf("question bias score = %v", got[0].BiasScore)
	}
}

func TestScanQuestionBalancedGroupsPass(t *testing.T) {
	ctx := context.Background()
	q := testQuestion(0, 1.2)
	svc, questionRepo, responseRepo, _ := newBiasFixture(t, []*types.Question{q})

	seedDemographicResponses(responseRepo, q.ID, "group_a", 0.62, 0.6, 8)
	seedDemographicResponses(responseRepo, q.ID, "group_b", 0.60, 0.6, 8)

	result, err := svc.ScanQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("ScanQuestion: %v", err)
	}
	if result.InterventionRequired {
		t.Fatalf("balanced groups flagged: %+v", result)
	}

	got, _ := questionRepo.GetByIDs(ctx, nil, []uuid.UUID{q.ID})
	if got[0].ReviewRequired {
		t.Fatalf("review flag set on balanced item")
	}
}

func TestScanQuestionNeedsMatchedComparison(t *testing.T) {
	ctx := context.Background()
	q := testQuestion(0, 1.2)
	svc, _, responseRepo, _ := newBiasFixture(t, []*types.Question{q})

	// Only one group clears the sample floor: a big residual alone is not a
	// comparison.
	seedDemographicResponses(responseRepo, q.ID, "group_a", 0.2, 0.6, 8)
	seedDemographicResponses(responseRepo, q.ID, "group_b", 0.9, 0.6, 2)

	result, err := svc.ScanQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("ScanQuestion: %v", err)
	}
	if result.InterventionRequired {
		t.Fatalf("unmatched data flagged: %+v", result)
	}
	if result.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0 without a matched pair", result.Confidence)
	}
}

func TestRunScanSweepsQuestionsWithDemographics(t *testing.T) {
	ctx := context.Background()
	biased := testQuestion(0, 1.2)
	untouched := testQuestion(0.5, 1.0)
	stale := testQuestion(1.0, 0.9)
	svc, _, responseRepo, resultRepo := newBiasFixture(t, []*types.Question{biased, untouched, stale})

	seedDemographicResponses(responseRepo, biased.ID, "group_a", 0.6, 0.6, 8)
	seedDemographicResponses(responseRepo, biased.ID, "group_b", 0.4, 0.6, 8)
	// Responses from before the sweep window: the item is not rescanned.
	seedDemographicResponsesAt(responseRepo, stale.ID, "group_a", 0.6, 0.6, 8, time.Now().Add(-30*24*time.Hour))
	seedDemographicResponsesAt(responseRepo, stale.ID, "group_b", 0.4, 0.6, 8, time.Now().Add(-30*24*time.Hour))

	report, err := svc.RunScan(ctx, nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if report.QuestionsScanned != 1 || report.QuestionsFlagged != 1 {
		t.Fatalf("report = %+v", report)
	}

	flagged, err := resultRepo.ListInterventionRequired(ctx, nil)
	if err != nil {
		t.Fatalf("ListInterventionRequired: %v", err)
	}
	if len(flagged) != 1 || flagged[0].QuestionID != biased.ID {
		t.Fatalf("flagged results = %+v", flagged)
	}

	latest, err := svc.ReportForQuestion(ctx, biased.ID)
	if err != nil {
		t.Fatalf("ReportForQuestion: %v", err)
	}
	if latest == nil || !latest.InterventionRequired {
		t.Fatalf("latest result = %+v", latest)
	}
}
