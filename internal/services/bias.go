package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/config"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

// GroupDivergence is one matched-band comparison inside a bias result.
type GroupDivergence struct {
	Band       string  `json:"band"`
	Group      string  `json:"group"`
	Observed   float64 `json:"observed"`
	Predicted  float64 `json:"predicted"`
	SampleSize int     `json:"sample_size"`
}

type BiasScanReport struct {
	QuestionsScanned int `json:"questions_scanned"`
	QuestionsFlagged int `json:"questions_flagged"`
}

type BiasService interface {
	// ScanQuestion computes differential item functioning for one item and
	// persists the result.
	ScanQuestion(ctx context.Context, questionID uuid.UUID) (*types.BiasDetectionResult, error)
	// RunScan sweeps every item with demographic-tagged responses. Invoked
	// by the batch worker only.
	RunScan(ctx context.Context, stage func(string)) (*BiasScanReport, error)
	ReportForQuestion(ctx context.Context, questionID uuid.UUID) (*types.BiasDetectionResult, error)
	ReportForSession(ctx context.Context, sessionID uuid.UUID) ([]*types.BiasDetectionResult, error)
}

type biasService struct {
	db           *gorm.DB
	log          *logger.Logger
	policy       config.Policy
	questionRepo repos.QuestionRepo
	responseRepo repos.ResponseRepo
	resultRepo   repos.BiasResultRepo
}

func NewBiasService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	questionRepo repos.QuestionRepo,
	responseRepo repos.ResponseRepo,
	resultRepo repos.BiasResultRepo,
) BiasService {
	return &biasService{
		db:           db,
		log:          baseLog.With("service", "BiasService"),
		policy:       policy,
		questionRepo: questionRepo,
		responseRepo: responseRepo,
		resultRepo:   resultRepo,
	}
}

func (s *biasService) ScanQuestion(ctx context.Context, questionID uuid.UUID) (*types.BiasDetectionResult, error) {
	rows, err := s.responseRepo.ListByQuestionWithDemographics(ctx, nil, questionID)
	if err != nil {
		return nil, err
	}

	overall, confidence, divergences, matched := s.differentialFunctioning(rows)
	intervention := overall > s.policy.BiasDivergenceThreshold && matched

	result := &types.BiasDetectionResult{
		ID:                   uuid.New(),
		QuestionID:           questionID,
		OverallBiasScore:     overall,
		Confidence:           confidence,
		InterventionRequired: intervention,
		GroupDivergence:      marshalDivergences(divergences),
		SampleSize:           int64(len(rows)),
	}
	if _, err := s.resultRepo.Create(ctx, nil, []*types.BiasDetectionResult{result}); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"bias_score": overall}
	if intervention {
		// Soft flag only; deactivation stays a human decision.
		updates["review_required"] = true
		updates["review_reason"] = "bias_threshold_exceeded"
	}
	if err := s.questionRepo.UpdateFields(ctx, nil, questionID, updates); err != nil {
		s.log.Warn("Bias score update failed", "question_id", questionID, "error", err)
	}
	return result, nil
}

func (s *biasService) RunScan(ctx context.Context, stage func(string)) (*BiasScanReport, error) {
	if stage == nil {
		stage = func(string) {}
	}
	stage("load_items")
	// Only items answered since the previous sweep window can have moved;
	// two calibration intervals of slack covers a skipped run.
	cutoff := time.Now().Add(-2 * s.policy.CalibrationInterval)
	questionIDs, err := s.responseRepo.DistinctQuestionIDsSince(ctx, nil, cutoff)
	if err != nil {
		return nil, err
	}

	stage("scan")
	report := &BiasScanReport{}
	for _, id := range questionIDs {
		rows, err := s.responseRepo.ListByQuestionWithDemographics(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		result, err := s.ScanQuestion(ctx, id)
		if err != nil {
			return nil, err
		}
		report.QuestionsScanned++
		if result.InterventionRequired {
			report.QuestionsFlagged++
		}
	}
	s.log.Info("Bias scan complete", "scanned", report.QuestionsScanned, "flagged", report.QuestionsFlagged)
	return report, nil
}

func (s *biasService) ReportForQuestion(ctx context.Context, questionID uuid.UUID) (*types.BiasDetectionResult, error) {
	return s.resultRepo.GetLatestByQuestion(ctx, nil, questionID)
}

func (s *biasService) ReportForSession(ctx context.Context, sessionID uuid.UUID) ([]*types.BiasDetectionResult, error) {
	rows, err := s.responseRepo.ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.QuestionID)
	}
	return s.resultRepo.GetLatestByQuestionIDs(ctx, nil, ids)
}

// differentialFunctioning compares observed vs. predicted success rates per
// demographic group inside matched theta bands. The divergence for a band
// is the widest pairwise gap between group residuals (observed - predicted);
// matching on theta first is what separates item bias from genuine ability
// differences.
func (s *biasService) differentialFunctioning(rows []*types.Response) (float64, float64, []GroupDivergence, bool) {
	type cell struct {
		observed  float64
		predicted float64
		n         int
	}
	bands := map[string]map[string]*cell{}
	for _, row := range rows {
		band := s.bandFor(row.ThetaBefore)
		if bands[band] == nil {
			bands[band] = map[string]*cell{}
		}
		c := bands[band][row.DemographicGroup]
		if c == nil {
			c = &cell{}
			bands[band][row.DemographicGroup] = c
		}
		c.observed += row.Score
		c.predicted += row.PredictedProbability
		c.n++
	}

	minSample := s.policy.BiasMinGroupSample
	overall := 0.0
	matched := false
	minGroupN := 0
	var divergences []GroupDivergence

	for band, groups := range bands {
		type residual struct {
			group string
			value float64
			n     int
		}
		var residuals []residual
		for group, c := range groups {
			if c.n < minSample {
				continue
			}
			obs := c.observed / float64(c.n)
			pred := c.predicted / float64(c.n)
			residuals = append(residuals, residual{group: group, value: obs - pred, n: c.n})
			divergences = append(divergences, GroupDivergence{
				Band:       band,
				Group:      group,
				Observed:   obs,
				Predicted:  pred,
				SampleSize: c.n,
			})
		}
		if len(residuals) < 2 {
			continue
		}
		matched = true
		for i := 0; i < len(residuals); i++ {
			for j := i + 1; j < len(residuals); j++ {
				gap := math.Abs(residuals[i].value - residuals[j].value)
				if gap > overall {
					overall = gap
				}
				n := residuals[i].n
				if residuals[j].n < n {
					n = residuals[j].n
				}
				if minGroupN == 0 || n < minGroupN {
					minGroupN = n
				}
			}
		}
	}

	confidence := 0.0
	if matched {
		// More matched evidence, more confidence; saturates toward 1.
		confidence = float64(minGroupN) / (float64(minGroupN) + float64(minSample))
	}
	return overall, confidence, divergences, matched
}

func (s *biasService) bandFor(theta float64) string {
	width := s.policy.BiasThetaBandWidth
	if width <= 0 {
		width = 1
	}
	idx := int(math.Floor(theta / width))
	return fmt.Sprintf("band_%d", idx)
}

func marshalDivergences(divergences []GroupDivergence) datatypes.JSON {
	if len(divergences) == 0 {
		return nil
	}
	raw, _ := json.Marshal(divergences)
	return datatypes.JSON(raw)
}
