package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/bank"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/config"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/irt"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/scoring"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/selector"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

type StartSessionInput struct {
	CandidateID     uuid.UUID `json:"candidate_id"`
	JobRole         string    `json:"job_role"`
	ExperienceLevel string    `json:"experience_level"`
	Technologies    []string  `json:"technologies"`
	SkillAreas      []string  `json:"skill_areas"`
}

type NextQuestionResult struct {
	Question           *types.Question `json:"question,omitempty"`
	DifficultyEstimate float64         `json:"difficulty_estimate"`
	Rationale          string          `json:"rationale,omitempty"`
	Terminated         bool            `json:"terminated"`
	Reason             string          `json:"reason,omitempty"`
}

type SubmitResponseInput struct {
	SessionID        uuid.UUID       `json:"session_id"`
	QuestionID       uuid.UUID       `json:"question_id"`
	AnswerPayload    json.RawMessage `json:"answer_payload"`
	ResponseTimeMS   int             `json:"response_time_ms"`
	DemographicGroup string          `json:"demographic_group,omitempty"`
}

type SubmitResponseResult struct {
	Score             float64 `json:"score"`
	ThetaAfter        float64 `json:"theta_after"`
	SEAfter           float64 `json:"se_after"`
	InformationGained float64 `json:"information_gained"`
	Replayed          bool    `json:"replayed"`
}

type InterviewService interface {
	StartSession(ctx context.Context, input StartSessionInput) (*types.InterviewSession, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*types.InterviewSession, error)
	RequestNextQuestion(ctx context.Context, sessionID uuid.UUID) (*NextQuestionResult, error)
	SubmitResponse(ctx context.Context, input SubmitResponseInput) (*SubmitResponseResult, error)
	CancelSession(ctx context.Context, sessionID uuid.UUID) error
}

type interviewService struct {
	db           *gorm.DB
	log          *logger.Logger
	policy       config.Policy
	sessionRepo  repos.SessionRepo
	questionRepo repos.QuestionRepo
	responseRepo repos.ResponseRepo
	bankStore    *bank.Store
	exposure     *bank.ExposureController
	estimator    *irt.Estimator
	scorers      *scoring.Registry
	pipeline     *EffectivenessPipeline
	watcher      *CalibrationWatcher
}

func NewInterviewService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy config.Policy,
	sessionRepo repos.SessionRepo,
	questionRepo repos.QuestionRepo,
	responseRepo repos.ResponseRepo,
	bankStore *bank.Store,
	exposure *bank.ExposureController,
	scorers *scoring.Registry,
	pipeline *EffectivenessPipeline,
	watcher *CalibrationWatcher,
) InterviewService {
	return &interviewService{
		db:           db,
		log:          baseLog.With("service", "InterviewService"),
		policy:       policy,
		sessionRepo:  sessionRepo,
		questionRepo: questionRepo,
		responseRepo: responseRepo,
		bankStore:    bankStore,
		exposure:     exposure,
		estimator:    irt.NewEstimator(policy),
		scorers:      scorers,
		pipeline:     pipeline,
		watcher:      watcher,
	}
}

func (s *interviewService) StartSession(ctx context.Context, input StartSessionInput) (*types.InterviewSession, error) {
	if input.CandidateID == uuid.Nil {
		return nil, fmt.Errorf("candidate_id required")
	}
	snap := s.bankStore.Current()
	if snap == nil {
		return nil, fmt.Errorf("item bank not loaded")
	}

	st := s.estimator.Initialize(input.ExperienceLevel)
	session := &types.InterviewSession{
		ID:              uuid.New(),
		CandidateID:     input.CandidateID,
		Status:          types.SessionStatusScheduled,
		JobRole:         input.JobRole,
		ExperienceLevel: input.ExperienceLevel,
		Technologies:    types.StringsToJSON(input.Technologies),
		SkillAreas:      types.StringsToJSON(input.SkillAreas),
		CurrentTheta:    st.Theta,
		CurrentSE:       st.SE,
		AskedIDs:        types.UUIDsToJSON(nil),
		MinQuestions:    s.policy.MinQuestions,
		MaxQuestions:    s.policy.MaxQuestions,
		TargetSE:        s.policy.TargetSE,
		SnapshotVersion: snap.Version(),
	}
	created, err := s.sessionRepo.Create(ctx, nil, session)
	if err != nil {
		return nil, err
	}
	s.log.Info("Interview session started",
		"session_id", created.ID,
		"candidate_id", created.CandidateID,
		"snapshot_version", created.SnapshotVersion,
	)
	return created, nil
}

func (s *interviewService) GetSession(ctx context.Context, sessionID uuid.UUID) (*types.InterviewSession, error) {
	return s.sessionRepo.GetByID(ctx, nil, sessionID)
}

func (s *interviewService) RequestNextQuestion(ctx context.Context, sessionID uuid.UUID) (*NextQuestionResult, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if types.SessionStatusTerminal(session.Status) {
		return nil, types.ErrInvalidSessionState
	}

	snap := s.bankStore.AtVersion(session.SnapshotVersion)
	if snap == nil {
		return nil, fmt.Errorf("item bank not loaded")
	}

	state := s.selectorStateFor(session)
	view, err := s.exposure.View(ctx, idsOf(snap))
	if err != nil {
		// A dead tally store degrades exposure control, it must not block
		// the interview.
		s.log.Warn("Exposure view unavailable, continuing without cap", "error", err)
		view = bank.ExposureView{ByItem: map[uuid.UUID]int64{}}
	}

	outcome := selector.SelectNext(state, snap, view, s.policy)
	if outcome.Terminated {
		if err := s.completeSession(ctx, session, outcome.Reason); err != nil {
			return nil, err
		}
		return &NextQuestionResult{Terminated: true, Reason: outcome.Reason}, nil
	}

	pick := outcome.Pick
	askedIDs := append(types.UUIDsFromJSON(session.AskedIDs), pick.Item.ID)
	updates := map[string]interface{}{
		"asked_ids": types.UUIDsToJSON(askedIDs),
	}
	if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, updates); err != nil {
		return nil, err
	}
	if session.Status == types.SessionStatusScheduled {
		if err := s.sessionRepo.AdvanceStatus(ctx, nil, session.ID, types.SessionStatusScheduled, types.SessionStatusInProgress); err != nil {
			return nil, err
		}
	}
	if err := s.exposure.NoteSelection(ctx, pick.Item.ID); err != nil {
		s.log.Warn("Exposure tally update failed", "question_id", pick.Item.ID, "error", err)
	}

	return &NextQuestionResult{
		Question:           pick.Item.Question,
		DifficultyEstimate: pick.Item.Params.B,
		Rationale:          pick.Rationale,
	}, nil
}

func (s *interviewService) SubmitResponse(ctx context.Context, input SubmitResponseInput) (*SubmitResponseResult, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, input.SessionID)
	if err != nil {
		return nil, err
	}
	if types.SessionStatusTerminal(session.Status) {
		return nil, types.ErrInvalidSessionState
	}

	// Idempotent replay: identical calls return the stored outcome and
	// never re-mutate counters.
	if existing, err := s.responseRepo.GetBySessionAndQuestion(ctx, nil, input.SessionID, input.QuestionID); err != nil {
		return nil, err
	} else if existing != nil {
		return replayResult(existing), nil
	}

	askedIDs := types.UUIDsFromJSON(session.AskedIDs)
	if !containsID(askedIDs, input.QuestionID) {
		return nil, fmt.Errorf("%w: question %s was not served in this session", types.ErrInvalidSessionState, input.QuestionID)
	}

	snap := s.bankStore.AtVersion(session.SnapshotVersion)
	if snap == nil {
		return nil, fmt.Errorf("item bank not loaded")
	}
	item, ok := snap.Get(input.QuestionID)
	if !ok {
		return nil, fmt.Errorf("question %s missing from bank snapshot %d", input.QuestionID, snap.Version())
	}

	score, err := s.scorers.Score(item.Question, input.AnswerPayload)
	if err != nil {
		return nil, err
	}
	correct := score >= 0.5

	weight, anomalous := s.estimator.ResponseWeight(input.ResponseTimeMS)

	thetaBefore := session.CurrentTheta
	seBefore := session.CurrentSE
	information := irt.FisherInformation(thetaBefore, item.Params)
	predicted := irt.Probability(thetaBefore, item.Params)
	predictionError := absFloat(score - predicted)

	history, err := s.observationHistory(ctx, session, snap)
	if err != nil {
		return nil, err
	}
	history = append(history, irt.Observation{Params: item.Params, Score: score, Weight: weight, Anomalous: anomalous})

	prev := irt.State{
		Theta:     thetaBefore,
		SE:        seBefore,
		PriorMean: irt.PriorOffsetForExperience(session.ExperienceLevel),
	}
	next := s.estimator.Update(prev, history)

	response := &types.Response{
		ID:                   uuid.New(),
		SessionID:            session.ID,
		QuestionID:           input.QuestionID,
		AnswerPayload:        append([]byte(nil), input.AnswerPayload...),
		Score:                score,
		ResponseTimeMS:       input.ResponseTimeMS,
		ThetaBefore:          thetaBefore,
		ThetaAfter:           next.Theta,
		SEBefore:             seBefore,
		SEAfter:              next.SE,
		InformationProvided:  information,
		PredictedProbability: predicted,
		PredictionError:      predictionError,
		Anomalous:            anomalous,
		DemographicGroup:     input.DemographicGroup,
	}
	if _, err := s.responseRepo.Create(ctx, nil, response); err != nil {
		if errors.Is(err, types.ErrDuplicateResponse) {
			// Lost a replay race; hand back the winner's stored result.
			stored, gerr := s.responseRepo.GetBySessionAndQuestion(ctx, nil, input.SessionID, input.QuestionID)
			if gerr != nil || stored == nil {
				return nil, err
			}
			return replayResult(stored), nil
		}
		return nil, err
	}

	updates := map[string]interface{}{
		"current_theta":  next.Theta,
		"current_se":     next.SE,
		"low_confidence": next.LowConfidence,
	}
	if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, updates); err != nil {
		return nil, err
	}

	if err := s.questionRepo.RecordUsage(ctx, nil, input.QuestionID, correct); err != nil {
		s.log.Warn("Question usage update failed", "question_id", input.QuestionID, "error", err)
	}
	s.updateQuestionStats(ctx, item.Question, input.ResponseTimeMS, information, anomalous)

	// Effectiveness aggregation happens off the interview path.
	s.pipeline.Emit(EffectivenessEvent{
		QuestionID:      input.QuestionID,
		Score:           score,
		PredictionError: predictionError,
		Information:     information,
		At:              time.Now(),
	})
	s.watcher.NoteResponse(ctx)

	return &SubmitResponseResult{
		Score:             score,
		ThetaAfter:        next.Theta,
		SEAfter:           next.SE,
		InformationGained: information,
	}, nil
}

func (s *interviewService) CancelSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return err
	}
	if types.SessionStatusTerminal(session.Status) {
		return types.ErrInvalidSessionState
	}
	// Recorded responses stay durable; cancellation only closes the session.
	if err := s.sessionRepo.AdvanceStatus(ctx, nil, session.ID, session.Status, types.SessionStatusCancelled); err != nil {
		return err
	}
	return s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]interface{}{
		"terminated_for": "cancelled",
	})
}

func (s *interviewService) completeSession(ctx context.Context, session *types.InterviewSession, reason string) error {
	if session.Status == types.SessionStatusScheduled {
		// A session that terminates before its first question still walks
		// the state machine forward.
		if err := s.sessionRepo.AdvanceStatus(ctx, nil, session.ID, types.SessionStatusScheduled, types.SessionStatusInProgress); err != nil {
			return err
		}
		session.Status = types.SessionStatusInProgress
	}
	if err := s.sessionRepo.AdvanceStatus(ctx, nil, session.ID, session.Status, types.SessionStatusCompleted); err != nil {
		return err
	}
	s.log.Info("Interview session completed", "session_id", session.ID, "reason", reason)
	return s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]interface{}{
		"terminated_for": reason,
	})
}

func (s *interviewService) selectorStateFor(session *types.InterviewSession) selector.SessionState {
	return selector.SessionState{
		SessionID:          session.ID,
		Theta:              session.CurrentTheta,
		SE:                 session.CurrentSE,
		Asked:              types.UUIDsFromJSON(session.AskedIDs),
		Technologies:       types.StringsFromJSON(session.Technologies),
		RequiredSkillAreas: types.StringsFromJSON(session.SkillAreas),
		MinQuestions:       session.MinQuestions,
		MaxQuestions:       session.MaxQuestions,
		TargetSE:           session.TargetSE,
	}
}

// observationHistory rebuilds the estimator input from the stored response
// trail, so a serialized and resumed session estimates exactly like an
// uninterrupted one.
func (s *interviewService) observationHistory(ctx context.Context, session *types.InterviewSession, snap *bank.Snapshot) ([]irt.Observation, error) {
	rows, err := s.responseRepo.ListBySession(ctx, nil, session.ID)
	if err != nil {
		return nil, err
	}
	history := make([]irt.Observation, 0, len(rows)+1)
	for _, row := range rows {
		item, ok := snap.Get(row.QuestionID)
		if !ok {
			continue
		}
		weight := 1.0
		if row.Anomalous {
			weight = s.policy.AnomalousWeight
		}
		history = append(history, irt.Observation{
			Params:    item.Params,
			Score:     row.Score,
			Weight:    weight,
			Anomalous: row.Anomalous,
		})
	}
	return history, nil
}

func (s *interviewService) updateQuestionStats(ctx context.Context, q *types.Question, responseTimeMS int, information float64, anomalous bool) {
	alpha := s.policy.StatsEMAAlpha
	avgMS := q.AvgResponseMS
	if avgMS == 0 {
		avgMS = float64(responseTimeMS)
	} else {
		avgMS = (1-alpha)*avgMS + alpha*float64(responseTimeMS)
	}
	engagement := 1.0
	if anomalous {
		engagement = 0
	}
	engagementEMA := (1-alpha)*q.EngagementScore + alpha*engagement
	infoEMA := (1-alpha)*q.InformationValue + alpha*information

	err := s.questionRepo.UpdateFields(ctx, nil, q.ID, map[string]interface{}{
		"avg_response_ms":   avgMS,
		"engagement_score":  engagementEMA,
		"information_value": infoEMA,
	})
	if err != nil {
		s.log.Warn("Question stat update failed", "question_id", q.ID, "error", err)
	}
}

func replayResult(stored *types.Response) *SubmitResponseResult {
	return &SubmitResponseResult{
		Score:             stored.Score,
		ThetaAfter:        stored.ThetaAfter,
		SEAfter:           stored.SEAfter,
		InformationGained: stored.InformationProvided,
		Replayed:          true,
	}
}

func idsOf(snap *bank.Snapshot) []uuid.UUID {
	items := snap.Items()
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
