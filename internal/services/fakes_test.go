package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

// In-memory repo fakes. The schema carries postgres-specific defaults, so
// service behavior is tested above the storage boundary.

type fakeQuestionRepo struct {
	mu        sync.Mutex
	questions map[uuid.UUID]*types.Question
	order     []uuid.UUID
}

func newFakeQuestionRepo() *fakeQuestionRepo {
	return &fakeQuestionRepo{questions: map[uuid.UUID]*types.Question{}}
}

func (r *fakeQuestionRepo) Create(_ context.Context, _ *gorm.DB, questions []*types.Question) ([]*types.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range questions {
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		r.questions[q.ID] = q
		r.order = append(r.order, q.ID)
	}
	return questions, nil
}

func (r *fakeQuestionRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Question
	for _, id := range ids {
		if q, ok := r.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) ListActive(_ context.Context, _ *gorm.DB) ([]*types.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Question
	for _, id := range r.order {
		if q := r.questions[id]; q.Active {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) ListAll(_ context.Context, _ *gorm.DB) ([]*types.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Question
	for _, id := range r.order {
		out = append(out, r.questions[id])
	}
	return out, nil
}

func (r *fakeQuestionRepo) RecordUsage(_ context.Context, _ *gorm.DB, id uuid.UUID, correct bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil
	}
	q.TimesAsked++
	if correct {
		q.TimesCorrect++
	}
	return nil
}

func (r *fakeQuestionRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "review_required":
			q.ReviewRequired = v.(bool)
		case "review_reason":
			q.ReviewReason = v.(string)
		case "bias_score":
			q.BiasScore = v.(float64)
		case "avg_response_ms":
			q.AvgResponseMS = v.(float64)
		case "engagement_score":
			q.EngagementScore = v.(float64)
		case "information_value":
			q.InformationValue = v.(float64)
		}
	}
	return nil
}

func (r *fakeQuestionRepo) UpdateParameters(_ context.Context, _ *gorm.DB, id uuid.UUID, a, b, c, d float64, snapshotVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil
	}
	q.Discrimination = a
	q.Difficulty = b
	q.Guessing = c
	q.UpperAsymptote = d
	q.SnapshotVersion = snapshotVersion
	return nil
}

func (r *fakeQuestionRepo) MaxSnapshotVersion(_ context.Context, _ *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	version := int64(1)
	for _, q := range r.questions {
		if q.SnapshotVersion > version {
			version = q.SnapshotVersion
		}
	}
	return version, nil
}

func (r *fakeQuestionRepo) SetActive(_ context.Context, _ *gorm.DB, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.questions[id]; ok {
		q.Active = active
	}
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*types.InterviewSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uuid.UUID]*types.InterviewSession{}}
}

func (r *fakeSessionRepo) Create(_ context.Context, _ *gorm.DB, session *types.InterviewSession) (*types.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	r.sessions[session.ID] = session
	return session, nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return types.ErrSessionNotFound
	}
	for k, v := range updates {
		switch k {
		case "asked_ids":
			session.AskedIDs = v.(datatypes.JSON)
		case "current_theta":
			session.CurrentTheta = v.(float64)
		case "current_se":
			session.CurrentSE = v.(float64)
		case "low_confidence":
			session.LowConfidence = v.(bool)
		case "terminated_for":
			session.TerminatedFor = v.(string)
		}
	}
	return nil
}

func (r *fakeSessionRepo) AdvanceStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return types.ErrSessionNotFound
	}
	if session.Status != from || !types.SessionStatusCanAdvance(from, to) {
		return types.ErrInvalidSessionState
	}
	session.Status = to
	return nil
}

type fakeResponseRepo struct {
	mu        sync.Mutex
	responses []*types.Response
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{}
}

func (r *fakeResponseRepo) Create(_ context.Context, _ *gorm.DB, response *types.Response) (*types.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.responses {
		if existing.SessionID == response.SessionID && existing.QuestionID == response.QuestionID {
			return nil, types.ErrDuplicateResponse
		}
	}
	if response.CreatedAt.IsZero() {
		response.CreatedAt = time.Now()
	}
	r.responses = append(r.responses, response)
	return response, nil
}

func (r *fakeResponseRepo) GetBySessionAndQuestion(_ context.Context, _ *gorm.DB, sessionID, questionID uuid.UUID) (*types.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.responses {
		if existing.SessionID == sessionID && existing.QuestionID == questionID {
			return existing, nil
		}
	}
	return nil, nil
}

func (r *fakeResponseRepo) ListBySession(_ context.Context, _ *gorm.DB, sessionID uuid.UUID) ([]*types.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Response
	for _, existing := range r.responses {
		if existing.SessionID == sessionID {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (r *fakeResponseRepo) ListByQuestion(_ context.Context, _ *gorm.DB, questionID uuid.UUID) ([]*types.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Response
	for _, existing := range r.responses {
		if existing.QuestionID == questionID {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (r *fakeResponseRepo) ListByQuestionWithDemographics(_ context.Context, _ *gorm.DB, questionID uuid.UUID) ([]*types.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Response
	for _, existing := range r.responses {
		if existing.QuestionID == questionID && existing.DemographicGroup != "" {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (r *fakeResponseRepo) CountSince(_ context.Context, _ *gorm.DB, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, existing := range r.responses {
		if existing.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeResponseRepo) DistinctQuestionIDsSince(_ context.Context, _ *gorm.DB, since time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	for _, existing := range r.responses {
		if existing.CreatedAt.After(since) {
			seen[existing.QuestionID] = true
		}
	}
	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

type fakeEffectivenessRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*types.EffectivenessLogEntry
}

func newFakeEffectivenessRepo() *fakeEffectivenessRepo {
	return &fakeEffectivenessRepo{entries: map[uuid.UUID]*types.EffectivenessLogEntry{}}
}

func (r *fakeEffectivenessRepo) Record(_ context.Context, _ *gorm.DB, questionID uuid.UUID, score, predictionError, information float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[questionID]
	if !ok {
		r.entries[questionID] = &types.EffectivenessLogEntry{
			ID:                  uuid.New(),
			QuestionID:          questionID,
			SampleSize:          1,
			MeanScore:           score,
			MeanPredictionError: predictionError,
			MeanInformation:     information,
			LastResponseAt:      &at,
		}
		return nil
	}
	n := float64(entry.SampleSize)
	entry.MeanScore = (entry.MeanScore*n + score) / (n + 1)
	entry.MeanPredictionError = (entry.MeanPredictionError*n + predictionError) / (n + 1)
	entry.MeanInformation = (entry.MeanInformation*n + information) / (n + 1)
	entry.SampleSize++
	entry.LastResponseAt = &at
	return nil
}

func (r *fakeEffectivenessRepo) ListWithSampleAtLeast(_ context.Context, _ *gorm.DB, minSample int64) ([]*types.EffectivenessLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.EffectivenessLogEntry
	for _, entry := range r.entries {
		if entry.SampleSize >= minSample {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeBiasResultRepo struct {
	mu      sync.Mutex
	results []*types.BiasDetectionResult
}

func newFakeBiasResultRepo() *fakeBiasResultRepo {
	return &fakeBiasResultRepo{}
}

func (r *fakeBiasResultRepo) Create(_ context.Context, _ *gorm.DB, results []*types.BiasDetectionResult) ([]*types.BiasDetectionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, results...)
	return results, nil
}

func (r *fakeBiasResultRepo) GetLatestByQuestion(_ context.Context, _ *gorm.DB, questionID uuid.UUID) (*types.BiasDetectionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.results) - 1; i >= 0; i-- {
		if r.results[i].QuestionID == questionID {
			return r.results[i], nil
		}
	}
	return nil, nil
}

func (r *fakeBiasResultRepo) GetLatestByQuestionIDs(_ context.Context, _ *gorm.DB, questionIDs []uuid.UUID) ([]*types.BiasDetectionResult, error) {
	var out []*types.BiasDetectionResult
	for _, id := range questionIDs {
		result, _ := r.GetLatestByQuestion(nil, nil, id)
		if result != nil {
			out = append(out, result)
		}
	}
	return out, nil
}

func (r *fakeBiasResultRepo) ListInterventionRequired(_ context.Context, _ *gorm.DB) ([]*types.BiasDetectionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.BiasDetectionResult
	for _, result := range r.results {
		if result.InterventionRequired {
			out = append(out, result)
		}
	}
	return out, nil
}

type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*types.CalibrationRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: map[uuid.UUID]*types.CalibrationRun{}}
}

func (r *fakeRunRepo) Enqueue(_ context.Context, _ *gorm.DB, run *types.CalibrationRun) (*types.CalibrationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.RunStatusQueued
	}
	r.runs[run.ID] = run
	return run, nil
}

func (r *fakeRunRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.CalibrationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id], nil
}

func (r *fakeRunRepo) ClaimNextRunnable(_ context.Context, _ *gorm.DB, _ int, _ time.Duration, _ time.Duration) (*types.CalibrationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.Status == types.RunStatusQueued {
			run.Status = types.RunStatusRunning
			run.Attempts++
			return run, nil
		}
	}
	return nil, nil
}

func (r *fakeRunRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "status":
			run.Status = v.(string)
		case "stage":
			run.Stage = v.(string)
		case "error":
			run.Error = v.(string)
		case "metadata":
			if m, ok := v.(datatypes.JSON); ok {
				run.Metadata = m
			}
		}
	}
	return nil
}

func (r *fakeRunRepo) Heartbeat(_ context.Context, _ *gorm.DB, _ uuid.UUID) error { return nil }

func (r *fakeRunRepo) HasActive(_ context.Context, _ *gorm.DB, jobType string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.JobType == jobType && (run.Status == types.RunStatusQueued || run.Status == types.RunStatusRunning) {
			return true, nil
		}
	}
	return false, nil
}
