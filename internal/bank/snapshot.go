package bank

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/irt"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

// Item is one bank entry inside a snapshot. The snapshot copies what live
// selection needs so a calibration write can never change parameters under
// a running session.
type Item struct {
	ID           uuid.UUID
	Type         string
	Params       irt.Params
	Technologies []string
	SkillAreas   []string
	TimesAsked   int64
	Question     *types.Question
}

// Snapshot is an immutable, versioned view of the active item bank.
type Snapshot struct {
	version int64
	items   []*Item
	byID    map[uuid.UUID]*Item
}

func BuildSnapshot(version int64, questions []*types.Question) *Snapshot {
	s := &Snapshot{
		version: version,
		byID:    make(map[uuid.UUID]*Item, len(questions)),
	}
	for _, q := range questions {
		if !q.Active {
			continue
		}
		item := &Item{
			ID:           q.ID,
			Type:         q.Type,
			Params:       irt.ParamsFromQuestion(q),
			Technologies: types.StringsFromJSON(q.Technologies),
			SkillAreas:   types.StringsFromJSON(q.SkillAreas),
			TimesAsked:   q.TimesAsked,
			Question:     q,
		}
		s.items = append(s.items, item)
		s.byID[q.ID] = item
	}
	return s
}

func (s *Snapshot) Version() int64 { return s.version }
func (s *Snapshot) Len() int       { return len(s.items) }

func (s *Snapshot) Items() []*Item { return s.items }

func (s *Snapshot) Get(id uuid.UUID) (*Item, bool) {
	item, ok := s.byID[id]
	return item, ok
}

// Store loads snapshots from the question table and hands out the version a
// session pinned at start. Calibration publishes a new version instead of
// mutating in place.
type Store struct {
	log          *logger.Logger
	questionRepo repos.QuestionRepo

	mu       sync.RWMutex
	current  *Snapshot
	versions map[int64]*Snapshot
}

func NewStore(questionRepo repos.QuestionRepo, baseLog *logger.Logger) *Store {
	return &Store{
		log:          baseLog.With("component", "BankStore"),
		questionRepo: questionRepo,
		versions:     map[int64]*Snapshot{},
	}
}

// Refresh loads the active bank at its stored snapshot version and makes it
// current. Called at startup and after every calibration publish.
func (st *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	version, err := st.questionRepo.MaxSnapshotVersion(ctx, nil)
	if err != nil {
		return nil, err
	}
	questions, err := st.questionRepo.ListActive(ctx, nil)
	if err != nil {
		return nil, err
	}
	snap := BuildSnapshot(version, questions)

	st.mu.Lock()
	st.current = snap
	st.versions[version] = snap
	// Keep memory bounded: only the current and the previous version stay
	// resident; older sessions fall back to current.
	for v := range st.versions {
		if v < version-1 {
			delete(st.versions, v)
		}
	}
	st.mu.Unlock()

	st.log.Info("Item bank snapshot refreshed", "version", version, "items", snap.Len())
	return snap, nil
}

func (st *Store) Current() *Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// AtVersion returns the pinned snapshot if it is still resident, otherwise
// the current one. A process restart drops old versions; sessions started
// before the restart then see the freshest parameters, which is the
// documented fallback.
func (st *Store) AtVersion(version int64) *Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if snap, ok := st.versions[version]; ok {
		return snap
	}
	return st.current
}
