package bank

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TallyStore counts selections per item across all live sessions. The redis
// implementation shares tallies between engine instances; the in-process one
// backs tests and single-node deployments without redis.
type TallyStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

const totalSelectionsKey = "exposure:total"

func itemKey(id uuid.UUID) string { return "exposure:item:" + id.String() }

// ExposureView is a point-in-time read of the tallies handed to the
// selector, so selection stays a pure function of its inputs.
type ExposureView struct {
	Total  int64
	ByItem map[uuid.UUID]int64
}

// Allowed applies the exposure cap: an item is filtered out once its share
// of all selections exceeds maxRate. Below the warmup floor everything is
// allowed so a cold pool can bootstrap.
func (v ExposureView) Allowed(id uuid.UUID, maxRate float64, warmup int) bool {
	if v.Total < int64(warmup) {
		return true
	}
	count := v.ByItem[id]
	return float64(count) <= maxRate*float64(v.Total)
}

type ExposureController struct {
	store TallyStore
}

func NewExposureController(store TallyStore) *ExposureController {
	return &ExposureController{store: store}
}

func (c *ExposureController) View(ctx context.Context, ids []uuid.UUID) (ExposureView, error) {
	view := ExposureView{ByItem: make(map[uuid.UUID]int64, len(ids))}
	total, err := c.store.Get(ctx, totalSelectionsKey)
	if err != nil {
		return view, err
	}
	view.Total = total
	for _, id := range ids {
		count, err := c.store.Get(ctx, itemKey(id))
		if err != nil {
			return view, err
		}
		if count > 0 {
			view.ByItem[id] = count
		}
	}
	return view, nil
}

func (c *ExposureController) NoteSelection(ctx context.Context, id uuid.UUID) error {
	if _, err := c.store.Incr(ctx, itemKey(id)); err != nil {
		return err
	}
	_, err := c.store.Incr(ctx, totalSelectionsKey)
	return err
}

// MemoryTallyStore is the in-process TallyStore.
type MemoryTallyStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryTallyStore() *MemoryTallyStore {
	return &MemoryTallyStore{counts: map[string]int64{}}
}

func (m *MemoryTallyStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *MemoryTallyStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}
