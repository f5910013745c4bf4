package bank

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestExposureViewAllowed(t *testing.T) {
	hot := uuid.New()
	cold := uuid.New()

	tests := []struct {
		name    string
		view    ExposureView
		id      uuid.UUID
		maxRate float64
		warmup  int
		want    bool
	}{
		{
			name:    "warmup admits everything",
			view:    ExposureView{Total: 10, ByItem: map[uuid.UUID]int64{hot: 10}},
			id:      hot,
			maxRate: 0.25,
			warmup:  50,
			want:    true,
		},
		{
			name:    "over cap filtered",
			view:    ExposureView{Total: 100, ByItem: map[uuid.UUID]int64{hot: 40}},
			id:      hot,
			maxRate: 0.25,
			warmup:  50,
			want:    false,
		},
		{
			name:    "at cap allowed",
			view:    ExposureView{Total: 100, ByItem: map[uuid.UUID]int64{hot: 25}},
			id:      hot,
			maxRate: 0.25,
			warmup:  50,
			want:    true,
		},
		{
			name:    "unseen item allowed",
			view:    ExposureView{Total: 100, ByItem: map[uuid.UUID]int64{hot: 40}},
			id:      cold,
			maxRate: 0.25,
			warmup:  50,
			want:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.view.Allowed(tt.id, tt.maxRate, tt.warmup); got != tt.want {
				t.Fatalf("Allowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExposureControllerRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctrl := NewExposureController(NewMemoryTallyStore())
	a := uuid.New()
	b := uuid.New()

	for i := 0; i < 3; i++ {
		if err := ctrl.NoteSelection(ctx, a); err != nil {
			t.Fatalf("NoteSelection: %v", err)
		}
	}
	if err := ctrl.NoteSelection(ctx, b); err != nil {
		t.Fatalf("NoteSelection: %v", err)
	}

	view, err := ctrl.View(ctx, []uuid.UUID{a, b})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Total != 4 {
		t.Fatalf("Total = %d, want 4", view.Total)
	}
	if view.ByItem[a] != 3 || view.ByItem[b] != 1 {
		t.Fatalf("ByItem = %v", view.ByItem)
	}
}
