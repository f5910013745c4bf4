package irt

import (
	"math"
	"testing"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/config"
)

func testEstimator() *Estimator {
	return NewEstimator(config.DefaultPolicy())
}

func TestInitialize(t *testing.T) {
	e := testEstimator()

	st := e.Initialize("")
	if st.Theta != 0 || st.SE != 1.0 {
		t.Fatalf("Initialize()=(%v, %v), want (0, 1.0)", st.Theta, st.SE)
	}

	junior := e.Initialize("junior")
	senior := e.Initialize("senior")
	if !(junior.Theta < 0 && senior.Theta > 0) {
		t.Fatalf("experience prior offsets: junior=%v senior=%v", junior.Theta, senior.Theta)
	}
	if junior.SE != 1.0 || senior.SE != 1.0 {
		t.Fatalf("prior SE must stay 1.0 regardless of experience level")
	}
}

func TestUpdateMovesThetaTowardEvidence(t *testing.T) {
	e := testEstimator()
	item := Params{A: 1.4, B: 0, C: 0, D: 1}

	st := e.Initialize("")
	correct := e.Update(st, []Observation{{Params: item, Score: 1, Weight: 1}})
	incorrect := e.Update(st, []Observation{{Params: item, Score: 0, Weight: 1}})

	if correct.Theta <= st.Theta {
		t.Fatalf("correct answer should raise theta, got %v -> %v", st.Theta, correct.Theta)
	}
	if incorrect.Theta >= st.Theta {
		t.Fatalf("incorrect answer should lower theta, got %v -> %v", st.Theta, incorrect.Theta)
	}
}

func TestUpdateShrinksSE(t *testing.T) {
	e := testEstimator()
	items := []Params{
		{A: 1.2, B: -0.5, C: 0, D: 1},
		{A: 1.4, B: 0.2, C: 0, D: 1},
		{A: 1.1, B: 0.8, C: 0.1, D: 0.98},
	}

	st := e.Initialize("")
	var history []Observation
	for i, p := range items {
		score := 1.0
		if i%2 == 1 {
			score = 0
		}
		history = append(history, Observation{Params: p, Score: score, Weight: 1})
		next := e.Update(st, history)
		if next.SE > st.SE+1e-9 {
			t.Fatalf("SE increased on informative response %d: %v -> %v", i, st.SE, next.SE)
		}
		st = next
	}
	if st.SE >= 1.0 {
		t.Fatalf("SE should have shrunk below the prior, got %v", st.SE)
	}
}

func TestUpdateClampsStepAndRange(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.MaxThetaStep = 0.25
	e := NewEstimator(policy)

	// A wildly surprising response must not move theta more than the clamp.
	st := e.Initialize("")
	easy := Params{A: 2.5, B: -3.5, C: 0, D: 1}
	next := e.Update(st, []Observation{{Params: easy, Score: 0, Weight: 1}})
	if math.Abs(next.Theta-st.Theta) > 0.25+1e-9 {
		t.Fatalf("step %v exceeds clamp 0.25", next.Theta-st.Theta)
	}

	// Theta stays inside [-4, 4] no matter how long the streak.
	st = e.Initialize("")
	hard := Params{A: 2.0, B: 3.9, C: 0, D: 1}
	var history []Observation
	for i := 0; i < 100; i++ {
		history = append(history, Observation{Params: hard, Score: 1, Weight: 1})
		st = e.Update(st, history)
	}
	if st.Theta < -4 || st.Theta > 4 {
		t.Fatalf("theta escaped range: %v", st.Theta)
	}
}

func TestUpdateDegenerateHistoryKeepsState(t *testing.T) {
	e := testEstimator()
	st := e.Initialize("")
	st.Theta = 0.7
	st.SE = 0.5

	next := e.Update(st, nil)
	if next.Theta != st.Theta || next.SE != st.SE {
		t.Fatalf("degenerate update changed state: %+v -> %+v", st, next)
	}
	if !next.LowConfidence {
		t.Fatalf("degenerate update must flag low confidence")
	}
}

func TestAnomalousResponseIsDownWeighted(t *testing.T) {
	e := testEstimator()
	item := Params{A: 1.4, B: 0, C: 0, D: 1}

	st := e.Initialize("")
	full := e.Update(st, []Observation{{Params: item, Score: 1, Weight: 1}})
	reduced := e.Update(st, []Observation{{Params: item, Score: 1, Weight: 0.5, Anomalous: true}})

	if math.Abs(reduced.Theta-st.Theta) >= math.Abs(full.Theta-st.Theta) {
		t.Fatalf("down-weighted evidence moved theta at least as far: full=%v reduced=%v", full.Theta, reduced.Theta)
	}
}

func TestResponseWeight(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.FastResponseMS = 2000
	policy.SlowResponseMS = 600000
	e := NewEstimator(policy)

	cases := []struct {
		name      string
		ms        int
		anomalous bool
	}{
		{name: "plausible", ms: 45000, anomalous: false},
		{name: "too_fast", ms: 300, anomalous: true},
		{name: "too_slow", ms: 900000, anomalous: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, anom := e.ResponseWeight(tc.ms)
			if anom != tc.anomalous {
				t.Fatalf("ResponseWeight(%d) anomalous=%v, want %v", tc.ms, anom, tc.anomalous)
			}
			if tc.anomalous && w >= 1 {
				t.Fatalf("anomalous weight %v should be below 1", w)
			}
		})
	}
}
