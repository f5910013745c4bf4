package selector

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/bank"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/config"
	"github.com/PrajwalRV1/aria-adaptive-engine/internal/irt"
)

// Termination reasons reported to the session orchestrator.
const (
	ReasonConfidenceReached   = "confidence_reached"
	ReasonMaxQuestionsReached = "max_questions_reached"
	ReasonNoEligibleQuestions = "no_eligible_questions"
)

// SessionState is everything selection may depend on. SelectNext is a pure
// function of (state, snapshot, exposure view, policy); the tie-break rng is
// seeded from the session id so reruns and resumed sessions pick alike.
type SessionState struct {
	SessionID          uuid.UUID
	Theta              float64
	SE                 float64
	Asked              []uuid.UUID
	Technologies       []string
	RequiredSkillAreas []string
	MinQuestions       int
	MaxQuestions       int
	TargetSE           float64
}

type Pick struct {
	Item        *bank.Item
	Information float64
	Rationale   string
}

type Outcome struct {
	Pick       *Pick
	Terminated bool
	Reason     string
}

const scoreEpsilon = 1e-9

// SelectNext applies the stopping rule, then maximum-Fisher-information
// selection over the constrained pool, relaxing constraints in two steps
// (drop technology filter, then drop content balancing) before giving up.
func SelectNext(state SessionState, snap *bank.Snapshot, exposure bank.ExposureView, policy config.Policy) Outcome {
	asked := len(state.Asked)
	if state.SE <= state.TargetSE && asked >= state.MinQuestions {
		return Outcome{Terminated: true, Reason: ReasonConfidenceReached}
	}
	if asked >= state.MaxQuestions {
		return Outcome{Terminated: true, Reason: ReasonMaxQuestionsReached}
	}

	askedSet := make(map[uuid.UUID]bool, asked)
	for _, id := range state.Asked {
		askedSet[id] = true
	}

	deficits := coverageDeficits(state, snap)

	type stage struct {
		name           string
		techFilter     bool
		contentBalance bool
	}
	stages := []stage{
		{name: "strict", techFilter: true, contentBalance: true},
		{name: "technology_relaxed", techFilter: false, contentBalance: true},
		{name: "balance_relaxed", techFilter: false, contentBalance: false},
	}

	for _, sg := range stages {
		best := pickBest(state, snap, exposure, policy, askedSet, deficits, sg.techFilter, sg.contentBalance)
		if best == nil {
			continue
		}
		rationale := fmt.Sprintf("maximum information %.4f at theta %.2f", best.info, state.Theta)
		if sg.contentBalance && best.deficit > 0 {
			rationale += fmt.Sprintf(", coverage boost %.2f", best.deficit)
		}
		if sg.name != "strict" {
			rationale += ", constraints relaxed: " + sg.name
		}
		return Outcome{Pick: &Pick{
			Item:        best.item,
			Information: best.info,
			Rationale:   rationale,
		}}
	}

	return Outcome{Terminated: true, Reason: ReasonNoEligibleQuestions}
}

type scored struct {
	item    *bank.Item
	info    float64
	weight  float64
	deficit float64
	jitter  float64
}

func pickBest(state SessionState, snap *bank.Snapshot, exposure bank.ExposureView, policy config.Policy, askedSet map[uuid.UUID]bool, deficits map[string]float64, techFilter, contentBalance bool) *scored {
	rng := rand.New(rand.NewSource(seedFor(state.SessionID)))

	var pool []*scored
	for _, item := range snap.Items() {
		// Tie-break jitter must be drawn for every item in snapshot order,
		// or filtering would shift the stream and break determinism across
		// relaxation stages.
		jitter := rng.Float64()

		if askedSet[item.ID] {
			continue
		}
		if !exposure.Allowed(item.ID, policy.MaxExposureRate, policy.ExposureWarmup) {
			continue
		}
		if techFilter && len(state.Technologies) > 0 && !intersects(item.Technologies, state.Technologies) {
			continue
		}

		info := irt.FisherInformation(state.Theta, item.Params)
		if info <= 0 {
			continue
		}

		deficit := maxDeficit(item.SkillAreas, deficits)
		weight := info
		if contentBalance && len(deficits) > 0 {
			if deficit <= 0 {
				continue
			}
			weight = info * deficit
		}

		pool = append(pool, &scored{item: item, info: info, weight: weight, deficit: deficit, jitter: jitter})
	}
	if len(pool) == 0 {
		return nil
	}

	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if diff := a.weight - b.weight; diff > scoreEpsilon || diff < -scoreEpsilon {
			return a.weight > b.weight
		}
		if diff := a.item.Params.A - b.item.Params.A; diff > scoreEpsilon || diff < -scoreEpsilon {
			return a.item.Params.A > b.item.Params.A
		}
		if a.item.TimesAsked != b.item.TimesAsked {
			return a.item.TimesAsked < b.item.TimesAsked
		}
		return a.jitter < b.jitter
	})
	return pool[0]
}

// coverageDeficits computes, per required skill area, how far the asked set
// falls short of an even share across required areas. Values are normalized
// to (0, 1] so they can re-weight information scores directly.
func coverageDeficits(state SessionState, snap *bank.Snapshot) map[string]float64 {
	if len(state.RequiredSkillAreas) == 0 {
		return nil
	}
	counts := make(map[string]int, len(state.RequiredSkillAreas))
	for _, id := range state.Asked {
		item, ok := snap.Get(id)
		if !ok {
			continue
		}
		for _, area := range item.SkillAreas {
			counts[area]++
		}
	}

	targetShare := 1.0 / float64(len(state.RequiredSkillAreas))
	total := len(state.Asked)
	deficits := make(map[string]float64, len(state.RequiredSkillAreas))
	for _, area := range state.RequiredSkillAreas {
		actual := 0.0
		if total > 0 {
			actual = float64(counts[area]) / float64(total)
		}
		d := (targetShare - actual) / targetShare
		if d < 0 {
			d = 0
		}
		deficits[area] = d
	}
	return deficits
}

func maxDeficit(areas []string, deficits map[string]float64) float64 {
	best := 0.0
	for _, area := range areas {
		if d, ok := deficits[area]; ok && d > best {
			best = d
		}
	}
	return best
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func seedFor(sessionID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(sessionID[:])
	return int64(h.Sum64())
}
