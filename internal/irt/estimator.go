package irt

import (
	"math"
	"strings"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/config"
)

// State is the running ability estimate for one session.
type State struct {
	Theta         float64
	SE            float64
	PriorMean     float64
	LowConfidence bool
}

// Observation is one answered item. Weight is 1 for a normal response and
// policy.AnomalousWeight for responses with implausible timing; anomalous
// evidence is down-weighted, never discarded.
type Observation struct {
	Params    Params
	Score     float64 // in [0, 1]
	Weight    float64
	Anomalous bool
}

type Estimator struct {
	policy config.Policy
}

func NewEstimator(policy config.Policy) *Estimator {
	return &Estimator{policy: policy}
}

// Initialize returns the standard-normal prior state. The self-reported
// experience level shifts only the prior mean; the reported level is never
// treated as evidence.
func (e *Estimator) Initialize(experienceLevel string) State {
	return State{
		Theta:     PriorOffsetForExperience(experienceLevel),
		SE:        e.policy.PriorSD,
		PriorMean: PriorOffsetForExperience(experienceLevel),
	}
}

// PriorOffsetForExperience maps a self-reported level to a prior mean shift.
func PriorOffsetForExperience(level string) float64 {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "junior", "entry", "entry_level":
		return -0.5
	case "senior", "staff", "principal":
		return 0.5
	}
	return 0
}

// Update performs one clamped Newton-Raphson step on the posterior mode
// given the whole response history, then recomputes SE from accumulated
// Fisher information plus the prior precision.
//
// A numerically degenerate likelihood (no information in the history, or a
// non-finite step) leaves the state unchanged apart from LowConfidence.
func (e *Estimator) Update(prev State, history []Observation) State {
	priorVar := e.policy.PriorSD * e.policy.PriorSD
	if priorVar <= 0 {
		priorVar = 1
	}
	priorPrecision := 1 / priorVar

	grad := -(prev.Theta - prev.PriorMean) * priorPrecision
	totalInfo := 0.0
	for _, obs := range history {
		w := obs.Weight
		if w <= 0 {
			w = 1
		}
		prob := Probability(prev.Theta, obs.Params)
		if prob <= 0 || prob >= 1 {
			continue
		}
		dp := obs.Params.A * (prob - obs.Params.C) * (obs.Params.D - prob) / (obs.Params.D - obs.Params.C)
		grad += w * (obs.Score - prob) / (prob * (1 - prob)) * dp
		totalInfo += w * FisherInformation(prev.Theta, obs.Params)
	}

	curvature := totalInfo + priorPrecision
	if totalInfo <= 0 || curvature <= 0 || math.IsNaN(grad) || math.IsInf(grad, 0) {
		out := prev
		out.LowConfidence = true
		return out
	}

	step := grad / curvature
	if step > e.policy.MaxThetaStep {
		step = e.policy.MaxThetaStep
	}
	if step < -e.policy.MaxThetaStep {
		step = -e.policy.MaxThetaStep
	}

	theta := prev.Theta + step
	if theta < e.policy.ThetaMin {
		theta = e.policy.ThetaMin
	}
	if theta > e.policy.ThetaMax {
		theta = e.policy.ThetaMax
	}

	// SE from total information at the updated theta.
	infoAt := priorPrecision
	for _, obs := range history {
		w := obs.Weight
		if w <= 0 {
			w = 1
		}
		infoAt += w * FisherInformation(theta, obs.Params)
	}
	se := 1 / math.Sqrt(infoAt)

	// SE never increases across a session unless the newest response was
	// flagged anomalous.
	if len(history) > 0 && !history[len(history)-1].Anomalous && se > prev.SE {
		se = prev.SE
	}

	return State{
		Theta:     theta,
		SE:        se,
		PriorMean: prev.PriorMean,
	}
}

// ResponseWeight classifies a response time against the plausibility bounds
// and returns the evidence weight plus the anomaly flag.
func (e *Estimator) ResponseWeight(responseTimeMS int) (float64, bool) {
	if responseTimeMS < e.policy.FastResponseMS || responseTimeMS > e.policy.SlowResponseMS {
		return e.policy.AnomalousWeight, true
	}
	return 1, false
}
