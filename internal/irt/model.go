package irt

import (
	"math"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

// Params are the 4PL item parameters. A 2PL item is the special case
// C=0, D=1.
type Params struct {
	A float64 // discrimination
	B float64 // difficulty
	C float64 // guessing lower asymptote
	D float64 // upper asymptote
}

func ParamsFromQuestion(q *types.Question) Params {
	return Params{
		A: q.Discrimination,
		B: q.Difficulty,
		C: q.Guessing,
		D: q.UpperAsymptote,
	}
}

// Validate rejects malformed parameters at ingest time. Runtime code may
// assume every item in the bank passed this.
func (p Params) Validate() error {
	if p.A <= 0 {
		return types.ErrInvalidItemParameters
	}
	if p.C < 0 || p.D > 1 || p.C >= p.D {
		return types.ErrInvalidItemParameters
	}
	if p.B < -4 || p.B > 4 {
		return types.ErrInvalidItemParameters
	}
	return nil
}

// Probability is the 4PL response function:
// P(correct|theta) = c + (d-c) / (1 + exp(-a(theta-b)))
func Probability(theta float64, p Params) float64 {
	return p.C + (p.D-p.C)/(1+math.Exp(-p.A*(theta-p.B)))
}

// FisherInformation for one item at theta:
// I(theta) = a^2 (P-c)^2 (d-P)^2 / ((d-c)^2 P (1-P))
func FisherInformation(theta float64, p Params) float64 {
	prob := Probability(theta, p)
	if prob <= 0 || prob >= 1 {
		return 0
	}
	num := p.A * p.A * (prob - p.C) * (prob - p.C) * (p.D - prob) * (p.D - prob)
	den := (p.D - p.C) * (p.D - p.C) * prob * (1 - prob)
	if den <= 0 {
		return 0
	}
	return num / den
}
