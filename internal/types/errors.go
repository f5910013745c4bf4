package types

import "errors"

// Engine error kinds. Handlers map these onto HTTP statuses; the session
// orchestrator decides user-facing behavior.
var (
	ErrSessionNotFound             = errors.New("session not found")
	ErrInvalidSessionState         = errors.New("session is terminal or not startable")
	ErrNoEligibleQuestions         = errors.New("no eligible questions after constraint relaxation")
	ErrDuplicateResponse           = errors.New("response already recorded for this question")
	ErrCalibrationInsufficientData = errors.New("insufficient responses for calibration")
	ErrInvalidItemParameters       = errors.New("invalid item parameters")
	ErrUnsupportedAnswerPayload    = errors.New("answer payload does not match question type")
)
