package scoring

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

// Answer payload kinds. Heterogeneous answer formats are a tagged variant,
// not an inheritance tree; each kind has its own scorer behind Registry.
const (
	KindMultipleChoice = "multiple_choice"
	KindFreeText       = "free_text"
	KindCode           = "code"
)

// AnswerPayload is the submitted answer. Kind selects the scorer; the other
// fields are per-kind.
type AnswerPayload struct {
	Kind     string   `json:"kind"`
	Selected string   `json:"selected,omitempty"` // multiple_choice
	Text     string   `json:"text,omitempty"`     // free_text
	Outputs  []string `json:"outputs,omitempty"`  // code: observed output per test case
}

// AnswerKey is the authored grading key stored on the question.
type AnswerKey struct {
	Kind          string   `json:"kind"`
	CorrectOption string   `json:"correct_option,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	MinMatches    int      `json:"min_matches,omitempty"` // full credit at this many keyword hits
	Expected      []string `json:"expected,omitempty"`    // code: expected output per test case
}

// Scorer grades one answer kind. Score is in [0, 1].
type Scorer interface {
	Score(payload AnswerPayload, key AnswerKey) (float64, error)
}

type Registry struct {
	scorers map[string]Scorer
}

// NewRegistry wires the default scorer per payload kind.
func NewRegistry() *Registry {
	return &Registry{scorers: map[string]Scorer{
		KindMultipleChoice: MultipleChoiceScorer{},
		KindFreeText:       FreeTextScorer{},
		KindCode:           CodeScorer{},
	}}
}

func (r *Registry) Register(kind string, s Scorer) {
	r.scorers[kind] = s
}

// Score parses the raw payload and key and dispatches on kind. A payload
// whose kind disagrees with the question's key is a typed error, never a
// silent zero.
func (r *Registry) Score(q *types.Question, rawPayload []byte) (float64, error) {
	var payload AnswerPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrUnsupportedAnswerPayload, err)
	}
	var key AnswerKey
	if len(q.AnswerKey) > 0 {
		if err := json.Unmarshal(q.AnswerKey, &key); err != nil {
			return 0, fmt.Errorf("parse answer key for question %s: %w", q.ID, err)
		}
	}
	if key.Kind == "" {
		key.Kind = defaultKindForType(q.Type)
	}
	if payload.Kind == "" {
		payload.Kind = key.Kind
	}
	if payload.Kind != key.Kind {
		return 0, fmt.Errorf("%w: payload kind %q, question expects %q", types.ErrUnsupportedAnswerPayload, payload.Kind, key.Kind)
	}
	scorer, ok := r.scorers[key.Kind]
	if !ok {
		return 0, fmt.Errorf("%w: no scorer for kind %q", types.ErrUnsupportedAnswerPayload, key.Kind)
	}
	return scorer.Score(payload, key)
}

func defaultKindForType(questionType string) string {
	switch questionType {
	case types.QuestionTypeCoding:
		return KindCode
	case types.QuestionTypeBehavioral, types.QuestionTypeSystemDesign:
		return KindFreeText
	}
	return KindMultipleChoice
}

// MultipleChoiceScorer: exact match on the selected option.
type MultipleChoiceScorer struct{}

func (MultipleChoiceScorer) Score(payload AnswerPayload, key AnswerKey) (float64, error) {
	if key.CorrectOption == "" {
		return 0, fmt.Errorf("%w: multiple choice key has no correct option", types.ErrUnsupportedAnswerPayload)
	}
	if strings.EqualFold(strings.TrimSpace(payload.Selected), key.CorrectOption) {
		return 1, nil
	}
	return 0, nil
}

// FreeTextScorer: keyword-and-rubric partial credit. Credit is the matched
// share of keywords, saturating at MinMatches hits when the rubric sets one.
type FreeTextScorer struct{}

func (FreeTextScorer) Score(payload AnswerPayload, key AnswerKey) (float64, error) {
	if len(key.Keywords) == 0 {
		return 0, fmt.Errorf("%w: free text key has no keywords", types.ErrUnsupportedAnswerPayload)
	}
	text := strings.ToLower(payload.Text)
	matched := 0
	for _, kw := range key.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			matched++
		}
	}
	needed := len(key.Keywords)
	if key.MinMatches > 0 && key.MinMatches < needed {
		needed = key.MinMatches
	}
	score := float64(matched) / float64(needed)
	if score > 1 {
		score = 1
	}
	return score, nil
}

// CodeScorer: observed test-case outputs against expected outputs. The
// execution itself happens upstream; only the comparison lives here.
type CodeScorer struct{}

func (CodeScorer) Score(payload AnswerPayload, key AnswerKey) (float64, error) {
	if len(key.Expected) == 0 {
		return 0, fmt.Errorf("%w: code key has no expected outputs", types.ErrUnsupportedAnswerPayload)
	}
	passed := 0
	for i, want := range key.Expected {
		if i < len(payload.Outputs) && strings.TrimSpace(payload.Outputs[i]) == strings.TrimSpace(want) {
			passed++
		}
	}
	return float64(passed) / float64(len(key.Expected)), nil
}
