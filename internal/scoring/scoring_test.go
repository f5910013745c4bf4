package scoring

import (
	"errors"
	"math"
	"testing"

	"gorm.io/datatypes"

	"github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
)

func TestRegistryScore(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		name     string
		question *types.Question
		payload  string
		want     float64
		wantErr  error
	}{
		{
			name: "multiple_choice_correct",
			question: &types.Question{
				Type:      types.QuestionTypeTechnical,
				AnswerKey: datatypes.JSON(`{"kind":"multiple_choice","correct_option":"B"}`),
			},
			payload: `{"kind":"multiple_choice","selected":"b"}`,
			want:    1,
		},
		{
			name: "multiple_choice_wrong",
			question: &types.Question{
				Type:      types.QuestionTypeTechnical,
				AnswerKey: datatypes.JSON(`{"kind":"multiple_choice","correct_option":"B"}`),
			},
			payload: `{"kind":"multiple_choice","selected":"C"}`,
			want:    0,
		},
		{
			name: "free_text_partial_credit",
			question: &types.Question{
				Type:      types.QuestionTypeConceptual,
				AnswerKey: datatypes.JSON(`{"kind":"free_text","keywords":["index","b-tree","lookup","logarithmic"]}`),
			},
			payload: `{"kind":"free_text","text":"An index is a B-tree that speeds up lookup."}`,
			want:    0.75,
		},
		{
			name: "free_text_rubric_saturates",
			question: &types.Question{
				Type:      types.QuestionTypeBehavioral,
				AnswerKey: datatypes.JSON(`{"kind":"free_text","keywords":["conflict","listen","compromise","outcome"],"min_matches":2}`),
			},
			payload: `{"kind":"free_text","text":"We had a conflict and found a compromise."}`,
			want:    1,
		},
		{
			name: "code_test_cases",
			question: &types.Question{
				Type:      types.QuestionTypeCoding,
				AnswerKey: datatypes.JSON(`{"kind":"code","expected":["3","7","0"]}`),
			},
			payload: `{"kind":"code","outputs":["3","7","1"]}`,
			want:    2.0 / 3.0,
		},
		{
			name: "kind_mismatch_is_typed_error",
			question: &types.Question{
				Type:      types.QuestionTypeCoding,
				AnswerKey: datatypes.JSON(`{"kind":"code","expected":["3"]}`),
			},
			payload: `{"kind":"multiple_choice","selected":"A"}`,
			wantErr: types.ErrUnsupportedAnswerPayload,
		},
		{
			name: "malformed_payload_is_typed_error",
			question: &types.Question{
				Type:      types.QuestionTypeTechnical,
				AnswerKey: datatypes.JSON(`{"kind":"multiple_choice","correct_option":"A"}`),
			},
			payload: `{not json`,
			wantErr: types.ErrUnsupportedAnswerPayload,
		},
		{
			name: "kind_defaults_from_question_type",
			question: &types.Question{
				Type:      types.QuestionTypeCoding,
				AnswerKey: datatypes.JSON(`{"expected":["ok"]}`),
			},
			payload: `{"outputs":["ok"]}`,
			want:    1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reg.Score(tc.question, []byte(tc.payload))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err=%v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("score=%v, want %v", got, tc.want)
			}
		})
	}
}
