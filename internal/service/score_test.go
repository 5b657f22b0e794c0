package service

import (
	"math"
	"testing"

	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/model"
)

func question(grade float64, fractions ...float64) model.Question {
	q := model.Question{Name: "Q", Text: "text", DefaultGrade: grade}
	for _, f := range fractions {
		q.Answers = append(q.Answers, model.AnswerOption{Fraction: f, IsCorrect: f > 0})
	}
	return q
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreArithmetic(t *testing.T) {
	tests := []struct {
		name       string
		questions  []model.Question
		answers    [][]bool
		wantPoints []float64
		wantBody   float64
	}{
		{
			"single correct option earns full grade",
			[]model.Question{question(10, 100, -100)},
			[][]bool{{true, false}},
			[]float64{10},
			10,
		},
		{
			"correct plus wrong cancels to zero",
			[]model.Question{question(10, 100, -100)},
			[][]bool{{true, true}},
			[]float64{0},
			0,
		},
		{
			"nothing marked earns nothing",
			[]model.Question{question(10, 100, -100)},
			[][]bool{{false, false}},
			[]float64{0},
			0,
		},
		{
			"partial credit rounds fraction before grading",
			[]model.Question{question(3, 33.333, 33.333, 33.334)},
			[][]bool{{true, false, false}},
			[]float64{0.99},
			0.99,
		},
		{
			"two questions sum into body",
			[]model.Question{question(10, 100), question(5, 100, -100)},
			[][]bool{{true}, {false, true}},
			[]float64{10, -5},
			5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, totals := Score(tt.answers, tt.questions, false, 1)
			if len(results) != len(tt.wantPoints) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.wantPoints))
			}
			for i, want := range tt.wantPoints {
				if !almostEqual(results[i].Points, want) {
					t.Errorf("question %d points = %v, want %v", i, results[i].Points, want)
				}
			}
			if !almostEqual(totals.Body, tt.wantBody) {
				t.Errorf("body = %v, want %v", totals.Body, tt.wantBody)
			}
		})
	}
}

func TestScoreGCMultiplierHalvesPenalty(t *testing.T) {
	questions := []model.Question{question(10, 100, -100)}
	answers := [][]bool{{false, true}}

	_, full := Score(answers, questions, false, 1)
	_, halved := Score(answers, questions, true, 0.5)

	if !almostEqual(full.Body, -10) {
		t.Fatalf("unscaled penalty body = %v, want -10", full.Body)
	}
	if !almostEqual(halved.Body, -5) {
		t.Errorf("halved penalty body = %v, want -5", halved.Body)
	}
}

func TestScoreGCMultiplierLeavesRewardAlone(t *testing.T) {
	questions := []model.Question{question(10, 100, -100)}
	answers := [][]bool{{true, false}}

	_, totals := Score(answers, questions, true, 0.5)
	if !almostEqual(totals.Body, 10) {
		t.Errorf("body = %v, want 10; positive fractions must not be scaled", totals.Body)
	}
}

func TestScoreTotals(t *testing.T) {
	questions := []model.Question{question(10, 100), question(10, 100)}
	answers := [][]bool{{true}, {false}}

	_, totals := Score(answers, questions, false, 1)

	if !almostEqual(totals.Body, 10) {
		t.Errorf("body = %v, want 10", totals.Body)
	}
	if !almostEqual(totals.BodyCelkem, 20) {
		t.Errorf("body_celkem = %v, want 20", totals.BodyCelkem)
	}
	if !almostEqual(totals.BodyRel, 0.5) {
		t.Errorf("body_rel = %v, want 0.5", totals.BodyRel)
	}
}

func TestScoreZeroQuestions(t *testing.T) {
	_, totals := Score(nil, nil, false, 1)
	if totals.Body != 0 || totals.BodyCelkem != 0 || totals.BodyRel != 0 {
		t.Errorf("zero-question totals = %+v, want all zero", totals)
	}
}

func TestScoreMarkBeyondOptionsKeepsLetter(t *testing.T) {
	// Grid has four columns but the question only two options; a stray mark
	// in column D is reported but carries no fraction.
	questions := []model.Question{question(10, 100, -100)}
	answers := [][]bool{{true, false, false, true}}

	results, totals := Score(answers, questions, false, 1)

	if len(results[0].Answer) != 2 || results[0].Answer[0] != "A" || results[0].Answer[1] != "D" {
		t.Fatalf("answer letters = %v, want [A D]", results[0].Answer)
	}
	if !almostEqual(totals.Body, 10) {
		t.Errorf("body = %v, want 10", totals.Body)
	}
}
