package service

import (
	"math"

	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/dto"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/model"
)

// ScoreTotals carries the per-student totals in the downstream grading
// system's vocabulary: body is the rounded point total, bodyCelkem the
// unrounded attainable maximum, bodyRel the rounded ratio of the two.
type ScoreTotals struct {
	Body       float64
	BodyCelkem float64
	BodyRel    float64
}

// Score grades one student's canonical-order answer matrix against the
// answer key. Per question the fractions of every marked option are summed,
// divided by 100, rounded to two decimals and multiplied by the question's
// default grade. In GC mode negative fractions are scaled by the configured
// multiplier first, softening the guessing penalty. Marks in grid columns
// beyond a question's option count contribute a letter but no fraction.
func Score(answers [][]bool, questions []model.Question, gcMode bool, gcMultiplier float64) ([]dto.QuestionResult, ScoreTotals) {
	var points, overall float64
	results := make([]dto.QuestionResult, 0, len(questions))

	for i, q := range questions {
		overall += q.DefaultGrade

		res := dto.QuestionResult{
			Question: dto.QuestionInfo{Name: q.Name, Text: q.Text},
			Answer:   []string{},
		}

		var fractionSum float64
		if i < len(answers) {
			for j, marked := range answers[i] {
				if !marked {
					continue
				}
				res.Answer = append(res.Answer, string(rune('A'+j)))
				if j >= len(q.Answers) {
					continue
				}
				fraction := q.Answers[j].Fraction
				if gcMode && fraction < 0 {
					fraction *= gcMultiplier
				}
				fractionSum += fraction
			}
		}

		questionPoints := q.DefaultGrade * round2(fractionSum/100)
		points += questionPoints
		res.Points = questionPoints
		results = append(results, res)
	}

	totals := ScoreTotals{
		Body:       round2(points),
		BodyCelkem: overall,
	}
	// A test with zero attainable points has no meaningful relative score.
	if overall != 0 {
		totals.BodyRel = round2(points / overall)
	}
	return results, totals
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
