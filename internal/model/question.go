package model

// Question is a single multichoice question of a test, stored in canonical
// (answer-key) order.
type Question struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Name         string         `json:"name"`
	Text         string         `json:"text"`
	DefaultGrade float64        `json:"default_grade"`
	Penalty      float64        `json:"penalty"`
	Answers      []AnswerOption `json:"answers"`
}

// AnswerOption carries the fraction of the question's default grade awarded
// when the option is marked. Fractions are percentages in [-100, 100],
// positive for correct options and negative for incorrect ones.
type AnswerOption struct {
	Text      string  `json:"text"`
	IsCorrect bool    `json:"isCorrect"`
	Fraction  float64 `json:"fraction"`
}
