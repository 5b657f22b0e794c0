package dto

// QuestionInfo identifies a question inside a student result.
type QuestionInfo struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// QuestionResult is one scored question of one student, in canonical order.
// Answer holds the marked option letters (A, B, C, ...).
type QuestionResult struct {
	Question QuestionInfo `json:"question"`
	Answer   []string     `json:"answer"`
	Points   float64      `json:"points"`
}

// StudentResult is the per-student evaluation output. The identity field
// names follow the downstream grading system's schema.
type StudentResult struct {
	Jmeno      string           `json:"jmeno"`
	Prijmeni   string           `json:"prijmeni"`
	OsCislo    string           `json:"os_cislo"`
	Login      string           `json:"login"`
	Email      string           `json:"email"`
	Result     []QuestionResult `json:"result"`
	Body       float64          `json:"body"`
	BodyCelkem float64          `json:"body_celkem"`
	BodyRel    float64          `json:"body_rel"`
}

// EvaluationError replaces a StudentResult when one student's pipeline
// failed; sibling students are unaffected.
type EvaluationError struct {
	Error  string           `json:"error"`
	Result []QuestionResult `json:"result"`
}

// EvaluationResponse is the body of POST /test_evaluation. Result entries
// are StudentResult or EvaluationError values, ordered by student.
type EvaluationResponse struct {
	Result []any  `json:"result"`
	Log    string `json:"log"`
}
