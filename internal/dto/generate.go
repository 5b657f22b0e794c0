package dto

// RosterStudent is one entry of the student roster sent with a generation
// request, in the grading system's export schema.
type RosterStudent struct {
	Jmeno    string `json:"jmeno"`
	Prijmeni string `json:"prijmeni"`
	OsCislo  string `json:"os_cislo"`
	Login    string `json:"login"`
	Email    string `json:"email"`
}

// MoodleAnswer is one answer option of a Moodle question export, fraction
// given as a signed percentage of the question's default grade.
type MoodleAnswer struct {
	Text      string  `json:"text"`
	IsCorrect bool    `json:"isCorrect"`
	Fraction  float64 `json:"fraction"`
}

// MoodleQuestion is one question of a Moodle question-bank export.
type MoodleQuestion struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Name         string         `json:"name"`
	Text         string         `json:"text"`
	DefaultGrade float64        `json:"defaultGrade"`
	Penalty      float64        `json:"penalty"`
	Answers      []MoodleAnswer `json:"answers"`
}

// GenerateRequest is the body of POST /get_print_data. Date is an ISO 8601
// timestamp; only its date part is printed on the sheets.
type GenerateRequest struct {
	Questions []MoodleQuestion `json:"questions" binding:"required"`
	Students  []RosterStudent  `json:"students" binding:"required"`
	Date      string           `json:"date"`
}

// GCAnswer is one answer option of a Google Classroom question export,
// which carries no fractions.
type GCAnswer struct {
	Value     string `json:"value"`
	IsCorrect bool   `json:"isCorrect"`
}

// GCQuestion is one question of a Google Classroom export.
type GCQuestion struct {
	Text    string     `json:"text"`
	Points  float64    `json:"points"`
	Answers []GCAnswer `json:"answers"`
}

// GCGenerateRequest is the body of POST /generate-gf-data.
type GCGenerateRequest struct {
	Questions []GCQuestion    `json:"questions" binding:"required"`
	Students  []RosterStudent `json:"students" binding:"required"`
	Date      string          `json:"date"`
}
