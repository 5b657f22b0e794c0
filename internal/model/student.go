package model

// Student is one entry of a test's student list as imported from the LMS
// export at generation time. The shuffle describes exactly how this student's
// paper was permuted, so evaluation can invert it later.
type Student struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	Surname       string         `json:"surname"`
	StudentNumber string         `json:"student_number"`
	Username      string         `json:"username"`
	Email         string         `json:"email"`
	Shuffle       []ShuffleEntry `json:"shuffle"`
}

// ShuffleEntry records what one printed row of the sheet holds. Entry e is
// printed row e; Question is the canonical index of the question printed
// there, and Answers[s] is the canonical index of the option printed in
// slot s of that row.
type ShuffleEntry struct {
	Question int   `json:"question"`
	Answers  []int `json:"answers"`
}
