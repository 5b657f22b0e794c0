package sheet

import (
	"testing"

	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/config"
)

func TestMaxRectsPerPage(t *testing.T) {
	layout := func(idWidth, answerWidth, spacing float64) *config.Sheet {
		return &config.Sheet{
			StudentIDRect: config.Rect{Width: idWidth},
			AnswerRect:    config.Rect{Width: answerWidth},
			RectSettings:  config.RectSettings{RectSpaceBetween: spacing},
		}
	}

	tests := []struct {
		name   string
		layout *config.Sheet
		want   int
	}{
		{"five narrow rects", layout(0.1, 0.2, 0.02), 5},
		{"single wide rect", layout(0.1, 0.9, 0.05), 1},
		{"nothing fits beside a huge id column", layout(1.3, 0.2, 0.02), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxRectsPerPage(tt.layout, A4Width, A4Height)
			if got != tt.want {
				t.Errorf("MaxRectsPerPage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNumRectangles(t *testing.T) {
	tests := []struct {
		numQuestions, rowsPerRect, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{25, 20, 2},
		{40, 20, 2},
	}
	for _, tt := range tests {
		if got := NumRectangles(tt.numQuestions, tt.rowsPerRect); got != tt.want {
			t.Errorf("NumRectangles(%d, %d) = %d, want %d", tt.numQuestions, tt.rowsPerRect, got, tt.want)
		}
	}
}

func TestRectsPerPage(t *testing.T) {
	tests := []struct {
		name                            string
		totalRects, numPages, maxPerPage int
		want                            []int
	}{
		{"even split stays full", 6, 2, 3, []int{3, 3}},
		{"remainder on last page", 7, 3, 3, []int{3, 3, 1}},
		{"single page partial", 2, 1, 3, []int{2}},
		{"single page full", 3, 1, 3, []int{3}},
		{"one rect per page", 2, 2, 1, []int{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RectsPerPage(tt.totalRects, tt.numPages, tt.maxPerPage)
			if len(got) != len(tt.want) {
				t.Fatalf("RectsPerPage() = %v, want %v", got, tt.want)
			}
			sum := 0
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("RectsPerPage() = %v, want %v", got, tt.want)
				}
				sum += got[i]
			}
			if sum != tt.totalRects {
				t.Errorf("sum of RectsPerPage() = %d, want %d", sum, tt.totalRects)
			}
		})
	}
}

func TestLastRectQuestionCount(t *testing.T) {
	tests := []struct {
		numQuestions, rowsPerRect, want int
	}{
		{25, 20, 5},
		{40, 20, 0},
		{3, 20, 3},
	}
	for _, tt := range tests {
		if got := LastRectQuestionCount(tt.numQuestions, tt.rowsPerRect); got != tt.want {
			t.Errorf("LastRectQuestionCount(%d, %d) = %d, want %d", tt.numQuestions, tt.rowsPerRect, got, tt.want)
		}
	}
}

// Mirrors a real 25-question test printed with 20-row rectangles, one
// rectangle per page: two pages, the second rectangle holding only 5 rows.
func TestTwoPageLayoutScenario(t *testing.T) {
	const (
		numQuestions = 25
		rowsPerRect  = 20
		maxPerPage   = 1
	)

	rects := NumRectangles(numQuestions, rowsPerRect)
	if rects != 2 {
		t.Fatalf("NumRectangles = %d, want 2", rects)
	}
	pages := NumPages(rects, maxPerPage)
	if pages != 2 {
		t.Fatalf("NumPages = %d, want 2", pages)
	}
	perPage := RectsPerPage(rects, pages, maxPerPage)
	if len(perPage) != 2 || perPage[0] != 1 || perPage[1] != 1 {
		t.Fatalf("RectsPerPage = %v, want [1 1]", perPage)
	}
	if got := LastRectQuestionCount(numQuestions, rowsPerRect); got != 5 {
		t.Errorf("LastRectQuestionCount = %d, want 5", got)
	}
}
