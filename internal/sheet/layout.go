package sheet

import (
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/config"
)

// A4 paper size in inches, landscape.
const (
	A4Width  = 11.69
	A4Height = 8.27
)

// A4Size returns the landscape A4 page size in inches.
func A4Size() (w, h float64) {
	return A4Width, A4Height
}

// The layout functions below are pure and shared by the sheet generator and
// the scan pipeline. For a fixed layout config and question count they must
// produce identical output on both sides; that identity is what lets the
// scanner predict how many bubbles to expect in each region without looking
// at image content.

// MaxRectsPerPage computes how many answer-grid rectangles fit on one page.
// All widths in the layout config are fractions of the page height, so the
// usable horizontal span is the page aspect ratio. Accumulation starts at the
// student-ID column (plus double spacing) and adds answer rectangles (plus
// 1.5x spacing) while the running edge stays clear of one trailing rectangle
// width and spacing.
func MaxRectsPerPage(layout *config.Sheet, pageW, pageH float64) int {
	spacing := layout.RectSettings.RectSpaceBetween
	limit := pageW/pageH - (layout.AnswerRect.Width + spacing)

	x := layout.StudentIDRect.Width + 2*spacing
	n := 0
	for x <= limit {
		x += layout.AnswerRect.Width + 1.5*spacing
		n++
	}
	return n
}

// NumRectangles returns ceil(numQuestions / rowsPerRect).
func NumRectangles(numQuestions, rowsPerRect int) int {
	return (numQuestions + rowsPerRect - 1) / rowsPerRect
}

// NumPages returns ceil(totalRects / maxPerPage).
func NumPages(totalRects, maxPerPage int) int {
	return (totalRects + maxPerPage - 1) / maxPerPage
}

// RectsPerPage assigns maxPerPage rectangles to every page; when totalRects
// does not divide evenly the last page gets the remainder. A full last page
// must stay full.
func RectsPerPage(totalRects, numPages, maxPerPage int) []int {
	counts := make([]int, numPages)
	for i := range counts {
		counts[i] = maxPerPage
	}
	if numPages > 0 {
		if rem := totalRects % maxPerPage; rem != 0 {
			counts[numPages-1] = rem
		}
	}
	return counts
}

// LastRectQuestionCount returns how many question rows the final rectangle
// holds; 0 means the last rectangle is full.
func LastRectQuestionCount(numQuestions, rowsPerRect int) int {
	return numQuestions % rowsPerRect
}
