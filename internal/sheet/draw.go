package sheet

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/config"
	qrgen "github.com/skip2/go-qrcode"
	"gocv.io/x/gocv"
)

// GridKind tags the two bubble-grid variants printed on a sheet.
type GridKind int

const (
	StudentIDGrid GridKind = iota
	AnswerGrid
)

// Render resolution: landscape A4 at 300 DPI.
const (
	pageWidthPx  = 3508
	pageHeightPx = 2480

	fiducialSizePx   = pageHeightPx / 14
	fiducialMarginPx = pageHeightPx / 50
)

// PageParams describes one bubble-sheet page render.
type PageParams struct {
	TestID      string
	StudentID   string // zero-padded digits pre-filled into the ID grid
	StudentName string
	Date        string
	Page        int
	NumPages    int
	RectsOnPage int
	LastRectQ   int // 0 when the final rectangle is full
	// QuestionStart is the running question counter. Numbering continues
	// across rectangles and pages, so the caller threads the value through
	// consecutive DrawPage calls.
	QuestionStart int
}

// DrawPage renders one page of a bubble sheet and returns it together with
// the advanced question counter. Callers own the returned matrix.
func DrawPage(layout *config.Sheet, p PageParams) (gocv.Mat, int, error) {
	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0),
		pageHeightPx, pageWidthPx, gocv.MatTypeCV8UC3)

	drawHeader(&canvas, layout, p)
	if err := drawFiducial(&canvas, p.TestID, p.Page); err != nil {
		canvas.Close()
		return gocv.Mat{}, 0, err
	}

	x := layout.StudentIDRect.X
	drawGrid(&canvas, layout, StudentIDGrid, x, layout.StudentIDRect.Y, gridOptions{studentID: p.StudentID})

	counter := p.QuestionStart
	spacing := layout.RectSettings.RectSpaceBetween
	x += layout.StudentIDRect.Width + 2*spacing
	for i := 0; i < p.RectsOnPage; i++ {
		opts := gridOptions{questionStart: counter}
		if p.Page == p.NumPages-1 && i == p.RectsOnPage-1 && p.LastRectQ != 0 {
			opts.rowLimit = p.LastRectQ
		}
		counter = drawGrid(&canvas, layout, AnswerGrid, x, layout.AnswerRect.Y, opts)
		x += layout.AnswerRect.Width + 1.5*spacing
	}
	return canvas, counter, nil
}

type gridOptions struct {
	studentID     string
	questionStart int
	rowLimit      int // 0 means all grid rows
}

// px converts a layout fraction to pixels. All layout fractions are relative
// to the page height; the usable horizontal span is the page aspect ratio.
func px(v float64) int {
	return int(v * pageHeightPx)
}

// drawGrid paints one bubble grid at the given origin and returns the
// advanced question counter (unchanged for the student-ID grid).
func drawGrid(canvas *gocv.Mat, layout *config.Sheet, kind GridKind, x, y float64, opts gridOptions) int {
	var rect config.Rect
	switch kind {
	case StudentIDGrid:
		rect = layout.StudentIDRect
	case AnswerGrid:
		rect = layout.AnswerRect
	}

	rows, cols := rect.Grid.Rows, rect.Grid.Cols
	rowLimit := rows
	if opts.rowLimit > 0 {
		rowLimit = opts.rowLimit
	}

	main := hexColor(layout.Colors.MainColor)
	off := hexColor(layout.Colors.OffColor)
	textColor := hexColor(layout.Colors.TextColor)
	thickness := max(1, px(layout.RectSettings.RectLineWidth))

	cellW := rect.Width / float64(cols)
	cellH := rect.Height / float64(rows)

	// Alternate shading guides the eye: every other column on the ID grid,
	// every other row on answer grids.
	if kind == StudentIDGrid {
		for c := 0; c < cols; c += 2 {
			gocv.Rectangle(canvas, image.Rect(
				px(x+cellW*float64(c)), px(y),
				px(x+cellW*float64(c+1)), px(y+rect.Height)), off, -1)
		}
	} else {
		for r := 0; r < rows; r += 2 {
			gocv.Rectangle(canvas, image.Rect(
				px(x), px(y+cellH*float64(r)),
				px(x+rect.Width), px(y+cellH*float64(r+1))), off, -1)
		}
	}

	// The border rectangle is what the scanner's region locator finds as an
	// external contour.
	gocv.Rectangle(canvas, image.Rect(px(x), px(y), px(x+rect.Width), px(y+rect.Height)), main, thickness)

	// A 20-row grid is much taller than wide, so the smaller cell dimension
	// bounds the bubble or adjacent rows would overlap.
	radius := px(min(cellW, cellH) / 3)
	for c := 0; c < cols; c++ {
		for r := 0; r < rowLimit; r++ {
			center := image.Pt(px(x+cellW*(float64(c)+0.5)), px(y+cellH*(float64(r)+0.5)))
			gocv.Circle(canvas, center, radius, main, thickness)
			if kind == StudentIDGrid && c < len(opts.studentID) && opts.studentID[c] == byte('0'+r) {
				gocv.Circle(canvas, center, radius, main, -1)
			}
		}
	}

	labelScale := 0.9
	if rect.Label.Main != "" {
		gocv.PutText(canvas, rect.Label.Main,
			image.Pt(px(x), px(y)-px(cellH)), gocv.FontHersheySimplex, labelScale, textColor, 2)
	}

	if kind == StudentIDGrid {
		for r := 0; r < rows; r++ {
			gocv.PutText(canvas, strconv.Itoa(r),
				image.Pt(px(x)-px(cellW*0.7), px(y+cellH*(float64(r)+0.7))),
				gocv.FontHersheySimplex, labelScale, textColor, 2)
		}
		return opts.questionStart
	}

	// Question numbers sit in the inter-rectangle gap; anchoring the offset
	// to the spacing keeps them out of the neighboring grid's crop.
	labelX := px(x) - px(0.8*layout.RectSettings.RectSpaceBetween)
	counter := opts.questionStart
	for r := 0; r < rowLimit; r++ {
		gocv.PutText(canvas, strconv.Itoa(counter),
			image.Pt(labelX, px(y+cellH*(float64(r)+0.7))),
			gocv.FontHersheySimplex, labelScale, textColor, 2)
		counter++
	}
	for c := 0; c < cols; c++ {
		gocv.PutText(canvas, columnLabel(rect.Label.Cols, c),
			image.Pt(px(x+cellW*(float64(c)+0.35)), px(y)-px(cellH*0.3)),
			gocv.FontHersheySimplex, labelScale, textColor, 2)
	}
	return counter
}

// columnLabel renders an answer column heading: A, B, C for alphabetic
// labels, 1, 2, 3 for numeric ones.
func columnLabel(style string, col int) string {
	if style == "numeric" {
		return strconv.Itoa(col + 1)
	}
	return string(rune('A' + col))
}

// drawFiducial paints the QR code into the top-right corner. Besides
// carrying {test_id, page} it doubles as the upside-down detector, so its
// position must stay inside the top-right tenth of the page.
func drawFiducial(canvas *gocv.Mat, testID string, page int) error {
	payload, err := json.Marshal(struct {
		TestID string `json:"test_id"`
		Page   int    `json:"page"`
	}{testID, page})
	if err != nil {
		return fmt.Errorf("encoding fiducial payload: %w", err)
	}

	qr, err := qrgen.New(string(payload), qrgen.Medium)
	if err != nil {
		return fmt.Errorf("building fiducial qr: %w", err)
	}

	mat, err := gocv.ImageToMatRGB(qr.Image(fiducialSizePx))
	if err != nil {
		return fmt.Errorf("rasterizing fiducial qr: %w", err)
	}
	defer mat.Close()

	roi := canvas.Region(image.Rect(
		pageWidthPx-fiducialSizePx-fiducialMarginPx, fiducialMarginPx,
		pageWidthPx-fiducialMarginPx, fiducialMarginPx+fiducialSizePx))
	defer roi.Close()
	mat.CopyTo(&roi)
	return nil
}

func drawHeader(canvas *gocv.Mat, layout *config.Sheet, p PageParams) {
	c := hexColor(layout.Colors.MainColor)
	scale := layout.Header.FontSize / 12
	if scale <= 0 {
		scale = 1
	}
	lineH := int(60 * scale)

	x := px(layout.StudentIDRect.X)
	y := px(layout.StudentIDRect.Y) - px(layout.StudentIDRect.Height/float64(layout.StudentIDRect.Grid.Rows))*2

	gocv.PutText(canvas, layout.Header.Title, image.Pt(x, y-2*lineH), gocv.FontHersheySimplex, scale*1.4, c, 3)
	gocv.PutText(canvas, layout.Header.Name+p.StudentName, image.Pt(x, y-lineH), gocv.FontHersheySimplex, scale, c, 2)
	gocv.PutText(canvas, layout.Header.Date+p.Date, image.Pt(x, y), gocv.FontHersheySimplex, scale, c, 2)
}

// hexColor parses "#RRGGBB"; anything unparsable falls back to black.
func hexColor(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
