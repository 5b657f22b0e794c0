package scan

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func TestClassifyGridSyntheticCells(t *testing.T) {
	region := whitePage(400, 400)
	defer region.Close()
	black := color.RGBA{A: 255}

	// A 2x2 grid of printed bubble outlines.
	centers := []image.Point{
		image.Pt(100, 100), image.Pt(300, 100),
		image.Pt(100, 300), image.Pt(300, 300),
	}
	for _, c := range centers {
		gocv.Circle(&region, c, 30, black, 3)
	}
	// A heavy pen mark over the top-right bubble.
	gocv.Circle(&region, image.Pt(300, 100), 40, black, -1)

	matrix, err := ClassifyGrid(region, 2, 4)
	if err != nil {
		t.Fatalf("ClassifyGrid: %v", err)
	}

	want := [][]bool{{false, true}, {false, false}}
	if len(matrix) != len(want) {
		t.Fatalf("got %d rows, want %d", len(matrix), len(want))
	}
	for r := range want {
		for c := range want[r] {
			if matrix[r][c] != want[r][c] {
				t.Errorf("cell (%d, %d) = %v, want %v", r, c, matrix[r][c], want[r][c])
			}
		}
	}
}

func TestClassifyGridPadsShortDetection(t *testing.T) {
	region := whitePage(400, 400)
	defer region.Close()
	black := color.RGBA{A: 255}

	// Only two of the four expected bubbles are present.
	gocv.Circle(&region, image.Pt(100, 100), 30, black, 3)
	gocv.Circle(&region, image.Pt(300, 100), 30, black, 3)

	before := DegradedDetections()
	matrix, err := ClassifyGrid(region, 2, 4)
	if err != nil {
		t.Fatalf("ClassifyGrid: %v", err)
	}

	if len(matrix) != 2 || len(matrix[0]) != 2 {
		t.Fatalf("matrix shape %dx%d, want 2x2", len(matrix), len(matrix[0]))
	}
	for r := range matrix {
		for c := range matrix[r] {
			if matrix[r][c] {
				t.Errorf("cell (%d, %d) filled, want all empty", r, c)
			}
		}
	}
	if DegradedDetections() == before {
		t.Error("degraded-detection counter did not advance")
	}
}

func TestFilledThresholdIsStrict(t *testing.T) {
	// 100x100 cell: 10000 pixels, 75% is 7500.
	tests := []struct {
		name      string
		inkPixels int
		want      bool
	}{
		{"exactly 75 percent stays empty", 7500, false},
		{"just above 75 percent is filled", 7501, true},
		{"empty cell", 0, false},
		{"fully inked cell", 10000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filled(tt.inkPixels, 100, 100); got != tt.want {
				t.Errorf("Filled(%d, 100, 100) = %v, want %v", tt.inkPixels, got, tt.want)
			}
		})
	}
}

func TestDigitString(t *testing.T) {
	// Rows are digits 0-9, columns are ID positions.
	grid := func(marks map[int][]int, cols int) [][]bool {
		matrix := make([][]bool, 10)
		for r := range matrix {
			matrix[r] = make([]bool, cols)
		}
		for c, rows := range marks {
			for _, r := range rows {
				matrix[r][c] = true
			}
		}
		return matrix
	}

	tests := []struct {
		name  string
		input [][]bool
		want  string
	}{
		{
			"four clean digits",
			grid(map[int][]int{0: {0}, 1: {0}, 2: {4}, 3: {2}}, 4),
			"0042",
		},
		{
			"unmarked column is skipped",
			grid(map[int][]int{0: {1}, 2: {3}, 3: {7}}, 4),
			"137",
		},
		{
			"doubly marked column is skipped",
			grid(map[int][]int{0: {1}, 1: {2, 5}, 2: {3}, 3: {7}}, 4),
			"137",
		},
		{
			"empty grid",
			grid(nil, 4),
			"",
		},
		{
			"no rows",
			nil,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DigitString(tt.input); got != tt.want {
				t.Errorf("DigitString() = %q, want %q", got, tt.want)
			}
		})
	}
}
