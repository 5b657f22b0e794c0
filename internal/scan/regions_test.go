package scan

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func whitePage(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0),
		rows, cols, gocv.MatTypeCV8UC3)
}

func TestLocateRegions(t *testing.T) {
	page := whitePage(1000, 1400)
	defer page.Close()
	black := color.RGBA{A: 255}

	// Three printed grid rectangles, the narrow ID column first, plus a
	// small blob of noise that must lose the area ranking.
	gocv.Rectangle(&page, image.Rect(100, 100, 400, 900), black, 3)
	gocv.Rectangle(&page, image.Rect(450, 100, 800, 900), black, 3)
	gocv.Rectangle(&page, image.Rect(850, 100, 1200, 900), black, 3)
	gocv.Circle(&page, image.Pt(1300, 950), 8, black, -1)

	specs := []RegionSpec{
		{Cells: 40, FullCrop: true},
		{Cells: 80},
		{Cells: 40},
	}
	crops, err := LocateRegions(page, specs, 80)
	if err != nil {
		t.Fatalf("LocateRegions: %v", err)
	}
	defer ReleasePages(crops)

	if len(crops) != 3 {
		t.Fatalf("got %d crops, want 3", len(crops))
	}
	// Left-to-right order: the ID column is narrower than the answer grids.
	if crops[0].Cols() >= crops[1].Cols() {
		t.Errorf("first crop width %d is not smaller than second %d", crops[0].Cols(), crops[1].Cols())
	}
	// The full answer grid keeps its height, the half grid is cropped to
	// half of it.
	ratio := float64(crops[2].Rows()) / float64(crops[1].Rows())
	if ratio < 0.45 || ratio > 0.55 {
		t.Errorf("partial crop height ratio = %.2f, want about 0.5", ratio)
	}
}

func TestLocateRegionsTooFewContours(t *testing.T) {
	page := whitePage(600, 800)
	defer page.Close()
	gocv.Rectangle(&page, image.Rect(100, 100, 400, 500), color.RGBA{A: 255}, 3)

	specs := []RegionSpec{{Cells: 80}, {Cells: 80}, {Cells: 80}}
	if _, err := LocateRegions(page, specs, 80); !errors.Is(err, ErrRegionDetection) {
		t.Errorf("error = %v, want ErrRegionDetection", err)
	}
}

func TestErodeBorder(t *testing.T) {
	tests := []struct {
		name string
		box  image.Rectangle
		want image.Rectangle
	}{
		{
			"wide box erodes by a hundredth of the width",
			image.Rect(100, 50, 600, 300),
			image.Rect(105, 55, 595, 295),
		},
		{
			"tall box erodes by a hundredth of the height",
			image.Rect(0, 0, 100, 400),
			image.Rect(4, 4, 96, 396),
		},
		{
			"tiny box is unchanged",
			image.Rect(0, 0, 50, 40),
			image.Rect(0, 0, 50, 40),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErodeBorder(tt.box); got != tt.want {
				t.Errorf("ErodeBorder(%v) = %v, want %v", tt.box, got, tt.want)
			}
		})
	}
}

func TestPartialHeight(t *testing.T) {
	tests := []struct {
		name                          string
		height, actualCells, maxCells int
		want                          int
	}{
		{"five of twenty rows", 800, 5 * 4, 20 * 4, 200},
		{"full grid keeps height", 800, 20 * 4, 20 * 4, 800},
		{"half grid", 500, 10 * 4, 20 * 4, 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PartialHeight(tt.height, tt.actualCells, tt.maxCells); got != tt.want {
				t.Errorf("PartialHeight(%d, %d, %d) = %d, want %d",
					tt.height, tt.actualCells, tt.maxCells, got, tt.want)
			}
		})
	}
}
