package scan

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// ErrRegionDetection means a page did not yield the number of grid
// rectangles the layout predicts; attributing bubbles to questions would be
// guesswork, so the page's student fails instead.
var ErrRegionDetection = errors.New("could not detect expected number of regions")

// otsuBias is the fixed intensity handed to the Otsu threshold when
// separating printed rectangles from paper.
const otsuBias = 170

// RegionSpec describes one expected grid rectangle on a page, left to right.
type RegionSpec struct {
	// Cells is the number of bubbles printed in the rectangle (rows * cols).
	Cells int
	// FullCrop keeps the rectangle's full height regardless of Cells. Set
	// for the student-ID grid, whose shape never varies.
	FullCrop bool
}

// LocateRegions finds the len(specs) largest rectangular contours on an
// oriented page, sorted left to right, and crops each one with the printed
// border eroded away. A rectangle holding fewer cells than a full grid gets
// its crop height shrunk proportionally so bubble search stays inside the
// printed rows. Callers own the returned crops.
func LocateRegions(page gocv.Mat, specs []RegionSpec, maxCells int) ([]gocv.Mat, error) {
	k := len(specs)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(page, &gray, gocv.ColorRGBToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, otsuBias, 255, gocv.ThresholdBinaryInv+gocv.ThresholdOtsu)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() < k {
		return nil, fmt.Errorf("%w: %d contours for %d regions", ErrRegionDetection, contours.Size(), k)
	}

	type candidate struct {
		area float64
		box  image.Rectangle
	}
	candidates := make([]candidate, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		candidates = append(candidates, candidate{gocv.ContourArea(contour), gocv.BoundingRect(contour)})
	}

	// Exactly k rectangles are printed, so the k largest contours are the
	// grids and everything smaller is bubbles, labels or noise.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].area > candidates[j].area })
	candidates = candidates[:k]
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].box.Min.X < candidates[j].box.Min.X })

	crops := make([]gocv.Mat, 0, k)
	for i, c := range candidates {
		box := ErodeBorder(c.box)
		if !specs[i].FullCrop && specs[i].Cells < maxCells {
			box.Max.Y = box.Min.Y + PartialHeight(box.Dy(), specs[i].Cells, maxCells)
		}
		region := page.Region(box)
		crops = append(crops, region.Clone())
		region.Close()
	}
	return crops, nil
}

// ErodeBorder shrinks a bounding box inward by 1% of its larger dimension,
// cutting off the printed rectangle border so it cannot be mistaken for a
// bubble contour.
func ErodeBorder(box image.Rectangle) image.Rectangle {
	diff := box.Dy() / 100
	if box.Dx() > box.Dy() {
		diff = box.Dx() / 100
	}
	return image.Rect(box.Min.X+diff, box.Min.Y+diff, box.Max.X-diff, box.Max.Y-diff)
}

// PartialHeight scales a full-grid crop height down to the share actually
// printed in a partial rectangle.
func PartialHeight(height, actualCells, maxCells int) int {
	return height * actualCells / maxCells
}
