package scan

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	_ "image/png"

	"github.com/rs/zerolog/log"
	"github.com/sunshineplan/imgconv"
	pdfimg "github.com/sunshineplan/pdf"
	"gocv.io/x/gocv"
)

const rasterDPI = "300"

// LoadPDF rasterizes every page of a scanned PDF into RGB matrices and
// normalizes each page to landscape, right-side-up orientation. Callers own
// the returned matrices and must release them with ReleasePages.
func LoadPDF(path string) ([]gocv.Mat, error) {
	imgs, err := pdfImages(path)
	if err != nil {
		return nil, err
	}

	pages := make([]gocv.Mat, 0, len(imgs))
	for i, img := range imgs {
		mat, err := gocv.ImageToMatRGB(img)
		if err != nil {
			ReleasePages(pages)
			return nil, fmt.Errorf("converting page %d to matrix: %w", i, err)
		}
		normalizeOrientation(&mat)
		pages = append(pages, mat)
	}
	return pages, nil
}

// ReleasePages frees the native memory behind page matrices.
func ReleasePages(pages []gocv.Mat) {
	for i := range pages {
		pages[i].Close()
	}
}

// pdfImages extracts one raster image per page. Scanned PDFs carry each page
// as a single embedded image, so embedded extraction is tried first; a page
// render and external rasterizers cover PDFs that don't.
func pdfImages(path string) ([]image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pdf %s: %w", path, err)
	}

	if imgs, err := decodeEmbedded(data); err == nil && len(imgs) > 0 {
		return imgs, nil
	}

	if img, err := imgconv.Decode(bytes.NewReader(data)); err == nil {
		return []image.Image{img}, nil
	}

	return rasterizeWithTools(path)
}

func decodeEmbedded(data []byte) (imgs []image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			imgs, err = nil, fmt.Errorf("decoding embedded page images: %v", r)
		}
	}()
	return pdfimg.DecodeAll(bytes.NewReader(data))
}

// rasterizeWithTools shells out to pdftoppm or ImageMagick as a last resort.
func rasterizeWithTools(path string) ([]image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "scan-pages-")
	if err != nil {
		return nil, fmt.Errorf("creating raster temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")

	if _, err := exec.LookPath("pdftoppm"); err == nil {
		if err := exec.Command("pdftoppm", "-png", "-r", rasterDPI, path, prefix).Run(); err == nil {
			if imgs, err := renderedPages(tmpDir); err == nil && len(imgs) > 0 {
				return imgs, nil
			}
		}
	}

	for _, magick := range []string{"magick", "convert"} {
		if _, err := exec.LookPath(magick); err != nil {
			continue
		}
		args := []string{"-density", rasterDPI, path, prefix + "-%03d.png"}
		if magick == "magick" {
			args = append([]string{"convert"}, args...)
		}
		if err := exec.Command(magick, args...).Run(); err == nil {
			if imgs, err := renderedPages(tmpDir); err == nil && len(imgs) > 0 {
				return imgs, nil
			}
		}
	}

	return nil, fmt.Errorf("no usable pdf rasterizer for %s", path)
}

func renderedPages(dir string) ([]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".png" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	imgs := make([]image.Image, 0, len(names))
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding rendered page %s: %w", name, err)
		}
		imgs = append(imgs, img)
	}
	return imgs, nil
}

// normalizeOrientation rotates a page until it is landscape and right side
// up. Portrait rasters get a 90 degree counterclockwise turn; a missing
// fiducial rectangle in the top-right corner means the sheet went through
// the scanner upside down, so the page gets another 180 degrees.
func normalizeOrientation(mat *gocv.Mat) {
	if mat.Rows() > mat.Cols() {
		rotate(mat, gocv.Rotate90CounterClockwise)
	}
	if !hasCornerFiducial(*mat) {
		rotate(mat, gocv.Rotate180Clockwise)
	}
}

func rotate(mat *gocv.Mat, code gocv.RotateFlag) {
	rotated := gocv.NewMat()
	gocv.Rotate(*mat, &rotated, code)
	mat.Close()
	*mat = rotated
}

// hasCornerFiducial looks for a 4-vertex contour in the top-right 10% x 10%
// of the page, where the printed QR code sits.
func hasCornerFiducial(page gocv.Mat) bool {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(page, &gray, gocv.ColorRGBToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, 200, 255, gocv.ThresholdBinary)

	w, h := page.Cols(), page.Rows()
	corner := binary.Region(image.Rect(w*9/10, 0, w, h/10))
	defer corner.Close()

	contours := gocv.FindContours(corner, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	// Contour 0 is the crop frame itself.
	for i := 1; i < contours.Size(); i++ {
		contour := contours.At(i)
		approx := gocv.ApproxPolyDP(contour, 0.01*gocv.ArcLength(contour, true), true)
		vertices := approx.Size()
		approx.Close()
		if vertices == 4 {
			return true
		}
	}
	return false
}

// Deskew estimates the residual skew angle from the top-left quadrant of the
// page content and rotates the page to cancel it. The angle is estimated,
// applied and discarded; nothing downstream sees it.
func Deskew(mat *gocv.Mat) {
	angle := skewAngle(*mat)
	if angle == 0 {
		return
	}
	log.Debug().Float64("angle", angle).Msg("Correcting page skew")
	rotateByAngle(mat, angle)
}

// skewAngle returns the median angle of near-horizontal line segments in the
// top-left quadrant, in degrees. 0 means no correction is needed.
func skewAngle(page gocv.Mat) float64 {
	quadrant := page.Region(image.Rect(0, 0, page.Cols()/2, page.Rows()/2))
	defer quadrant.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(quadrant, &gray, gocv.ColorRGBToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180, 80, 100, 10)

	var angles []float64
	for i := 0; i < lines.Rows(); i++ {
		seg := lines.GetVeciAt(i, 0)
		dx := float64(seg[2] - seg[0])
		dy := float64(seg[3] - seg[1])
		angle := math.Atan2(dy, dx) * 180 / math.Pi
		// Only near-horizontal segments carry skew information.
		if math.Abs(angle) <= 15 {
			angles = append(angles, angle)
		}
	}
	if len(angles) == 0 {
		return 0
	}

	sort.Float64s(angles)
	median := angles[len(angles)/2]
	if math.Abs(median) < 0.05 {
		return 0
	}
	return median
}

func rotateByAngle(mat *gocv.Mat, angle float64) {
	w, h := mat.Cols(), mat.Rows()
	m := gocv.GetRotationMatrix2D(image.Pt(w/2, h/2), angle, 1)
	defer m.Close()

	rotated := gocv.NewMat()
	gocv.WarpAffineWithParams(*mat, &rotated, m, image.Pt(w, h),
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{R: 255, G: 255, B: 255})
	mat.Close()
	*mat = rotated
}
