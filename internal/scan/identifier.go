package scan

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"gocv.io/x/gocv"
)

// ErrNoIdentifier means no page fiducial could be decoded anywhere in the
// batch, which leaves nothing to attribute answers to.
var ErrNoIdentifier = errors.New("no page fiducial could be decoded")

// PageID is the payload of the QR fiducial printed in the top-right corner
// of every sheet page. The first page of a sheet may omit the page field.
type PageID struct {
	TestID string `json:"test_id"`
	Page   int    `json:"page"`
}

// DecodePageID reads and parses the QR fiducial on one oriented page.
func DecodePageID(page gocv.Mat) (*PageID, error) {
	img, err := page.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting page for fiducial decode: %w", err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("preparing fiducial bitmap: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return nil, fmt.Errorf("decoding page fiducial: %w", err)
	}

	var id PageID
	if err := json.Unmarshal([]byte(result.GetText()), &id); err != nil {
		return nil, fmt.Errorf("parsing fiducial payload %q: %w", result.GetText(), err)
	}
	return &id, nil
}

// FindTestID walks the batch from the front until one fiducial decodes and
// returns its test identifier. All pages of a batch belong to one test, so
// the first readable code settles it; if none decodes the whole batch is
// unusable.
func FindTestID(pages []gocv.Mat) (string, error) {
	for _, page := range pages {
		if id, err := DecodePageID(page); err == nil {
			return id.TestID, nil
		}
	}
	return "", ErrNoIdentifier
}
