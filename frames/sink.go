package frames

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// WriteImage encodes packed RGB or RGBA pixels to path. The file format
// follows the path extension.
func WriteImage(path string, w, h, channels int, pixels []byte) error {
	var matType gocv.MatType
	var code gocv.ColorConversionCode
	switch channels {
	case 3:
		matType = gocv.MatTypeCV8UC3
		code = gocv.ColorBGRToRGB // symmetric R/B swap
	case 4:
		matType = gocv.MatTypeCV8UC4
		code = gocv.ColorBGRAToRGBA
	default:
		return fmt.Errorf("unsupported channel count %d", channels)
	}

	mat, err := gocv.NewMatFromBytes(h, w, matType, pixels)
	if err != nil {
		return fmt.Errorf("unable to wrap output pixels: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, code)

	if ok := gocv.IMWrite(path, bgr); !ok {
		return fmt.Errorf("unable to write image %v", path)
	}
	log.WithField("path", path).Info("Wrote output image")
	return nil
}

// WriteMask encodes a single-channel blend mask to path.
func WriteMask(path string, w, h int, alpha []byte) error {
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, alpha)
	if err != nil {
		return fmt.Errorf("unable to wrap mask pixels: %w", err)
	}
	defer mat.Close()

	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("unable to write mask %v", path)
	}
	log.WithField("path", path).Info("Wrote blend mask")
	return nil
}
