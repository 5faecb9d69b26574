// Package ocr reads component markings. The user drags a box over a part and
// the reader returns the printed text, tuned for IC package silkscreen.
package ocr

import (
	"fmt"
	"image"
	"strings"

	"pcb-studio/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// PartNumberChars is the whitelist for component markings. Lowercase is
// excluded to avoid 0/O and 1/I confusion.
const PartNumberChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-/."

// Reader wraps a Tesseract client configured for part-number text.
type Reader struct {
	client        *gosseract.Client
	partNumbering bool
}

// NewReader creates a reader. Close must be called when done.
func NewReader() (*Reader, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting OCR language: %w", err)
	}

	// Part numbers are not dictionary words. Without these Tesseract will
	// happily "correct" DM74LS244N into something it likes better.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")
	_ = client.SetVariable("language_model_penalty_non_freq_dict_word", "0")

	return &Reader{client: client, partNumbering: true}, nil
}

// Close releases the Tesseract client.
func (r *Reader) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// SetPartNumbering toggles the restricted character set. Disable it to read
// free-form silkscreen text like date codes or logos.
func (r *Reader) SetPartNumbering(enabled bool) {
	r.partNumbering = enabled
}

// ReadRegion runs OCR over the given region of a board photo.
func (r *Reader) ReadRegion(img image.Image, bounds geometry.RectInt) (string, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return "", fmt.Errorf("converting image: %w", err)
	}
	defer mat.Close()
	return r.readMatRegion(mat, bounds)
}

func (r *Reader) readMatRegion(img gocv.Mat, bounds geometry.RectInt) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("empty image")
	}

	x := max(0, bounds.X)
	y := max(0, bounds.Y)
	w := min(bounds.Width, img.Cols()-x)
	h := min(bounds.Height, img.Rows()-y)
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("region outside image bounds")
	}

	region := img.Region(image.Rect(x, y, x+w, y+h))
	defer region.Close()

	processed := prepare(region, r.partNumbering)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("encoding region: %w", err)
	}
	defer buf.Close()

	// A dragged selection is one block of text.
	if err := r.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("setting page mode: %w", err)
	}
	if r.partNumbering {
		if err := r.client.SetWhitelist(PartNumberChars); err != nil {
			return "", fmt.Errorf("setting whitelist: %w", err)
		}
	} else {
		_ = r.client.SetWhitelist("")
	}

	if err := r.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("loading region: %w", err)
	}

	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognizing text: %w", err)
	}

	text = strings.Join(strings.Fields(text), " ")
	if r.partNumbering {
		text = strings.ToUpper(text)
	}
	return text, nil
}

// prepare cleans up a photo crop for Tesseract: upscale small crops, boost
// local contrast, binarize, and make sure the text ends up dark on light.
func prepare(region gocv.Mat, binarize bool) gocv.Mat {
	var scaled gocv.Mat
	minDim := min(region.Rows(), region.Cols())
	if minDim > 0 && minDim < 150 {
		factor := 150.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(region, &scaled, image.Point{}, factor, factor, gocv.InterpolationCubic)
	} else {
		scaled = region.Clone()
	}

	if !binarize {
		return scaled
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	scaled.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{X: 8, Y: 8})
	defer clahe.Close()
	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// IC markings are usually light on dark; Tesseract wants the opposite.
	whiteRatio := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if whiteRatio > 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()
	return result
}
