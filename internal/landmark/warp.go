package landmark

import (
	"image"
	"image/color"

	"pcb-studio/pkg/geometry"

	"gocv.io/x/gocv"
)

// WarpImage applies an affine transform to an image, producing an output of
// the given size. Used to bring the back photo into the front photo's frame
// once a landmark transform has been accepted.
func WarpImage(src gocv.Mat, transform geometry.AffineTransform, width, height int) gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	m.SetDoubleAt(0, 0, transform.A)
	m.SetDoubleAt(0, 1, transform.B)
	m.SetDoubleAt(0, 2, transform.TX)
	m.SetDoubleAt(1, 0, transform.C)
	m.SetDoubleAt(1, 1, transform.D)
	m.SetDoubleAt(1, 2, transform.TY)
	defer m.Close()

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &dst, m, image.Point{X: width, Y: height},
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})

	return dst
}

// FlipImage mirrors an image along the requested axes. Used for the manual
// flip step that precedes the no-flip alignment variant.
func FlipImage(src gocv.Mat, flipHorizontal, flipVertical bool) gocv.Mat {
	dst := gocv.NewMat()
	switch {
	case flipHorizontal && flipVertical:
		gocv.Flip(src, &dst, -1)
	case flipHorizontal:
		gocv.Flip(src, &dst, 1)
	case flipVertical:
		gocv.Flip(src, &dst, 0)
	default:
		dst = src.Clone()
	}
	return dst
}

