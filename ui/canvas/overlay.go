package canvas

import (
	"image"
	"image/color"
)

// Marker is a crosshair drawn at an image-space position, used for landmark
// points. The label is drawn beside the crosshair.
type Marker struct {
	X, Y  float64 // Image coordinates
	Label string
	Color color.RGBA
}

const markerArm = 12 // Crosshair arm length in screen pixels

// drawMarker paints a crosshair with a small gap at the center so the exact
// pixel under the point stays visible.
func (ic *ImageCanvas) drawMarker(output *image.RGBA, m Marker) {
	cx := int(m.X * ic.zoom)
	cy := int(m.Y * ic.zoom)

	for d := 3; d <= markerArm; d++ {
		setPixel(output, cx-d, cy, m.Color)
		setPixel(output, cx+d, cy, m.Color)
		setPixel(output, cx, cy-d, m.Color)
		setPixel(output, cx, cy+d, m.Color)
	}

	if m.Label != "" {
		DrawLabel(output, m.Label, cx+markerArm+3, cy-markerArm, m.Color, 2)
	}
}

// drawDashedRect outlines a rectangle with a dashed line, used for the
// rubber-band selection.
func drawDashedRect(output *image.RGBA, r image.Rectangle, col color.RGBA) {
	const dash = 4
	for x := r.Min.X; x <= r.Max.X; x++ {
		if (x/dash)%2 == 0 {
			setPixel(output, x, r.Min.Y, col)
			setPixel(output, x, r.Max.Y, col)
		}
	}
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		if (y/dash)%2 == 0 {
			setPixel(output, r.Min.X, y, col)
			setPixel(output, r.Max.X, y, col)
		}
	}
}

func setPixel(output *image.RGBA, x, y int, col color.RGBA) {
	if (image.Point{X: x, Y: y}).In(output.Bounds()) {
		output.SetRGBA(x, y, col)
	}
}
