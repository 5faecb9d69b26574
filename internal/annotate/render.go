package annotate

import (
	"image"
	"image/color"
	"math"

	pcbimage "pcb-studio/internal/image"
	"pcb-studio/pkg/geometry"
)

// Render draws all features for the given side onto the composited frame at
// the given display scale. SideUnknown draws every side; vias always draw.
func (l *Layer) Render(dst *image.RGBA, side pcbimage.Side, scale float64) {
	if scale <= 0 {
		scale = 1
	}
	for _, f := range l.Features() {
		fs := f.FeatureSide()
		if fs != pcbimage.SideUnknown && side != pcbimage.SideUnknown && fs != side {
			continue
		}

		col := l.FeatureColor(f)
		switch v := f.(type) {
		case Via:
			drawCircle(dst, v.Center.Scale(scale), v.Radius*scale, col)
		case Trace:
			for i := 0; i < len(v.Points)-1; i++ {
				drawThickLine(dst, v.Points[i].Scale(scale), v.Points[i+1].Scale(scale), v.Width*scale, col)
			}
		case Pad:
			r := v.Rect
			drawRect(dst, geometry.Rect{X: r.X * scale, Y: r.Y * scale, Width: r.Width * scale, Height: r.Height * scale}, col)
		case Component:
			pts := make([]geometry.Point2D, len(v.Outline))
			for i, p := range v.Outline {
				pts[i] = p.Scale(scale)
			}
			drawPolygon(dst, pts, col)
		}
	}
}

// drawCircle draws a circle outline, 2 pixels thick.
func drawCircle(dst *image.RGBA, center geometry.Point2D, radius float64, col color.RGBA) {
	steps := int(math.Max(16, radius*2))
	for _, p := range geometry.GenerateCirclePoints(center.X, center.Y, radius, steps) {
		setThick(dst, int(p.X), int(p.Y), col)
	}
}

// drawThickLine draws a line segment with the given width by stamping discs
// along it.
func drawThickLine(dst *image.RGBA, a, b geometry.Point2D, width float64, col color.RGBA) {
	length := a.Distance(b)
	if length == 0 {
		setThick(dst, int(a.X), int(a.Y), col)
		return
	}

	half := math.Max(width/2, 1)
	steps := int(length) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		cx := a.X + (b.X-a.X)*t
		cy := a.Y + (b.Y-a.Y)*t
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				if dx*dx+dy*dy <= half*half {
					set(dst, int(cx+dx), int(cy+dy), col)
				}
			}
		}
	}
}

// drawRect draws a rectangle outline.
func drawRect(dst *image.RGBA, r geometry.Rect, col color.RGBA) {
	x0, y0 := int(r.X), int(r.Y)
	x1, y1 := int(r.X+r.Width), int(r.Y+r.Height)
	for x := x0; x <= x1; x++ {
		setThick(dst, x, y0, col)
		setThick(dst, x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		setThick(dst, x0, y, col)
		setThick(dst, x1, y, col)
	}
}

// drawPolygon draws a closed polygon outline.
func drawPolygon(dst *image.RGBA, pts []geometry.Point2D, col color.RGBA) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		drawThickLine(dst, a, b, 2, col)
	}
}

func set(dst *image.RGBA, x, y int, col color.RGBA) {
	if (image.Point{X: x, Y: y}).In(dst.Bounds()) {
		dst.SetRGBA(x, y, col)
	}
}

func setThick(dst *image.RGBA, x, y int, col color.RGBA) {
	set(dst, x, y, col)
	set(dst, x+1, y, col)
	set(dst, x, y+1, col)
	set(dst, x+1, y+1, col)
}
