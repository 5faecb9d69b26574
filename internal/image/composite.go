package image

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// BlendMode specifies how layers are composited.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendScreen
	BlendDifference
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "Normal"
	case BlendScreen:
		return "Screen"
	case BlendDifference:
		return "Difference"
	default:
		return "Unknown"
	}
}

// Composite combines multiple layers into a single image. Layer placement
// (offset and scale) is honored; Difference mode is useful for judging how
// well two aligned sides agree.
type Composite struct {
	Width     int
	Height    int
	Layers    []*CompositeLayer
	BackColor color.Color
}

// CompositeLayer wraps a Layer with compositing settings.
type CompositeLayer struct {
	Layer     *Layer
	BlendMode BlendMode
}

// NewComposite creates a new Composite with the specified dimensions.
func NewComposite(width, height int) *Composite {
	return &Composite{
		Width:     width,
		Height:    height,
		BackColor: color.RGBA{R: 40, G: 40, B: 40, A: 255}, // Dark gray background
	}
}

// AddLayer adds a layer to the composite.
func (c *Composite) AddLayer(layer *Layer, mode BlendMode) {
	c.Layers = append(c.Layers, &CompositeLayer{
		Layer:     layer,
		BlendMode: mode,
	})
}

// Render produces the final composited image.
func (c *Composite) Render() *image.RGBA {
	result := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))

	draw.Draw(result, result.Bounds(), &image.Uniform{C: c.BackColor}, image.Point{}, draw.Src)

	for _, cl := range c.Layers {
		if cl.Layer == nil || cl.Layer.Image == nil || !cl.Layer.Visible {
			continue
		}
		c.compositeLayer(result, cl)
	}

	return result
}

// compositeLayer blends a single layer onto the result, applying the layer's
// placement by sampling the source at the inverse-mapped position.
func (c *Composite) compositeLayer(dst *image.RGBA, cl *CompositeLayer) {
	src := cl.Layer.Image
	srcBounds := src.Bounds()
	opacity := cl.Layer.Opacity

	scale := cl.Layer.DisplayScale
	if scale == 0 {
		scale = 1
	}

	place := cl.Layer.PlacementRect()
	x0 := int(math.Floor(place.X))
	y0 := int(math.Floor(place.Y))
	x1 := int(math.Ceil(place.X + place.Width))
	y1 := int(math.Ceil(place.Y + place.Height))

	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > c.Width {
		x1 = c.Width
	}
	if y1 > c.Height {
		y1 = c.Height
	}

	for y := y0; y < y1; y++ {
		srcY := int((float64(y) - place.Y) / scale)
		if cl.Layer.FlipVertical {
			srcY = srcBounds.Dy() - 1 - srcY
		}
		if srcY < 0 || srcY >= srcBounds.Dy() {
			continue
		}

		for x := x0; x < x1; x++ {
			srcX := int((float64(x) - place.X) / scale)
			if cl.Layer.FlipHorizontal {
				srcX = srcBounds.Dx() - 1 - srcX
			}
			if srcX < 0 || srcX >= srcBounds.Dx() {
				continue
			}

			srcColor := src.At(srcBounds.Min.X+srcX, srcBounds.Min.Y+srcY)
			dstColor := dst.At(x, y)

			blended := blend(dstColor, srcColor, cl.BlendMode, opacity)
			dst.Set(x, y, blended)
		}
	}
}

// blend performs the blend operation between two colors.
func blend(dst, src color.Color, mode BlendMode, opacity float64) color.Color {
	sr, sg, sb, sa := src.RGBA()
	dr, dg, db, da := dst.RGBA()

	sf := [4]float64{float64(sr) / 65535.0, float64(sg) / 65535.0, float64(sb) / 65535.0, float64(sa) / 65535.0}
	df := [4]float64{float64(dr) / 65535.0, float64(dg) / 65535.0, float64(db) / 65535.0, float64(da) / 65535.0}

	var rf [3]float64

	switch mode {
	case BlendNormal:
		rf[0] = sf[0]
		rf[1] = sf[1]
		rf[2] = sf[2]

	case BlendScreen:
		rf[0] = 1 - (1-sf[0])*(1-df[0])
		rf[1] = 1 - (1-sf[1])*(1-df[1])
		rf[2] = 1 - (1-sf[2])*(1-df[2])

	case BlendDifference:
		rf[0] = math.Abs(sf[0] - df[0])
		rf[1] = math.Abs(sf[1] - df[1])
		rf[2] = math.Abs(sf[2] - df[2])
	}

	alpha := sf[3] * opacity
	finalR := rf[0]*alpha + df[0]*(1-alpha)
	finalG := rf[1]*alpha + df[1]*(1-alpha)
	finalB := rf[2]*alpha + df[2]*(1-alpha)
	finalA := alpha + df[3]*(1-alpha)

	return color.RGBA{
		R: uint8(clamp(finalR, 0, 1) * 255),
		G: uint8(clamp(finalG, 0, 1) * 255),
		B: uint8(clamp(finalB, 0, 1) * 255),
		A: uint8(clamp(finalA, 0, 1) * 255),
	}
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
