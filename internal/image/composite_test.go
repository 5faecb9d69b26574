package image

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidLayer(w, h int, c color.RGBA) *Layer {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	l := NewLayer()
	l.Image = img
	return l
}

func TestCompositeNormal(t *testing.T) {
	comp := NewComposite(10, 10)
	comp.AddLayer(solidLayer(10, 10, color.RGBA{R: 200, G: 100, B: 50, A: 255}), BlendNormal)

	out := comp.Render()
	r, g, b, _ := out.At(5, 5).RGBA()
	assert.Equal(t, uint32(200), r>>8)
	assert.Equal(t, uint32(100), g>>8)
	assert.Equal(t, uint32(50), b>>8)
}

func TestCompositeDifferenceIdenticalLayersCancel(t *testing.T) {
	c := color.RGBA{R: 120, G: 80, B: 60, A: 255}
	comp := NewComposite(10, 10)
	comp.AddLayer(solidLayer(10, 10, c), BlendNormal)
	comp.AddLayer(solidLayer(10, 10, c), BlendDifference)

	out := comp.Render()
	r, g, b, _ := out.At(5, 5).RGBA()
	assert.Zero(t, r>>8)
	assert.Zero(t, g>>8)
	assert.Zero(t, b>>8)
}

func TestCompositeScreenLightens(t *testing.T) {
	comp := NewComposite(10, 10)
	comp.AddLayer(solidLayer(10, 10, color.RGBA{R: 128, G: 128, B: 128, A: 255}), BlendNormal)
	comp.AddLayer(solidLayer(10, 10, color.RGBA{R: 128, G: 128, B: 128, A: 255}), BlendScreen)

	out := comp.Render()
	r, _, _, _ := out.At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(128))
}

func TestCompositeHonorsPlacementOffset(t *testing.T) {
	layer := solidLayer(4, 4, color.RGBA{R: 255, A: 255})
	layer.OffsetX = 6
	layer.OffsetY = 6

	comp := NewComposite(10, 10)
	comp.AddLayer(layer, BlendNormal)
	out := comp.Render()

	// Top-left pixel is background, offset region is red.
	r, _, _, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(40), r>>8)
	r, _, _, _ = out.At(7, 7).RGBA()
	assert.Equal(t, uint32(255), r>>8)
}

func TestCompositeHonorsFlip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{B: 255, A: 255})
	layer := NewLayer()
	layer.Image = img
	layer.FlipHorizontal = true

	comp := NewComposite(2, 1)
	comp.AddLayer(layer, BlendNormal)
	out := comp.Render()

	_, _, b, _ := out.At(0, 0).RGBA()
	r, _, _, _ := out.At(1, 0).RGBA()
	assert.Equal(t, uint32(255), b>>8)
	assert.Equal(t, uint32(255), r>>8)
}

func TestCompositeSkipsInvisibleLayers(t *testing.T) {
	layer := solidLayer(10, 10, color.RGBA{R: 255, A: 255})
	layer.Visible = false

	comp := NewComposite(10, 10)
	comp.AddLayer(layer, BlendNormal)
	out := comp.Render()

	r, _, _, _ := out.At(5, 5).RGBA()
	assert.Equal(t, uint32(40), r>>8) // Background only
}

func TestPlacementRect(t *testing.T) {
	layer := solidLayer(100, 50, color.RGBA{A: 255})
	layer.OffsetX = 10
	layer.OffsetY = 20
	layer.DisplayScale = 2

	r := layer.PlacementRect()
	assert.Equal(t, 10.0, r.X)
	assert.Equal(t, 20.0, r.Y)
	assert.Equal(t, 200.0, r.Width)
	assert.Equal(t, 100.0, r.Height)
}

func TestGuessSideFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want Side
	}{
		{"board_front.tiff", SideFront},
		{"scan-component-side.png", SideFront},
		{"board_back.tiff", SideBack},
		{"solder_side.jpg", SideBack},
		{"scan001.tiff", SideUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, guessSideFromFilename(tt.path), tt.path)
	}
}

func TestIsSupportedFormat(t *testing.T) {
	require.True(t, IsSupportedFormat("a.tiff"))
	require.True(t, IsSupportedFormat("a.TIF"))
	require.True(t, IsSupportedFormat("a.png"))
	require.False(t, IsSupportedFormat("a.gif"))
	require.False(t, IsSupportedFormat("a"))
}
