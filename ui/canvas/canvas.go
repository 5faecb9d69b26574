// Package canvas provides an image canvas with pan, zoom, and click tools.
package canvas

import (
	"image"
	"image/color"

	pcbimage "pcb-studio/internal/image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	minZoom  = 0.1
	maxZoom  = 10.0
	zoomStep = 1.25
)

// Tool represents the current interaction tool.
type Tool int

const (
	ToolPan Tool = iota
	ToolLandmark
	ToolVia
	ToolTrace
	ToolPad
	ToolComponent
	ToolSelect
)

// ImageCanvas displays the layer stack with pan, zoom, markers, and a
// rubber-band selection used for region OCR.
type ImageCanvas struct {
	widget.BaseWidget

	layers  []*pcbimage.Layer
	markers []Marker

	raster *fynecanvas.Raster
	zoom   float64
	tool   Tool

	// Rubber-band selection
	selecting     bool
	selectMode    bool
	selectStart   fyne.Position
	selectEnd     fyne.Position
	selectionRect *image.Rectangle

	scroll  *zoomScroll
	content *clickableContent
	imgSize fyne.Size

	fitToWindow    bool
	lastScrollSize fyne.Size

	// Hook for drawing annotations over the composited image. Receives the
	// output buffer and the current zoom factor; coordinates must be scaled
	// by the callee.
	annotationDrawer func(dst *image.RGBA, zoom float64)

	onZoomChange func(zoom float64)
	onSelect     func(x1, y1, x2, y2 float64) // image coordinates
	onLeftClick  func(x, y float64)           // image coordinates
	onRightClick func(x, y float64)
}

// NewImageCanvas creates a new image canvas.
func NewImageCanvas() *ImageCanvas {
	ic := &ImageCanvas{
		zoom:    1.0,
		tool:    ToolPan,
		imgSize: fyne.NewSize(400, 300),
	}

	ic.raster = fynecanvas.NewRaster(ic.draw)
	ic.raster.ScaleMode = fynecanvas.ImageScalePixels
	ic.raster.SetMinSize(ic.imgSize)

	ic.content = newClickableContent(ic, ic.raster)
	ic.scroll = newZoomScroll(ic.content, ic)

	ic.ExtendBaseWidget(ic)
	return ic
}

// Container returns the canvas container for embedding in layouts.
func (ic *ImageCanvas) Container() fyne.CanvasObject {
	return ic.scroll
}

// SetLayers replaces the displayed layer stack.
func (ic *ImageCanvas) SetLayers(layers []*pcbimage.Layer) {
	ic.layers = layers
	ic.updateContentSize()
}

// SetMarkers replaces the marker overlay.
func (ic *ImageCanvas) SetMarkers(markers []Marker) {
	ic.markers = markers
	ic.Refresh()
}

// SetAnnotationDrawer installs the hook that paints annotations on top of the
// composited layers.
func (ic *ImageCanvas) SetAnnotationDrawer(drawer func(dst *image.RGBA, zoom float64)) {
	ic.annotationDrawer = drawer
}

// SetTool sets the current interaction tool. ToolSelect arms a one-shot
// rubber-band selection.
func (ic *ImageCanvas) SetTool(tool Tool) {
	ic.tool = tool
	if tool == ToolSelect {
		ic.selectMode = true
		ic.selecting = false
		ic.selectionRect = nil
	} else {
		ic.selectMode = false
	}
}

// CurrentTool returns the active tool.
func (ic *ImageCanvas) CurrentTool() Tool {
	return ic.tool
}

// SetZoom sets the zoom level, clamped to the allowed range.
func (ic *ImageCanvas) SetZoom(zoom float64) {
	if zoom < minZoom {
		zoom = minZoom
	}
	if zoom > maxZoom {
		zoom = maxZoom
	}
	ic.zoom = zoom
	ic.updateContentSize()

	if ic.onZoomChange != nil {
		ic.onZoomChange(zoom)
	}
}

// Zoom returns the current zoom level.
func (ic *ImageCanvas) Zoom() float64 {
	return ic.zoom
}

// ZoomIn increases the zoom level.
func (ic *ImageCanvas) ZoomIn() {
	ic.SetZoom(ic.zoom * zoomStep)
}

// ZoomOut decreases the zoom level.
func (ic *ImageCanvas) ZoomOut() {
	ic.SetZoom(ic.zoom / zoomStep)
}

// FitToWindow adjusts zoom so the full layer stack is visible.
func (ic *ImageCanvas) FitToWindow() {
	bounds := ic.layerBounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return
	}
	viewSize := ic.scroll.Size()
	if viewSize.Width <= 0 || viewSize.Height <= 0 {
		return
	}

	zoomX := float64(viewSize.Width) / float64(bounds.Dx())
	zoomY := float64(viewSize.Height) / float64(bounds.Dy())
	zoom := zoomX
	if zoomY < zoomX {
		zoom = zoomY
	}
	ic.SetZoom(zoom * 0.95)
}

// SetFitToWindow enables or disables auto-fit on resize.
func (ic *ImageCanvas) SetFitToWindow(fit bool) {
	ic.fitToWindow = fit
	if fit {
		ic.FitToWindow()
	}
}

// GetFitToWindow returns the current auto-fit state.
func (ic *ImageCanvas) GetFitToWindow() bool {
	return ic.fitToWindow
}

// OnZoomChange sets a callback for zoom changes.
func (ic *ImageCanvas) OnZoomChange(callback func(zoom float64)) {
	ic.onZoomChange = callback
}

// OnSelect sets a callback invoked with image coordinates when a rubber-band
// selection completes.
func (ic *ImageCanvas) OnSelect(callback func(x1, y1, x2, y2 float64)) {
	ic.onSelect = callback
}

// OnLeftClick sets a callback for left clicks, in image coordinates.
func (ic *ImageCanvas) OnLeftClick(callback func(x, y float64)) {
	ic.onLeftClick = callback
}

// OnRightClick sets a callback for right clicks, in image coordinates.
func (ic *ImageCanvas) OnRightClick(callback func(x, y float64)) {
	ic.onRightClick = callback
}

// Refresh redraws the canvas.
func (ic *ImageCanvas) Refresh() {
	ic.raster.Refresh()
}

// layerBounds returns the union extent of all layers under their placement.
func (ic *ImageCanvas) layerBounds() image.Rectangle {
	var maxW, maxH int
	for _, layer := range ic.layers {
		if layer == nil || layer.Image == nil {
			continue
		}
		place := layer.PlacementRect()
		if right := int(place.X + place.Width); right > maxW {
			maxW = right
		}
		if bottom := int(place.Y + place.Height); bottom > maxH {
			maxH = bottom
		}
	}
	return image.Rect(0, 0, maxW, maxH)
}

func (ic *ImageCanvas) updateContentSize() {
	bounds := ic.layerBounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		ic.imgSize = fyne.NewSize(400, 300)
	} else {
		ic.imgSize = fyne.NewSize(
			float32(float64(bounds.Dx())*ic.zoom),
			float32(float64(bounds.Dy())*ic.zoom),
		)
	}

	ic.raster.SetMinSize(ic.imgSize)
	ic.raster.Resize(ic.imgSize)
	if ic.content != nil {
		ic.content.Resize(ic.imgSize)
		ic.content.Refresh()
	}
	ic.raster.Refresh()
	if ic.scroll != nil {
		ic.scroll.Refresh()
	}
}

// draw composites the layer stack at the current zoom, then paints
// annotations, markers, and any in-progress selection.
func (ic *ImageCanvas) draw(w, h int) image.Image {
	currentSize := fyne.NewSize(float32(w), float32(h))
	if ic.fitToWindow && currentSize != ic.lastScrollSize && w > 0 && h > 0 {
		ic.lastScrollSize = currentSize
		go ic.FitToWindow()
	}

	output := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(output.Pix); i += 4 {
		output.Pix[i] = 255
	}

	for _, layer := range ic.layers {
		if layer == nil || layer.Image == nil || !layer.Visible {
			continue
		}
		ic.compositeLayer(output, layer, w, h)
	}

	if ic.annotationDrawer != nil {
		ic.annotationDrawer(output, ic.zoom)
	}

	for _, m := range ic.markers {
		ic.drawMarker(output, m)
	}

	if ic.selecting && ic.selectionRect != nil {
		drawDashedRect(output, *ic.selectionRect, color.RGBA{R: 255, G: 215, A: 255})
	}

	return output
}

// compositeLayer paints one layer honoring its placement: offset, uniform
// scale, and mirror flags, sampled through the inverse mapping.
func (ic *ImageCanvas) compositeLayer(output *image.RGBA, layer *pcbimage.Layer, w, h int) {
	src := layer.Image
	srcBounds := src.Bounds()
	opacity := layer.Opacity

	scale := layer.DisplayScale
	if scale == 0 {
		scale = 1
	}

	for y := 0; y < h; y++ {
		srcYf := (float64(y)/ic.zoom - layer.OffsetY) / scale
		srcY := int(srcYf)
		if layer.FlipVertical {
			srcY = srcBounds.Dy() - 1 - srcY
		}
		if srcY < 0 || srcY >= srcBounds.Dy() {
			continue
		}

		for x := 0; x < w; x++ {
			srcXf := (float64(x)/ic.zoom - layer.OffsetX) / scale
			srcX := int(srcXf)
			if layer.FlipHorizontal {
				srcX = srcBounds.Dx() - 1 - srcX
			}
			if srcX < 0 || srcX >= srcBounds.Dx() {
				continue
			}

			srcColor := src.At(srcBounds.Min.X+srcX, srcBounds.Min.Y+srcY)
			sr, sg, sb, sa := srcColor.RGBA()

			effectiveAlpha := float64(sa) / 0xffff * opacity
			if effectiveAlpha >= 0.999 {
				output.Set(x, y, srcColor)
			} else if effectiveAlpha > 0.001 {
				dr, dg, db, _ := output.At(x, y).RGBA()
				inv := 1 - effectiveAlpha
				output.Set(x, y, color.RGBA{
					R: uint8(float64(sr>>8)*effectiveAlpha + float64(dr>>8)*inv),
					G: uint8(float64(sg>>8)*effectiveAlpha + float64(dg>>8)*inv),
					B: uint8(float64(sb>>8)*effectiveAlpha + float64(db>>8)*inv),
					A: 255,
				})
			}
		}
	}
}

// ImageToCanvas converts image coordinates to canvas coordinates.
func (ic *ImageCanvas) ImageToCanvas(imgX, imgY float64) (canvasX, canvasY float64) {
	return imgX * ic.zoom, imgY * ic.zoom
}

// CanvasToImage converts canvas coordinates to image coordinates.
func (ic *ImageCanvas) CanvasToImage(canvasX, canvasY float64) (imgX, imgY float64) {
	return canvasX / ic.zoom, canvasY / ic.zoom
}

// CreateRenderer implements fyne.Widget.
func (ic *ImageCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &imageCanvasRenderer{canvas: ic}
}

type imageCanvasRenderer struct {
	canvas *ImageCanvas
}

func (r *imageCanvasRenderer) Layout(size fyne.Size) {
	if r.canvas.scroll != nil {
		r.canvas.scroll.Resize(size)
	}
	if r.canvas.fitToWindow && size.Width > 0 && size.Height > 0 && size != r.canvas.lastScrollSize {
		r.canvas.lastScrollSize = size
		r.canvas.FitToWindow()
	}
}

func (r *imageCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *imageCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *imageCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.scroll}
}

func (r *imageCanvasRenderer) Destroy() {}

// zoomScroll wraps a scroll container but routes the wheel to zoom.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	canvas *ImageCanvas
}

func newZoomScroll(content fyne.CanvasObject, canvas *ImageCanvas) *zoomScroll {
	scroll := container.NewScroll(content)
	scroll.Direction = container.ScrollBoth
	zs := &zoomScroll{scroll: scroll, canvas: canvas}
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		zs.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		zs.canvas.ZoomOut()
	}
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

func (zs *zoomScroll) Offset() fyne.Position {
	return zs.scroll.Offset
}

func (zs *zoomScroll) Size() fyne.Size {
	return zs.scroll.Size()
}

func (zs *zoomScroll) Refresh() {
	zs.scroll.Refresh()
	zs.BaseWidget.Refresh()
}

func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
}

// clickableContent wraps the raster to receive mouse events.
type clickableContent struct {
	widget.BaseWidget
	canvas *ImageCanvas
	raster *fynecanvas.Raster
}

func newClickableContent(ic *ImageCanvas, raster *fynecanvas.Raster) *clickableContent {
	cc := &clickableContent{canvas: ic, raster: raster}
	cc.ExtendBaseWidget(cc)
	return cc
}

func (cc *clickableContent) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(cc.raster)
}

func (cc *clickableContent) MinSize() fyne.Size {
	return cc.raster.MinSize()
}

// contentPosition converts a viewport event position to content coordinates.
func (cc *clickableContent) contentPosition(pos fyne.Position) fyne.Position {
	offset := cc.canvas.scroll.Offset()
	return fyne.Position{X: pos.X + offset.X, Y: pos.Y + offset.Y}
}

func (cc *clickableContent) Dragged(ev *fyne.DragEvent) {
	if !cc.canvas.selectMode {
		return
	}

	pos := cc.contentPosition(ev.Position)
	if !cc.canvas.selecting {
		cc.canvas.selecting = true
		cc.canvas.selectStart = pos
	}
	cc.canvas.selectEnd = pos

	x1, y1 := float64(cc.canvas.selectStart.X), float64(cc.canvas.selectStart.Y)
	x2, y2 := float64(cc.canvas.selectEnd.X), float64(cc.canvas.selectEnd.Y)
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	rect := image.Rect(int(x1), int(y1), int(x2), int(y2))
	cc.canvas.selectionRect = &rect
	cc.canvas.Refresh()
}

func (cc *clickableContent) DragEnd() {
	if !cc.canvas.selectMode || !cc.canvas.selecting {
		return
	}
	cc.canvas.selecting = false
	cc.canvas.selectMode = false

	if cc.canvas.onSelect != nil && cc.canvas.selectionRect != nil {
		r := cc.canvas.selectionRect
		zoom := cc.canvas.zoom
		cc.canvas.onSelect(
			float64(r.Min.X)/zoom, float64(r.Min.Y)/zoom,
			float64(r.Max.X)/zoom, float64(r.Max.Y)/zoom,
		)
	}

	cc.canvas.selectionRect = nil
	cc.canvas.Refresh()
}

func (cc *clickableContent) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		cc.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		cc.canvas.ZoomOut()
	}
}

// Tapped dispatches left clicks in image coordinates.
func (cc *clickableContent) Tapped(ev *fyne.PointEvent) {
	if cc.canvas.onLeftClick == nil {
		return
	}
	// Fyne can deliver taps slightly outside the widget; reject those.
	size := cc.Size()
	if ev.Position.X < 0 || ev.Position.Y < 0 ||
		ev.Position.X > size.Width || ev.Position.Y > size.Height {
		return
	}

	pos := cc.contentPosition(ev.Position)
	cc.canvas.onLeftClick(float64(pos.X)/cc.canvas.zoom, float64(pos.Y)/cc.canvas.zoom)
}

// TappedSecondary dispatches right clicks in image coordinates.
func (cc *clickableContent) TappedSecondary(ev *fyne.PointEvent) {
	if cc.canvas.onRightClick == nil {
		return
	}
	size := cc.Size()
	if ev.Position.X < 0 || ev.Position.Y < 0 ||
		ev.Position.X > size.Width || ev.Position.Y > size.Height {
		return
	}

	pos := cc.contentPosition(ev.Position)
	cc.canvas.onRightClick(float64(pos.X)/cc.canvas.zoom, float64(pos.Y)/cc.canvas.zoom)
}
