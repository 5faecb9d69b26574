// Package panels provides UI panels for the application.
package panels

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"pcb-studio/internal/app"
	pcbimage "pcb-studio/internal/image"
	"pcb-studio/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// backImageGap separates the front and back photos on the canvas before
// alignment is applied.
const backImageGap = 40

// SidePanel provides the main side panel with tabbed sections and routes
// canvas clicks to the active tool.
type SidePanel struct {
	state     *app.State
	canvas    *canvas.ImageCanvas
	container *container.AppTabs

	imagesPanel   *ImagesPanel
	alignPanel    *AlignPanel
	annotatePanel *AnnotatePanel
}

// NewSidePanel creates the side panel and wires the canvas callbacks.
func NewSidePanel(state *app.State, cvs *canvas.ImageCanvas) *SidePanel {
	sp := &SidePanel{
		state:  state,
		canvas: cvs,
	}

	sp.imagesPanel = NewImagesPanel(state, cvs)
	sp.alignPanel = NewAlignPanel(state, cvs)
	sp.annotatePanel = NewAnnotatePanel(state, cvs)

	sp.container = container.NewAppTabs(
		container.NewTabItem("Images", sp.imagesPanel.Container()),
		container.NewTabItem("Align", sp.alignPanel.Container()),
		container.NewTabItem("Annotate", sp.annotatePanel.Container()),
	)

	cvs.OnLeftClick(sp.handleLeftClick)
	cvs.OnRightClick(sp.handleRightClick)
	cvs.SetAnnotationDrawer(sp.annotatePanel.DrawAnnotations)

	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.alignPanel.SetWindow(w)
	sp.annotatePanel.SetWindow(w)
}

// SyncLayers pushes the state's image layers to the canvas. Until alignment
// is applied the back photo sits to the right of the front photo; afterwards
// the warped back layer is stacked under the front.
func (sp *SidePanel) SyncLayers() {
	var layers []*pcbimage.Layer

	front := sp.state.FrontImage
	if front != nil && front.Image != nil {
		front.OffsetX, front.OffsetY = 0, 0
		layers = append(layers, front)
	}

	if sp.state.AlignedBack != nil && sp.state.AlignedBack.Image != nil {
		aligned := sp.state.AlignedBack
		aligned.OffsetX, aligned.OffsetY = 0, 0
		aligned.Opacity = 0.5
		layers = append([]*pcbimage.Layer{aligned}, layers...)
	} else if back := sp.state.BackImage; back != nil && back.Image != nil {
		if front != nil && front.Image != nil {
			back.OffsetX = front.PlacementRect().Width + backImageGap
		} else {
			back.OffsetX = 0
		}
		back.OffsetY = 0
		layers = append(layers, back)
	}

	sp.canvas.SetLayers(layers)
	sp.alignPanel.RefreshMarkers()
	sp.imagesPanel.Refresh()
}

// sideAt reports which photo a world coordinate falls on.
func (sp *SidePanel) sideAt(x, y float64) pcbimage.Side {
	if back := sp.state.BackImage; back != nil && back.Image != nil {
		if back.PlacementRect().Contains(pt(x, y)) {
			return pcbimage.SideBack
		}
	}
	if front := sp.state.FrontImage; front != nil && front.Image != nil {
		if front.PlacementRect().Contains(pt(x, y)) {
			return pcbimage.SideFront
		}
	}
	return pcbimage.SideUnknown
}

func (sp *SidePanel) handleLeftClick(x, y float64) {
	switch sp.canvas.CurrentTool() {
	case canvas.ToolLandmark:
		sp.alignPanel.HandleClick(x, y, sp.sideAt(x, y))
	case canvas.ToolVia, canvas.ToolTrace, canvas.ToolPad, canvas.ToolComponent:
		sp.annotatePanel.HandleToolClick(x, y, sp.sideAt(x, y))
	default:
		sp.annotatePanel.HandleSelectClick(x, y, sp.sideAt(x, y))
	}
}

// ExportComposite writes the blended front/back composite as PNG.
func (sp *SidePanel) ExportComposite(w io.Writer) error {
	img := sp.imagesPanel.Render()
	if img == nil {
		return fmt.Errorf("no front image loaded")
	}
	return png.Encode(w, img)
}

func (sp *SidePanel) handleRightClick(x, y float64) {
	switch sp.canvas.CurrentTool() {
	case canvas.ToolTrace, canvas.ToolComponent:
		sp.annotatePanel.FinishPolyline()
	}
}

// ImagesPanel shows the loaded photos and their display settings.
type ImagesPanel struct {
	state     *app.State
	canvas    *canvas.ImageCanvas
	container fyne.CanvasObject

	frontLabel    *widget.Label
	backLabel     *widget.Label
	dpiLabel      *widget.Label
	frontOpacity  *widget.Slider
	backOpacity   *widget.Slider
	blendSelect   *widget.Select
	overlayToggle *widget.Check
}

// NewImagesPanel creates the images panel.
func NewImagesPanel(state *app.State, cvs *canvas.ImageCanvas) *ImagesPanel {
	ip := &ImagesPanel{state: state, canvas: cvs}

	ip.frontLabel = widget.NewLabel("No front image loaded")
	ip.frontLabel.Wrapping = fyne.TextWrapWord
	ip.backLabel = widget.NewLabel("No back image loaded")
	ip.backLabel.Wrapping = fyne.TextWrapWord
	ip.dpiLabel = widget.NewLabel("DPI: unknown")

	ip.frontOpacity = widget.NewSlider(0, 1)
	ip.frontOpacity.Step = 0.05
	ip.frontOpacity.Value = 1
	ip.frontOpacity.OnChanged = func(v float64) {
		if state.FrontImage != nil {
			state.FrontImage.Opacity = v
			cvs.Refresh()
		}
	}

	ip.backOpacity = widget.NewSlider(0, 1)
	ip.backOpacity.Step = 0.05
	ip.backOpacity.Value = 1
	ip.backOpacity.OnChanged = func(v float64) {
		if state.AlignedBack != nil {
			state.AlignedBack.Opacity = v
		} else if state.BackImage != nil {
			state.BackImage.Opacity = v
		}
		cvs.Refresh()
	}

	ip.blendSelect = widget.NewSelect(
		[]string{pcbimage.BlendNormal.String(), pcbimage.BlendScreen.String(), pcbimage.BlendDifference.String()},
		func(selected string) {
			switch selected {
			case pcbimage.BlendScreen.String():
				state.SetBlendMode(pcbimage.BlendScreen)
			case pcbimage.BlendDifference.String():
				state.SetBlendMode(pcbimage.BlendDifference)
			default:
				state.SetBlendMode(pcbimage.BlendNormal)
			}
		})
	ip.blendSelect.SetSelected(pcbimage.BlendNormal.String())

	ip.overlayToggle = widget.NewCheck("Show front layer", func(on bool) {
		if state.FrontImage != nil {
			state.FrontImage.Visible = on
			cvs.Refresh()
		}
	})
	ip.overlayToggle.Checked = true

	ip.container = container.NewVBox(
		widget.NewLabelWithStyle("Front", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		ip.frontLabel,
		widget.NewLabel("Opacity:"),
		ip.frontOpacity,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Back", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		ip.backLabel,
		widget.NewLabel("Opacity:"),
		ip.backOpacity,
		widget.NewSeparator(),
		widget.NewLabel("Blend mode:"),
		ip.blendSelect,
		ip.overlayToggle,
		ip.dpiLabel,
	)

	state.On(app.EventImageLoaded, func(data interface{}) {
		ip.Refresh()
	})

	return ip
}

// Container returns the panel container.
func (ip *ImagesPanel) Container() fyne.CanvasObject {
	return ip.container
}

// Refresh updates the labels from state.
func (ip *ImagesPanel) Refresh() {
	ip.frontLabel.SetText(layerSummary(ip.state.FrontImage, "No front image loaded"))
	ip.backLabel.SetText(layerSummary(ip.state.BackImage, "No back image loaded"))
	if ip.state.DPI > 0 {
		ip.dpiLabel.SetText(fmt.Sprintf("DPI: %.0f", ip.state.DPI))
	} else {
		ip.dpiLabel.SetText("DPI: unknown")
	}
}

// Render produces the blended composite of the current layers, used for
// export. The on-canvas view uses the canvas compositor instead.
func (ip *ImagesPanel) Render() *image.RGBA {
	front := ip.state.FrontImage
	if front == nil || front.Image == nil {
		return nil
	}

	comp := pcbimage.NewComposite(front.Width(), front.Height())
	comp.AddLayer(front, pcbimage.BlendNormal)
	if ip.state.AlignedBack != nil {
		comp.AddLayer(ip.state.AlignedBack, ip.state.BlendMode)
	}
	return comp.Render()
}
