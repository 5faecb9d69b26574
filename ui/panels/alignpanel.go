package panels

import (
	"fmt"
	"image/color"

	"pcb-studio/internal/app"
	pcbimage "pcb-studio/internal/image"
	"pcb-studio/internal/landmark"
	"pcb-studio/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

var (
	frontMarkerColor = color.RGBA{G: 255, B: 255, A: 255} // Cyan
	backMarkerColor  = color.RGBA{R: 255, B: 255, A: 255} // Magenta
)

// AlignPanel drives the landmark alignment workflow: place four points on
// each photo, run the flip search, review the result, apply the warp.
type AlignPanel struct {
	state     *app.State
	canvas    *canvas.ImageCanvas
	window    fyne.Window
	container fyne.CanvasObject

	frontCountLabel *widget.Label
	backCountLabel  *widget.Label
	placeButton     *widget.Button
	mirroredCheck   *widget.Check
	alignButton     *widget.Button
	applyButton     *widget.Button
	resultLabel     *widget.Label
	keystoneLabel   *widget.Label

	placing bool
}

// NewAlignPanel creates the alignment panel.
func NewAlignPanel(state *app.State, cvs *canvas.ImageCanvas) *AlignPanel {
	ap := &AlignPanel{state: state, canvas: cvs}

	ap.frontCountLabel = widget.NewLabel("Front: 0 / 4 points")
	ap.backCountLabel = widget.NewLabel("Back: 0 / 4 points")
	ap.resultLabel = widget.NewLabel("")
	ap.resultLabel.Wrapping = fyne.TextWrapWord
	ap.keystoneLabel = widget.NewLabel("")
	ap.keystoneLabel.Wrapping = fyne.TextWrapWord

	ap.placeButton = widget.NewButton("Place Landmarks", func() {
		ap.placing = !ap.placing
		if ap.placing {
			cvs.SetTool(canvas.ToolLandmark)
			ap.placeButton.SetText("Done Placing")
		} else {
			cvs.SetTool(canvas.ToolPan)
			ap.placeButton.SetText("Place Landmarks")
		}
	})

	clearButton := widget.NewButton("Clear Points", func() {
		state.ClearLandmarks(pcbimage.SideFront)
		state.ClearLandmarks(pcbimage.SideBack)
		ap.resultLabel.SetText("")
		ap.keystoneLabel.SetText("")
		ap.RefreshMarkers()
	})

	ap.mirroredCheck = widget.NewCheck("Back photo already mirrored", nil)

	mirrorButton := widget.NewButton("Mirror Back Photo", func() {
		if err := state.MirrorBackImage(true); err != nil {
			ap.showError(err)
			return
		}
		ap.mirroredCheck.SetChecked(true)
	})

	ap.alignButton = widget.NewButton("Align", func() {
		ap.runAlignment()
	})
	ap.applyButton = widget.NewButton("Apply Warp", func() {
		ap.applyWarp()
	})
	ap.applyButton.Disable()

	help := widget.NewLabel("Click four matching features on each photo, in the same order. Via pads and mounting holes work best.")
	help.Wrapping = fyne.TextWrapWord

	ap.container = container.NewVBox(
		help,
		ap.frontCountLabel,
		ap.backCountLabel,
		container.NewHBox(ap.placeButton, clearButton),
		widget.NewSeparator(),
		mirrorButton,
		ap.mirroredCheck,
		ap.alignButton,
		ap.resultLabel,
		ap.keystoneLabel,
		ap.applyButton,
	)

	state.On(app.EventLandmarksChanged, func(data interface{}) {
		ap.refreshCounts()
	})
	state.On(app.EventAlignmentComplete, func(data interface{}) {
		ap.showResult()
	})

	return ap
}

// Container returns the panel container.
func (ap *AlignPanel) Container() fyne.CanvasObject {
	return ap.container
}

// SetWindow sets the parent window for dialogs.
func (ap *AlignPanel) SetWindow(w fyne.Window) {
	ap.window = w
}

// HandleClick records a landmark on whichever photo was clicked.
func (ap *AlignPanel) HandleClick(x, y float64, side pcbimage.Side) {
	if side == pcbimage.SideUnknown {
		return
	}
	if !ap.state.AddLandmark(side, pt(x, y)) {
		return
	}
	ap.RefreshMarkers()
}

func (ap *AlignPanel) refreshCounts() {
	ap.frontCountLabel.SetText(fmt.Sprintf("Front: %d / %d points",
		len(ap.state.Landmarks(pcbimage.SideFront)), landmark.PointsPerImage))
	ap.backCountLabel.SetText(fmt.Sprintf("Back: %d / %d points",
		len(ap.state.Landmarks(pcbimage.SideBack)), landmark.PointsPerImage))
}

// RefreshMarkers pushes the landmark crosshairs to the canvas.
func (ap *AlignPanel) RefreshMarkers() {
	var markers []canvas.Marker
	for i, p := range ap.state.Landmarks(pcbimage.SideFront) {
		markers = append(markers, canvas.Marker{
			X: p.X, Y: p.Y,
			Label: fmt.Sprintf("%d", i+1),
			Color: frontMarkerColor,
		})
	}
	for i, p := range ap.state.Landmarks(pcbimage.SideBack) {
		markers = append(markers, canvas.Marker{
			X: p.X, Y: p.Y,
			Label: fmt.Sprintf("%d", i+1),
			Color: backMarkerColor,
		})
	}
	ap.canvas.SetMarkers(markers)
	ap.refreshCounts()
}

func (ap *AlignPanel) runAlignment() {
	var err error
	if ap.mirroredCheck.Checked {
		err = ap.state.AlignNoFlip()
	} else {
		err = ap.state.Align()
	}
	if err != nil {
		ap.showError(err)
		return
	}
	ap.applyButton.Enable()
}

func (ap *AlignPanel) showResult() {
	t := ap.state.AlignTransform
	if t == nil {
		return
	}

	flip := "none"
	switch {
	case t.FlipHorizontal:
		flip = "horizontal"
	case t.FlipVertical:
		flip = "vertical"
	}

	ap.resultLabel.SetText(fmt.Sprintf(
		"Flip: %s\nRotation: %.2f deg\nScale: %.4f\nTranslation: (%.1f, %.1f)\nRMS error: %.2f px\nQuality: %.0f / 100",
		flip, t.RotationDegrees, t.Scale, t.TranslateX, t.TranslateY,
		ap.state.AlignmentError, ap.state.Quality))

	if k := ap.state.Keystone; k != nil && k.Suspect {
		ap.keystoneLabel.SetText(fmt.Sprintf(
			"Warning: residual (%.2f px) is far above the affine fit (%.2f px). The photos likely have perspective distortion; consider re-shooting flat.",
			k.SimilarityRMS, k.AffineRMS))
	} else {
		ap.keystoneLabel.SetText("")
	}
}

func (ap *AlignPanel) applyWarp() {
	if err := ap.state.ApplyAlignment(); err != nil {
		ap.showError(err)
	}
}

func (ap *AlignPanel) showError(err error) {
	if ap.window != nil {
		dialog.ShowError(err, ap.window)
		return
	}
	ap.resultLabel.SetText("Error: " + err.Error())
}
