package panels

import (
	"fmt"
	"image"
	"sort"

	"pcb-studio/internal/annotate"
	"pcb-studio/internal/app"
	pcbimage "pcb-studio/internal/image"
	"pcb-studio/internal/ocr"
	"pcb-studio/pkg/geometry"
	"pcb-studio/ui/canvas"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

const defaultViaRadius = 8

// AnnotatePanel provides the manual annotation tools: vias, traces, pads,
// components, and net assignment, plus OCR of component markings.
type AnnotatePanel struct {
	state     *app.State
	canvas    *canvas.ImageCanvas
	window    fyne.Window
	container fyne.CanvasObject

	toolRadio      *widget.RadioGroup
	selectionLabel *widget.Label
	countsLabel    *widget.Label
	netName        *widget.Entry
	netClass       *widget.Select
	netSelect      *widget.Select
	componentList  *widget.Label

	// In-progress polyline for the trace and component tools
	pending     []geometry.Point2D
	pendingSide pcbimage.Side

	// Corner already placed by the pad tool
	padCorner *geometry.Point2D
}

// NewAnnotatePanel creates the annotation panel.
func NewAnnotatePanel(state *app.State, cvs *canvas.ImageCanvas) *AnnotatePanel {
	ann := &AnnotatePanel{state: state, canvas: cvs}

	ann.toolRadio = widget.NewRadioGroup(
		[]string{"Select", "Via", "Trace", "Pad", "Component"},
		func(selected string) {
			ann.resetPending()
			switch selected {
			case "Via":
				cvs.SetTool(canvas.ToolVia)
			case "Trace":
				cvs.SetTool(canvas.ToolTrace)
			case "Pad":
				cvs.SetTool(canvas.ToolPad)
			case "Component":
				cvs.SetTool(canvas.ToolComponent)
			default:
				cvs.SetTool(canvas.ToolPan)
			}
		})
	ann.toolRadio.SetSelected("Select")

	ann.selectionLabel = widget.NewLabel("Nothing selected")
	ann.selectionLabel.Wrapping = fyne.TextWrapWord
	ann.countsLabel = widget.NewLabel("")
	ann.componentList = widget.NewLabel("")
	ann.componentList.Wrapping = fyne.TextWrapWord

	deleteButton := widget.NewButton("Delete Selected", func() {
		id := state.Annotations.SelectedID()
		if id == "" {
			return
		}
		state.Annotations.Remove(id)
		state.Annotations.Select("")
		ann.refresh()
	})

	ann.netName = widget.NewEntry()
	ann.netName.SetPlaceHolder("Net name (e.g. GND)")
	ann.netClass = widget.NewSelect([]string{"Signal", "Power", "Ground"}, nil)
	ann.netClass.SetSelected("Signal")

	addNetButton := widget.NewButton("Add Net", func() {
		name := ann.netName.Text
		if name == "" {
			return
		}
		class := annotate.NetSignal
		switch ann.netClass.Selected {
		case "Power":
			class = annotate.NetPower
		case "Ground":
			class = annotate.NetGround
		}
		state.Annotations.AddNet(name, class)
		ann.netName.SetText("")
		ann.refreshNets()
	})

	ann.netSelect = widget.NewSelect(nil, nil)
	assignButton := widget.NewButton("Assign Net to Selected", func() {
		ann.assignNet()
	})

	ocrButton := widget.NewButton("Read Label (OCR)", func() {
		cvs.SetTool(canvas.ToolSelect)
	})
	cvs.OnSelect(ann.handleOCRSelection)

	ann.container = container.NewVBox(
		widget.NewLabelWithStyle("Tool", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		ann.toolRadio,
		widget.NewLabel("Trace/Component: click points, right-click to finish."),
		widget.NewSeparator(),
		ann.selectionLabel,
		deleteButton,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Nets", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		ann.netName,
		ann.netClass,
		addNetButton,
		ann.netSelect,
		assignButton,
		widget.NewSeparator(),
		ocrButton,
		ann.countsLabel,
		ann.componentList,
	)

	state.On(app.EventAnnotationsChanged, func(data interface{}) {
		ann.refresh()
	})

	ann.refresh()
	return ann
}

// Container returns the panel container.
func (ann *AnnotatePanel) Container() fyne.CanvasObject {
	return ann.container
}

// SetWindow sets the parent window for dialogs.
func (ann *AnnotatePanel) SetWindow(w fyne.Window) {
	ann.window = w
}

// DrawAnnotations paints the annotation layer onto the canvas output.
func (ann *AnnotatePanel) DrawAnnotations(dst *image.RGBA, zoom float64) {
	ann.state.Annotations.Render(dst, pcbimage.SideUnknown, zoom)
}

// HandleToolClick places geometry for the active drawing tool.
func (ann *AnnotatePanel) HandleToolClick(x, y float64, side pcbimage.Side) {
	if side == pcbimage.SideUnknown {
		return
	}

	switch ann.canvas.CurrentTool() {
	case canvas.ToolVia:
		ann.state.Annotations.AddVia(x, y, defaultViaRadius)
		ann.changed()

	case canvas.ToolTrace, canvas.ToolComponent:
		if len(ann.pending) == 0 {
			ann.pendingSide = side
		}
		ann.pending = append(ann.pending, pt(x, y))
		ann.canvas.Refresh()

	case canvas.ToolPad:
		if ann.padCorner == nil {
			p := pt(x, y)
			ann.padCorner = &p
			return
		}
		a := *ann.padCorner
		ann.padCorner = nil
		rect := geometry.Rect{
			X:      minF(a.X, x),
			Y:      minF(a.Y, y),
			Width:  absF(x - a.X),
			Height: absF(y - a.Y),
		}
		ann.state.Annotations.AddPad(rect, side)
		ann.changed()
	}
}

// FinishPolyline completes the in-progress trace or component outline.
func (ann *AnnotatePanel) FinishPolyline() {
	defer ann.resetPending()

	switch ann.canvas.CurrentTool() {
	case canvas.ToolTrace:
		if len(ann.pending) < 2 {
			return
		}
		ann.state.Annotations.AddTrace(ann.pending, 6, ann.pendingSide)
		ann.changed()

	case canvas.ToolComponent:
		if len(ann.pending) < 3 {
			return
		}
		outline := ann.pending
		side := ann.pendingSide
		ann.promptComponent(outline, side)
	}
}

// promptComponent asks for a designator before creating the component.
func (ann *AnnotatePanel) promptComponent(outline []geometry.Point2D, side pcbimage.Side) {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("U12")
	if ann.window == nil {
		ann.state.Annotations.AddComponent("", outline, side)
		ann.changed()
		return
	}
	dialog.ShowForm("New Component", "Create", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Designator", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			ann.state.Annotations.AddComponent(entry.Text, outline, side)
			ann.changed()
		}, ann.window)
}

// HandleSelectClick hit-tests the annotation layer.
func (ann *AnnotatePanel) HandleSelectClick(x, y float64, side pcbimage.Side) {
	if ann.canvas.CurrentTool() != canvas.ToolPan {
		return
	}
	f := ann.state.Annotations.HitTest(x, y, side)
	if f == nil {
		ann.state.Annotations.Select("")
		ann.selectionLabel.SetText("Nothing selected")
		ann.canvas.Refresh()
		return
	}

	ann.state.Annotations.Select(f.FeatureID())
	ann.selectionLabel.SetText(describeFeature(f))
	ann.canvas.Refresh()
}

func (ann *AnnotatePanel) assignNet() {
	featureID := ann.state.Annotations.SelectedID()
	if featureID == "" || ann.netSelect.Selected == "" {
		return
	}
	for _, n := range ann.state.Annotations.Nets() {
		if n.Name == ann.netSelect.Selected {
			ann.state.Annotations.AssignNet(featureID, n.ID)
			ann.changed()
			return
		}
	}
}

// handleOCRSelection runs OCR on the dragged region of the front photo and
// offers the text as the selected component's part number.
func (ann *AnnotatePanel) handleOCRSelection(x1, y1, x2, y2 float64) {
	front := ann.state.FrontImage
	if front == nil || front.Image == nil {
		return
	}

	reader, err := ocr.NewReader()
	if err != nil {
		ann.showError(err)
		return
	}
	defer reader.Close()

	bounds := geometry.RectInt{
		X: int(x1), Y: int(y1),
		Width:  int(x2 - x1),
		Height: int(y2 - y1),
	}
	text, err := reader.ReadRegion(front.Image, bounds)
	if err != nil {
		ann.showError(err)
		return
	}

	ann.selectionLabel.SetText("OCR: " + text)
	if ann.window != nil {
		dialog.ShowInformation("OCR Result", text, ann.window)
	}
	ann.canvas.SetTool(canvas.ToolPan)
}

func (ann *AnnotatePanel) changed() {
	ann.state.SetModified(true)
	ann.state.Emit(app.EventAnnotationsChanged, nil)
	ann.canvas.Refresh()
}

func (ann *AnnotatePanel) resetPending() {
	ann.pending = nil
	ann.padCorner = nil
}

func (ann *AnnotatePanel) refresh() {
	vias, traces, pads, comps := ann.state.Annotations.Counts()
	ann.countsLabel.SetText(fmt.Sprintf("%d vias, %d traces, %d pads, %d components",
		vias, traces, pads, comps))
	ann.refreshNets()
	ann.refreshComponents()
}

func (ann *AnnotatePanel) refreshNets() {
	var names []string
	for _, n := range ann.state.Annotations.Nets() {
		names = append(names, n.Name)
	}
	ann.netSelect.Options = names
	ann.netSelect.Refresh()
}

func (ann *AnnotatePanel) refreshComponents() {
	var designators []string
	for _, f := range ann.state.Annotations.Features() {
		if c, ok := f.(annotate.Component); ok && c.Designator != "" {
			label := c.Designator
			if c.PartNumber != "" {
				label += " (" + c.PartNumber + ")"
			}
			designators = append(designators, label)
		}
	}
	sort.Slice(designators, func(i, j int) bool {
		return naturalLess(designators[i], designators[j])
	})

	text := ""
	for _, d := range designators {
		if text != "" {
			text += "\n"
		}
		text += d
	}
	ann.componentList.SetText(text)
}

func (ann *AnnotatePanel) showError(err error) {
	if ann.window != nil {
		dialog.ShowError(err, ann.window)
		return
	}
	ann.selectionLabel.SetText("Error: " + err.Error())
}

func describeFeature(f annotate.Feature) string {
	switch v := f.(type) {
	case annotate.Component:
		s := "Component " + v.Designator
		if v.PartNumber != "" {
			s += " (" + v.PartNumber + ")"
		}
		return s
	default:
		return fmt.Sprintf("Selected %s %s", f.FeatureKind(), f.FeatureID())
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
