// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"path/filepath"

	"pcb-studio/internal/app"
	"pcb-studio/internal/image"
	"pcb-studio/internal/version"
	"pcb-studio/ui/canvas"
	"pcb-studio/ui/panels"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	prefKeyLastDir = "lastDirectory"
	windowTitle    = "PCB Studio"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	state     *app.State
	canvas    *canvas.ImageCanvas
	sidePanel *panels.SidePanel
	statusBar *widget.Label

	fitToWindowItem *fyne.MenuItem
}

// New creates the main window.
func New(fyneApp fyne.App, state *app.State) *MainWindow {
	win := fyneApp.NewWindow(windowTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()

	return mw
}

func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewImageCanvas()
	mw.sidePanel = panels.NewSidePanel(mw.state, mw.canvas)
	mw.sidePanel.SetWindow(mw.Window)
	mw.statusBar = widget.NewLabel("Ready")

	toolbar := container.NewHBox(
		widget.NewLabel("Zoom:"),
		widget.NewButton("-", mw.onZoomOut),
		widget.NewButton("+", mw.onZoomIn),
		widget.NewButton("Fit", mw.onToggleFitToWindow),
		widget.NewButton("1:1", mw.onActualSize),
	)

	canvasArea := container.NewBorder(toolbar, nil, nil, nil, mw.canvas.Container())

	split := container.NewHSplit(mw.sidePanel.Container(), canvasArea)
	split.SetOffset(0.25)

	content := container.NewBorder(nil, container.NewPadded(mw.statusBar), nil, nil, split)
	mw.SetContent(content)
}

func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("New Project", mw.onNewProject),
		fyne.NewMenuItem("Open Project...", mw.onOpenProject),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Open Front Photo...", func() { mw.openImage(image.SideFront) }),
		fyne.NewMenuItem("Open Back Photo...", func() { mw.openImage(image.SideBack) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Project", mw.onSaveProject),
		fyne.NewMenuItem("Save Project As...", mw.onSaveProjectAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Composite...", mw.onExportComposite),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	mw.fitToWindowItem = fyne.NewMenuItem("  Fit to Window", mw.onToggleFitToWindow)
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.onZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		mw.fitToWindowItem,
		fyne.NewMenuItem("Actual Size", mw.onActualSize),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, helpMenu))
}

func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventProjectLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle(windowTitle + " - " + filepath.Base(path))
			mw.updateStatus("Project loaded: " + path)
		}
		mw.sidePanel.SyncLayers()
	})

	mw.state.On(app.EventImageLoaded, func(data interface{}) {
		mw.sidePanel.SyncLayers()
		mw.canvas.Refresh()
		mw.updateStatus("Image loaded")
	})

	mw.state.On(app.EventModified, func(data interface{}) {
		if modified, ok := data.(bool); ok && modified {
			title := mw.Title()
			if len(title) > 0 && title[len(title)-1] != '*' {
				mw.SetTitle(title + " *")
			}
		}
	})

	mw.state.On(app.EventAlignmentComplete, func(data interface{}) {
		mw.sidePanel.SyncLayers()
		mw.canvas.Refresh()
		mw.updateStatus(fmt.Sprintf("Alignment: RMS %.2f px, quality %.0f",
			mw.state.AlignmentError, mw.state.Quality))
	})

	mw.state.On(app.EventViewChanged, func(data interface{}) {
		mw.canvas.Refresh()
	})
}

func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.app.Preferences().String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

func (mw *MainWindow) saveLastDir(filePath string) {
	mw.app.Preferences().SetString(prefKeyLastDir, filepath.Dir(filePath))
}

func (mw *MainWindow) onNewProject() {
	mw.state.ProjectPath = ""
	mw.state.FrontImage = nil
	mw.state.BackImage = nil
	mw.state.ClearLandmarks(image.SideFront)
	mw.state.ClearLandmarks(image.SideBack)
	mw.state.SetModified(false)
	mw.SetTitle(windowTitle + " - New Project")
	mw.sidePanel.SyncLayers()
	mw.canvas.Refresh()
}

func (mw *MainWindow) onOpenProject() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.state.LoadProject(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".pcbproj"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) openImage(side image.Side) {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)

		var loadErr error
		if side == image.SideFront {
			loadErr = mw.state.LoadFrontImage(path)
		} else {
			loadErr = mw.state.LoadBackImage(path)
		}
		if loadErr != nil {
			dialog.ShowError(loadErr, mw.Window)
		}
	}, mw.Window)

	fd.SetFilter(storage.NewExtensionFileFilter(image.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSaveProject() {
	if mw.state.ProjectPath == "" {
		mw.onSaveProjectAs()
		return
	}
	if err := mw.state.SaveProject(mw.state.ProjectPath); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onSaveProjectAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != ".pcbproj" {
			path += ".pcbproj"
		}
		mw.saveLastDir(path)
		if err := mw.state.SaveProject(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName("board.pcbproj")
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExportComposite() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		mw.saveLastDir(writer.URI().Path())
		if err := mw.sidePanel.ExportComposite(writer); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName("composite.png")
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onZoomIn() {
	mw.disableFitToWindow()
	mw.canvas.ZoomIn()
}

func (mw *MainWindow) onZoomOut() {
	mw.disableFitToWindow()
	mw.canvas.ZoomOut()
}

func (mw *MainWindow) onToggleFitToWindow() {
	enabled := !mw.canvas.GetFitToWindow()
	mw.canvas.SetFitToWindow(enabled)
	if enabled {
		mw.fitToWindowItem.Label = "✓ Fit to Window"
	} else {
		mw.fitToWindowItem.Label = "  Fit to Window"
	}
}

func (mw *MainWindow) onActualSize() {
	mw.disableFitToWindow()
	mw.canvas.SetZoom(1.0)
}

func (mw *MainWindow) disableFitToWindow() {
	if mw.canvas.GetFitToWindow() {
		mw.canvas.SetFitToWindow(false)
		mw.fitToWindowItem.Label = "  Fit to Window"
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About PCB Studio",
		fmt.Sprintf("PCB Studio v%s\n\n"+
			"Landmark-based photo alignment and annotation\n"+
			"for PCB reverse engineering.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
