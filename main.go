// PCB Studio aligns front and back photos of a circuit board from four
// user-placed landmark points, then lets the user annotate vias, traces,
// pads, and components over the superimposed result.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"pcb-studio/internal/app"
	"pcb-studio/internal/version"
	"pcb-studio/ui/mainwindow"
	"pcb-studio/ui/prefs"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	devReload := flag.Bool("dev", false, "Watch the binary and offer to restart on rebuild")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pcb-studio %s (%s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
		return
	}

	fyneApp := fyneapp.NewWithID("io.pcbstudio.app")
	fyneApp.Settings().SetTheme(&app.StudioTheme{})

	state := app.NewState()
	win := mainwindow.New(fyneApp, state)

	p := prefs.Load()
	win.Resize(fyne.NewSize(
		float32(p.Float("window_width", 1400)),
		float32(p.Float("window_height", 900)),
	))
	win.SetCloseIntercept(func() {
		size := win.Canvas().Size()
		p.SetFloat("window_width", float64(size.Width))
		p.SetFloat("window_height", float64(size.Height))
		_ = p.Save()
		win.Close()
	})

	// Open a project given on the command line.
	if args := flag.Args(); len(args) > 0 {
		if err := state.LoadProject(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "opening %s: %v\n", args[0], err)
		}
	}

	if *devReload {
		if reloader := app.NewHotReloader(2 * time.Second); reloader != nil {
			reloader.OnNewBinary(func() {
				dialog.ShowConfirm("New Build", "A newer binary was built. Restart?",
					func(ok bool) {
						if ok {
							_ = reloader.Restart()
						} else {
							reloader.ResetBaseline()
							reloader.Start()
						}
					}, win)
			})
			reloader.Start()
			defer reloader.Stop()
		}
	}

	win.ShowAndRun()
}
