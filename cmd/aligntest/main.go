// Command aligntest runs the landmark alignment on a JSON point file and
// prints the resulting transform, residual, and quality. Useful for checking
// a troublesome landmark set without launching the full application.
//
// Point file format:
//
//	{
//	  "front": [{"x": 10, "y": 10}, ...],
//	  "back":  [{"x": 990, "y": 10}, ...],
//	  "placement": {"x": 0, "y": 0, "width": 1000, "height": 800, "scale": 1}
//	}
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"pcb-studio/internal/landmark"
	"pcb-studio/internal/version"
	"pcb-studio/pkg/geometry"
)

type pointFile struct {
	Front     []geometry.Point2D  `json:"front"`
	Back      []geometry.Point2D  `json:"back"`
	Placement *landmark.Placement `json:"placement,omitempty"`
}

func main() {
	pointsPath := flag.String("points", "", "Path to JSON point file")
	noFlip := flag.Bool("noflip", false, "Assume the back set is already mirrored; skip the flip search")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("aligntest %s (%s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
		return
	}

	if *pointsPath == "" {
		fmt.Println("Usage: aligntest -points <file.json> [-noflip]")
		os.Exit(1)
	}

	data, err := os.ReadFile(*pointsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading point file: %v\n", err)
		os.Exit(1)
	}

	var pf pointFile
	if err := json.Unmarshal(data, &pf); err != nil {
		fmt.Fprintf(os.Stderr, "parsing point file: %v\n", err)
		os.Exit(1)
	}

	if *noFlip {
		runNoFlip(pf)
		return
	}
	runFlipSearch(pf)
}

func runFlipSearch(pf pointFile) {
	t, err := landmark.ComputeWithFlipSearch(pf.Front, pf.Back, pf.Placement)
	if err != nil {
		fmt.Fprintf(os.Stderr, "alignment failed: %v\n", err)
		os.Exit(1)
	}

	rms, quality, err := landmark.ReevaluateQuality(pf.Front, pf.Back, t, pf.Placement)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluating transform: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Flip search ===")
	fmt.Printf("flip horizontal: %v\n", t.FlipHorizontal)
	fmt.Printf("flip vertical:   %v\n", t.FlipVertical)
	fmt.Printf("rotation:        %.4f deg\n", t.RotationDegrees)
	fmt.Printf("scale:           %.6f\n", t.Scale)
	fmt.Printf("translation:     (%.2f, %.2f)\n", t.TranslateX, t.TranslateY)
	fmt.Printf("rms error:       %.4f px\n", rms)
	fmt.Printf("quality:         %.1f / 100\n", quality)

	m := t.Matrix(pf.Back, pf.Placement)
	fmt.Println("\nAffine matrix:")
	fmt.Printf("  [%10.5f %10.5f %12.3f]\n", m.A, m.B, m.TX)
	fmt.Printf("  [%10.5f %10.5f %12.3f]\n", m.C, m.D, m.TY)

	fmt.Println("\nPer-point residuals:")
	for i, p := range pf.Back {
		mapped := m.Apply(p)
		d := mapped.Distance(pf.Front[i])
		fmt.Printf("  %d: back (%.1f, %.1f) -> (%.1f, %.1f), front (%.1f, %.1f), residual %.3f px\n",
			i+1, p.X, p.Y, mapped.X, mapped.Y, pf.Front[i].X, pf.Front[i].Y, d)
	}
}

func runNoFlip(pf pointFile) {
	r, err := landmark.ComputeNoFlip(pf.Front, pf.Back)
	if err != nil {
		fmt.Fprintf(os.Stderr, "alignment failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== No-flip alignment ===")
	fmt.Printf("rotation:    %.4f deg\n", r.RotationDegrees)
	fmt.Printf("scale:       %.6f\n", r.Scale)
	fmt.Printf("translation: (%.2f, %.2f)\n", r.TranslateX, r.TranslateY)
	fmt.Printf("rms error:   %.4f px\n", r.RMSError)
	fmt.Printf("quality:     %.1f / 100\n", r.Quality)
}
