// Package app provides application lifecycle management, state, and events.
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"pcb-studio/internal/annotate"
	"pcb-studio/internal/image"
	"pcb-studio/internal/landmark"
	"pcb-studio/pkg/geometry"
)

// State holds the application state: loaded images, landmark points, the
// computed alignment, and the annotation layer.
type State struct {
	mu sync.RWMutex

	// Project
	ProjectPath string
	Modified    bool

	// Images
	FrontImage *image.Layer
	BackImage  *image.Layer
	DPI        float64

	// Landmark points in world coordinates, paired by index
	FrontLandmarks []geometry.Point2D
	BackLandmarks  []geometry.Point2D

	// Alignment
	Aligned        bool
	AlignTransform *landmark.Transform
	AlignmentError float64
	Quality        float64
	Keystone       *landmark.KeystoneReport
	AlignedBack    *image.Layer

	// Annotations
	Annotations *annotate.Layer

	// View settings
	BlendMode image.BlendMode
	Overlay   bool

	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventProjectLoaded EventType = iota
	EventProjectSaved
	EventImageLoaded
	EventLandmarksChanged
	EventAlignmentComplete
	EventAnnotationsChanged
	EventSelectionChanged
	EventViewChanged
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates a new application state.
func NewState() *State {
	return &State{
		Annotations: annotate.NewLayer(),
		BlendMode:   image.BlendNormal,
		listeners:   make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the project as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// LoadFrontImage loads the front (component side) photo.
func (s *State) LoadFrontImage(path string) error {
	layer, err := image.Load(path)
	if err != nil {
		return err
	}
	layer.Side = image.SideFront

	s.mu.Lock()
	s.FrontImage = layer
	s.invalidateAlignmentLocked()
	if layer.DPI > 0 && s.DPI == 0 {
		s.DPI = layer.DPI
	}
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventImageLoaded, layer)
	return nil
}

// LoadBackImage loads the back (solder side) photo.
func (s *State) LoadBackImage(path string) error {
	layer, err := image.Load(path)
	if err != nil {
		return err
	}
	layer.Side = image.SideBack

	s.mu.Lock()
	s.BackImage = layer
	s.invalidateAlignmentLocked()
	if layer.DPI > 0 && s.DPI == 0 {
		s.DPI = layer.DPI
	}
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventImageLoaded, layer)
	return nil
}

// invalidateAlignmentLocked clears alignment results. Caller holds mu.
func (s *State) invalidateAlignmentLocked() {
	s.Aligned = false
	s.AlignTransform = nil
	s.AlignmentError = 0
	s.Quality = 0
	s.Keystone = nil
	s.AlignedBack = nil
}

// Landmarks returns a copy of the landmark set for the given side.
func (s *State) Landmarks(side image.Side) []geometry.Point2D {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.FrontLandmarks
	if side == image.SideBack {
		src = s.BackLandmarks
	}
	out := make([]geometry.Point2D, len(src))
	copy(out, src)
	return out
}

// AddLandmark appends a landmark point to the given side. Returns false once
// the side already has its full complement of points.
func (s *State) AddLandmark(side image.Side, p geometry.Point2D) bool {
	s.mu.Lock()
	set := &s.FrontLandmarks
	if side == image.SideBack {
		set = &s.BackLandmarks
	}
	if len(*set) >= landmark.PointsPerImage {
		s.mu.Unlock()
		return false
	}
	*set = append(*set, p)
	s.invalidateAlignmentLocked()
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventLandmarksChanged, side)
	return true
}

// MoveLandmark repositions an existing landmark point.
func (s *State) MoveLandmark(side image.Side, index int, p geometry.Point2D) bool {
	s.mu.Lock()
	set := s.FrontLandmarks
	if side == image.SideBack {
		set = s.BackLandmarks
	}
	if index < 0 || index >= len(set) {
		s.mu.Unlock()
		return false
	}
	set[index] = p
	s.invalidateAlignmentLocked()
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventLandmarksChanged, side)
	return true
}

// ClearLandmarks removes all landmark points from the given side.
func (s *State) ClearLandmarks(side image.Side) {
	s.mu.Lock()
	if side == image.SideBack {
		s.BackLandmarks = nil
	} else {
		s.FrontLandmarks = nil
	}
	s.invalidateAlignmentLocked()
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventLandmarksChanged, side)
}

// backPlacement builds the flip-pivot placement from the back layer. Returns
// nil when no back image is loaded, which makes the engine fall back to the
// landmark centroid.
func (s *State) backPlacement() *landmark.Placement {
	if s.BackImage == nil || s.BackImage.Image == nil {
		return nil
	}
	scale := s.BackImage.DisplayScale
	if scale == 0 {
		scale = 1
	}
	return &landmark.Placement{
		X:      s.BackImage.OffsetX,
		Y:      s.BackImage.OffsetY,
		Width:  float64(s.BackImage.Width()),
		Height: float64(s.BackImage.Height()),
		Scale:  scale,
	}
}

// Align runs the flip search over the current landmark sets and stores the
// winning transform together with its residual, quality score, and keystone
// diagnostic.
func (s *State) Align() error {
	s.mu.Lock()
	front := s.FrontLandmarks
	back := s.BackLandmarks
	placement := s.backPlacement()
	s.mu.Unlock()

	t, err := landmark.ComputeWithFlipSearch(front, back, placement)
	if err != nil {
		return err
	}

	rms, quality, err := landmark.ReevaluateQuality(front, back, t, placement)
	if err != nil {
		return err
	}

	keystone := keystoneDiagnostic(front, back, t, placement, rms)

	s.mu.Lock()
	s.AlignTransform = &t
	s.AlignmentError = rms
	s.Quality = quality
	s.Keystone = keystone
	s.Aligned = true
	s.AlignedBack = nil
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventAlignmentComplete, t)
	return nil
}

// AlignNoFlip computes the alignment assuming the back image has already been
// mirrored by hand, so no reflection hypothesis is tried.
func (s *State) AlignNoFlip() error {
	s.mu.Lock()
	front := s.FrontLandmarks
	back := s.BackLandmarks
	placement := s.backPlacement()
	s.mu.Unlock()

	r, err := landmark.ComputeNoFlip(front, back)
	if err != nil {
		return err
	}

	t := landmark.Transform{
		RotationDegrees: r.RotationDegrees,
		Scale:           r.Scale,
		TranslateX:      r.TranslateX,
		TranslateY:      r.TranslateY,
	}
	keystone := keystoneDiagnostic(front, back, t, placement, r.RMSError)

	s.mu.Lock()
	s.AlignTransform = &t
	s.AlignmentError = r.RMSError
	s.Quality = r.Quality
	s.Keystone = keystone
	s.Aligned = true
	s.AlignedBack = nil
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventAlignmentComplete, t)
	return nil
}

// keystoneDiagnostic reflects the back landmarks per the chosen flip and runs
// the affine comparison. A failure here only disables the warning.
func keystoneDiagnostic(front, back []geometry.Point2D, t landmark.Transform, placement *landmark.Placement, rms float64) *landmark.KeystoneReport {
	pivot := geometry.Centroid(back)
	if placement != nil {
		pivot = placement.Center()
	}

	reflected := make([]geometry.Point2D, len(back))
	for i, p := range back {
		if t.FlipHorizontal {
			p.X = 2*pivot.X - p.X
		}
		if t.FlipVertical {
			p.Y = 2*pivot.Y - p.Y
		}
		reflected[i] = p
	}

	report, err := landmark.KeystoneCheck(front, reflected, rms)
	if err != nil {
		return nil
	}
	return &report
}

// ApplyAlignment warps the back photo into the front photo's frame using the
// stored transform and keeps the result as a new layer.
func (s *State) ApplyAlignment() error {
	s.mu.RLock()
	front := s.FrontImage
	back := s.BackImage
	t := s.AlignTransform
	backPoints := s.BackLandmarks
	placement := s.backPlacement()
	s.mu.RUnlock()

	if front == nil || front.Image == nil || back == nil || back.Image == nil {
		return fmt.Errorf("both images must be loaded before applying alignment")
	}
	if t == nil {
		return fmt.Errorf("no alignment computed")
	}

	src, err := gocv.ImageToMatRGB(back.Image)
	if err != nil {
		return fmt.Errorf("converting back image: %w", err)
	}
	defer src.Close()

	m := t.Matrix(backPoints, placement)
	warped := landmark.WarpImage(src, m, front.Width(), front.Height())
	defer warped.Close()

	img, err := warped.ToImage()
	if err != nil {
		return fmt.Errorf("converting warped image: %w", err)
	}

	aligned := image.NewLayer()
	aligned.Path = back.Path
	aligned.Image = img
	aligned.Side = image.SideBack
	aligned.DPI = back.DPI

	s.mu.Lock()
	s.AlignedBack = aligned
	s.mu.Unlock()

	s.Emit(EventAlignmentComplete, *t)
	return nil
}

// MirrorBackImage flips the back photo's pixels in place. This is the manual
// mirror step that precedes the no-flip alignment variant.
func (s *State) MirrorBackImage(horizontal bool) error {
	s.mu.RLock()
	back := s.BackImage
	s.mu.RUnlock()

	if back == nil || back.Image == nil {
		return fmt.Errorf("no back image loaded")
	}

	src, err := gocv.ImageToMatRGB(back.Image)
	if err != nil {
		return fmt.Errorf("converting back image: %w", err)
	}
	defer src.Close()

	flipped := landmark.FlipImage(src, horizontal, !horizontal)
	defer flipped.Close()

	img, err := flipped.ToImage()
	if err != nil {
		return fmt.Errorf("converting flipped image: %w", err)
	}

	s.mu.Lock()
	back.Image = img
	s.invalidateAlignmentLocked()
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventImageLoaded, back)
	return nil
}

// SetBlendMode changes how the two sides are composited.
func (s *State) SetBlendMode(mode image.BlendMode) {
	s.mu.Lock()
	s.BlendMode = mode
	s.mu.Unlock()
	s.Emit(EventViewChanged, mode)
}

// ProjectFile is the JSON structure of a .pcbproj file.
type ProjectFile struct {
	Version        int     `json:"version"`
	FrontImagePath string  `json:"front_image,omitempty"`
	BackImagePath  string  `json:"back_image,omitempty"`
	DPI            float64 `json:"dpi,omitempty"`

	FrontLandmarks []geometry.Point2D `json:"front_landmarks,omitempty"`
	BackLandmarks  []geometry.Point2D `json:"back_landmarks,omitempty"`

	Aligned        bool                `json:"aligned"`
	Transform      *landmark.Transform `json:"transform,omitempty"`
	AlignmentError float64             `json:"alignment_error,omitempty"`
	Quality        float64             `json:"quality,omitempty"`

	AnnotationsPath string `json:"annotations,omitempty"`
}

// annotationsPathFor derives the annotations sidecar path for a project file.
func annotationsPathFor(projectPath string) string {
	base := strings.TrimSuffix(projectPath, filepath.Ext(projectPath))
	return base + ".annotations.json"
}

// LoadProject loads a project from the specified path.
func (s *State) LoadProject(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var proj ProjectFile
	if err := json.Unmarshal(data, &proj); err != nil {
		return fmt.Errorf("parsing project file: %w", err)
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.DPI = proj.DPI
	s.FrontLandmarks = proj.FrontLandmarks
	s.BackLandmarks = proj.BackLandmarks
	s.Aligned = proj.Aligned
	s.AlignTransform = proj.Transform
	s.AlignmentError = proj.AlignmentError
	s.Quality = proj.Quality
	s.Keystone = nil
	s.AlignedBack = nil
	s.mu.Unlock()

	projectDir := filepath.Dir(path)
	if proj.FrontImagePath != "" {
		if err := s.LoadFrontImage(filepath.Join(projectDir, proj.FrontImagePath)); err != nil {
			return err
		}
	}
	if proj.BackImagePath != "" {
		if err := s.LoadBackImage(filepath.Join(projectDir, proj.BackImagePath)); err != nil {
			return err
		}
	}

	// Image loading resets alignment state; restore what the file recorded.
	s.mu.Lock()
	s.FrontLandmarks = proj.FrontLandmarks
	s.BackLandmarks = proj.BackLandmarks
	s.Aligned = proj.Aligned
	s.AlignTransform = proj.Transform
	s.AlignmentError = proj.AlignmentError
	s.Quality = proj.Quality
	s.mu.Unlock()

	if proj.AnnotationsPath != "" {
		annPath := filepath.Join(projectDir, proj.AnnotationsPath)
		if err := s.Annotations.Load(annPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading annotations: %w", err)
		}
	}

	s.mu.Lock()
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventProjectLoaded, path)
	return nil
}

// SaveProject saves the project and its annotations sidecar.
func (s *State) SaveProject(path string) error {
	projectDir := filepath.Dir(path)

	s.mu.RLock()
	proj := ProjectFile{
		Version:        1,
		DPI:            s.DPI,
		FrontLandmarks: s.FrontLandmarks,
		BackLandmarks:  s.BackLandmarks,
		Aligned:        s.Aligned,
		Transform:      s.AlignTransform,
		AlignmentError: s.AlignmentError,
		Quality:        s.Quality,
	}
	if s.FrontImage != nil {
		proj.FrontImagePath, _ = filepath.Rel(projectDir, s.FrontImage.Path)
	}
	if s.BackImage != nil {
		proj.BackImagePath, _ = filepath.Rel(projectDir, s.BackImage.Path)
	}
	s.mu.RUnlock()

	annPath := annotationsPathFor(path)
	if err := s.Annotations.Save(annPath); err != nil {
		return fmt.Errorf("saving annotations: %w", err)
	}
	proj.AnnotationsPath, _ = filepath.Rel(projectDir, annPath)

	data, err := json.MarshalIndent(proj, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventProjectSaved, path)
	return nil
}
