// Package landmark computes the similarity transform that superimposes the
// back-side board photo onto the front-side photo from four user-placed
// point correspondences. A back photo is always a mirror image of the front,
// so the search tries both mirror axes and keeps the better hypothesis.
package landmark

import (
	"errors"

	"pcb-studio/pkg/geometry"
)

// PointsPerImage is the number of landmark points required on each image.
const PointsPerImage = 4

// ErrLandmarkCount is returned when either point set does not contain
// exactly PointsPerImage points.
var ErrLandmarkCount = errors.New("exactly 4 landmark points required for each image")

// Placement describes the current placement of an image layer on the canvas.
// It is used only to locate the image's visual center, which serves as the
// pivot for the mirror-flip hypothesis. When no placement is available the
// centroid of the back landmark set is used instead.
type Placement struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// Center returns the visual center of the placed image.
func (p Placement) Center() geometry.Point2D {
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	return geometry.Point2D{
		X: p.X + p.Width*scale/2,
		Y: p.Y + p.Height*scale/2,
	}
}

// Transform is the similarity transform selected by the flip search. It
// represents: reflect the back image about its own center along the chosen
// axis, then scale and rotate about the reflected landmark centroid, then
// translate so the landmark centroids coincide.
type Transform struct {
	FlipHorizontal  bool    `json:"flip_horizontal"`
	FlipVertical    bool    `json:"flip_vertical"`
	RotationDegrees float64 `json:"rotation_degrees"`
	Scale           float64 `json:"scale"`
	TranslateX      float64 `json:"translate_x"`
	TranslateY      float64 `json:"translate_y"`
}

// Result is the output of the no-flip variant, used when the back image has
// already been mirrored as a separate manual step.
type Result struct {
	TranslateX      float64 `json:"translate_x"`
	TranslateY      float64 `json:"translate_y"`
	Scale           float64 `json:"scale"`
	RotationDegrees float64 `json:"rotation_degrees"`
	RMSError        float64 `json:"rms_error"`
	Quality         float64 `json:"quality"`
}

// QualityFromError maps an RMS residual in pixels to a 0-100 quality score.
// 0 px maps to 100, 50 px or more maps to 0, linear in between.
func QualityFromError(rmsError float64) float64 {
	quality := 100 - 2*rmsError
	if quality < 0 {
		return 0
	}
	if quality > 100 {
		return 100
	}
	return quality
}
