// Package annotate provides the manual annotation model: vias, traces, pads,
// and components the user draws over the aligned board photos, grouped into
// named nets.
package annotate

import (
	"image/color"

	"pcb-studio/internal/image"
	"pcb-studio/pkg/geometry"
)

// Feature is the common interface for user-drawn board features.
type Feature interface {
	// FeatureID returns the unique identifier for this feature.
	FeatureID() string

	// FeatureKind returns "via", "trace", "pad", or "component".
	FeatureKind() string

	// FeatureSide returns which board side this feature is on.
	FeatureSide() image.Side

	// HitTest returns true if the point (x, y) is within this feature.
	HitTest(x, y float64) bool

	// Bounds returns the bounding rectangle for this feature.
	Bounds() geometry.Rect
}

// Via is a plated through-hole connecting the two sides.
type Via struct {
	ID     string           `json:"id"`
	Center geometry.Point2D `json:"center"`
	Radius float64          `json:"radius"`
	NetID  string           `json:"net,omitempty"`
}

func (v Via) FeatureID() string       { return v.ID }
func (v Via) FeatureKind() string     { return "via" }
func (v Via) FeatureSide() image.Side { return image.SideUnknown } // vias span both sides

func (v Via) HitTest(x, y float64) bool {
	return v.Center.Distance(geometry.Point2D{X: x, Y: y}) <= v.Radius
}

func (v Via) Bounds() geometry.Rect {
	return geometry.Rect{
		X:      v.Center.X - v.Radius,
		Y:      v.Center.Y - v.Radius,
		Width:  2 * v.Radius,
		Height: 2 * v.Radius,
	}
}

// Trace is a copper run traced as a polyline with a width.
type Trace struct {
	ID     string             `json:"id"`
	Points []geometry.Point2D `json:"points"`
	Width  float64            `json:"width"`
	Side   image.Side         `json:"side"`
	NetID  string             `json:"net,omitempty"`
}

func (t Trace) FeatureID() string       { return t.ID }
func (t Trace) FeatureKind() string     { return "trace" }
func (t Trace) FeatureSide() image.Side { return t.Side }

func (t Trace) HitTest(x, y float64) bool {
	if len(t.Points) == 0 {
		return false
	}
	p := geometry.Point2D{X: x, Y: y}
	tolerance := t.Width/2 + 3 // At least 3 pixels
	if len(t.Points) == 1 {
		return p.Distance(t.Points[0]) <= tolerance
	}
	for i := 0; i < len(t.Points)-1; i++ {
		if geometry.DistanceToSegment(p, t.Points[i], t.Points[i+1]) <= tolerance {
			return true
		}
	}
	return false
}

func (t Trace) Bounds() geometry.Rect {
	r := geometry.BoundingBox(t.Points)
	half := t.Width / 2
	return geometry.Rect{X: r.X - half, Y: r.Y - half, Width: r.Width + t.Width, Height: r.Height + t.Width}
}

// Pad is a soldering pad, drawn as a rectangle.
type Pad struct {
	ID    string        `json:"id"`
	Rect  geometry.Rect `json:"rect"`
	Side  image.Side    `json:"side"`
	NetID string        `json:"net,omitempty"`
}

func (p Pad) FeatureID() string       { return p.ID }
func (p Pad) FeatureKind() string     { return "pad" }
func (p Pad) FeatureSide() image.Side { return p.Side }

func (p Pad) HitTest(x, y float64) bool {
	return p.Rect.Contains(geometry.Point2D{X: x, Y: y})
}

func (p Pad) Bounds() geometry.Rect { return p.Rect }

// Component is a placed part with a designator and an outline polygon.
type Component struct {
	ID         string             `json:"id"`
	Designator string             `json:"designator"`           // e.g. "U12", "R4"
	PartNumber string             `json:"part_number,omitempty"` // e.g. "DM74LS244N"
	Outline    []geometry.Point2D `json:"outline"`
	Side       image.Side         `json:"side"`
	Notes      string             `json:"notes,omitempty"`
}

func (c Component) FeatureID() string       { return c.ID }
func (c Component) FeatureKind() string     { return "component" }
func (c Component) FeatureSide() image.Side { return c.Side }

func (c Component) HitTest(x, y float64) bool {
	return geometry.PointInPolygon(geometry.Point2D{X: x, Y: y}, c.Outline)
}

func (c Component) Bounds() geometry.Rect { return geometry.BoundingBox(c.Outline) }

// NetClass distinguishes power distribution from signal routing.
type NetClass int

const (
	NetSignal NetClass = iota
	NetPower
	NetGround
)

func (c NetClass) String() string {
	switch c {
	case NetPower:
		return "Power"
	case NetGround:
		return "Ground"
	default:
		return "Signal"
	}
}

// Net is a named group of electrically connected features.
type Net struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Class NetClass   `json:"class"`
	Color color.RGBA `json:"color"`
}

// netPalette provides highly saturated display colors for nets.
var netPalette = []color.RGBA{
	{R: 255, A: 255},                  // Red
	{G: 255, A: 255},                  // Green
	{B: 255, A: 255},                  // Blue
	{R: 255, G: 255, A: 255},          // Yellow
	{R: 255, B: 255, A: 255},          // Magenta
	{G: 255, B: 255, A: 255},          // Cyan
	{R: 255, G: 128, A: 255},          // Orange
	{R: 128, B: 255, A: 255},          // Purple
	{G: 255, B: 128, A: 255},          // Spring green
	{R: 255, B: 128, A: 255},          // Rose
}

// UnassignedColor is used for features not assigned to a net.
var UnassignedColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// SelectionColor highlights the selected feature.
var SelectionColor = color.RGBA{R: 255, G: 255, A: 255}

// NextNetColor returns the next palette color based on net count. Power and
// ground nets get conventional fixed colors.
func NextNetColor(class NetClass, netCount int) color.RGBA {
	switch class {
	case NetPower:
		return color.RGBA{R: 255, A: 255}
	case NetGround:
		return color.RGBA{R: 64, G: 64, B: 64, A: 255}
	default:
		return netPalette[netCount%len(netPalette)]
	}
}

