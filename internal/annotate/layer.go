package annotate

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"sync"

	"pcb-studio/internal/image"
	"pcb-studio/pkg/geometry"
)

// Layer holds all annotations for a project.
type Layer struct {
	mu sync.RWMutex

	vias       []*Via
	traces     []*Trace
	pads       []*Pad
	components []*Component
	nets       map[string]*Net
	netOrder   []string

	selectedID string
	nextSeq    int
}

// NewLayer creates an empty annotation layer.
func NewLayer() *Layer {
	return &Layer{
		nets: make(map[string]*Net),
	}
}

func (l *Layer) nextID(kind string) string {
	l.nextSeq++
	return fmt.Sprintf("%s-%d", kind, l.nextSeq)
}

// AddVia creates a via at the given position and returns it.
func (l *Layer) AddVia(x, y, radius float64) *Via {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := &Via{ID: l.nextID("via"), Radius: radius}
	v.Center.X, v.Center.Y = x, y
	l.vias = append(l.vias, v)
	return v
}

// AddTrace creates a trace from the given polyline and returns it.
func (l *Layer) AddTrace(points []geometry.Point2D, width float64, side image.Side) *Trace {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := &Trace{ID: l.nextID("trace"), Points: points, Width: width, Side: side}
	l.traces = append(l.traces, t)
	return t
}

// AddPad creates a pad and returns it.
func (l *Layer) AddPad(rect geometry.Rect, side image.Side) *Pad {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := &Pad{ID: l.nextID("pad"), Rect: rect, Side: side}
	l.pads = append(l.pads, p)
	return p
}

// AddComponent creates a component with the given outline and returns it.
func (l *Layer) AddComponent(designator string, outline []geometry.Point2D, side image.Side) *Component {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := &Component{ID: l.nextID("comp"), Designator: designator, Outline: outline, Side: side}
	l.components = append(l.components, c)
	return c
}

// AddNet creates a named net and returns it.
func (l *Layer) AddNet(name string, class NetClass) *Net {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	n := &Net{
		ID:    fmt.Sprintf("net-%d", l.nextSeq),
		Name:  name,
		Class: class,
		Color: NextNetColor(class, len(l.netOrder)),
	}
	l.nets[n.ID] = n
	l.netOrder = append(l.netOrder, n.ID)
	return n
}

// Net returns the net with the given ID, or nil.
func (l *Layer) Net(id string) *Net {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nets[id]
}

// Nets returns all nets in creation order.
func (l *Layer) Nets() []*Net {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Net, 0, len(l.netOrder))
	for _, id := range l.netOrder {
		out = append(out, l.nets[id])
	}
	return out
}

// Features returns all features, drawing order: pads, traces, vias,
// components on top.
func (l *Layer) Features() []Feature {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Feature, 0, len(l.pads)+len(l.traces)+len(l.vias)+len(l.components))
	for _, p := range l.pads {
		out = append(out, *p)
	}
	for _, t := range l.traces {
		out = append(out, *t)
	}
	for _, v := range l.vias {
		out = append(out, *v)
	}
	for _, c := range l.components {
		out = append(out, *c)
	}
	return out
}

// HitTest returns the topmost feature at (x, y) visible on the given side,
// or nil. Vias hit on either side.
func (l *Layer) HitTest(x, y float64, side image.Side) Feature {
	features := l.Features()
	for i := len(features) - 1; i >= 0; i-- {
		f := features[i]
		fs := f.FeatureSide()
		if fs != image.SideUnknown && side != image.SideUnknown && fs != side {
			continue
		}
		if f.HitTest(x, y) {
			return f
		}
	}
	return nil
}

// Select marks a feature as selected; empty ID clears the selection.
func (l *Layer) Select(id string) {
	l.mu.Lock()
	l.selectedID = id
	l.mu.Unlock()
}

// SelectedID returns the ID of the selected feature, or "".
func (l *Layer) SelectedID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selectedID
}

// AssignNet assigns the feature with the given ID to a net. An empty netID
// unassigns it.
func (l *Layer) AssignNet(featureID, netID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if netID != "" && l.nets[netID] == nil {
		return false
	}

	for _, v := range l.vias {
		if v.ID == featureID {
			v.NetID = netID
			return true
		}
	}
	for _, t := range l.traces {
		if t.ID == featureID {
			t.NetID = netID
			return true
		}
	}
	for _, p := range l.pads {
		if p.ID == featureID {
			p.NetID = netID
			return true
		}
	}
	return false
}

// Remove deletes the feature with the given ID. Returns true if found.
func (l *Layer) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, v := range l.vias {
		if v.ID == id {
			l.vias = append(l.vias[:i], l.vias[i+1:]...)
			return true
		}
	}
	for i, t := range l.traces {
		if t.ID == id {
			l.traces = append(l.traces[:i], l.traces[i+1:]...)
			return true
		}
	}
	for i, p := range l.pads {
		if p.ID == id {
			l.pads = append(l.pads[:i], l.pads[i+1:]...)
			return true
		}
	}
	for i, c := range l.components {
		if c.ID == id {
			l.components = append(l.components[:i], l.components[i+1:]...)
			return true
		}
	}
	return false
}

// FeatureColor returns the effective display color for a feature: its net's
// color when assigned, the selection color when selected, white otherwise.
func (l *Layer) FeatureColor(f Feature) color.RGBA {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if f.FeatureID() == l.selectedID {
		return SelectionColor
	}

	netID := ""
	switch v := f.(type) {
	case Via:
		netID = v.NetID
	case Trace:
		netID = v.NetID
	case Pad:
		netID = v.NetID
	}
	if n := l.nets[netID]; n != nil {
		return n.Color
	}
	return UnassignedColor
}

// Counts returns the number of vias, traces, pads, and components.
func (l *Layer) Counts() (vias, traces, pads, components int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.vias), len(l.traces), len(l.pads), len(l.components)
}

// fileFormat is the on-disk JSON layout for annotations.
type fileFormat struct {
	Version    int          `json:"version"`
	Vias       []*Via       `json:"vias,omitempty"`
	Traces     []*Trace     `json:"traces,omitempty"`
	Pads       []*Pad       `json:"pads,omitempty"`
	Components []*Component `json:"components,omitempty"`
	Nets       []*Net       `json:"nets,omitempty"`
	NextSeq    int          `json:"next_seq"`
}

// Save writes the annotations to a JSON file.
func (l *Layer) Save(path string) error {
	l.mu.RLock()
	f := fileFormat{
		Version:    1,
		Vias:       l.vias,
		Traces:     l.traces,
		Pads:       l.pads,
		Components: l.components,
		NextSeq:    l.nextSeq,
	}
	for _, id := range l.netOrder {
		f.Nets = append(f.Nets, l.nets[id])
	}
	l.mu.RUnlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load replaces the layer contents with annotations from a JSON file.
func (l *Layer) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.vias = f.Vias
	l.traces = f.Traces
	l.pads = f.Pads
	l.components = f.Components
	l.nets = make(map[string]*Net)
	l.netOrder = nil
	for _, n := range f.Nets {
		l.nets[n.ID] = n
		l.netOrder = append(l.netOrder, n.ID)
	}
	l.nextSeq = f.NextSeq
	l.selectedID = ""
	return nil
}
