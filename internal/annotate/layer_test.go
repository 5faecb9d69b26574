package annotate

import (
	"path/filepath"
	"testing"

	pcbimage "pcb-studio/internal/image"
	"pcb-studio/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViaHitTest(t *testing.T) {
	l := NewLayer()
	v := l.AddVia(100, 100, 8)

	assert.True(t, v.HitTest(100, 100))
	assert.True(t, v.HitTest(105, 105))
	assert.False(t, v.HitTest(110, 110))
}

func TestTraceHitTest(t *testing.T) {
	l := NewLayer()
	tr := l.AddTrace([]geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 50}}, 6, pcbimage.SideFront)

	// Within width/2 + 3 of a segment.
	assert.True(t, tr.HitTest(50, 5))
	assert.True(t, tr.HitTest(100, 25))
	assert.False(t, tr.HitTest(50, 20))
}

func TestComponentHitTest(t *testing.T) {
	l := NewLayer()
	outline := []geometry.Point2D{{X: 10, Y: 10}, {X: 60, Y: 10}, {X: 60, Y: 40}, {X: 10, Y: 40}}
	c := l.AddComponent("U1", outline, pcbimage.SideFront)

	assert.True(t, c.HitTest(30, 20))
	assert.False(t, c.HitTest(70, 20))
}

func TestLayerHitTestRespectsSide(t *testing.T) {
	l := NewLayer()
	l.AddTrace([]geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}}, 6, pcbimage.SideBack)
	via := l.AddVia(50, 0, 5)

	// Back trace is not hit from the front, but the via is (vias span sides).
	got := l.HitTest(50, 1, pcbimage.SideFront)
	require.NotNil(t, got)
	assert.Equal(t, via.ID, got.FeatureID())

	got = l.HitTest(10, 1, pcbimage.SideFront)
	assert.Nil(t, got)

	got = l.HitTest(10, 1, pcbimage.SideBack)
	require.NotNil(t, got)
	assert.Equal(t, "trace", got.FeatureKind())
}

func TestNetAssignment(t *testing.T) {
	l := NewLayer()
	v := l.AddVia(10, 10, 5)
	gnd := l.AddNet("GND", NetGround)

	assert.True(t, l.AssignNet(v.ID, gnd.ID))
	assert.False(t, l.AssignNet(v.ID, "no-such-net"))
	assert.False(t, l.AssignNet("no-such-feature", gnd.ID))

	// Effective color comes from the net.
	features := l.Features()
	require.Len(t, features, 1)
	assert.Equal(t, gnd.Color, l.FeatureColor(features[0]))
}

func TestSelectionColor(t *testing.T) {
	l := NewLayer()
	v := l.AddVia(10, 10, 5)

	l.Select(v.ID)
	features := l.Features()
	require.Len(t, features, 1)
	assert.Equal(t, SelectionColor, l.FeatureColor(features[0]))

	l.Select("")
	assert.Equal(t, UnassignedColor, l.FeatureColor(features[0]))
}

func TestRemove(t *testing.T) {
	l := NewLayer()
	v := l.AddVia(10, 10, 5)
	tr := l.AddTrace([]geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}}, 4, pcbimage.SideFront)

	assert.True(t, l.Remove(v.ID))
	assert.False(t, l.Remove(v.ID))
	assert.True(t, l.Remove(tr.ID))

	vias, traces, pads, comps := l.Counts()
	assert.Zero(t, vias+traces+pads+comps)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	l := NewLayer()
	v := l.AddVia(100, 200, 8)
	l.AddTrace([]geometry.Point2D{{X: 0, Y: 0}, {X: 50, Y: 50}}, 6, pcbimage.SideFront)
	l.AddPad(geometry.Rect{X: 10, Y: 10, Width: 20, Height: 10}, pcbimage.SideBack)
	l.AddComponent("U7", []geometry.Point2D{{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 20}, {X: 0, Y: 20}}, pcbimage.SideFront)
	vcc := l.AddNet("VCC", NetPower)
	require.True(t, l.AssignNet(v.ID, vcc.ID))

	path := filepath.Join(t.TempDir(), "annotations.json")
	require.NoError(t, l.Save(path))

	loaded := NewLayer()
	require.NoError(t, loaded.Load(path))

	vias, traces, pads, comps := loaded.Counts()
	assert.Equal(t, 1, vias)
	assert.Equal(t, 1, traces)
	assert.Equal(t, 1, pads)
	assert.Equal(t, 1, comps)

	nets := loaded.Nets()
	require.Len(t, nets, 1)
	assert.Equal(t, "VCC", nets[0].Name)
	assert.Equal(t, NetPower, nets[0].Class)

	// IDs keep incrementing past loaded content.
	v2 := loaded.AddVia(1, 1, 2)
	assert.NotEqual(t, v.ID, v2.ID)
}
