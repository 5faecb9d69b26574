package app

import (
	"path/filepath"
	"testing"

	"pcb-studio/internal/image"
	"pcb-studio/internal/landmark"
	"pcb-studio/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeLandmarks(s *State, side image.Side, pts []geometry.Point2D) {
	for _, p := range pts {
		s.AddLandmark(side, p)
	}
}

func TestAddLandmarkCap(t *testing.T) {
	s := NewState()

	for i := 0; i < landmark.PointsPerImage; i++ {
		assert.True(t, s.AddLandmark(image.SideFront, geometry.Point2D{X: float64(i)}))
	}
	assert.False(t, s.AddLandmark(image.SideFront, geometry.Point2D{X: 99}))
	assert.Len(t, s.Landmarks(image.SideFront), landmark.PointsPerImage)
}

func TestLandmarkEditsInvalidateAlignment(t *testing.T) {
	s := NewState()
	front := []geometry.Point2D{{X: 10, Y: 10}, {X: 200, Y: 20}, {X: 180, Y: 150}, {X: 30, Y: 140}}
	back := []geometry.Point2D{{X: -10, Y: 10}, {X: -200, Y: 20}, {X: -180, Y: 150}, {X: -30, Y: 140}}
	placeLandmarks(s, image.SideFront, front)
	placeLandmarks(s, image.SideBack, back)

	require.NoError(t, s.Align())
	assert.True(t, s.Aligned)
	require.NotNil(t, s.AlignTransform)

	s.MoveLandmark(image.SideBack, 0, geometry.Point2D{X: -12, Y: 11})
	assert.False(t, s.Aligned)
	assert.Nil(t, s.AlignTransform)
}

func TestAlignMirroredLandmarks(t *testing.T) {
	s := NewState()
	front := []geometry.Point2D{{X: 10, Y: 10}, {X: 200, Y: 20}, {X: 180, Y: 150}, {X: 30, Y: 140}}

	// Back landmarks are the front set mirrored about x = 0.
	back := make([]geometry.Point2D, len(front))
	for i, p := range front {
		back[i] = geometry.Point2D{X: -p.X, Y: p.Y}
	}
	placeLandmarks(s, image.SideFront, front)
	placeLandmarks(s, image.SideBack, back)

	require.NoError(t, s.Align())
	require.NotNil(t, s.AlignTransform)
	assert.True(t, s.AlignTransform.FlipHorizontal)
	assert.False(t, s.AlignTransform.FlipVertical)
	assert.InDelta(t, 0, s.AlignmentError, 1e-9)
	assert.InDelta(t, 100, s.Quality, 1e-9)
	require.NotNil(t, s.Keystone)
	assert.False(t, s.Keystone.Suspect)
}

func TestAlignRequiresFourPoints(t *testing.T) {
	s := NewState()
	placeLandmarks(s, image.SideFront, []geometry.Point2D{{X: 1}, {X: 2}})
	placeLandmarks(s, image.SideBack, []geometry.Point2D{{X: 1}, {X: 2}})

	err := s.Align()
	require.Error(t, err)
	assert.ErrorIs(t, err, landmark.ErrLandmarkCount)
	assert.False(t, s.Aligned)
}

func TestProjectSaveLoadRoundTrip(t *testing.T) {
	s := NewState()
	front := []geometry.Point2D{{X: 10, Y: 10}, {X: 200, Y: 20}, {X: 180, Y: 150}, {X: 30, Y: 140}}
	back := make([]geometry.Point2D, len(front))
	for i, p := range front {
		back[i] = geometry.Point2D{X: -p.X, Y: p.Y}
	}
	placeLandmarks(s, image.SideFront, front)
	placeLandmarks(s, image.SideBack, back)
	require.NoError(t, s.Align())
	s.Annotations.AddVia(50, 60, 8)

	path := filepath.Join(t.TempDir(), "board.pcbproj")
	require.NoError(t, s.SaveProject(path))
	assert.False(t, s.Modified)

	loaded := NewState()
	require.NoError(t, loaded.LoadProject(path))

	assert.Equal(t, s.Landmarks(image.SideFront), loaded.Landmarks(image.SideFront))
	assert.Equal(t, s.Landmarks(image.SideBack), loaded.Landmarks(image.SideBack))
	assert.True(t, loaded.Aligned)
	require.NotNil(t, loaded.AlignTransform)
	assert.Equal(t, *s.AlignTransform, *loaded.AlignTransform)
	assert.Equal(t, s.AlignmentError, loaded.AlignmentError)
	assert.Equal(t, s.Quality, loaded.Quality)

	vias, _, _, _ := loaded.Annotations.Counts()
	assert.Equal(t, 1, vias)
}

func TestEvents(t *testing.T) {
	s := NewState()

	var got []EventType
	s.On(EventLandmarksChanged, func(data interface{}) { got = append(got, EventLandmarksChanged) })
	s.On(EventModified, func(data interface{}) { got = append(got, EventModified) })

	s.AddLandmark(image.SideFront, geometry.Point2D{X: 1, Y: 2})

	assert.Contains(t, got, EventLandmarksChanged)
	assert.Contains(t, got, EventModified)
}
