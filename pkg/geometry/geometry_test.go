package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCentroid(t *testing.T) {
	pts := []Point2D{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 2}, {X: 0, Y: 2}}
	c := Centroid(pts)
	assert.InDelta(t, 2.0, c.X, 1e-9)
	assert.InDelta(t, 1.0, c.Y, 1e-9)

	assert.Equal(t, Point2D{}, Centroid(nil))
}

func TestAverageRadialDistance(t *testing.T) {
	// Four unit-circle points centered at the origin.
	pts := GenerateCirclePoints(0, 0, 1, 4)
	assert.InDelta(t, 1.0, AverageRadialDistance(pts), 1e-9)

	assert.Equal(t, 0.0, AverageRadialDistance(nil))
	assert.Equal(t, 0.0, AverageRadialDistance([]Point2D{{X: 0, Y: 0}}))
}

func TestPointRotate(t *testing.T) {
	p := Point2D{X: 1, Y: 0}
	r := p.Rotate(math.Pi / 2)
	assert.InDelta(t, 0.0, r.X, 1e-9)
	assert.InDelta(t, 1.0, r.Y, 1e-9)
}

func TestAffineCompose(t *testing.T) {
	// Rotate then translate, as one matrix.
	m := Translation(10, 5).Compose(Rotation(math.Pi / 2))
	p := m.Apply(Point2D{X: 1, Y: 0})
	assert.InDelta(t, 10.0, p.X, 1e-9)
	assert.InDelta(t, 6.0, p.Y, 1e-9)
}

func TestAffineInverse(t *testing.T) {
	m := Translation(3, -7).Compose(Rotation(0.4)).Compose(Scaling(2, 2))
	inv, ok := m.Inverse()
	assert.True(t, ok)

	p := Point2D{X: 12, Y: -3}
	round := inv.Apply(m.Apply(p))
	assert.InDelta(t, p.X, round.X, 1e-9)
	assert.InDelta(t, p.Y, round.Y, 1e-9)

	_, ok = Scaling(0, 0).Inverse()
	assert.False(t, ok)
}

func TestReflections(t *testing.T) {
	p := Point2D{X: 3, Y: 4}

	rx := ReflectionX(10).Apply(p)
	assert.InDelta(t, 17.0, rx.X, 1e-9)
	assert.InDelta(t, 4.0, rx.Y, 1e-9)

	ry := ReflectionY(-2).Apply(p)
	assert.InDelta(t, 3.0, ry.X, 1e-9)
	assert.InDelta(t, -8.0, ry.Y, 1e-9)

	// Reflecting twice about the same axis is the identity.
	round := ReflectionX(10).Apply(rx)
	assert.InDelta(t, p.X, round.X, 1e-9)
}

func TestBoundingBox(t *testing.T) {
	pts := []Point2D{{X: 2, Y: 9}, {X: -1, Y: 4}, {X: 7, Y: 6}}
	r := BoundingBox(pts)
	assert.Equal(t, Rect{X: -1, Y: 4, Width: 8, Height: 5}, r)
}

func TestPointInPolygon(t *testing.T) {
	square := []Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	assert.True(t, PointInPolygon(Point2D{X: 5, Y: 5}, square))
	assert.False(t, PointInPolygon(Point2D{X: 15, Y: 5}, square))
	assert.False(t, PointInPolygon(Point2D{X: 5, Y: 5}, square[:2]))
}

func TestDistanceToSegment(t *testing.T) {
	a := Point2D{X: 0, Y: 0}
	b := Point2D{X: 10, Y: 0}

	assert.InDelta(t, 3.0, DistanceToSegment(Point2D{X: 5, Y: 3}, a, b), 1e-9)
	assert.InDelta(t, 5.0, DistanceToSegment(Point2D{X: -3, Y: 4}, a, b), 1e-9)
	assert.InDelta(t, 2.0, DistanceToSegment(Point2D{X: 12, Y: 0}, a, b), 1e-9)
	// Zero-length segment degenerates to point distance.
	assert.InDelta(t, 5.0, DistanceToSegment(Point2D{X: 3, Y: 4}, a, a), 1e-9)
}
