package landmark

import (
	"math"
	"testing"

	"pcb-studio/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An asymmetric quad keeps the two flip hypotheses clearly distinguishable.
func testQuad() []geometry.Point2D {
	return []geometry.Point2D{
		{X: 100, Y: 150},
		{X: 420, Y: 90},
		{X: 390, Y: 360},
		{X: 80, Y: 300},
	}
}

func translatePoints(pts []geometry.Point2D, dx, dy float64) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point2D{X: p.X + dx, Y: p.Y + dy}
	}
	return out
}

func rotatePointsAbout(pts []geometry.Point2D, center geometry.Point2D, degrees float64) []geometry.Point2D {
	radians := degrees * math.Pi / 180
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = p.Sub(center).Rotate(radians).Add(center)
	}
	return out
}

func scalePointsAbout(pts []geometry.Point2D, center geometry.Point2D, factor float64) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = p.Sub(center).Scale(factor).Add(center)
	}
	return out
}

func reflectXPoints(pts []geometry.Point2D, pivotX float64) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point2D{X: 2*pivotX - p.X, Y: p.Y}
	}
	return out
}

func reflectYPoints(pts []geometry.Point2D, pivotY float64) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point2D{X: p.X, Y: 2*pivotY - p.Y}
	}
	return out
}

func TestNoFlipIdentity(t *testing.T) {
	front := testQuad()
	back := testQuad()

	res, err := ComputeNoFlip(front, back)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.Scale, 1e-9)
	assert.InDelta(t, 0.0, res.RotationDegrees, 1e-9)
	assert.InDelta(t, 0.0, res.TranslateX, 1e-9)
	assert.InDelta(t, 0.0, res.TranslateY, 1e-9)
	assert.InDelta(t, 0.0, res.RMSError, 1e-9)
	assert.InDelta(t, 100.0, res.Quality, 1e-9)
}

func TestNoFlipTranslation(t *testing.T) {
	front := testQuad()
	back := translatePoints(front, -37.5, 81.25)

	res, err := ComputeNoFlip(front, back)
	require.NoError(t, err)

	assert.InDelta(t, 37.5, res.TranslateX, 1e-9)
	assert.InDelta(t, -81.25, res.TranslateY, 1e-9)
	assert.InDelta(t, 1.0, res.Scale, 1e-9)
	assert.InDelta(t, 0.0, res.RotationDegrees, 1e-9)
	assert.InDelta(t, 0.0, res.RMSError, 1e-9)
}

func TestNoFlipRotation(t *testing.T) {
	front := testQuad()
	center := geometry.Centroid(front)

	for _, degrees := range []float64{5, 30, 90, -45, 170} {
		back := rotatePointsAbout(front, center, degrees)

		res, err := ComputeNoFlip(front, back)
		require.NoError(t, err)

		// The reported rotation maps the back set onto the front set, so it
		// is the negative of the rotation applied to construct it.
		assert.InDelta(t, -degrees, res.RotationDegrees, 1e-9, "rotation %v", degrees)
		assert.InDelta(t, 1.0, res.Scale, 1e-9)
		assert.InDelta(t, 0.0, res.RMSError, 1e-6)
	}
}

func TestNoFlipScale(t *testing.T) {
	front := testQuad()
	center := geometry.Centroid(front)

	for _, factor := range []float64{0.25, 0.9, 1.1, 3.0} {
		back := scalePointsAbout(front, center, factor)

		res, err := ComputeNoFlip(front, back)
		require.NoError(t, err)

		// Scale maps back onto front: the inverse of the applied factor.
		assert.InDelta(t, 1/factor, res.Scale, 1e-9, "factor %v", factor)
		assert.InDelta(t, 0.0, res.RotationDegrees, 1e-9)
		assert.InDelta(t, 0.0, res.RMSError, 1e-6)
	}
}

func TestNoFlipCombined(t *testing.T) {
	front := testQuad()
	center := geometry.Centroid(front)

	back := rotatePointsAbout(front, center, 40)
	back = scalePointsAbout(back, geometry.Centroid(back), 2)
	back = translatePoints(back, 60, -25)

	res, err := ComputeNoFlip(front, back)
	require.NoError(t, err)

	assert.InDelta(t, -40.0, res.RotationDegrees, 1e-9)
	assert.InDelta(t, 0.5, res.Scale, 1e-9)
	assert.InDelta(t, -60.0, res.TranslateX, 1e-9)
	assert.InDelta(t, 25.0, res.TranslateY, 1e-9)
	assert.InDelta(t, 0.0, res.RMSError, 1e-6)
	assert.InDelta(t, 100.0, res.Quality, 1e-6)
}

// buildMirroredBack constructs a back point set that maps exactly onto front
// under the given flip, rotation, and scale, using the placement center as
// the mirror pivot. Returns the back points and the expected translation.
func buildMirroredBack(front []geometry.Point2D, placement Placement, flipX, flipY bool, degrees, scale float64, backCentroid geometry.Point2D) ([]geometry.Point2D, geometry.Point2D) {
	frontCentroid := geometry.Centroid(front)
	radians := degrees * math.Pi / 180

	// Invert the forward pipeline per point: un-translate, un-rotate,
	// un-scale about the reflected centroid, then mirror about the pivot.
	reflected := make([]geometry.Point2D, len(front))
	for i, f := range front {
		p := f.Sub(frontCentroid).Rotate(-radians).Scale(1 / scale)
		reflected[i] = p.Add(backCentroid)
	}

	pivot := placement.Center()
	back := reflected
	if flipX {
		back = reflectXPoints(back, pivot.X)
	}
	if flipY {
		back = reflectYPoints(back, pivot.Y)
	}

	translate := frontCentroid.Sub(backCentroid)
	return back, translate
}

func TestFlipSearchHorizontal(t *testing.T) {
	front := testQuad()
	placement := &Placement{X: 10, Y: 20, Width: 500, Height: 400, Scale: 1}
	backCentroid := geometry.Point2D{X: 250, Y: 210}

	back, translate := buildMirroredBack(front, *placement, true, false, 25, 1.3, backCentroid)

	tr, err := ComputeWithFlipSearch(front, back, placement)
	require.NoError(t, err)

	assert.True(t, tr.FlipHorizontal)
	assert.False(t, tr.FlipVertical)
	assert.InDelta(t, 25.0, tr.RotationDegrees, 1e-6)
	assert.InDelta(t, 1.3, tr.Scale, 1e-6)
	assert.InDelta(t, translate.X, tr.TranslateX, 1e-6)
	assert.InDelta(t, translate.Y, tr.TranslateY, 1e-6)

	rms, quality, err := ReevaluateQuality(front, back, tr, placement)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rms, 1e-6)
	assert.InDelta(t, 100.0, quality, 1e-6)
}

func TestFlipSearchVertical(t *testing.T) {
	front := testQuad()
	placement := &Placement{X: 0, Y: 0, Width: 520, Height: 420, Scale: 1}
	backCentroid := geometry.Point2D{X: 240, Y: 190}

	back, _ := buildMirroredBack(front, *placement, false, true, -12, 0.85, backCentroid)

	tr, err := ComputeWithFlipSearch(front, back, placement)
	require.NoError(t, err)

	assert.False(t, tr.FlipHorizontal)
	assert.True(t, tr.FlipVertical)
	assert.InDelta(t, -12.0, tr.RotationDegrees, 1e-6)
	assert.InDelta(t, 0.85, tr.Scale, 1e-6)

	rms, _, err := ReevaluateQuality(front, back, tr, placement)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rms, 1e-6)
}

func TestFlipSearchCentroidPivotFallback(t *testing.T) {
	front := testQuad()
	placement := Placement{X: 0, Y: 0, Width: 600, Height: 500, Scale: 1}
	backCentroid := geometry.Point2D{X: 300, Y: 250}

	back, _ := buildMirroredBack(front, placement, true, false, 18, 1.1, backCentroid)

	// Without placement the pivot falls back to the back landmark centroid.
	// The pivot choice shifts only the translation component; flip, rotation,
	// and scale recovery are unaffected, and the expanded matrix must still
	// map the back landmarks onto the front landmarks.
	tr, err := ComputeWithFlipSearch(front, back, nil)
	require.NoError(t, err)

	assert.True(t, tr.FlipHorizontal)
	assert.False(t, tr.FlipVertical)
	assert.InDelta(t, 18.0, tr.RotationDegrees, 1e-6)
	assert.InDelta(t, 1.1, tr.Scale, 1e-6)

	m := tr.Matrix(back, nil)
	for i := range back {
		mapped := m.Apply(back[i])
		assert.InDelta(t, front[i].X, mapped.X, 1e-6)
		assert.InDelta(t, front[i].Y, mapped.Y, 1e-6)
	}
}

func TestFlipSearchWithNoise(t *testing.T) {
	front := testQuad()
	placement := &Placement{X: 0, Y: 0, Width: 520, Height: 420, Scale: 1}
	backCentroid := geometry.Point2D{X: 260, Y: 210}

	back, _ := buildMirroredBack(front, *placement, true, false, 10, 1.0, backCentroid)

	// A few pixels of click error per landmark.
	noise := []geometry.Point2D{{X: 1.5, Y: -2}, {X: -1, Y: 1}, {X: 2, Y: 2}, {X: -1.5, Y: -1}}
	for i := range back {
		back[i] = back[i].Add(noise[i])
	}

	tr, err := ComputeWithFlipSearch(front, back, placement)
	require.NoError(t, err)

	assert.True(t, tr.FlipHorizontal)
	assert.InDelta(t, 10.0, tr.RotationDegrees, 1.0)

	rms, quality, err := ReevaluateQuality(front, back, tr, placement)
	require.NoError(t, err)
	assert.Less(t, rms, 5.0)
	assert.InDelta(t, 100-2*rms, quality, 1e-9)
}

func TestTransformMatrixMatchesErrorPipeline(t *testing.T) {
	front := testQuad()
	placement := &Placement{X: 5, Y: -5, Width: 510, Height: 410, Scale: 1.2}
	backCentroid := geometry.Point2D{X: 255, Y: 205}

	back, _ := buildMirroredBack(front, *placement, true, false, 33, 1.25, backCentroid)

	tr, err := ComputeWithFlipSearch(front, back, placement)
	require.NoError(t, err)

	m := tr.Matrix(back, placement)
	for i := range back {
		mapped := m.Apply(back[i])
		assert.InDelta(t, front[i].X, mapped.X, 1e-6)
		assert.InDelta(t, front[i].Y, mapped.Y, 1e-6)
	}
}

func TestReevaluateQualityMatchesSelection(t *testing.T) {
	front := testQuad()
	placement := &Placement{X: 0, Y: 0, Width: 500, Height: 400, Scale: 1}
	backCentroid := geometry.Point2D{X: 250, Y: 200}

	back, _ := buildMirroredBack(front, *placement, false, true, 7, 1.05, backCentroid)
	// Perturb so the winning error is nonzero.
	back[2] = back[2].Add(geometry.Point2D{X: 3, Y: -4})

	tr, err := ComputeWithFlipSearch(front, back, placement)
	require.NoError(t, err)

	rms, quality, err := ReevaluateQuality(front, back, tr, placement)
	require.NoError(t, err)

	// The re-evaluation must reproduce the internally computed candidate
	// error exactly: it replays the identical pipeline.
	pivot := flipPivot(back, placement)
	reflected := reflectAbout(back, pivot, tr.FlipHorizontal, tr.FlipVertical)
	want := alignmentError(front, reflected, geometry.Centroid(reflected), tr)

	assert.Equal(t, want, rms)
	assert.Equal(t, QualityFromError(want), quality)
}

func TestCardinalityValidation(t *testing.T) {
	four := testQuad()
	three := four[:3]
	five := append(append([]geometry.Point2D{}, four...), geometry.Point2D{X: 1, Y: 1})

	tests := []struct {
		name        string
		front, back []geometry.Point2D
	}{
		{"ThreeFront", three, four},
		{"ThreeBack", four, three},
		{"FiveFront", five, four},
		{"FiveBack", four, five},
		{"Empty", nil, four},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeWithFlipSearch(tt.front, tt.back, nil)
			assert.ErrorIs(t, err, ErrLandmarkCount)

			_, err = ComputeNoFlip(tt.front, tt.back)
			assert.ErrorIs(t, err, ErrLandmarkCount)

			_, _, err = ReevaluateQuality(tt.front, tt.back, Transform{Scale: 1}, nil)
			assert.ErrorIs(t, err, ErrLandmarkCount)
		})
	}
}

func TestDegenerateCoincidentPoints(t *testing.T) {
	p := geometry.Point2D{X: 42, Y: 17}
	coincident := []geometry.Point2D{p, p, p, p}

	res, err := ComputeNoFlip(testQuad(), coincident)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Scale)
	assert.False(t, math.IsNaN(res.RotationDegrees))
	assert.False(t, math.IsInf(res.RMSError, 0))

	tr, err := ComputeWithFlipSearch(coincident, coincident, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, tr.Scale)
	assert.False(t, math.IsNaN(tr.RotationDegrees))
}

func TestQualityFromError(t *testing.T) {
	assert.Equal(t, 100.0, QualityFromError(0))
	assert.Equal(t, 100.0, QualityFromError(-1))
	assert.Equal(t, 0.0, QualityFromError(50))
	assert.Equal(t, 0.0, QualityFromError(75))
	assert.InDelta(t, 50.0, QualityFromError(25), 1e-9)

	// Strictly decreasing on [0, 50].
	prev := QualityFromError(0)
	for rms := 0.5; rms <= 50; rms += 0.5 {
		q := QualityFromError(rms)
		assert.Less(t, q, prev, "rms %v", rms)
		prev = q
	}
}

func TestRotationFromCardinal(t *testing.T) {
	tests := []struct {
		degrees float64
		want    float64
	}{
		{0, 0},
		{5, 5},
		{-5, 5},
		{90, 90},
		{175, 5},
		{180, 0},
		{-180, 0},
		{-170, 10},
		{359, 1},
		{360, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, rotationFromCardinal(tt.degrees), 1e-9, "degrees %v", tt.degrees)
	}
}

func TestRotationMagnitude(t *testing.T) {
	tests := []struct {
		degrees float64
		want    float64
	}{
		{0, 0},
		{12, 12},
		{-12, 12},
		{168, 168},
		{180, 180},
		{-180, 180},
		{190, 170},
		{-190, 170},
		{360, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, rotationMagnitude(tt.degrees), 1e-9, "degrees %v", tt.degrees)
	}
}

func TestSelectCandidateTieBreak(t *testing.T) {
	large := candidate{transform: Transform{FlipHorizontal: true, RotationDegrees: 88}, rmsError: 10.0, label: "flip horizontal"}
	small := candidate{transform: Transform{FlipVertical: true, RotationDegrees: 2}, rmsError: 10.3, label: "flip vertical"}
	nearCardinal := candidate{transform: Transform{FlipVertical: true, RotationDegrees: 178}, rmsError: 10.3, label: "flip vertical"}
	far := candidate{transform: Transform{FlipVertical: true, RotationDegrees: 2}, rmsError: 12.0, label: "flip vertical"}

	tests := []struct {
		name       string
		candidates []candidate
		wantLabel  string
	}{
		// Errors within 5% and the alternate rotates >5 degrees less: the
		// alternate wins despite its slightly larger error.
		{"AlternateWinsTie", []candidate{large, small}, "flip vertical"},
		// 178 degrees normalizes to 2 degrees from cardinal: same outcome.
		{"NearCardinalCountsAsSmall", []candidate{large, nearCardinal}, "flip vertical"},
		// Errors differ by more than 5%: lowest error wins regardless.
		{"ErrorGapKeepsBest", []candidate{large, far}, "flip horizontal"},
		// Rotations within the 5 degree margin: lowest error wins.
		{"RotationMarginKeepsBest", []candidate{
			{transform: Transform{FlipHorizontal: true, RotationDegrees: 6}, rmsError: 10.0, label: "flip horizontal"},
			{transform: Transform{FlipVertical: true, RotationDegrees: 2}, rmsError: 10.3, label: "flip vertical"},
		}, "flip horizontal"},
		// The two mirror axes always produce 180-degree-complementary
		// rotations with equal cardinal distance; the smaller plain
		// magnitude decides.
		{"MirrorEquivalentPrefersSmallRotation", []candidate{
			{transform: Transform{FlipHorizontal: true, RotationDegrees: 170}, rmsError: 10.0, label: "flip horizontal"},
			{transform: Transform{FlipVertical: true, RotationDegrees: -10}, rmsError: 10.0, label: "flip vertical"},
		}, "flip vertical"},
		// Near-zero residuals on both sides still count as a tie even though
		// the relative margin collapses.
		{"NoiseFloorTriggersTie", []candidate{
			{transform: Transform{FlipVertical: true, RotationDegrees: 178}, rmsError: 1e-15, label: "flip vertical"},
			{transform: Transform{FlipHorizontal: true, RotationDegrees: -2}, rmsError: 3e-14, label: "flip horizontal"},
		}, "flip horizontal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectCandidate(append([]candidate{}, tt.candidates...))
			assert.Equal(t, tt.wantLabel, got.label)
		})
	}
}

func TestPlacementCenter(t *testing.T) {
	p := Placement{X: 100, Y: 50, Width: 400, Height: 300, Scale: 0.5}
	c := p.Center()
	assert.InDelta(t, 200.0, c.X, 1e-9)
	assert.InDelta(t, 125.0, c.Y, 1e-9)

	// Zero scale is treated as unscaled.
	p = Placement{X: 0, Y: 0, Width: 200, Height: 100}
	c = p.Center()
	assert.InDelta(t, 100.0, c.X, 1e-9)
	assert.InDelta(t, 50.0, c.Y, 1e-9)
}
