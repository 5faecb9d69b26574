package landmark

import (
	"fmt"
	"math"
	"sort"

	"pcb-studio/pkg/geometry"
)

// Tie-break thresholds for the flip search. Two hypotheses whose errors are
// within errorTieRatio of each other are considered equivalent fits; the one
// whose rotation is closer to a cardinal orientation wins if the margin
// exceeds rotationTieMargin degrees. errorNoiseFloor keeps the tie rule
// effective when both residuals are at rounding-noise level, where a relative
// comparison alone would never fire.
const (
	errorTieRatio     = 1.05
	errorNoiseFloor   = 1e-9
	rotationTieMargin = 5.0
)

// candidate is one flip hypothesis with its residual error.
type candidate struct {
	transform Transform
	rmsError  float64
	label     string
}

// ComputeWithFlipSearch computes the transform aligning the back landmarks
// onto the front landmarks, trying both mirror axes and returning the better
// hypothesis. Both sets must contain exactly PointsPerImage points, paired by
// index; the pairing is the caller's responsibility.
func ComputeWithFlipSearch(front, back []geometry.Point2D, placement *Placement) (Transform, error) {
	if err := checkCardinality(front, back); err != nil {
		return Transform{}, err
	}

	pivot := flipPivot(back, placement)

	candidates := []candidate{
		buildFlipCandidate(front, back, true, false, pivot),
		buildFlipCandidate(front, back, false, true, pivot),
	}

	return selectCandidate(candidates).transform, nil
}

// selectCandidate picks the winning flip hypothesis: lowest RMS error, with
// near-equal errors broken toward less rotation. Near-equal errors are the
// norm, not the exception: the two mirror axes differ by a 180 degree
// rotation, which the fit absorbs, so both hypotheses describe the same image
// orientation and their residuals agree to rounding noise. The rotation rule
// first compares distance from a cardinal orientation, then plain magnitude,
// which separates the 180-degree-equivalent pair.
func selectCandidate(candidates []candidate) candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].rmsError < candidates[j].rmsError
	})

	best := candidates[0]
	if len(candidates) < 2 {
		return best
	}
	alt := candidates[1]
	if alt.rmsError >= best.rmsError*errorTieRatio+errorNoiseFloor {
		return best
	}

	bestCardinal := rotationFromCardinal(best.transform.RotationDegrees)
	altCardinal := rotationFromCardinal(alt.transform.RotationDegrees)
	if bestCardinal-altCardinal > rotationTieMargin {
		return alt
	}
	if altCardinal-bestCardinal > rotationTieMargin {
		return best
	}

	bestMagnitude := rotationMagnitude(best.transform.RotationDegrees)
	altMagnitude := rotationMagnitude(alt.transform.RotationDegrees)
	if bestMagnitude-altMagnitude > rotationTieMargin {
		return alt
	}
	return best
}

// ComputeNoFlip computes translation, scale, and rotation between two point
// sets that are already consistently oriented (the caller applied the mirror
// flip to the back image beforehand).
func ComputeNoFlip(front, back []geometry.Point2D) (Result, error) {
	if err := checkCardinality(front, back); err != nil {
		return Result{}, err
	}

	frontCentroid := geometry.Centroid(front)
	backCentroid := geometry.Centroid(back)

	centeredFront := centerOn(front, frontCentroid)
	centeredBack := centerOn(back, backCentroid)

	scale := spreadRatio(centeredFront, centeredBack)
	rotation := optimalRotationDegrees(centeredFront, centeredBack)

	// Residuals replay the forward pipeline without any reflection step:
	// center, scale, rotate, then place at the front centroid directly.
	radians := rotation * math.Pi / 180
	var sumSq float64
	for i := range front {
		mapped := centeredBack[i].Scale(scale).Rotate(radians).Add(frontCentroid)
		d := mapped.Distance(front[i])
		sumSq += d * d
	}
	rms := math.Sqrt(sumSq / float64(len(front)))

	return Result{
		TranslateX:      frontCentroid.X - backCentroid.X,
		TranslateY:      frontCentroid.Y - backCentroid.Y,
		Scale:           scale,
		RotationDegrees: rotation,
		RMSError:        rms,
		Quality:         QualityFromError(rms),
	}, nil
}

// ReevaluateQuality recomputes the RMS error and quality score for a
// previously computed transform, replaying the flip with the same pivot rule
// as the search. For a transform returned by ComputeWithFlipSearch on the
// same inputs it reproduces the error that selected it exactly.
func ReevaluateQuality(front, back []geometry.Point2D, t Transform, placement *Placement) (rmsError, quality float64, err error) {
	if err := checkCardinality(front, back); err != nil {
		return 0, 0, err
	}

	pivot := flipPivot(back, placement)
	reflected := reflectAbout(back, pivot, t.FlipHorizontal, t.FlipVertical)
	reflectedCentroid := geometry.Centroid(reflected)

	rms := alignmentError(front, reflected, reflectedCentroid, t)
	return rms, QualityFromError(rms), nil
}

// Matrix expands the transform into a single affine matrix in world
// coordinates, suitable for warping the back image. The composition order
// matches the pipeline the error metric simulates: flip about the pivot,
// recenter on the reflected landmark centroid, scale, rotate, translate.
func (t Transform) Matrix(back []geometry.Point2D, placement *Placement) geometry.AffineTransform {
	pivot := flipPivot(back, placement)

	flip := geometry.Identity()
	if t.FlipHorizontal {
		flip = geometry.ReflectionX(pivot.X).Compose(flip)
	}
	if t.FlipVertical {
		flip = geometry.ReflectionY(pivot.Y).Compose(flip)
	}

	reflected := reflectAbout(back, pivot, t.FlipHorizontal, t.FlipVertical)
	center := geometry.Centroid(reflected)

	radians := t.RotationDegrees * math.Pi / 180
	m := geometry.Translation(center.X+t.TranslateX, center.Y+t.TranslateY)
	m = m.Compose(geometry.Rotation(radians))
	m = m.Compose(geometry.Scaling(t.Scale, t.Scale))
	m = m.Compose(geometry.Translation(-center.X, -center.Y))
	return m.Compose(flip)
}

// buildFlipCandidate computes the best similarity transform under one flip
// hypothesis and scores it.
func buildFlipCandidate(front, back []geometry.Point2D, flipX, flipY bool, pivot geometry.Point2D) candidate {
	reflected := reflectAbout(back, pivot, flipX, flipY)

	reflectedCentroid := geometry.Centroid(reflected)
	frontCentroid := geometry.Centroid(front)

	centeredFront := centerOn(front, frontCentroid)
	centeredReflected := centerOn(reflected, reflectedCentroid)

	scale := spreadRatio(centeredFront, centeredReflected)
	rotation := optimalRotationDegrees(centeredFront, centeredReflected)

	t := Transform{
		FlipHorizontal:  flipX,
		FlipVertical:    flipY,
		RotationDegrees: rotation,
		Scale:           scale,
		TranslateX:      frontCentroid.X - reflectedCentroid.X,
		TranslateY:      frontCentroid.Y - reflectedCentroid.Y,
	}

	label := "flip vertical"
	if flipX {
		label = "flip horizontal"
	}

	return candidate{
		transform: t,
		rmsError:  alignmentError(front, reflected, reflectedCentroid, t),
		label:     label,
	}
}

// alignmentError replays the forward transform per point and returns the RMS
// residual against the front landmarks. The order must match the pipeline
// applied to the actual image (flip is already baked into reflected): center
// on the reflected centroid, scale, rotate, re-offset, translate.
func alignmentError(front, reflected []geometry.Point2D, reflectedCentroid geometry.Point2D, t Transform) float64 {
	radians := t.RotationDegrees * math.Pi / 180
	translate := geometry.Point2D{X: t.TranslateX, Y: t.TranslateY}

	var sumSq float64
	for i := range front {
		mapped := reflected[i].
			Sub(reflectedCentroid).
			Scale(t.Scale).
			Rotate(radians).
			Add(reflectedCentroid).
			Add(translate)
		d := mapped.Distance(front[i])
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(front)))
}

// optimalRotationDegrees returns the least-squares rotation angle mapping
// source onto target. Both sets must be centered on their centroids and
// paired by index.
func optimalRotationDegrees(target, source []geometry.Point2D) float64 {
	var crossSum, dotSum float64
	for i := range target {
		crossSum += source[i].X*target[i].Y - source[i].Y*target[i].X
		dotSum += source[i].X*target[i].X + source[i].Y*target[i].Y
	}
	return math.Atan2(crossSum, dotSum) * 180 / math.Pi
}

// spreadRatio returns the uniform scale factor between two centered point
// sets. Degenerate sets (all points coincident) yield 1 rather than a zero
// or infinite scale.
func spreadRatio(centeredTarget, centeredSource []geometry.Point2D) float64 {
	targetSpread := geometry.AverageRadialDistance(centeredTarget)
	sourceSpread := geometry.AverageRadialDistance(centeredSource)
	if targetSpread == 0 || sourceSpread == 0 {
		return 1
	}
	return targetSpread / sourceSpread
}

// reflectAbout mirrors each point about the pivot along the requested axes.
func reflectAbout(points []geometry.Point2D, pivot geometry.Point2D, flipX, flipY bool) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	for i, p := range points {
		if flipX {
			p.X = 2*pivot.X - p.X
		}
		if flipY {
			p.Y = 2*pivot.Y - p.Y
		}
		out[i] = p
	}
	return out
}

// centerOn subtracts the given centroid from every point.
func centerOn(points []geometry.Point2D, centroid geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	for i, p := range points {
		out[i] = p.Sub(centroid)
	}
	return out
}

// flipPivot picks the mirror pivot: the image's visual center when placement
// info is available, otherwise the centroid of the back landmarks.
func flipPivot(back []geometry.Point2D, placement *Placement) geometry.Point2D {
	if placement != nil {
		return placement.Center()
	}
	return geometry.Centroid(back)
}

// rotationFromCardinal returns the angular distance of a rotation from the
// nearest of 0 or +/-180 degrees. A mirror ambiguity can surface as a
// ~180-degree-rotated equivalent solution, so both count as "no rotation".
func rotationFromCardinal(degrees float64) float64 {
	a := math.Mod(math.Abs(degrees), 360)
	if a > 180 {
		a = 360 - a
	}
	return math.Min(a, 180-a)
}

// rotationMagnitude returns the absolute rotation after normalizing to the
// (-180, 180] range.
func rotationMagnitude(degrees float64) float64 {
	m := math.Mod(degrees, 360)
	if m > 180 {
		m -= 360
	} else if m <= -180 {
		m += 360
	}
	return math.Abs(m)
}

// checkCardinality validates the one precondition the engine enforces.
func checkCardinality(front, back []geometry.Point2D) error {
	if len(front) != PointsPerImage || len(back) != PointsPerImage {
		return fmt.Errorf("%w: got %d front and %d back", ErrLandmarkCount, len(front), len(back))
	}
	return nil
}
