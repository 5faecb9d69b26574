package landmark

import (
	"fmt"
	"math"

	"pcb-studio/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// A similarity fit can only be as good as the photos allow: keystone or shear
// in either photo shows up as a similarity residual well above the residual
// of an unconstrained affine fit. KeystoneCheck quantifies that gap so the UI
// can warn the user to re-shoot rather than chase landmark placement.

// KeystoneReport compares the best similarity fit against the best affine fit
// of the same landmark pairs.
type KeystoneReport struct {
	SimilarityRMS float64
	AffineRMS     float64
	Suspect       bool
}

// keystoneRatio is how much worse the similarity residual must be than the
// affine residual before the geometry is flagged. The affine fit of 4 points
// is nearly exact, so only a clear gap is meaningful.
const keystoneRatio = 3.0

// KeystoneCheck fits an unconstrained affine transform to the landmark pairs
// and reports whether the similarity residual suggests perspective distortion
// in the photos. The back points must already be consistently oriented
// (reflected) with the front points.
func KeystoneCheck(front, back []geometry.Point2D, similarityRMS float64) (KeystoneReport, error) {
	if err := checkCardinality(front, back); err != nil {
		return KeystoneReport{}, err
	}

	affine, err := fitAffineLeastSquares(back, front)
	if err != nil {
		return KeystoneReport{}, err
	}

	var sumSq float64
	for i := range back {
		d := affine.Apply(back[i]).Distance(front[i])
		sumSq += d * d
	}
	affineRMS := math.Sqrt(sumSq / float64(len(back)))

	suspect := similarityRMS > 2 && similarityRMS > affineRMS*keystoneRatio
	return KeystoneReport{
		SimilarityRMS: similarityRMS,
		AffineRMS:     affineRMS,
		Suspect:       suspect,
	}, nil
}

// fitAffineLeastSquares computes the least-squares affine transform mapping
// src onto dst using QR decomposition.
func fitAffineLeastSquares(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	n := len(src)
	if n < 3 {
		return geometry.AffineTransform{}, fmt.Errorf("need at least 3 points, got %d", n)
	}

	// [x', y'] = [a, b, tx; c, d, ty] * [x, y, 1]
	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, xp)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, yp)
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.AffineTransform{}, err
	}

	return geometry.AffineTransform{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		TX: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		TY: params.AtVec(5),
	}, nil
}
