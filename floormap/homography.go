package floormap

import (
	"fmt"
	"math"

	"github.com/kwv/floormesh/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform stored row-major:
// x' = (h0 x + h1 y + h2) / (h6 x + h7 y + h8)
// y' = (h3 x + h4 y + h5) / (h6 x + h7 y + h8)
type Homography [9]float64

// IdentityHomography returns the identity transform
func IdentityHomography() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps a point through the homography. ok is false when the point maps to
// infinity.
func (h Homography) Apply(p geometry.Position) (geometry.Position, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return geometry.Position{}, false
	}
	return geometry.Position{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// Inverse returns the inverse transform, normalized so the last entry is 1.
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, h[:])
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("%w: homography is singular: %v", ErrDegenerateCalibration, err)
	}
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	return out.normalized()
}

func (h Homography) normalized() (Homography, error) {
	if math.Abs(h[8]) < 1e-12 {
		return Homography{}, fmt.Errorf("%w: homography scale is zero", ErrDegenerateCalibration)
	}
	s := h[8]
	for i := range h {
		h[i] /= s
	}
	return h, nil
}

// SolveHomography computes the homography mapping src[i] to dst[i] in the
// least-squares sense. The 2n×9 direct linear transform system is solved with an
// SVD: the solution is the right singular vector of the smallest singular value,
// so over- and exactly-determined point sets are handled the same way.
func SolveHomography(src, dst []geometry.Position) (Homography, error) {
	n := len(src)
	if n < 4 || n != len(dst) {
		return Homography{}, fmt.Errorf("%w: need at least 4 point pairs, got %d/%d", ErrDegenerateCalibration, len(src), len(dst))
	}

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{X, Y, 1, 0, 0, 0, -x * X, -x * Y, -x})
		a.SetRow(2*i+1, []float64{0, 0, 0, X, Y, 1, -y * X, -y * Y, -y})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return Homography{}, fmt.Errorf("%w: SVD did not converge", ErrDegenerateCalibration)
	}
	var v mat.Dense
	svd.VTo(&v)

	var h Homography
	for i := 0; i < 9; i++ {
		h[i] = v.At(i, 8)
	}
	return h.normalized()
}

// quadArea returns the unsigned area of a quadrilateral given in corner order.
func quadArea(q [4]geometry.Position) float64 {
	ring := make(orb.Ring, 0, 5)
	for _, p := range q {
		ring = append(ring, p.Orb())
	}
	ring = append(ring, q[0].Orb())
	return math.Abs(planar.Area(ring))
}
