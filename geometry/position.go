package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrIndexOutOfRange is returned for axis access other than 0 (x) or 1 (y).
var ErrIndexOutOfRange = errors.New("geometry: index out of range")

// Position is a Cartesian point in pixel or grid units.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Position{X: x, Y: y}.
func Pt(x, y float64) Position {
	return Position{X: x, Y: y}
}

func (p Position) String() string {
	return fmt.Sprintf("Position(%g, %g)", p.X, p.Y)
}

// Elementwise operations between two positions.

func (p Position) Add(o Position) Position { return Position{p.X + o.X, p.Y + o.Y} }
func (p Position) Sub(o Position) Position { return Position{p.X - o.X, p.Y - o.Y} }
func (p Position) Mul(o Position) Position { return Position{p.X * o.X, p.Y * o.Y} }
func (p Position) Div(o Position) Position { return Position{p.X / o.X, p.Y / o.Y} }

// FloorDiv divides elementwise and rounds toward negative infinity.
func (p Position) FloorDiv(o Position) Position {
	return Position{math.Floor(p.X / o.X), math.Floor(p.Y / o.Y)}
}

// Mod is the floored modulo: the result takes the sign of the divisor.
func (p Position) Mod(o Position) Position {
	return Position{floorMod(p.X, o.X), floorMod(p.Y, o.Y)}
}

func (p Position) Pow(o Position) Position {
	return Position{math.Pow(p.X, o.X), math.Pow(p.Y, o.Y)}
}

// Scalar-broadcast variants.

func (p Position) AddScalar(s float64) Position { return Position{p.X + s, p.Y + s} }
func (p Position) SubScalar(s float64) Position { return Position{p.X - s, p.Y - s} }
func (p Position) MulScalar(s float64) Position { return Position{p.X * s, p.Y * s} }
func (p Position) DivScalar(s float64) Position { return Position{p.X / s, p.Y / s} }

func (p Position) FloorDivScalar(s float64) Position {
	return Position{math.Floor(p.X / s), math.Floor(p.Y / s)}
}

func (p Position) ModScalar(s float64) Position {
	return Position{floorMod(p.X, s), floorMod(p.Y, s)}
}

func (p Position) PowScalar(s float64) Position {
	return Position{math.Pow(p.X, s), math.Pow(p.Y, s)}
}

// Neg returns (−x, −y).
func (p Position) Neg() Position { return Position{-p.X, -p.Y} }

// Pos returns an identical copy.
func (p Position) Pos() Position { return p }

// Norm is the Euclidean length |p|.
func (p Position) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// At returns the component at index 0 (x) or 1 (y).
func (p Position) At(i int) (float64, error) {
	switch i {
	case 0:
		return p.X, nil
	case 1:
		return p.Y, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
}

// WithAt returns a copy with component i replaced.
func (p Position) WithAt(i int, v float64) (Position, error) {
	switch i {
	case 0:
		p.X = v
	case 1:
		p.Y = v
	default:
		return p, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return p, nil
}

// DistanceTo is the Euclidean distance |p − o|. Symmetric.
func (p Position) DistanceTo(o Position) float64 {
	return planar.Distance(p.Orb(), o.Orb())
}

// BearingTo returns atan2(dx, dy) + π for d = p − o, normalized. That is the
// compass bearing (0 = up, clockwise) of the ray from p toward o.
func (p Position) BearingTo(o Position) Angle {
	d := p.Sub(o)
	return AngleFromRadians(math.Atan2(d.X, d.Y)).Add(AngleFromDegrees(180))
}

// Orb converts to an orb.Point.
func (p Position) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// PositionFromOrb converts from an orb.Point.
func PositionFromOrb(pt orb.Point) Position {
	return Position{X: pt.X(), Y: pt.Y()}
}

func floorMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}
