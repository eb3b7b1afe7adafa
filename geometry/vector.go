package geometry

import (
	"fmt"
	"math"
)

// Vector is a polar displacement: a bearing and a length.
type Vector struct {
	Direction Angle
	Magnitude float64
}

func (v Vector) String() string {
	return fmt.Sprintf("Vector(direction=%s, magnitude=%g)", v.Direction, v.Magnitude)
}

// Add sums directions and magnitudes componentwise.
func (v Vector) Add(o Vector) Vector {
	return Vector{Direction: v.Direction.Add(o.Direction), Magnitude: v.Magnitude + o.Magnitude}
}

// Sub subtracts directions and magnitudes componentwise.
func (v Vector) Sub(o Vector) Vector {
	return Vector{Direction: v.Direction.Sub(o.Direction), Magnitude: v.Magnitude - o.Magnitude}
}

// Neg negates both components.
func (v Vector) Neg() Vector {
	return Vector{Direction: v.Direction.Neg(), Magnitude: -v.Magnitude}
}

// Pos returns an identical copy.
func (v Vector) Pos() Vector { return v }

// ToPosition converts to Cartesian with x = m·sin(dir), y = m·cos(dir).
func (v Vector) ToPosition() Position {
	s, c := math.Sincos(v.Direction.Radians())
	return Position{X: v.Magnitude * s, Y: v.Magnitude * c}
}

// VectorFromPosition is the inverse of ToPosition.
func VectorFromPosition(p Position) Vector {
	return Vector{
		Direction: AngleFromRadians(math.Atan2(p.X, p.Y)),
		Magnitude: p.Norm(),
	}
}
