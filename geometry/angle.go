// Package geometry provides the 2D value types shared by every floor transform:
// Cartesian positions, polar vectors, and normalized angles.
package geometry

import (
	"fmt"
	"math"
)

// Unit selects how a raw angle value is interpreted.
type Unit int

const (
	Radians Unit = iota
	Degrees
)

func (u Unit) String() string {
	switch u {
	case Radians:
		return "rad"
	case Degrees:
		return "deg"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// Angle is an orientation stored in radians and always kept in [0, 2π).
// Bearings follow the compass convention: 0 points up, values grow clockwise.
type Angle struct {
	rad float64
}

// NewAngle builds a normalized angle from a value in the given unit.
func NewAngle(value float64, unit Unit) Angle {
	if unit == Degrees {
		value = math.Mod(value, 360) * math.Pi / 180
	}
	return Angle{rad: NormalizeRadians(value)}
}

// AngleFromRadians is shorthand for NewAngle(rad, Radians).
func AngleFromRadians(rad float64) Angle {
	return NewAngle(rad, Radians)
}

// AngleFromDegrees is shorthand for NewAngle(deg, Degrees).
func AngleFromDegrees(deg float64) Angle {
	return NewAngle(deg, Degrees)
}

// NormalizeRadians maps any value into [0, 2π).
func NormalizeRadians(rad float64) float64 {
	rad = math.Mod(rad, 2*math.Pi)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	// math.Mod of a tiny negative value can land exactly on 2π after the shift.
	if rad >= 2*math.Pi {
		rad = 0
	}
	return rad
}

// Normalize returns the angle mapped into its canonical range. Idempotent.
func (a Angle) Normalize() Angle {
	return Angle{rad: NormalizeRadians(a.rad)}
}

// Radians returns the angle in radians, in [0, 2π).
func (a Angle) Radians() float64 {
	return a.rad
}

// Degrees returns the angle in degrees, in [0, 360).
func (a Angle) Degrees() float64 {
	return a.rad * 180 / math.Pi
}

// In returns the raw value in the requested unit.
func (a Angle) In(unit Unit) float64 {
	if unit == Degrees {
		return a.Degrees()
	}
	return a.rad
}

// Add composes two angles.
func (a Angle) Add(b Angle) Angle {
	return AngleFromRadians(a.rad + b.rad)
}

// Sub returns a − b, normalized.
func (a Angle) Sub(b Angle) Angle {
	return AngleFromRadians(a.rad - b.rad)
}

// Neg returns the opposite rotation.
func (a Angle) Neg() Angle {
	return AngleFromRadians(-a.rad)
}

// IsZero reports whether the angle is exactly the canonical zero.
func (a Angle) IsZero() bool {
	return a.rad == 0
}

// Equal compares two angles within tol radians, accounting for wrap-around.
func (a Angle) Equal(b Angle, tol float64) bool {
	d := math.Abs(a.rad - b.rad)
	return d <= tol || 2*math.Pi-d <= tol
}

func (a Angle) String() string {
	return fmt.Sprintf("%.4f°", a.Degrees())
}
