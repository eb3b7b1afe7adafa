package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func positionsEqual(a, b Position) bool {
	return almostEqual(a.X, b.X) && almostEqual(a.Y, b.Y)
}

var samplePositions = []Position{
	{0, 0},
	{1, 2},
	{-3.5, 4.25},
	{100, -7},
	{-0.001, -12345.5},
}

func TestPosition_SubIsAntisymmetric(t *testing.T) {
	for _, a := range samplePositions {
		for _, b := range samplePositions {
			if got, want := a.Sub(b), b.Sub(a).Neg(); got != want {
				t.Errorf("%v - %v = %v, want %v", a, b, got, want)
			}
		}
	}
}

func TestPosition_SelfDistanceIsZero(t *testing.T) {
	for _, a := range samplePositions {
		if n := a.Sub(a).Norm(); n != 0 {
			t.Errorf("|%v - %v| = %v, want 0", a, a, n)
		}
		if d := a.DistanceTo(a); d != 0 {
			t.Errorf("distance(%v, %v) = %v, want 0", a, a, d)
		}
	}
}

func TestPosition_DistanceIsSymmetric(t *testing.T) {
	for _, a := range samplePositions {
		for _, b := range samplePositions {
			if a.DistanceTo(b) != b.DistanceTo(a) {
				t.Errorf("distance(%v, %v) != distance(%v, %v)", a, b, b, a)
			}
		}
	}
	assert.InDelta(t, 5.0, Pt(0, 0).DistanceTo(Pt(3, 4)), epsilon)
}

func TestPosition_Elementwise(t *testing.T) {
	a := Pt(7, -9)
	b := Pt(2, 4)

	tests := []struct {
		name string
		got  Position
		want Position
	}{
		{"add", a.Add(b), Pt(9, -5)},
		{"sub", a.Sub(b), Pt(5, -13)},
		{"mul", a.Mul(b), Pt(14, -36)},
		{"div", a.Div(b), Pt(3.5, -2.25)},
		{"floordiv", a.FloorDiv(b), Pt(3, -3)},
		{"mod", a.Mod(b), Pt(1, 3)},
		{"pow", a.Pow(b), Pt(49, 6561)},
		{"add scalar", a.AddScalar(1), Pt(8, -8)},
		{"sub scalar", a.SubScalar(1), Pt(6, -10)},
		{"mul scalar", a.MulScalar(2), Pt(14, -18)},
		{"div scalar", a.DivScalar(2), Pt(3.5, -4.5)},
		{"floordiv scalar", a.FloorDivScalar(2), Pt(3, -5)},
		{"mod scalar", a.ModScalar(4), Pt(3, 3)},
		{"pow scalar", a.PowScalar(2), Pt(49, 81)},
		{"neg", a.Neg(), Pt(-7, 9)},
		{"pos", a.Pos(), a},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !positionsEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestPosition_DivideByZeroComponent(t *testing.T) {
	got := Pt(1, -1).Div(Pt(0, 0))
	assert.True(t, math.IsInf(got.X, 1))
	assert.True(t, math.IsInf(got.Y, -1))
}

func TestPosition_At(t *testing.T) {
	p := Pt(3, 4)

	x, err := p.At(0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, x)

	y, err := p.At(1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, y)

	for _, i := range []int{-1, 2, 10} {
		_, err := p.At(i)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange), "index %d", i)
	}

	q, err := p.WithAt(1, 9)
	require.NoError(t, err)
	assert.Equal(t, Pt(3, 9), q)
	assert.Equal(t, Pt(3, 4), p, "WithAt must not modify the receiver")

	_, err = p.WithAt(2, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestPosition_BearingTo(t *testing.T) {
	origin := Pt(0, 0)

	tests := []struct {
		name  string
		from  Position
		other Position
		deg   float64
	}{
		{"toward below", origin, Pt(0, -1), 180},
		{"toward left", origin, Pt(-1, 0), 270},
		{"toward above", origin, Pt(0, 1), 0},
		{"toward right", origin, Pt(1, 0), 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.from.BearingTo(tt.other)
			assert.True(t, got.Equal(AngleFromDegrees(tt.deg), 1e-9), "got %v want %v°", got, tt.deg)
			assert.GreaterOrEqual(t, got.Radians(), 0.0)
			assert.Less(t, got.Radians(), 2*math.Pi)
		})
	}
}

func TestPosition_OrbRoundTrip(t *testing.T) {
	for _, p := range samplePositions {
		assert.Equal(t, p, PositionFromOrb(p.Orb()))
	}
}

func TestAngle_NormalizeIdempotentAndInRange(t *testing.T) {
	values := []float64{0, 1, -1, math.Pi, 2 * math.Pi, -2 * math.Pi, 7 * math.Pi, -1e-17, 1e6, -1e6}
	for _, v := range values {
		a := AngleFromRadians(v)
		n := a.Normalize()
		if n != n.Normalize() {
			t.Errorf("normalize not idempotent for %v: %v vs %v", v, n, n.Normalize())
		}
		if n.Radians() < 0 || n.Radians() >= 2*math.Pi {
			t.Errorf("normalize(%v) = %v out of range", v, n.Radians())
		}
	}
}

func TestAngle_Units(t *testing.T) {
	a := NewAngle(450, Degrees)
	assert.InDelta(t, 90, a.Degrees(), epsilon)
	assert.InDelta(t, math.Pi/2, a.Radians(), epsilon)
	assert.InDelta(t, 90, a.In(Degrees), epsilon)
	assert.InDelta(t, math.Pi/2, a.In(Radians), epsilon)

	b := NewAngle(-90, Degrees)
	assert.InDelta(t, 270, b.Degrees(), epsilon)

	assert.Equal(t, "deg", Degrees.String())
	assert.Equal(t, "rad", Radians.String())
}

func TestAngle_Arithmetic(t *testing.T) {
	a := AngleFromDegrees(350)
	b := AngleFromDegrees(20)

	assert.InDelta(t, 10, a.Add(b).Degrees(), 1e-9)
	assert.InDelta(t, 330, a.Sub(b).Degrees(), 1e-9)
	assert.InDelta(t, 10, a.Neg().Degrees(), 1e-9)
	assert.True(t, AngleFromDegrees(360).IsZero())
	assert.True(t, AngleFromDegrees(359.9999999999).Equal(AngleFromDegrees(0), 1e-6))
}

func TestVector_ToPosition(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		want Position
	}{
		{"up", Vector{AngleFromDegrees(0), 2}, Pt(0, 2)},
		{"right", Vector{AngleFromDegrees(90), 2}, Pt(2, 0)},
		{"down", Vector{AngleFromDegrees(180), 1}, Pt(0, -1)},
		{"left", Vector{AngleFromDegrees(270), 3}, Pt(-3, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.ToPosition()
			if !positionsEqual(got, tt.want) {
				t.Errorf("ToPosition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVector_FromPositionInverse(t *testing.T) {
	for _, p := range samplePositions[1:] {
		back := VectorFromPosition(p).ToPosition()
		assert.InDelta(t, p.X, back.X, 1e-6)
		assert.InDelta(t, p.Y, back.Y, 1e-6)
	}
}

func TestVector_Arithmetic(t *testing.T) {
	a := Vector{AngleFromDegrees(30), 5}
	b := Vector{AngleFromDegrees(45), 2}

	sum := a.Add(b)
	assert.InDelta(t, 75, sum.Direction.Degrees(), 1e-9)
	assert.Equal(t, 7.0, sum.Magnitude)

	diff := a.Sub(b)
	assert.InDelta(t, 345, diff.Direction.Degrees(), 1e-9)
	assert.Equal(t, 3.0, diff.Magnitude)

	neg := a.Neg()
	assert.InDelta(t, 330, neg.Direction.Degrees(), 1e-9)
	assert.Equal(t, -5.0, neg.Magnitude)
	assert.Equal(t, a, a.Pos())
}
