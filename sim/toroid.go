package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// axisDelta returns the shortest signed delta from a to b on one axis of
// the wrap-around cube [-worldRadius, worldRadius). The mirrored position
// is only considered when either coordinate lies within margin of a face;
// margin <= 0 always considers it (the exact check).
func axisDelta(a, b, worldRadius, margin float64) float64 {
	d := b - a
	if margin > 0 && worldRadius-math.Abs(a) > margin && worldRadius-math.Abs(b) > margin {
		return d
	}
	span := 2 * worldRadius
	if d > worldRadius {
		d -= span
	} else if d < -worldRadius {
		d += span
	}
	return d
}

// ToroidalDelta returns the shortest vector from a to b in the toroidal
// world, treating each axis independently. margin bounds which axes are
// checked against their mirror: 0 forces the full exact check, a radius
// or cell-size margin is the fast approximation for routine collision
// and bonding tests.
func ToroidalDelta(a, b r3.Vec, worldRadius, margin float64) r3.Vec {
	return r3.Vec{
		X: axisDelta(a.X, b.X, worldRadius, margin),
		Y: axisDelta(a.Y, b.Y, worldRadius, margin),
		Z: axisDelta(a.Z, b.Z, worldRadius, margin),
	}
}

// ToroidalDist returns the shortest distance between a and b in the
// toroidal world. It is symmetric, and with margin 0 never exceeds the
// plain Euclidean distance.
func ToroidalDist(a, b r3.Vec, worldRadius, margin float64) float64 {
	return r3.Norm(ToroidalDelta(a, b, worldRadius, margin))
}

// wrapCoord mirrors a coordinate that left [-worldRadius, worldRadius)
// to the opposite face, offset by however far it overshot.
func wrapCoord(v, worldRadius float64) float64 {
	span := 2 * worldRadius
	for v >= worldRadius {
		v -= span
	}
	for v < -worldRadius {
		v += span
	}
	return v
}

// wrapVec applies wrapCoord per axis.
func wrapVec(v r3.Vec, worldRadius float64) r3.Vec {
	return r3.Vec{
		X: wrapCoord(v.X, worldRadius),
		Y: wrapCoord(v.Y, worldRadius),
		Z: wrapCoord(v.Z, worldRadius),
	}
}

// clampSpeed rescales v so its norm does not exceed maxSpeed.
func clampSpeed(v r3.Vec, maxSpeed float64) r3.Vec {
	n := r3.Norm(v)
	if n <= maxSpeed || n == 0 {
		return v
	}
	return r3.Scale(maxSpeed/n, v)
}
