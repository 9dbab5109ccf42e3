// Package camera provides an orbit camera for the 3D viewer.
package camera

import "math"

// Camera orbits the world origin: azimuth and elevation in radians,
// distance in world units. It is raylib-agnostic; the renderer converts
// Position and the origin target into its own camera type.
type Camera struct {
	Azimuth   float64
	Elevation float64
	Distance  float64

	// Distance constraints
	MinDistance, MaxDistance float64
}

// maxElevation stops the orbit just short of the poles to keep the up
// vector well defined.
const maxElevation = math.Pi/2 - 0.01

// New creates a camera looking at the origin from a distance suited to
// a world of the given half-edge.
func New(worldRadius float64) *Camera {
	return &Camera{
		Azimuth:     math.Pi / 4,
		Elevation:   math.Pi / 8,
		Distance:    3 * worldRadius,
		MinDistance: worldRadius / 8,
		MaxDistance: 8 * worldRadius,
	}
}

// Orbit rotates the camera by the given azimuth/elevation deltas,
// clamping elevation short of the poles.
func (c *Camera) Orbit(dAzimuth, dElevation float64) {
	c.Azimuth += dAzimuth
	for c.Azimuth > math.Pi {
		c.Azimuth -= 2 * math.Pi
	}
	for c.Azimuth < -math.Pi {
		c.Azimuth += 2 * math.Pi
	}
	c.Elevation += dElevation
	if c.Elevation > maxElevation {
		c.Elevation = maxElevation
	}
	if c.Elevation < -maxElevation {
		c.Elevation = -maxElevation
	}
}

// Dolly scales the orbit distance; factor > 1 moves away from the
// world, factor < 1 moves in. Clamped to the distance constraints.
func (c *Camera) Dolly(factor float64) {
	c.Distance *= factor
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.Distance > c.MaxDistance {
		c.Distance = c.MaxDistance
	}
}

// Position returns the camera's world-space position.
func (c *Camera) Position() (x, y, z float64) {
	ce := math.Cos(c.Elevation)
	x = c.Distance * ce * math.Cos(c.Azimuth)
	z = c.Distance * ce * math.Sin(c.Azimuth)
	y = c.Distance * math.Sin(c.Elevation)
	return x, y, z
}
