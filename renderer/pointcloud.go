// Package renderer draws per-frame snapshots of the simulation as a 3D
// point cloud. It owns no simulation state; it consumes value copies.
package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/marcinas/monads/camera"
	"github.com/marcinas/monads/sim"
)

// Input sensitivities.
const (
	orbitSpeed = 0.005
	dollyStep  = 0.9
)

// PointCloud renders particle snapshots inside a wireframe world cube.
type PointCloud struct {
	worldRadius float64
	cam         *camera.Camera
}

// NewPointCloud creates a renderer for a world of the given half-edge.
func NewPointCloud(worldRadius float64) *PointCloud {
	return &PointCloud{
		worldRadius: worldRadius,
		cam:         camera.New(worldRadius),
	}
}

// HandleInput applies mouse orbit and wheel dolly to the camera.
func (r *PointCloud) HandleInput() {
	if rl.IsMouseButtonDown(rl.MouseButtonLeft) {
		delta := rl.GetMouseDelta()
		r.cam.Orbit(float64(delta.X)*orbitSpeed, float64(delta.Y)*orbitSpeed)
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		factor := dollyStep
		if wheel < 0 {
			factor = 1 / dollyStep
		}
		r.cam.Dolly(factor)
	}
}

// Draw renders one snapshot. Monads are spheres colored by charge
// ratio, quanta are points; predicted contacts glow white.
func (r *PointCloud) Draw(views []sim.ParticleView) {
	x, y, z := r.cam.Position()
	cam3d := rl.Camera3D{
		Position:   rl.Vector3{X: float32(x), Y: float32(y), Z: float32(z)},
		Target:     rl.Vector3{},
		Up:         rl.Vector3{Y: 1},
		Fovy:       45,
		Projection: rl.CameraPerspective,
	}

	rl.BeginMode3D(cam3d)

	edge := float32(2 * r.worldRadius)
	rl.DrawCubeWiresV(rl.Vector3{}, rl.Vector3{X: edge, Y: edge, Z: edge}, rl.DarkGray)

	for i := range views {
		v := &views[i]
		pos := rl.Vector3{X: float32(v.Pos.X), Y: float32(v.Pos.Y), Z: float32(v.Pos.Z)}
		col := chargeColor(v.Charge, v.Highlight)
		if v.Quantum {
			rl.DrawPoint3D(pos, col)
			continue
		}
		rl.DrawSphereEx(pos, float32(v.Radius), 6, 8, col)
	}

	rl.EndMode3D()
}

// chargeColor maps attracton fraction onto a red (repulson) to blue
// (attracton) ramp. Highlighted particles flash white.
func chargeColor(charge float64, highlight bool) rl.Color {
	if highlight {
		return rl.White
	}
	b := uint8(255 * charge)
	r := uint8(255 * (1 - charge))
	return rl.Color{R: r, G: 64, B: b, A: 255}
}
