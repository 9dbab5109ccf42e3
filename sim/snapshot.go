package sim

import "gonum.org/v1/gonum/spatial/r3"

// ParticleView is a value copy of one live particle's render-facing
// state. The rendering and statistics collaborators consume snapshots;
// they never alias into the pool.
type ParticleView struct {
	Pos       r3.Vec
	Vel       r3.Vec
	Radius    float64
	Charge    float64 // attracton fraction in [0,1]
	Quantum   bool
	Bonds     int
	Highlight bool
}

// Snapshot appends a view of every live particle to dst and returns the
// slice. Reuse dst across frames to avoid allocations.
func (e *Engine) Snapshot(dst []ParticleView) []ParticleView {
	ps := e.pool.Particles()
	for i := range ps {
		p := &ps[i]
		if p.Radius == 0 {
			continue
		}
		dst = append(dst, ParticleView{
			Pos:       p.Pos,
			Vel:       p.Vel,
			Radius:    p.Radius,
			Charge:    p.ChargeRatio(),
			Quantum:   p.IsQuantum(),
			Bonds:     len(p.Bonds),
			Highlight: p.Highlight,
		})
	}
	return dst
}

// SampleDistributions appends each live particle's mass and speed to
// the given slices, for windowed telemetry aggregation.
func (e *Engine) SampleDistributions(masses, speeds []float64) ([]float64, []float64) {
	ps := e.pool.Particles()
	for i := range ps {
		p := &ps[i]
		if p.Radius == 0 {
			continue
		}
		masses = append(masses, float64(p.Mass()))
		speeds = append(speeds, r3.Norm(p.Vel))
	}
	return masses, speeds
}
