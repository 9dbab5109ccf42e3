package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// maintainBonds classifies each bonded neighbor by the surface gap
// ratio (gap / combined radius): below the merge threshold the pair
// collapses, above the break threshold the bond snaps, outside the
// [push_out, pull_in] rest band the neighbor is nudged back toward it.
// Returns false when the acting particle merged away.
func (e *Engine) maintainBonds(i int32, st *TickStats) bool {
	cfg := e.cfg
	ps := e.pool.Particles()
	p := &ps[i]

	for k := 0; k < len(p.Bonds); {
		j := p.Bonds[k]
		q := &ps[j]
		if q.Radius == 0 {
			// Stale partner; a recycled slot is no corruption.
			p.dropBond(j)
			continue
		}

		sum := p.Radius + q.Radius
		delta := ToroidalDelta(p.Pos, q.Pos, cfg.World.Radius, cfg.World.CellSize)
		d := r3.Norm(delta)
		ratio := (d - sum) / sum

		switch {
		case ratio < cfg.Bonds.MergeRatio:
			e.unbond(i, j)
			if e.merge(i, j, st) != i {
				return false
			}
			// The bond list shrank; re-examine position k.
		case ratio > cfg.Bonds.BreakRatio:
			e.unbond(i, j)
			st.BondsBroken++
		case ratio < cfg.Bonds.PushOut || ratio > cfg.Bonds.PullIn:
			e.nudge(i, j, delta, d, ratio)
			k++
		default:
			k++
		}
	}
	return true
}

// nudge moves the neighbor directly (not via velocity) toward the
// nearest rest-band edge. The step is bounded by the mass-weighted
// combined speed of the pair; an unattainable remainder converts into
// an extra emission obligation on the acting particle.
func (e *Engine) nudge(i, j int32, delta r3.Vec, d, ratio float64) {
	cfg := e.cfg
	ps := e.pool.Particles()
	p, q := &ps[i], &ps[j]
	sum := p.Radius + q.Radius

	target := cfg.Bonds.PushOut
	if ratio > cfg.Bonds.PullIn {
		target = cfg.Bonds.PullIn
	}
	want := sum * (1 + target)
	shift := want - d // positive pushes the neighbor outward

	ma, mb := float64(p.Mass()), float64(q.Mass())
	budget := (r3.Norm(p.Vel)*ma + r3.Norm(q.Vel)*mb) / (ma + mb)

	mag := math.Abs(shift)
	apply := math.Min(mag, budget)
	if shift < 0 {
		apply = -apply
	}

	n := r3.Vec{X: 1}
	if d > 0 {
		n = r3.Scale(1/d, delta)
	}
	q.Pos = wrapVec(r3.Add(q.Pos, r3.Scale(apply, n)), cfg.World.Radius)
	e.grid.Update(ps, j)

	if mag > budget {
		p.EmitOwed++
	}
}
