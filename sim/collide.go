package sim

import "gonum.org/v1/gonum/spatial/r3"

// collide runs the broad and narrow collision phase for particle i.
// Returns false when the acting particle was destroyed (absorbed or
// merged away), which stops all further processing this tick.
func (e *Engine) collide(i int32, st *TickStats) bool {
	ps := e.pool.Particles()
	p := &ps[i]
	t := &e.cfg.Toggles

	// Quanta are collision-exempt unless they may collide outright or
	// be absorbed by a monad.
	if p.IsQuantum() && !t.QuantaCollide && !t.Absorption {
		return true
	}

	e.scratch = e.scratch[:0]
	cands, margin := e.grid.Query(ps, i, e.pool.Live(), e.scratch)
	e.scratch = cands

	worldRadius := e.cfg.World.Radius
	for _, c := range cands {
		q := &ps[c.Idx]
		if q.Radius == 0 || q.Escape < 0 {
			continue
		}
		if p.Escape < 0 && c.Idx == p.Parent {
			// Not yet clear of the emitting parent.
			continue
		}
		pq, qq := p.IsQuantum(), q.IsQuantum()
		if (pq || qq) && !t.QuantaCollide {
			if !(t.Absorption && pq != qq) {
				continue
			}
		}
		if p.bonded(c.Idx) {
			continue
		}

		sum := p.Radius + q.Radius
		delta := r3.Sub(q.Pos, p.Pos)
		d := r3.Norm(delta)
		hit := d <= sum
		if !hit && c.Wrapped {
			delta = ToroidalDelta(p.Pos, q.Pos, worldRadius, margin)
			d = r3.Norm(delta)
			hit = d <= sum
		}
		if !hit {
			continue
		}

		// Next-tick contact prediction feeds display state only.
		next := r3.Add(q.Pos, q.Vel)
		if ToroidalDist(p.Pos, next, worldRadius, e.cfg.World.CellSize) <= sum {
			p.Highlight = true
			q.Highlight = true
		}

		st.Collisions++

		// Resolution precedence: freeze > bond > merge > bounce.
		switch {
		case t.Freezing:
			p.Vel = r3.Vec{}
			q.Vel = r3.Vec{}
			st.Freezes++
		case t.Bonding && !pq && !qq:
			e.bond(i, c.Idx, st)
		case t.Merging || (t.Absorption && pq != qq):
			if e.merge(i, c.Idx, st) != i {
				return false
			}
		default:
			e.bounce(i, c.Idx, delta, d)
		}
	}
	return true
}

// bond links i and j symmetrically. Both sides are updated together.
func (e *Engine) bond(i, j int32, st *TickStats) {
	ps := e.pool.Particles()
	ps[i].Bonds = append(ps[i].Bonds, j)
	ps[j].Bonds = append(ps[j].Bonds, i)
	st.BondsFormed++
}

// unbond removes the symmetric link between i and j.
func (e *Engine) unbond(i, j int32) {
	ps := e.pool.Particles()
	ps[i].dropBond(j)
	ps[j].dropBond(i)
}

// merge collapses the pair into the larger-mass particle (tie broken by
// lower index) and returns the survivor. Composition sums, velocity is
// the mass-weighted combination, position the mass-weighted midpoint;
// the loser is nullified and its slot freed.
func (e *Engine) merge(a, b int32, st *TickStats) int32 {
	ps := e.pool.Particles()
	win, lose := a, b
	if ps[b].Mass() > ps[a].Mass() || (ps[b].Mass() == ps[a].Mass() && b < a) {
		win, lose = b, a
	}
	w, l := &ps[win], &ps[lose]

	wm, lm := float64(w.Mass()), float64(l.Mass())
	total := wm + lm
	worldRadius := e.cfg.World.Radius

	delta := ToroidalDelta(w.Pos, l.Pos, worldRadius, w.Radius+l.Radius)
	w.Pos = wrapVec(r3.Add(w.Pos, r3.Scale(lm/total, delta)), worldRadius)
	newVel := r3.Add(r3.Scale(wm/total, w.Vel), r3.Scale(lm/total, l.Vel))
	w.Vel = clampSpeed(newVel, e.cfg.Physics.MaxSpeed)

	// The absorbed impact biases future emission.
	w.Impact = r3.Scale(lm/total, r3.Sub(l.Vel, w.Vel))
	w.ImpactCharge = l.Polarity()

	w.Attractons += l.Attractons
	w.Repulsons += l.Repulsons

	e.pool.Release(lose, e.grid)
	w.resize(e.cfg.Physics.Density)
	e.grid.Update(ps, win)
	st.Merges++
	return win
}

// bounce adjusts both velocities along the pair axis, mass-weighted.
// The base exchange repels; an attracton-dominant reference flips the
// sign so the pair accelerates together instead. For a parent-child
// pair the child's own polarity is the reference on both sides.
func (e *Engine) bounce(a, b int32, delta r3.Vec, d float64) {
	ps := e.pool.Particles()
	pa, pb := &ps[a], &ps[b]

	n := r3.Vec{X: 1}
	if d > 0 {
		n = r3.Scale(1/d, delta)
	}
	ma, mb := float64(pa.Mass()), float64(pb.Mass())
	total := ma + mb
	vn := r3.Dot(r3.Sub(pb.Vel, pa.Vel), n)

	sa := bounceSign(pa, pb, a, b)
	sb := bounceSign(pb, pa, b, a)
	ja := r3.Scale(sa*2*mb/total*vn, n)
	jb := r3.Scale(-sb*2*ma/total*vn, n)

	maxSpeed := e.cfg.Physics.MaxSpeed
	pa.Vel = clampSpeed(r3.Add(pa.Vel, ja), maxSpeed)
	pb.Vel = clampSpeed(r3.Add(pb.Vel, jb), maxSpeed)

	pa.Impact, pa.ImpactCharge = ja, pb.Polarity()
	pb.Impact, pb.ImpactCharge = jb, pa.Polarity()
}

// bounceSign picks the adjustment sign for actor against partner:
// +1 flees (true bounce) when the reference particle is repulson
// dominant, -1 approaches when attracton dominant. When the pair is
// parent and child the child is the reference for both adjustments.
func bounceSign(actor, partner *Particle, actorIdx, partnerIdx int32) float64 {
	ref := partner
	if actor.Parent == partnerIdx {
		ref = actor // actor is the child
	}
	if ref.Polarity() < 0 {
		return 1
	}
	return -1
}
