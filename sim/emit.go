package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// emit runs the emission phase for particle i: roll the instability
// gate, then shed owed quanta one slot at a time until the debt is paid
// or the pool runs dry. Running dry is not an error; the remainder
// stays owed for later ticks.
func (e *Engine) emit(i int32, st *TickStats) {
	cfg := e.cfg
	ps := e.pool.Particles()
	p := &ps[i]
	if p.Mass() < 2 {
		p.EmitOwed = 0
		return
	}

	room := cfg.Toggles.Displacement || e.pool.FreeCount() > cfg.Derived.EmissionReserve
	if !room {
		return
	}

	if p.EmitOwed == 0 {
		span := cfg.Decay.RadiationThreshold - cfg.Decay.StabilityThreshold
		if span <= 0 {
			return
		}
		instability := (float64(p.Mass()) - cfg.Decay.StabilityThreshold) / span
		if instability <= 0 {
			return
		}
		gate := math.Pow(instability, 1/cfg.Decay.DecayRate)
		if e.rng.Float64() >= gate {
			return
		}
		owed := int(math.Ceil(math.Pow(e.rng.Float64(), cfg.Decay.Uniformity) * float64(cfg.Decay.MaxEmission)))
		if owed > p.Mass()-1 {
			owed = p.Mass() - 1
		}
		p.EmitOwed = owed
	}

	for p.EmitOwed > 0 && p.Mass() > 1 {
		slot := e.pool.Acquire(cfg.Derived.EmissionReserve, cfg.Toggles.Displacement,
			cfg.Toggles.Reabsorption, e.grid, st)
		if slot == None {
			break
		}
		p.EmitOwed--
		e.emitInto(i, slot, st)
	}
	if p.Mass() <= 1 {
		p.EmitOwed = 0
	}
}

// emitInto spawns a quantum in slot, shedding the parent's dominant
// unit. The quantum starts at the parent's exact center with no
// displacement and is withheld from colliding with the parent until it
// clears its volume.
func (e *Engine) emitInto(parent, slot int32, st *TickStats) {
	ps := e.pool.Particles()
	par := &ps[parent]
	q := &ps[slot]

	if par.Attractons >= par.Repulsons && par.Attractons > 0 {
		par.Attractons--
		q.Attractons = 1
	} else {
		par.Repulsons--
		q.Repulsons = 1
	}

	q.Pos = par.Pos
	q.Vel = e.emissionVelocity(par)
	q.Parent = parent
	q.Escape = -(parent + 1)

	density := e.cfg.Physics.Density
	q.resize(density)
	par.resize(density)
	e.grid.Insert(ps, slot)

	st.Emissions++
	st.DecayMass++
}

// emissionVelocity samples the new quantum's velocity: uniform in
// random mode, or a normal distribution centered on the parent's
// remembered impact vector in impact-matching mode.
func (e *Engine) emissionVelocity(par *Particle) r3.Vec {
	maxSpeed := e.cfg.Physics.MaxSpeed
	if e.cfg.Toggles.ImpactEmission && par.ImpactCharge != 0 {
		spread := e.cfg.Decay.ImpactSpread
		v := r3.Vec{
			X: par.Impact.X + e.rng.NormFloat64()*spread,
			Y: par.Impact.Y + e.rng.NormFloat64()*spread,
			Z: par.Impact.Z + e.rng.NormFloat64()*spread,
		}
		return clampSpeed(v, maxSpeed)
	}
	return r3.Scale(e.rng.Float64()*maxSpeed, e.randomUnit())
}
