package sim

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/marcinas/monads/config"
)

// TickStats is the per-tick accumulator handed into Step by reference.
// The engine only increments; the telemetry layer consumes and resets it.
type TickStats struct {
	Live        int // live particles after the tick
	Quanta      int // mass-1 subset of Live
	ActiveBonds int // symmetric bond pairs after the tick
	Collisions  int
	BondsFormed int
	BondsBroken int
	Merges      int
	Freezes     int
	Emissions   int
	Evictions   int
	Reabsorbed  int
	DecayMass   int // units shed by emission this tick
}

// Engine runs the simulation: one full pass over the pool per tick, in
// increasing pool-index order. Later-indexed particles observe the
// already-updated state of earlier ones within the same tick; that
// ordering is part of the system's behavior.
type Engine struct {
	cfg  *config.Config
	rng  *rand.Rand
	pool *Pool
	grid *Grid
	tick int64

	scratch []Candidate // reused broad-phase buffer
}

// NewEngine creates an engine with an empty pool. Call Generate to seed
// the initial population.
func NewEngine(cfg *config.Config, seed int64) *Engine {
	return &Engine{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		pool:    NewPool(cfg.Pool.Capacity, cfg.Physics.Density, cfg.World.Radius),
		grid:    NewGrid(cfg.World.Radius, cfg.World.CellSize, cfg.Derived.GridLength),
		scratch: make([]Candidate, 0, 256),
	}
}

// Tick returns the completed tick count.
func (e *Engine) Tick() int64 {
	return e.tick
}

// Pool exposes the particle pool.
func (e *Engine) Pool() *Pool {
	return e.pool
}

// Grid exposes the spatial index.
func (e *Engine) Grid() *Grid {
	return e.grid
}

// Step advances the simulation one tick. The configuration is treated
// as read-only for the duration; a tick always runs to completion.
func (e *Engine) Step(st *TickStats) {
	e.tick++
	ps := e.pool.Particles()
	for i := range ps {
		if ps[i].Radius == 0 {
			continue
		}
		e.stepParticle(int32(i), st)
	}

	st.Live = e.pool.Live()
	for i := range ps {
		p := &ps[i]
		if p.Radius == 0 {
			continue
		}
		if p.IsQuantum() {
			st.Quanta++
		}
		st.ActiveBonds += len(p.Bonds)
	}
	st.ActiveBonds /= 2
}

// stepParticle runs the per-particle state machine: escape check,
// collision, emission, bond maintenance, then integration. A particle
// destroyed mid-phase stops processing for the tick.
func (e *Engine) stepParticle(i int32, st *TickStats) {
	ps := e.pool.Particles()
	p := &ps[i]
	p.Highlight = false

	if p.Escape < 0 {
		e.escapeCheck(i)
	}

	if e.cfg.Toggles.Collision {
		if !e.collide(i, st) {
			return
		}
	}
	if p.Radius == 0 {
		return
	}

	e.emit(i, st)
	if p.Radius == 0 {
		return
	}

	if e.cfg.Toggles.Bonding {
		if !e.maintainBonds(i, st) {
			return
		}
	}

	e.integrate(i)
}

// escapeCheck clears the escape countdown once the particle no longer
// overlaps its parent's volume. A dead or recycled parent counts as
// escaped immediately.
func (e *Engine) escapeCheck(i int32) {
	ps := e.pool.Particles()
	p := &ps[i]
	parent := -p.Escape - 1
	if parent < 0 || int(parent) >= len(ps) {
		p.Escape = 0
		return
	}
	par := &ps[parent]
	if par.Radius == 0 || par.Mass() <= 1 {
		p.Escape = 0
		return
	}
	d := r3.Norm(r3.Sub(par.Pos, p.Pos))
	if p.cellX != par.cellX || p.cellY != par.cellY || p.cellZ != par.cellZ {
		// Different cells may sit across the wrap.
		d = ToroidalDist(p.Pos, par.Pos, e.cfg.World.Radius, e.cfg.World.CellSize)
	}
	if d > p.Radius+par.Radius {
		p.Escape = 0
	}
}

// integrate applies one velocity step, wraps the position onto the
// torus, and keeps grid membership in sync.
func (e *Engine) integrate(i int32) {
	ps := e.pool.Particles()
	p := &ps[i]
	p.Pos = wrapVec(r3.Add(p.Pos, p.Vel), e.cfg.World.Radius)
	e.grid.Update(ps, i)
}

// randomUnit returns a uniformly distributed direction.
func (e *Engine) randomUnit() r3.Vec {
	for {
		v := r3.Vec{
			X: e.rng.NormFloat64(),
			Y: e.rng.NormFloat64(),
			Z: e.rng.NormFloat64(),
		}
		n := r3.Norm(v)
		if n > 1e-12 {
			return r3.Scale(1/n, v)
		}
	}
}
