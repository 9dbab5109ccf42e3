package sim

import "gonum.org/v1/gonum/spatial/r3"

// Generate seeds the initial monad population from the genesis config:
// uniform positions in the cube, composition drawn unit by unit with
// the configured charge skew, speed a fraction of the cap. Capacity
// exhaustion silently truncates the population.
func (e *Engine) Generate() {
	cfg := e.cfg
	ps := e.pool.Particles()
	worldRadius := cfg.World.Radius

	for n := 0; n < cfg.Genesis.Count; n++ {
		idx := e.pool.Allocate()
		if idx == None {
			break
		}
		p := &ps[idx]

		mass := cfg.Genesis.MinMass
		if span := cfg.Genesis.MaxMass - cfg.Genesis.MinMass; span > 0 {
			mass += e.rng.Intn(span + 1)
		}
		if mass < 1 {
			mass = 1
		}
		pAttr := 0.5 + cfg.Genesis.ChargeSkew
		for u := 0; u < mass; u++ {
			if e.rng.Float64() < pAttr {
				p.Attractons++
			} else {
				p.Repulsons++
			}
		}

		p.Pos = r3.Vec{
			X: (e.rng.Float64()*2 - 1) * worldRadius,
			Y: (e.rng.Float64()*2 - 1) * worldRadius,
			Z: (e.rng.Float64()*2 - 1) * worldRadius,
		}
		speed := e.rng.Float64() * cfg.Physics.MaxSpeed * cfg.Genesis.SpeedFraction
		p.Vel = r3.Scale(speed, e.randomUnit())

		p.resize(cfg.Physics.Density)
		e.grid.Insert(ps, idx)
	}
}
