// Package sim implements the monad physics core: the toroidal spatial
// index, the fixed-capacity particle pool, and the per-tick interaction
// engine that applies collision, bonding, merging, and emission rules.
package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// None marks the absence of a slot index, ring position, or parent.
const None int32 = -1

// Particle is one pool slot: a charged sphere identified by its pool
// index. A slot with Radius 0 is inert and owns no physical state.
// Mass is never stored; it is always Attractons + Repulsons.
type Particle struct {
	Pos r3.Vec
	Vel r3.Vec

	// Composition in unit counts. Mass 1 particles are quanta,
	// mass >= 2 are monads.
	Attractons int
	Repulsons  int

	// Radius is derived from mass and density via sphere-volume
	// inversion. 0 marks an inert slot. Updated through resize only.
	Radius float64

	// Bonds holds pool indices of bonded partners. The relation is
	// symmetric; both sides are updated together.
	Bonds []int32

	// Parent is the particle that last emitted this one, or None.
	Parent int32

	// Escape is -(Parent+1) while this particle has not yet cleared
	// its parent's volume; collision against that parent is withheld
	// until it reaches 0.
	Escape int32

	// Impact remembers the velocity change of the most recent absorbed
	// impact; ImpactCharge its polarity. Biases impact-matching emission.
	Impact       r3.Vec
	ImpactCharge int

	// EmitOwed counts quanta still owed from a previous emission or a
	// bond-maintenance remainder.
	EmitOwed int

	// Highlight flags a predicted next-tick contact. Display only;
	// never read by the physics.
	Highlight bool

	// Spatial-index bookkeeping, owned by Grid.
	cellX, cellY, cellZ int32
	cellSlot            int32

	// Time-ring position, owned by Pool. None when not ring-registered.
	ringPos int32
}

// Mass returns the particle's unit count.
func (p *Particle) Mass() int {
	return p.Attractons + p.Repulsons
}

// IsQuantum reports whether the particle is a mass-1 energy carrier.
func (p *Particle) IsQuantum() bool {
	return p.Mass() == 1
}

// IsInert reports whether the slot holds no live particle.
func (p *Particle) IsInert() bool {
	return p.Radius == 0
}

// Polarity returns +1 when attracton-dominant, -1 when repulson-dominant.
// Ties count as attracton-dominant.
func (p *Particle) Polarity() int {
	if p.Repulsons > p.Attractons {
		return -1
	}
	return 1
}

// ChargeRatio returns the attracton fraction of the composition in [0,1].
// Inert particles report 0.5.
func (p *Particle) ChargeRatio() float64 {
	m := p.Mass()
	if m == 0 {
		return 0.5
	}
	return float64(p.Attractons) / float64(m)
}

// MassRadius converts a unit mass to a sphere radius at the given
// density: radius = cbrt(3*mass / (4*pi*density)).
func MassRadius(mass int, density float64) float64 {
	if mass <= 0 || density <= 0 {
		return 0
	}
	return math.Cbrt(3 * float64(mass) / (4 * math.Pi * density))
}

// resize recomputes Radius from the current composition.
func (p *Particle) resize(density float64) {
	p.Radius = MassRadius(p.Mass(), density)
}

// bonded reports whether j is in the particle's bond set.
func (p *Particle) bonded(j int32) bool {
	for _, b := range p.Bonds {
		if b == j {
			return true
		}
	}
	return false
}

// dropBond removes j from the particle's bond set, if present.
// One-sided; callers pair it with the partner's dropBond.
func (p *Particle) dropBond(j int32) {
	for k, b := range p.Bonds {
		if b == j {
			last := len(p.Bonds) - 1
			p.Bonds[k] = p.Bonds[last]
			p.Bonds = p.Bonds[:last]
			return
		}
	}
}
