package sim

import "gonum.org/v1/gonum/spatial/r3"

// evictionScanLimit bounds the worst-case time-ring scan during an
// eviction, regardless of ring capacity.
const evictionScanLimit = 1024

// Pool is the fixed-capacity particle arena. Slots are either free
// (inert, on the free stack) or live (member of exactly one grid cell).
// Quanta created via emission are additionally tracked in a circular
// time ring in strict emission order for oldest-first reclamation.
type Pool struct {
	particles []Particle
	density   float64
	park      r3.Vec // resting position for inert slots, far outside the world

	free []int32 // LIFO free-slot stack

	ring   []int32 // emission-order ring; None marks an empty entry
	oldest int     // head cursor: next eviction scan start
	newest int     // tail cursor: next push scan start

	live int
}

// NewPool creates a pool of capacity inert particles. Slot 0 sits on
// top of the free stack so allocation proceeds in increasing index
// order from an empty pool.
func NewPool(capacity int, density, worldRadius float64) *Pool {
	p := &Pool{
		particles: make([]Particle, capacity),
		density:   density,
		park:      r3.Vec{X: 4 * worldRadius, Y: 4 * worldRadius, Z: 4 * worldRadius},
		free:      make([]int32, capacity),
		ring:      make([]int32, capacity),
	}
	for i := range p.particles {
		p.particles[i].Pos = p.park
		p.particles[i].Parent = None
		p.particles[i].ringPos = None
		p.particles[i].cellSlot = None
		p.free[i] = int32(capacity - 1 - i)
		p.ring[i] = None
	}
	return p
}

// Particles exposes the slot arena. Callers index it with pool indices
// handed out by Allocate/Acquire; they never grow or shrink it.
func (p *Pool) Particles() []Particle {
	return p.particles
}

// Capacity returns the total slot count.
func (p *Pool) Capacity() int {
	return len(p.particles)
}

// Live returns the live-particle count.
func (p *Pool) Live() int {
	return p.live
}

// FreeCount returns the number of slots on the free stack.
func (p *Pool) FreeCount() int {
	return len(p.free)
}

// Allocate pops a free slot without ring registration. Used for world
// generation, where particles are not emission-ordered. Returns None
// when the pool is exhausted.
func (p *Pool) Allocate() int32 {
	n := len(p.free)
	if n == 0 {
		return None
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]
	p.live++
	return idx
}

// Acquire obtains a slot for an emitted quantum. When free slots are at
// or below reserve and displacement is permitted, the oldest quantum in
// emission order is evicted first; if that scan finds nothing evictable
// the acquire fails rather than eroding the reserve. The returned slot
// is ring-registered at the tail. Returns None when no slot can be
// produced; the caller skips the emission this tick.
func (p *Pool) Acquire(reserve int, displace, reabsorb bool, grid *Grid, st *TickStats) int32 {
	if len(p.free) <= reserve && displace {
		if !p.evictOldest(reabsorb, grid, st) {
			return None
		}
	}
	idx := p.Allocate()
	if idx == None {
		return None
	}
	p.ringPush(idx)
	return idx
}

// evictOldest scans forward from the ring head for the next live
// quantum, skipping and unregistering anything else, and nullifies it.
// With reabsorption enabled its single unit returns to a live parent of
// mass > 1 instead of being discarded. The scan gives up after
// min(capacity, evictionScanLimit) entries.
func (p *Pool) evictOldest(reabsorb bool, grid *Grid, st *TickStats) bool {
	limit := len(p.ring)
	if limit > evictionScanLimit {
		limit = evictionScanLimit
	}
	for n := 0; n < limit; n++ {
		idx := p.ring[p.oldest]
		if idx == None {
			p.oldest = (p.oldest + 1) % len(p.ring)
			continue
		}
		q := &p.particles[idx]
		if q.Radius == 0 || q.Mass() != 1 {
			// Stale entry or a quantum that grew into a monad; drop it
			// from the ring and keep scanning.
			p.ring[p.oldest] = None
			if q.ringPos == int32(p.oldest) {
				q.ringPos = None
			}
			p.oldest = (p.oldest + 1) % len(p.ring)
			continue
		}
		if reabsorb && q.Parent != None {
			par := &p.particles[q.Parent]
			if par.Mass() > 1 {
				if q.Attractons > 0 {
					par.Attractons++
				} else {
					par.Repulsons++
				}
				par.resize(p.density)
				if st != nil {
					st.Reabsorbed++
				}
			}
		}
		p.Release(idx, grid)
		if st != nil {
			st.Evictions++
		}
		return true
	}
	return false
}

// ringPush registers idx at the ring tail, advancing past occupied
// entries. The cursor records the position on the particle so Release
// can clear it in O(1).
func (p *Pool) ringPush(idx int32) {
	for n := 0; n < len(p.ring); n++ {
		if p.ring[p.newest] == None {
			p.ring[p.newest] = idx
			p.particles[idx].ringPos = int32(p.newest)
			return
		}
		p.newest = (p.newest + 1) % len(p.ring)
	}
	// Ring saturated; the particle simply goes untracked and can only
	// leave via destruction, never eviction.
	p.particles[idx].ringPos = None
}

// Release nullifies slot idx and returns it to the free stack: mass
// zeroed, position parked, bonds cleared on both sides, grid membership
// and ring entry removed.
func (p *Pool) Release(idx int32, grid *Grid) {
	q := &p.particles[idx]
	if q.Radius != 0 && grid != nil {
		grid.Remove(p.particles, idx)
	}
	for _, b := range q.Bonds {
		p.particles[b].dropBond(idx)
	}
	q.Bonds = q.Bonds[:0]
	q.Attractons = 0
	q.Repulsons = 0
	q.Radius = 0
	q.Pos = p.park
	q.Vel = r3.Vec{}
	q.Parent = None
	q.Escape = 0
	q.Impact = r3.Vec{}
	q.ImpactCharge = 0
	q.EmitOwed = 0
	q.Highlight = false
	if q.ringPos != None {
		p.ring[q.ringPos] = None
		q.ringPos = None
	}
	p.free = append(p.free, idx)
	p.live--
}
