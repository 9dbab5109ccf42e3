package sim

// Candidate is one broad-phase result. Wrapped marks candidates pulled
// from a cell that wrapped around the world; distance checks against
// them must use toroidal distance with the query's margin.
type Candidate struct {
	Idx     int32
	Wrapped bool
}

// Grid is the spatial index: a cube of variable-length cell lists
// holding pool indices. It owns membership bookkeeping only, never
// particle data. Not safe for concurrent use.
type Grid struct {
	worldRadius float64
	cellSize    float64
	halfCell    float64
	length      int32     // cells per axis = ceil(2*worldRadius / cellSize)
	cells       [][]int32 // flat length^3, indexed z*length^2 + y*length + x
}

// NewGrid creates a grid covering the cube [-worldRadius, worldRadius)
// with the given cell edge.
func NewGrid(worldRadius, cellSize float64, gridLength int) *Grid {
	cells := make([][]int32, gridLength*gridLength*gridLength)
	return &Grid{
		worldRadius: worldRadius,
		cellSize:    cellSize,
		halfCell:    cellSize / 2,
		length:      int32(gridLength),
		cells:       cells,
	}
}

// Length returns the number of cells per axis.
func (g *Grid) Length() int {
	return int(g.length)
}

// coord maps a world coordinate to a cell coordinate in [0, length).
func (g *Grid) coord(v float64) int32 {
	c := int32((v + g.worldRadius) / g.cellSize)
	// Callers guarantee world coordinates; only the exact upper face
	// needs wrapping back.
	if c >= g.length {
		c -= g.length
	}
	if c < 0 {
		c += g.length
	}
	return c
}

// flat returns the cell list index for wrapped cell coordinates.
func (g *Grid) flat(x, y, z int32) int32 {
	return (z*g.length+y)*g.length + x
}

// Insert appends particle idx to the cell containing its position and
// records the cell coordinates and intra-cell slot on the particle.
// Inert particles (radius 0) are never inserted.
func (g *Grid) Insert(ps []Particle, idx int32) {
	p := &ps[idx]
	if p.Radius == 0 {
		return
	}
	p.cellX, p.cellY, p.cellZ = g.coord(p.Pos.X), g.coord(p.Pos.Y), g.coord(p.Pos.Z)
	cell := g.flat(p.cellX, p.cellY, p.cellZ)
	p.cellSlot = int32(len(g.cells[cell]))
	g.cells[cell] = append(g.cells[cell], idx)
}

// Remove takes particle idx out of its recorded cell by swapping it
// with the last entry and patching the swapped-in particle's slot.
func (g *Grid) Remove(ps []Particle, idx int32) {
	p := &ps[idx]
	cell := g.flat(p.cellX, p.cellY, p.cellZ)
	list := g.cells[cell]
	last := int32(len(list)) - 1
	if last < 0 {
		return
	}
	slot := p.cellSlot
	moved := list[last]
	list[slot] = moved
	ps[moved].cellSlot = slot
	g.cells[cell] = list[:last]
	p.cellSlot = None
}

// Update moves particle idx to a new cell if its position has crossed a
// cell boundary since it was last inserted.
func (g *Grid) Update(ps []Particle, idx int32) {
	p := &ps[idx]
	if p.Radius == 0 {
		return
	}
	if g.coord(p.Pos.X) == p.cellX && g.coord(p.Pos.Y) == p.cellY && g.coord(p.Pos.Z) == p.cellZ {
		return
	}
	g.Remove(ps, idx)
	g.Insert(ps, idx)
}

// Query runs the broad phase for particle self and appends candidates
// to dst, returning the slice and the toroidal margin to use for
// Wrapped candidates. live is the current live-particle count, used to
// bound the oversized-particle path. Reuse dst across calls.
func (g *Grid) Query(ps []Particle, self int32, live int, dst []Candidate) ([]Candidate, float64) {
	p := &ps[self]

	if g.length < 3 {
		// Fewer than three cells per axis folds the -1 and +1 neighbor
		// offsets onto the same cell, so pruning would return duplicate
		// candidates. Scan everything instead.
		return g.allLive(ps, self, dst), 0
	}

	// Per axis, does the sphere cross the near/far face of its own cell?
	var lo, hi [3]bool
	crossings := 0
	cc := [3]int32{p.cellX, p.cellY, p.cellZ}
	pos := [3]float64{p.Pos.X, p.Pos.Y, p.Pos.Z}
	for a := 0; a < 3; a++ {
		cellMin := float64(cc[a])*g.cellSize - g.worldRadius
		cellMax := cellMin + g.cellSize
		if pos[a]-p.Radius <= cellMin {
			lo[a] = true
			crossings++
		}
		if pos[a]+p.Radius >= cellMax {
			hi[a] = true
			crossings++
		}
	}

	factor := 1.0
	if crossings > 1 {
		factor = 2.0
	}
	margin := g.cellSize * float64(crossings) * factor

	if p.Radius < g.halfCell {
		// Exact coverage: only cells whose offset matches the crossing
		// pattern can overlap the sphere.
		for dz := int32(-1); dz <= 1; dz++ {
			if (dz == -1 && !lo[2]) || (dz == 1 && !hi[2]) {
				continue
			}
			for dy := int32(-1); dy <= 1; dy++ {
				if (dy == -1 && !lo[1]) || (dy == 1 && !hi[1]) {
					continue
				}
				for dx := int32(-1); dx <= 1; dx++ {
					if (dx == -1 && !lo[0]) || (dx == 1 && !hi[0]) {
						continue
					}
					dst = g.appendCell(dst, self, cc[0]+dx, cc[1]+dy, cc[2]+dz)
				}
			}
		}
		return dst, margin
	}

	// Oversized particle: widen the search cube in whole-cell steps.
	k := int32(p.Radius / g.halfCell)
	reach := 1 + k
	edge := 2*reach + 1
	if edge >= g.length || int(edge)*int(edge)*int(edge) > live {
		// Pruning cannot win; degrade to the whole live population.
		// Margin 0 forces the exact toroidal check.
		return g.allLive(ps, self, dst), 0
	}
	for dz := -reach; dz <= reach; dz++ {
		for dy := -reach; dy <= reach; dy++ {
			for dx := -reach; dx <= reach; dx++ {
				dst = g.appendCell(dst, self, cc[0]+dx, cc[1]+dy, cc[2]+dz)
			}
		}
	}
	return dst, margin
}

// allLive appends every live particle except self, flagged Wrapped so
// callers run the exact toroidal check.
func (g *Grid) allLive(ps []Particle, self int32, dst []Candidate) []Candidate {
	for i := range ps {
		if int32(i) != self && ps[i].Radius != 0 {
			dst = append(dst, Candidate{Idx: int32(i), Wrapped: true})
		}
	}
	return dst
}

// appendCell appends the contents of cell (x,y,z), wrapping out-of-range
// coordinates and flagging candidates from wrapped cells.
func (g *Grid) appendCell(dst []Candidate, self, x, y, z int32) []Candidate {
	wrapped := false
	if x < 0 {
		x += g.length
		wrapped = true
	} else if x >= g.length {
		x -= g.length
		wrapped = true
	}
	if y < 0 {
		y += g.length
		wrapped = true
	} else if y >= g.length {
		y -= g.length
		wrapped = true
	}
	if z < 0 {
		z += g.length
		wrapped = true
	} else if z >= g.length {
		z -= g.length
		wrapped = true
	}
	for _, idx := range g.cells[g.flat(x, y, z)] {
		if idx == self {
			continue
		}
		dst = append(dst, Candidate{Idx: idx, Wrapped: wrapped})
	}
	return dst
}

// Occupancy returns the total number of entries across all cells.
// Test support for the membership invariant.
func (g *Grid) Occupancy() int {
	n := 0
	for i := range g.cells {
		n += len(g.cells[i])
	}
	return n
}

// selfConsistent reports whether particle idx's recorded cell slot
// points back to itself. Test support.
func (g *Grid) selfConsistent(ps []Particle, idx int32) bool {
	p := &ps[idx]
	if p.cellSlot == None {
		return false
	}
	list := g.cells[g.flat(p.cellX, p.cellY, p.cellZ)]
	return int(p.cellSlot) < len(list) && list[p.cellSlot] == idx
}
