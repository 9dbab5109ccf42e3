package sim

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/marcinas/monads/config"
)

// testConfig builds a small world with emission effectively disabled;
// individual tests flip the toggles and thresholds they exercise.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.World.Radius = 100
	cfg.World.CellSize = 20
	cfg.Physics.Density = unitDensity
	cfg.Physics.MaxSpeed = 5
	cfg.Decay.StabilityThreshold = 1e9
	cfg.Decay.RadiationThreshold = 2e9
	cfg.Decay.MaxEmission = 4
	cfg.Decay.DecayRate = 2
	cfg.Decay.Uniformity = 2
	cfg.Decay.ImpactSpread = 1
	cfg.Bonds.MergeRatio = -0.9
	cfg.Bonds.PushOut = -0.25
	cfg.Bonds.PullIn = 0.25
	cfg.Bonds.BreakRatio = 1.0
	cfg.Toggles.Collision = true
	cfg.Pool.Capacity = 64
	cfg.Genesis.Count = 8
	cfg.Genesis.MinMass = 2
	cfg.Genesis.MaxMass = 8
	cfg.Genesis.SpeedFraction = 0.5
	cfg.Telemetry.StatsWindowTicks = 10
	cfg.Finalize()
	return cfg
}

// spawn places a live particle directly into the engine's pool and grid.
func spawn(e *Engine, pos r3.Vec, attr, rep int) int32 {
	idx := e.pool.Allocate()
	if idx == None {
		panic("test pool exhausted")
	}
	p := &e.pool.Particles()[idx]
	p.Attractons, p.Repulsons = attr, rep
	p.Pos = pos
	p.resize(e.cfg.Physics.Density)
	e.grid.Insert(e.pool.Particles(), idx)
	return idx
}

func TestMergeTwoOverlapping(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Merging = true
	e := NewEngine(cfg, 1)

	// Mass 8 gives radius 2 at unit density; centers 3 apart overlap.
	a := spawn(e, r3.Vec{X: 0}, 4, 4)
	b := spawn(e, r3.Vec{X: 3}, 4, 4)

	var st TickStats
	e.Step(&st)

	if st.Merges != 1 {
		t.Fatalf("merges = %d, want 1", st.Merges)
	}
	if e.pool.Live() != 1 {
		t.Fatalf("live = %d, want 1", e.pool.Live())
	}
	ps := e.pool.Particles()
	if ps[b].Radius != 0 {
		t.Error("loser slot not nullified")
	}
	// Equal masses: the tie breaks to the lower index.
	if ps[a].Mass() != 16 {
		t.Errorf("survivor mass = %d, want 16", ps[a].Mass())
	}
	if e.pool.FreeCount() != cfg.Pool.Capacity-1 {
		t.Errorf("free = %d, want %d", e.pool.FreeCount(), cfg.Pool.Capacity-1)
	}
}

func TestLargerMassAbsorbsSmaller(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Merging = true
	e := NewEngine(cfg, 1)

	small := spawn(e, r3.Vec{X: 0}, 2, 2)
	big := spawn(e, r3.Vec{X: 2}, 10, 10)

	var st TickStats
	e.Step(&st)

	ps := e.pool.Particles()
	if ps[small].Radius != 0 {
		t.Error("smaller particle survived")
	}
	if ps[big].Mass() != 24 {
		t.Errorf("absorber mass = %d, want 24", ps[big].Mass())
	}
}

func TestMergeAcrossWrap(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Merging = true
	e := NewEngine(cfg, 1)

	// Radius 2 each; toroidal distance 2 across the x faces.
	a := spawn(e, r3.Vec{X: -99}, 4, 4)
	spawn(e, r3.Vec{X: 99}, 4, 4)

	var st TickStats
	e.Step(&st)

	if st.Merges != 1 {
		t.Fatalf("merges = %d, want 1 (wrap neighbor not found)", st.Merges)
	}
	if got := e.pool.Particles()[a].Mass(); got != 16 {
		t.Errorf("survivor mass = %d, want 16", got)
	}
}

func TestEscapeWithholdsParentCollision(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Merging = true
	cfg.Toggles.Absorption = true
	cfg.Toggles.QuantaCollide = true
	e := NewEngine(cfg, 1)

	parent := spawn(e, r3.Vec{}, 3, 2)
	var st TickStats
	slot := e.pool.Acquire(0, false, false, e.grid, &st)
	e.emitInto(parent, slot, &st)

	q := &e.pool.Particles()[slot]
	q.Vel = r3.Vec{} // pin the quantum inside the parent's volume

	st = TickStats{}
	e.Step(&st)

	if st.Collisions != 0 {
		t.Fatalf("collisions = %d, want 0 while unescaped", st.Collisions)
	}
	if q.Radius == 0 {
		t.Fatal("quantum absorbed by its own parent before escaping")
	}
	if q.Escape >= 0 {
		t.Fatal("escape cleared while still inside the parent")
	}
}

func TestEscapeClearsOutsideParent(t *testing.T) {
	cfg := testConfig()
	e := NewEngine(cfg, 1)

	parent := spawn(e, r3.Vec{}, 3, 2)
	var st TickStats
	slot := e.pool.Acquire(0, false, false, e.grid, &st)
	e.emitInto(parent, slot, &st)

	ps := e.pool.Particles()
	ps[slot].Pos = r3.Vec{X: 50} // well clear of the parent
	e.grid.Update(ps, slot)
	ps[slot].Vel = r3.Vec{}

	st = TickStats{}
	e.Step(&st)

	if ps[slot].Escape != 0 {
		t.Errorf("escape = %d, want 0 once clear of the parent", ps[slot].Escape)
	}
}

func TestEmissionCappedAtMassMinusOne(t *testing.T) {
	cfg := testConfig()
	cfg.Decay.StabilityThreshold = 1
	cfg.Decay.RadiationThreshold = 2
	cfg.Decay.MaxEmission = 10
	e := NewEngine(cfg, 1)

	idx := spawn(e, r3.Vec{}, 1, 1) // mass 2: at most one quantum

	var st TickStats
	e.Step(&st)

	if st.Emissions != 1 {
		t.Fatalf("emissions = %d, want 1", st.Emissions)
	}
	if got := e.pool.Particles()[idx].Mass(); got != 1 {
		t.Errorf("parent mass = %d, want 1", got)
	}
	if st.DecayMass != 1 {
		t.Errorf("decay mass = %d, want 1", st.DecayMass)
	}
}

func TestEmissionSkippedWhenPoolDry(t *testing.T) {
	cfg := testConfig()
	cfg.Pool.Capacity = 1
	cfg.Decay.StabilityThreshold = 1
	cfg.Decay.RadiationThreshold = 2
	cfg.Decay.MaxEmission = 4
	cfg.Finalize()
	e := NewEngine(cfg, 1)

	idx := spawn(e, r3.Vec{}, 5, 5)

	var st TickStats
	e.Step(&st)

	// No free slot and no displacement: the tick completes with the
	// emission silently skipped.
	if st.Emissions != 0 {
		t.Errorf("emissions = %d, want 0", st.Emissions)
	}
	if got := e.pool.Particles()[idx].Mass(); got != 10 {
		t.Errorf("mass = %d, want 10 (nothing shed)", got)
	}
}

func TestFreezeTakesPrecedence(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Freezing = true
	cfg.Toggles.Merging = true
	cfg.Toggles.Bonding = true
	e := NewEngine(cfg, 1)

	a := spawn(e, r3.Vec{X: 0}, 4, 4)
	b := spawn(e, r3.Vec{X: 3}, 4, 4)
	ps := e.pool.Particles()
	ps[a].Vel = r3.Vec{X: 1}
	ps[b].Vel = r3.Vec{X: -1}

	var st TickStats
	e.Step(&st)

	if st.Merges != 0 || st.BondsFormed != 0 {
		t.Fatalf("freeze must win: merges=%d bonds=%d", st.Merges, st.BondsFormed)
	}
	if st.Freezes == 0 {
		t.Fatal("no freeze recorded")
	}
	if r3.Norm(ps[a].Vel) != 0 || r3.Norm(ps[b].Vel) != 0 {
		t.Error("velocities not zeroed")
	}
}

func TestBounceSigns(t *testing.T) {
	// Pair on the x axis closing at relative speed 2: the partner's
	// dominant polarity picks each side's sign, except that a child
	// bouncing off its parent uses its own polarity for both sides.
	tests := []struct {
		name         string
		aAttr, aRep  int
		bAttr, bRep  int
		childOfB     bool
		wantA, wantB float64 // Vel.X after the bounce
	}{
		{
			// a flees its repulson partner, b chases its attracton partner.
			name:  "mixed pair",
			aAttr: 5, aRep: 3, bAttr: 3, bRep: 5,
			wantA: -1, wantB: -3,
		},
		{
			name:  "mutual attraction",
			aAttr: 5, aRep: 3, bAttr: 5, bRep: 3,
			wantA: 3, wantB: -3,
		},
		{
			name:  "mutual repulsion",
			aAttr: 3, aRep: 5, bAttr: 3, bRep: 5,
			wantA: -1, wantB: 1,
		},
		{
			// Unrelated quantum against a repulson monad: repelled.
			name:  "quantum repelled by monad",
			aAttr: 1, aRep: 0, bAttr: 3, bRep: 5,
			wantA: 1 - 32.0/9, wantB: -1 - 4.0/9,
		},
		{
			// Same pair, but the quantum is b's child: its own attracton
			// polarity flips both adjustments into approach.
			name:  "child polarity governs both sides",
			aAttr: 1, aRep: 0, bAttr: 3, bRep: 5,
			childOfB: true,
			wantA:    1 + 32.0/9, wantB: -1 - 4.0/9,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			e := NewEngine(cfg, 1)
			a := spawn(e, r3.Vec{X: 0}, tt.aAttr, tt.aRep)
			b := spawn(e, r3.Vec{X: 3}, tt.bAttr, tt.bRep)
			ps := e.pool.Particles()
			ps[a].Vel = r3.Vec{X: 1}
			ps[b].Vel = r3.Vec{X: -1}
			if tt.childOfB {
				ps[a].Parent = b
			}

			delta := r3.Sub(ps[b].Pos, ps[a].Pos)
			e.bounce(a, b, delta, r3.Norm(delta))

			if math.Abs(ps[a].Vel.X-tt.wantA) > 1e-12 {
				t.Errorf("a.Vel.X = %v, want %v", ps[a].Vel.X, tt.wantA)
			}
			if math.Abs(ps[b].Vel.X-tt.wantB) > 1e-12 {
				t.Errorf("b.Vel.X = %v, want %v", ps[b].Vel.X, tt.wantB)
			}
			if ps[a].Vel.Y != 0 || ps[a].Vel.Z != 0 || ps[b].Vel.Y != 0 || ps[b].Vel.Z != 0 {
				t.Error("off-axis velocity introduced by an x-axis bounce")
			}
			if ps[a].ImpactCharge != ps[b].Polarity() {
				t.Errorf("a impact charge = %d, want partner polarity %d",
					ps[a].ImpactCharge, ps[b].Polarity())
			}
		})
	}
}

func TestBondFormation(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Bonding = true
	e := NewEngine(cfg, 1)

	// Radius 2 each; gap ratio at distance 3.8 is -0.05, inside the
	// rest band, so the fresh bond is stable through maintenance.
	a := spawn(e, r3.Vec{X: 0}, 4, 4)
	b := spawn(e, r3.Vec{X: 3.8}, 4, 4)

	var st TickStats
	e.Step(&st)

	if st.BondsFormed != 1 {
		t.Fatalf("bonds formed = %d, want 1", st.BondsFormed)
	}
	ps := e.pool.Particles()
	if !ps[a].bonded(b) || !ps[b].bonded(a) {
		t.Error("bond not symmetric")
	}
	if st.ActiveBonds != 1 {
		t.Errorf("active bonds = %d, want 1", st.ActiveBonds)
	}
}

func TestBondBreaksWhenStretched(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Bonding = true
	e := NewEngine(cfg, 1)

	a := spawn(e, r3.Vec{X: 0}, 4, 4)
	b := spawn(e, r3.Vec{X: 3.8}, 4, 4)
	e.bond(a, b, &TickStats{})

	// Drag the partner far beyond the break ratio.
	ps := e.pool.Particles()
	ps[b].Pos = r3.Vec{X: 30}
	e.grid.Update(ps, b)

	var st TickStats
	e.Step(&st)

	if st.BondsBroken != 1 {
		t.Fatalf("bonds broken = %d, want 1", st.BondsBroken)
	}
	if ps[a].bonded(b) || ps[b].bonded(a) {
		t.Error("bond survived past the break ratio")
	}
}

func TestBondNudgeEmissionObligation(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Bonding = true
	cfg.Toggles.Collision = false
	e := NewEngine(cfg, 1)

	// Stationary pair stretched past the rest band but short of the
	// break ratio: zero speed budget leaves the whole shift owed.
	a := spawn(e, r3.Vec{X: 0}, 4, 4)
	b := spawn(e, r3.Vec{X: 5.5}, 4, 4) // gap ratio 0.375
	e.bond(a, b, &TickStats{})

	var st TickStats
	e.Step(&st)

	ps := e.pool.Particles()
	if ps[a].EmitOwed == 0 {
		t.Error("unattainable nudge remainder did not convert to an emission obligation")
	}
}

func TestCompositionAndRadiusNeverDrift(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Merging = true
	cfg.Toggles.Bonding = true
	cfg.Toggles.Absorption = true
	cfg.Toggles.Displacement = true
	cfg.Toggles.Reabsorption = true
	cfg.Decay.StabilityThreshold = 4
	cfg.Decay.RadiationThreshold = 16
	cfg.Genesis.Count = 32
	e := NewEngine(cfg, 99)
	e.Generate()

	var st TickStats
	for tick := 0; tick < 50; tick++ {
		st = TickStats{}
		e.Step(&st)
	}

	ps := e.pool.Particles()
	live := 0
	for i := range ps {
		p := &ps[i]
		if p.Radius == 0 {
			if p.Mass() != 0 {
				t.Fatalf("slot %d: inert with mass %d", i, p.Mass())
			}
			continue
		}
		live++
		want := MassRadius(p.Mass(), cfg.Physics.Density)
		if math.Abs(p.Radius-want) > 1e-12 {
			t.Fatalf("slot %d: radius %v drifted from %v (mass %d)", i, p.Radius, want, p.Mass())
		}
		if !e.grid.selfConsistent(ps, int32(i)) {
			t.Fatalf("slot %d: grid back-reference broken", i)
		}
	}
	if live != e.pool.Live() {
		t.Fatalf("live scan %d != pool counter %d", live, e.pool.Live())
	}
	if e.grid.Occupancy() != live {
		t.Fatalf("grid occupancy %d != live %d", e.grid.Occupancy(), live)
	}
	if e.pool.FreeCount()+e.pool.Live() != cfg.Pool.Capacity {
		t.Fatalf("free %d + live %d != capacity %d",
			e.pool.FreeCount(), e.pool.Live(), cfg.Pool.Capacity)
	}
}

func TestGenerateSeedsPopulation(t *testing.T) {
	cfg := testConfig()
	e := NewEngine(cfg, 5)
	e.Generate()

	if e.pool.Live() != cfg.Genesis.Count {
		t.Fatalf("live = %d, want %d", e.pool.Live(), cfg.Genesis.Count)
	}
	ps := e.pool.Particles()
	for i := 0; i < cfg.Genesis.Count; i++ {
		p := &ps[i]
		if p.Mass() < cfg.Genesis.MinMass || p.Mass() > cfg.Genesis.MaxMass {
			t.Errorf("particle %d mass %d outside [%d, %d]",
				i, p.Mass(), cfg.Genesis.MinMass, cfg.Genesis.MaxMass)
		}
		r := cfg.World.Radius
		if p.Pos.X < -r || p.Pos.X >= r || p.Pos.Y < -r || p.Pos.Y >= r || p.Pos.Z < -r || p.Pos.Z >= r {
			t.Errorf("particle %d outside the world: %+v", i, p.Pos)
		}
	}
}

func TestIntegrationWrapsPosition(t *testing.T) {
	cfg := testConfig()
	cfg.Toggles.Collision = false
	e := NewEngine(cfg, 1)

	idx := spawn(e, r3.Vec{X: 99}, 2, 2)
	ps := e.pool.Particles()
	ps[idx].Vel = r3.Vec{X: 4}

	var st TickStats
	e.Step(&st)

	if got := ps[idx].Pos.X; math.Abs(got-(-97)) > 1e-9 {
		t.Errorf("wrapped x = %v, want -97", got)
	}
	if !e.grid.selfConsistent(ps, idx) {
		t.Error("grid membership stale after wrap")
	}
}
