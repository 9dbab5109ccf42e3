// Package telemetry aggregates per-tick simulation counters into
// windowed statistics and writes them to structured logs and CSV.
package telemetry

import "github.com/marcinas/monads/sim"

// Collector accumulates TickStats within tick windows and produces
// WindowStats. The engine never sees it; each tick the caller hands the
// accumulator struct here and resets it.
type Collector struct {
	windowTicks int64
	windowStart int64

	// Summed event counters for the current window.
	collisions  int
	bondsFormed int
	bondsBroken int
	merges      int
	freezes     int
	emissions   int
	evictions   int
	reabsorbed  int
	decayMass   int

	// Gauges: last observed tick values.
	live        int
	quanta      int
	activeBonds int
}

// NewCollector creates a collector flushing every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowTicks: int64(windowTicks)}
}

// Record folds one tick's accumulator into the current window.
func (c *Collector) Record(st *sim.TickStats) {
	c.collisions += st.Collisions
	c.bondsFormed += st.BondsFormed
	c.bondsBroken += st.BondsBroken
	c.merges += st.Merges
	c.freezes += st.Freezes
	c.emissions += st.Emissions
	c.evictions += st.Evictions
	c.reabsorbed += st.Reabsorbed
	c.decayMass += st.DecayMass

	c.live = st.Live
	c.quanta = st.Quanta
	c.activeBonds = st.ActiveBonds
}

// ShouldFlush reports whether the window ending at currentTick is full.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStart >= c.windowTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// masses and speeds are the live population's distributions sampled at
// window end.
func (c *Collector) Flush(currentTick int64, masses, speeds []float64) WindowStats {
	ws := WindowStats{
		WindowStartTick: c.windowStart,
		WindowEndTick:   currentTick,
		Live:            c.live,
		Quanta:          c.quanta,
		Monads:          c.live - c.quanta,
		ActiveBonds:     c.activeBonds,
		Collisions:      c.collisions,
		BondsFormed:     c.bondsFormed,
		BondsBroken:     c.bondsBroken,
		Merges:          c.merges,
		Freezes:         c.freezes,
		Emissions:       c.emissions,
		Evictions:       c.evictions,
		Reabsorbed:      c.reabsorbed,
		DecayMass:       c.decayMass,
	}
	ws.MassMean, ws.MassStd, ws.MassP10, ws.MassP50, ws.MassP90 = ComputeDistStats(masses)
	ws.SpeedMean, _, ws.SpeedP10, ws.SpeedP50, ws.SpeedP90 = ComputeDistStats(speeds)

	c.windowStart = currentTick
	c.collisions = 0
	c.bondsFormed = 0
	c.bondsBroken = 0
	c.merges = 0
	c.freezes = 0
	c.emissions = 0
	c.evictions = 0
	c.reabsorbed = 0
	c.decayMass = 0

	return ws
}
