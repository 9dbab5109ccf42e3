package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a tick window.
type WindowStats struct {
	WindowStartTick int64 `csv:"-"`
	WindowEndTick   int64 `csv:"window_end"`

	// Population gauges at window end
	Live        int `csv:"live"`
	Monads      int `csv:"monads"`
	Quanta      int `csv:"quanta"`
	ActiveBonds int `csv:"active_bonds"`

	// Events during window
	Collisions  int `csv:"collisions"`
	BondsFormed int `csv:"bonds_formed"`
	BondsBroken int `csv:"bonds_broken"`
	Merges      int `csv:"merges"`
	Freezes     int `csv:"freezes"`
	Emissions   int `csv:"emissions"`
	Evictions   int `csv:"evictions"`
	Reabsorbed  int `csv:"reabsorbed"`
	DecayMass   int `csv:"decay_mass"`

	// Mass distribution (sampled at window end)
	MassMean float64 `csv:"mass_mean"`
	MassStd  float64 `csv:"mass_std"`
	MassP10  float64 `csv:"mass_p10"`
	MassP50  float64 `csv:"mass_p50"`
	MassP90  float64 `csv:"mass_p90"`

	// Speed distribution
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
}

// ComputeDistStats calculates mean, stddev, and percentiles of a sample.
func ComputeDistStats(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.MeanStdDev(values, nil)
	if n == 1 {
		// MeanStdDev's sample variance is undefined for a single value.
		std = 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)

	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Int("live", s.Live),
		slog.Int("monads", s.Monads),
		slog.Int("quanta", s.Quanta),
		slog.Int("active_bonds", s.ActiveBonds),
		slog.Int("collisions", s.Collisions),
		slog.Int("bonds_formed", s.BondsFormed),
		slog.Int("bonds_broken", s.BondsBroken),
		slog.Int("merges", s.Merges),
		slog.Int("freezes", s.Freezes),
		slog.Int("emissions", s.Emissions),
		slog.Int("evictions", s.Evictions),
		slog.Int("reabsorbed", s.Reabsorbed),
		slog.Int("decay_mass", s.DecayMass),
		slog.Float64("mass_mean", s.MassMean),
		slog.Float64("mass_std", s.MassStd),
		slog.Float64("mass_p50", s.MassP50),
		slog.Float64("mass_p90", s.MassP90),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
	)
}
