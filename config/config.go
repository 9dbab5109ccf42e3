// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	World     WorldConfig     `yaml:"world"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Decay     DecayConfig     `yaml:"decay"`
	Bonds     BondConfig      `yaml:"bonds"`
	Toggles   TogglesConfig   `yaml:"toggles"`
	Pool      PoolConfig      `yaml:"pool"`
	Genesis   GenesisConfig   `yaml:"genesis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings for the graphical viewer.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// WorldConfig holds the toroidal world geometry.
// The world is a cube of half-edge Radius whose opposite faces are
// identified, so coordinates live in [-Radius, Radius) per axis.
type WorldConfig struct {
	Radius   float64 `yaml:"radius"`    // Cube half-edge in world units
	CellSize float64 `yaml:"cell_size"` // Spatial index cell edge
}

// PhysicsConfig holds particle physics parameters.
type PhysicsConfig struct {
	Density  float64 `yaml:"density"`   // Unit mass per volume; sets radius = f(mass, density)
	MaxSpeed float64 `yaml:"max_speed"` // Hard cap on per-tick displacement
}

// DecayConfig holds emission/instability parameters.
// A monad with mass between the stability and radiation thresholds is
// metastable; at the radiation threshold the instability ratio reaches 1.
type DecayConfig struct {
	StabilityThreshold float64 `yaml:"stability_threshold"` // Mass below which no emission occurs
	RadiationThreshold float64 `yaml:"radiation_threshold"` // Mass at which instability ratio reaches 1
	MaxEmission        int     `yaml:"max_emission"`        // Cap on quanta owed per invocation
	DecayRate          float64 `yaml:"decay_rate"`          // Emission gate exponent is 1/decay_rate
	Uniformity         float64 `yaml:"uniformity"`          // Emission count exponent; higher skews toward 1
	ImpactSpread       float64 `yaml:"impact_spread"`       // Stddev of impact-matching emission velocity
}

// BondConfig holds bond-maintenance thresholds, expressed as
// surface gap / combined radius. Ordering: merge < push_out <= pull_in < break.
type BondConfig struct {
	MergeRatio float64 `yaml:"merge_ratio"` // Below this the pair collapses into one monad
	PushOut    float64 `yaml:"push_out"`    // Lower edge of the rest band
	PullIn     float64 `yaml:"pull_in"`     // Upper edge of the rest band
	BreakRatio float64 `yaml:"break_ratio"` // Above this the bond snaps
}

// TogglesConfig holds boolean feature switches consumed at tick start.
type TogglesConfig struct {
	Collision      bool `yaml:"collision"`
	Bonding        bool `yaml:"bonding"`
	Merging        bool `yaml:"merging"`
	Freezing       bool `yaml:"freezing"`
	Displacement   bool `yaml:"displacement"`   // Evict oldest quantum when the pool runs dry
	Reabsorption   bool `yaml:"reabsorption"`   // Return an evicted quantum's unit to its parent
	Absorption     bool `yaml:"absorption"`     // Monads absorb quanta on contact
	QuantaCollide  bool `yaml:"quanta_collide"` // Quanta participate in collisions
	ImpactEmission bool `yaml:"impact_emission"`
}

// PoolConfig holds particle pool sizing.
type PoolConfig struct {
	Capacity int `yaml:"capacity"`
}

// GenesisConfig holds initial population parameters.
type GenesisConfig struct {
	Count         int     `yaml:"count"`
	MinMass       int     `yaml:"min_mass"`
	MaxMass       int     `yaml:"max_mass"`
	ChargeSkew    float64 `yaml:"charge_skew"`    // [-0.5, 0.5]; shifts the attracton probability from 0.5
	SpeedFraction float64 `yaml:"speed_fraction"` // Initial speed as a fraction of max_speed
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindowTicks    int `yaml:"stats_window_ticks"`
	PerfCollectorWindow int `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	GridLength      int     // Cells per axis = ceil(2*Radius / CellSize)
	CellCount       int     // GridLength cubed
	HalfCell        float64 // CellSize / 2; the oversized-particle threshold
	EmissionReserve int     // Free slots held back from emission = min(capacity/8, max_emission)
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.Finalize()

	return cfg, nil
}

// Finalize computes derived values from the loaded fields. Load calls
// this automatically; tests that build a Config by hand call it directly.
func (c *Config) Finalize() {
	if c.World.CellSize > 0 {
		c.Derived.GridLength = int(math.Ceil(2 * c.World.Radius / c.World.CellSize))
	}
	if c.Derived.GridLength < 1 {
		c.Derived.GridLength = 1
	}
	c.Derived.CellCount = c.Derived.GridLength * c.Derived.GridLength * c.Derived.GridLength
	c.Derived.HalfCell = c.World.CellSize / 2

	reserve := c.Pool.Capacity / 8
	if c.Decay.MaxEmission < reserve {
		reserve = c.Decay.MaxEmission
	}
	c.Derived.EmissionReserve = reserve
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
