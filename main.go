package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/marcinas/monads/config"
	"github.com/marcinas/monads/renderer"
	"github.com/marcinas/monads/sim"
	"github.com/marcinas/monads/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int64("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 1, "Simulation ticks per frame (graphics mode)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to initialize output", "error", err)
		os.Exit(1)
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
	}

	engine := sim.NewEngine(cfg, rngSeed)
	engine.Generate()

	collector := telemetry.NewCollector(cfg.Telemetry.StatsWindowTicks)
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)

	slog.Info("starting simulation",
		"seed", rngSeed,
		"headless", *headless,
		"live", engine.Pool().Live(),
		"grid_length", cfg.Derived.GridLength,
		"max_ticks", *maxTicks,
	)

	runner := &runner{
		cfg:       cfg,
		engine:    engine,
		collector: collector,
		perf:      perf,
		output:    output,
		logStats:  *logStats,
	}

	if *headless {
		for {
			runner.step()
			if *maxTicks > 0 && engine.Tick() >= *maxTicks {
				slog.Info("max ticks reached", "tick", engine.Tick())
				return
			}
		}
	}

	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Monads")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	cloud := renderer.NewPointCloud(cfg.World.Radius)
	var views []sim.ParticleView
	paused := false

	for !rl.WindowShouldClose() {
		cloud.HandleInput()
		if rl.IsKeyPressed(rl.KeySpace) {
			paused = !paused
		}

		if !paused {
			for s := 0; s < *stepsPerUpdate; s++ {
				runner.step()
			}
		}

		perf.StartPhase(telemetry.PhaseRender)
		views = engine.Snapshot(views[:0])
		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)
		cloud.Draw(views)
		rl.DrawFPS(10, 10)
		rl.EndDrawing()
		perf.RecordFrame()

		if *maxTicks > 0 && engine.Tick() >= *maxTicks {
			break
		}
	}
}

// runner owns the per-tick loop shared by headless and graphical modes.
type runner struct {
	cfg       *config.Config
	engine    *sim.Engine
	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager
	logStats  bool

	masses []float64
	speeds []float64
}

// step advances one tick and flushes telemetry windows as they fill.
func (r *runner) step() {
	r.perf.StartTick()
	r.perf.StartPhase(telemetry.PhaseStep)

	var st sim.TickStats
	r.engine.Step(&st)

	r.perf.StartPhase(telemetry.PhaseTelemetry)
	r.collector.Record(&st)

	tick := r.engine.Tick()
	if r.collector.ShouldFlush(tick) {
		r.perf.StartPhase(telemetry.PhaseSnapshot)
		r.masses, r.speeds = r.engine.SampleDistributions(r.masses[:0], r.speeds[:0])

		r.perf.StartPhase(telemetry.PhaseTelemetry)
		ws := r.collector.Flush(tick, r.masses, r.speeds)
		if r.logStats {
			slog.Info("window", "stats", ws)
		}
		if err := r.output.WriteTelemetry(ws); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		perfStats := r.perf.Stats()
		if r.logStats {
			perfStats.LogStats()
		}
		if err := r.output.WritePerf(perfStats.Record(tick)); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	r.perf.EndTick()
}
