// Command brains trains humans to survive on a grid world with tabular
// Q-learning, evaluates the learned policy and then lets a population live
// by it, headless or in a terminal viewer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/logrusorgru/aurora"

	"github.com/talgya/brains/internal/agents"
	"github.com/talgya/brains/internal/engine"
	"github.com/talgya/brains/internal/learning"
	"github.com/talgya/brains/internal/persistence"
	"github.com/talgya/brains/internal/report"
	"github.com/talgya/brains/internal/trajectory"
	"github.com/talgya/brains/internal/viewer"
	"github.com/talgya/brains/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("brains failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) error {
	au := aurora.NewAurora(cfg.Color)

	// ── World ─────────────────────────────────────────────────────────
	env, err := buildWorld(cfg)
	if err != nil {
		return fmt.Errorf("build world: %w", err)
	}
	slog.Info("world ready",
		"kind", cfg.World,
		"size", fmt.Sprintf("%dx%d", env.Height(), env.Width()),
		"lakes", len(env.Lakes()),
		"forests", len(env.Forests()),
	)

	// ── Policy ────────────────────────────────────────────────────────
	enc := agents.NewEncoder(env)
	policy := learning.NewPolicy()
	if err := policy.Init(enc.NbStates(), agents.NbActions, rand.New(rand.NewSource(cfg.Seed))); err != nil {
		return err
	}
	slog.Info("policy allocated",
		"states", humanize.Comma(int64(enc.NbStates())),
		"actions", agents.NbActions,
		"cardinalities", fmt.Sprint(enc.Cardinalities()),
	)

	// ── Run history ───────────────────────────────────────────────────
	var db *persistence.DB
	runID := "local"
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return err
		}
		db, err = persistence.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		r, err := db.CreateRun(persistence.RunSpec{
			World:     cfg.World,
			Height:    env.Height(),
			Width:     env.Width(),
			NbStates:  enc.NbStates(),
			NbActions: agents.NbActions,
			Seed:      cfg.Seed,
			Config:    cfg.Train,
		})
		if err != nil {
			return err
		}
		runID = r.ID
	}

	var traj *trajectory.Writer
	if cfg.TrajectoryPath != "" {
		traj, err = trajectory.NewWriter(cfg.TrajectoryPath, runID, cfg.TrajectoryEvery)
		if err != nil {
			return err
		}
		// Any early return below leaves no partial export behind.
		defer traj.Abort()
	}

	// ── Training ──────────────────────────────────────────────────────
	trainee := agents.NewHuman(0, world.Pos(0, 0), env, policy)
	trainee.Horizon = cfg.Horizon

	var rec *persistence.EpisodeRecorder
	hooks := learning.Hooks{}
	if db != nil {
		rec = persistence.NewEpisodeRecorder(db, runID, persistence.DefaultBatchSize)
		hooks.OnEpisode = rec.Record
	}
	if traj != nil {
		hooks.OnStep = traj.Record
	}

	rng := rand.New(rand.NewSource(cfg.Seed + 1))
	stats, trainErr := learning.Train(ctx, policy, trainee, cfg.Train, rng, hooks)
	if rec != nil {
		if err := rec.Flush(); err != nil {
			slog.Error("episode history incomplete", "error", err, "saved", rec.Saved())
		}
	}
	if trainErr != nil {
		return trainErr
	}
	if db != nil {
		if err := db.FinishRun(runID, stats); err != nil {
			return err
		}
	}
	fmt.Println(report.TrainSummary(stats))

	// ── Evaluation ────────────────────────────────────────────────────
	evalHooks := learning.Hooks{}
	if traj != nil {
		traj.SetPhase(trajectory.PhaseEvaluate)
		evalHooks.OnStep = traj.Record
	}
	eval, err := learning.Evaluate(ctx, policy, trainee, cfg.EvalEpisodes, rand.New(rand.NewSource(cfg.Seed+2)), evalHooks)
	if traj != nil {
		if cerr := traj.Close(); cerr != nil {
			slog.Error("trajectory export failed", "error", cerr)
		} else {
			slog.Info("trajectory exported", "path", cfg.TrajectoryPath, "rows", humanize.Comma(int64(traj.Rows())))
		}
	}
	if err != nil {
		return err
	}
	fmt.Println(report.EvalSummary(eval))

	if db != nil {
		if err := db.SaveEvaluation(runID, eval); err != nil {
			return err
		}
		if err := db.SaveMeta("last_run", runID); err != nil {
			return err
		}
	}

	// ── Reports ───────────────────────────────────────────────────────
	if cfg.ChartPath != "" {
		window := max(stats.Episodes/100, 1)
		err := report.WriteRewardChartFile(cfg.ChartPath, "Reward per episode",
			report.Series{Name: "episode reward", Values: stats.EpisodeRewards},
			report.Series{Name: "moving average (" + strconv.Itoa(window) + ")", Values: report.MovingAverage(stats.EpisodeRewards, window)},
		)
		if err != nil {
			slog.Error("chart failed", "error", err)
		} else {
			slog.Info("reward chart written", "path", cfg.ChartPath)
		}
	}
	for _, probe := range []struct {
		title          string
		thirst, hunger int
	}{
		{"thirsty", 30, 100},
		{"hungry", 100, 30},
	} {
		m, err := report.PolicyMap(env, policy, probe.thirst, probe.hunger, au)
		if err != nil {
			return err
		}
		fmt.Printf("\nGreedy policy when %s:\n%s", probe.title, m)
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(env, policy, cfg.Seed)
	sim.SetHorizon(cfg.Horizon)
	sim.Populate(cfg.Population)

	if cfg.Watch {
		err = viewer.Run(ctx, viewer.New(sim, au, cfg.TickInterval))
	} else {
		err = simulate(ctx, sim, cfg.Ticks)
	}
	if err != nil {
		return err
	}

	snap := sim.Snapshot()
	if db != nil {
		if err := db.SaveEvents(snap.Events); err != nil {
			slog.Error("saving events failed", "error", err)
		}
	}
	fmt.Printf("\nAfter %s ticks (%s): %d of %d alive\n%s",
		humanize.Comma(int64(snap.Tick)), engine.SimTime(snap.Tick),
		snap.Stats.Alive, snap.Stats.Population,
		report.Grid(snap.Env, snap.Humans, au))
	return nil
}

func buildWorld(cfg Config) (*world.Environment, error) {
	if cfg.World == WorldGenerated {
		gen := world.DefaultGenConfig()
		gen.Seed = cfg.Seed
		return world.Generate(gen)
	}
	return world.Classic()
}

// simulate ticks as fast as possible until ticks have passed, everyone has
// died, or ctx is done.
func simulate(ctx context.Context, sim *engine.Simulation, ticks uint64) error {
	eng := engine.NewEngine()
	eng.Interval = 0

	var tickErr error
	eng.OnTick = func(tick uint64) {
		if err := sim.TickMinute(tick); err != nil {
			tickErr = err
			eng.Stop()
			return
		}
		st := sim.Stats()
		if tick >= ticks || (st.Population > 0 && st.Alive == 0) {
			eng.Stop()
		}
	}
	eng.OnReport = sim.TickReport

	eng.Run(ctx)
	if tickErr != nil {
		return tickErr
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
