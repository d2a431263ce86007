package main

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/talgya/brains/internal/agents"
	"github.com/talgya/brains/internal/learning"
)

// World choices for BRAINS_WORLD.
const (
	WorldClassic   = "classic"
	WorldGenerated = "generated"
)

// Config is everything the command reads from the environment.
type Config struct {
	DBPath          string // "" disables the run history
	World           string
	Seed            int64
	Train           learning.TrainConfig
	Horizon         uint32
	EvalEpisodes    int
	ChartPath       string // "" disables the chart
	TrajectoryPath  string // "" disables the export
	TrajectoryEvery int
	Population      int
	Ticks           uint64
	Watch           bool
	Color           bool
	TickInterval    time.Duration
}

func loadConfig(getenv func(string) string) (Config, error) {
	env := envReader{getenv: getenv}
	horizon := env.intVar("BRAINS_HORIZON", agents.DefaultHorizon)
	ticks := env.intVar("BRAINS_TICKS", 1440)
	tickMS := env.intVar("BRAINS_TICK_MS", 100)
	cfg := Config{
		DBPath:          env.strVar("BRAINS_DB", "data/brains.db"),
		World:           env.strVar("BRAINS_WORLD", WorldClassic),
		Seed:            int64(env.intVar("BRAINS_SEED", 42)),
		Horizon:         uint32(horizon),
		EvalEpisodes:    env.intVar("BRAINS_EVAL_EPISODES", 100),
		ChartPath:       env.strVar("BRAINS_CHART", "data/rewards.html"),
		TrajectoryPath:  env.strVar("BRAINS_TRAJECTORY", ""),
		TrajectoryEvery: env.intVar("BRAINS_TRAJECTORY_EVERY", 100),
		Population:      env.intVar("BRAINS_POPULATION", 10),
		Ticks:           uint64(ticks),
		Watch:           env.boolVar("BRAINS_WATCH", false),
		Color:           env.boolVar("BRAINS_COLOR", true),
		TickInterval:    time.Duration(tickMS) * time.Millisecond,
	}

	def := learning.DefaultTrainConfig()
	cfg.Train = learning.TrainConfig{
		Episodes: env.intVar("BRAINS_EPISODES", def.Episodes),
		Alpha:    env.floatVar("BRAINS_ALPHA", def.Alpha),
		Gamma:    env.floatVar("BRAINS_GAMMA", def.Gamma),
		Epsilon:  env.floatVar("BRAINS_EPSILON", def.Epsilon),
	}

	if env.err != nil {
		return Config{}, env.err
	}
	if cfg.World != WorldClassic && cfg.World != WorldGenerated {
		return Config{}, fmt.Errorf("BRAINS_WORLD %q: want %s or %s", cfg.World, WorldClassic, WorldGenerated)
	}
	for _, c := range []struct {
		key string
		v   int
		min int
	}{
		{"BRAINS_HORIZON", horizon, 1},
		{"BRAINS_EVAL_EPISODES", cfg.EvalEpisodes, 1},
		{"BRAINS_TRAJECTORY_EVERY", cfg.TrajectoryEvery, 1},
		{"BRAINS_POPULATION", cfg.Population, 0},
		{"BRAINS_TICKS", ticks, 1},
		{"BRAINS_TICK_MS", tickMS, 0},
	} {
		if c.v < c.min {
			return Config{}, fmt.Errorf("%s %d: must be at least %d", c.key, c.v, c.min)
		}
	}
	if int64(horizon) > math.MaxUint32 {
		return Config{}, fmt.Errorf("BRAINS_HORIZON %d: out of range", horizon)
	}
	if err := cfg.Train.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envReader parses variables, keeping the first malformed one.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) strVar(key, def string) string {
	if v, ok := e.lookup(key); ok {
		if v == "off" {
			return ""
		}
		return v
	}
	return def
}

func (e *envReader) intVar(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) floatVar(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *envReader) boolVar(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) lookup(key string) (string, bool) {
	v := e.getenv(key)
	return v, v != ""
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s=%q: %w", key, value, err)
	}
}
