package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/logrusorgru/aurora"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/brains/internal/agents"
	"github.com/talgya/brains/internal/engine"
	"github.com/talgya/brains/internal/learning"
	"github.com/talgya/brains/internal/world"
)

var plain = aurora.NewAurora(false)

func TestDownsample(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, Downsample([]float64{1, 2}, 5))
	assert.Equal(t, []float64{1.5, 3.5, 5.5}, Downsample([]float64{1, 2, 3, 4, 5, 6}, 3))
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	assert.Equal(t, []float64{2, 3, 5, 7}, got)
	assert.Equal(t, []float64{2, 4}, MovingAverage([]float64{2, 4}, 1))
}

func TestWriteRewardChart(t *testing.T) {
	var buf bytes.Buffer
	rewards := make([]float64, 2500)
	for i := range rewards {
		rewards[i] = float64(i)
	}
	require.NoError(t, WriteRewardChart(&buf, "reward per episode",
		Series{Name: "episode reward", Values: rewards},
		Series{Name: "moving average", Values: MovingAverage(rewards, 100)},
	))
	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "moving average")

	assert.Error(t, WriteRewardChart(&buf, "empty"))

	path := filepath.Join(t.TempDir(), "charts", "rewards.html")
	require.NoError(t, WriteRewardChartFile(path, "file", Series{Name: "r", Values: rewards[:10]}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestGrid(t *testing.T) {
	env, err := world.NewEnvironment(3, 4)
	require.NoError(t, err)
	env.AddLake(world.Pos(0, 0), world.Pos(1, 2))
	env.AddForest(world.Pos(2, 3), world.Pos(3, 4))
	env.PlaceRegion(world.Pos(1, 0), world.Pos(2, 1), world.Grass(0.5))

	humans := []engine.HumanView{
		{Position: world.Pos(1, 2), Alive: true},
		{Position: world.Pos(2, 0), Alive: false},
		{Position: world.Pos(0, 0), Alive: false},
		{Position: world.Pos(0, 0), Alive: true},
	}
	want := "@~..\n" +
		",.@.\n" +
		"x..T\n"
	assert.Equal(t, want, Grid(env, humans, plain))
}

func TestPolicyMap(t *testing.T) {
	env, err := world.NewEnvironment(2, 3)
	require.NoError(t, err)
	env.AddLake(world.Pos(0, 0), world.Pos(1, 1))

	enc := agents.NewEncoder(env)
	p := learning.NewPolicy()
	require.NoError(t, p.Init(enc.NbStates(), agents.NbActions, nil))

	// Thirsty on the lake: drink. Everywhere else the zero row picks the first column.
	probe := agents.NewHuman(0, world.Pos(0, 0), env, p)
	probe.Thirst.Value = 30
	key, err := enc.Encode(probe)
	require.NoError(t, err)
	p.SetValue(key, agents.Drink, 5)

	got, err := PolicyMap(env, p, 30, 100, plain)
	require.NoError(t, err)
	assert.Equal(t, "Dvv\nvvv\n", got)

	_, err = PolicyMap(env, learning.NewPolicy(), 30, 100, plain)
	assert.ErrorIs(t, err, learning.ErrNotInitialized)
}

func TestSummaries(t *testing.T) {
	s := TrainSummary(learning.TrainStats{
		Episodes:     100000,
		Steps:        12345678,
		AvgReward:    1.25,
		ActionCounts: []int{1, 1, 1, 1, 4, 0},
	})
	assert.Contains(t, s, "100,000 episodes")
	assert.Contains(t, s, "12,345,678 steps")
	assert.Contains(t, s, "drink 4 (50.0%)")

	e := EvalSummary(learning.EvalStats{Episodes: 10, AvgLifetime: 150, ActionCounts: make([]int, agents.NbActions)})
	assert.Contains(t, e, "lifetime 150.0")
	assert.True(t, strings.HasSuffix(e, "eat 0 (0.0%)"))
}
