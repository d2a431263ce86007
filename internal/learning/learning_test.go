package learning

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// banditAgent has a single state; one action pays 1, every other pays 0.
type banditAgent struct {
	good    int
	horizon int
	steps   int
	resets  int
	failAt  int // step on which SimulateAction errors, 0 = never
}

var errBandit = errors.New("bandit broke")

func (b *banditAgent) Reset(*rand.Rand) (StateKey, error) {
	b.steps = 0
	b.resets++
	return 0, nil
}

func (b *banditAgent) SimulateAction(action int) (StateKey, float64, bool, error) {
	b.steps++
	if b.failAt > 0 && b.steps == b.failAt {
		return 0, 0, false, errBandit
	}
	reward := 0.0
	if action == b.good {
		reward = 1
	}
	return 0, reward, b.steps >= b.horizon, nil
}

// badKeyAgent returns a next state outside the table.
type badKeyAgent struct{}

func (badKeyAgent) Reset(*rand.Rand) (StateKey, error) { return 0, nil }
func (badKeyAgent) SimulateAction(int) (StateKey, float64, bool, error) {
	return 99, 0, false, nil
}

func TestPolicyInitIsOneShot(t *testing.T) {
	p := NewPolicy()
	assert.False(t, p.Initialized())
	assert.ErrorIs(t, p.Init(0, 3, nil), ErrInvalidConfig)

	require.NoError(t, p.Init(4, 3, nil))
	assert.Equal(t, 4, p.NbStates())
	assert.Equal(t, 3, p.NbActions())
	assert.ErrorIs(t, p.Init(4, 3, nil), ErrAlreadyInitialized)
}

func TestPolicyRandomInitRange(t *testing.T) {
	p := NewPolicy()
	require.NoError(t, p.Init(50, 6, rand.New(rand.NewSource(1))))
	for s := 0; s < 50; s++ {
		for a := 0; a < 6; a++ {
			v := p.Value(StateKey(s), a)
			assert.GreaterOrEqual(t, v, -1.0)
			assert.Less(t, v, 1.0)
		}
	}
}

func TestPredictActionMatchesNaiveArgmax(t *testing.T) {
	const states, actions = 200, 7
	rng := rand.New(rand.NewSource(7))
	p := NewPolicy()
	require.NoError(t, p.Init(states, actions, nil))
	for s := 0; s < states; s++ {
		for a := 0; a < actions; a++ {
			// Coarse values so ties happen often.
			p.SetValue(StateKey(s), a, float64(rng.Intn(5)))
		}
	}

	for s := 0; s < states; s++ {
		want := 0
		for a := 1; a < actions; a++ {
			if p.Value(StateKey(s), a) > p.Value(StateKey(s), want) {
				want = a
			}
		}
		got, err := p.PredictAction(StateKey(s))
		require.NoError(t, err)
		assert.Equal(t, want, got, "state %d", s)
	}
}

func TestPolicyRejectsBadKeys(t *testing.T) {
	p := NewPolicy()
	_, err := p.PredictAction(0)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, p.Init(3, 2, nil))
	for _, s := range []StateKey{-1, 3, 100} {
		_, err := p.PredictAction(s)
		assert.ErrorIs(t, err, ErrStateOutOfRange)
		_, err = p.MaxValue(s)
		assert.ErrorIs(t, err, ErrStateOutOfRange)
		_, err = p.Row(s)
		assert.ErrorIs(t, err, ErrStateOutOfRange)
	}
	assert.ErrorIs(t, p.Update(0, 0, 1, 3, 0.5, 0.5), ErrStateOutOfRange)
	assert.ErrorIs(t, p.Update(0, 2, 1, 1, 0.5, 0.5), ErrActionOutOfRange)
}

func TestUpdateAlphaBounds(t *testing.T) {
	newTable := func() *Policy {
		p := NewPolicy()
		require.NoError(t, p.Init(2, 3, nil))
		p.SetValue(0, 1, 4)
		p.SetValue(1, 0, -2)
		p.SetValue(1, 1, 3)
		p.SetValue(1, 2, 1)
		return p
	}

	p := newTable()
	require.NoError(t, p.Update(0, 1, 10, 1, 0, 0.9))
	assert.Equal(t, 4.0, p.Value(0, 1))

	p = newTable()
	require.NoError(t, p.Update(0, 1, 10, 1, 1, 0.5))
	assert.InDelta(t, 10+0.5*3, p.Value(0, 1), 1e-12)

	p = newTable()
	require.NoError(t, p.Update(0, 1, 2, 1, 0.25, 0.5))
	assert.InDelta(t, 0.75*4+0.25*(2+0.5*3), p.Value(0, 1), 1e-12)
}

func TestTrainConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultTrainConfig().Validate())
	for _, cfg := range []TrainConfig{
		{Episodes: -1},
		{Episodes: 1, Alpha: 1.5},
		{Episodes: 1, Gamma: -0.1},
		{Episodes: 1, Epsilon: 2},
	} {
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, "%+v", cfg)
	}
}

func TestTrainLearnsBanditAndEvaluateIsReadOnly(t *testing.T) {
	p := NewPolicy()
	require.NoError(t, p.Init(1, 4, rand.New(rand.NewSource(3))))
	agent := &banditAgent{good: 2, horizon: 5}

	var steps, episodes int
	hooks := Hooks{
		OnStep:    func(Transition) { steps++ },
		OnEpisode: func(ep Episode) { episodes++; assert.True(t, ep.Training) },
	}
	cfg := TrainConfig{Episodes: 200, Alpha: 0.5, Gamma: 0.5, Epsilon: 0.2}
	stats, err := Train(context.Background(), p, agent, cfg, rand.New(rand.NewSource(4)), hooks)
	require.NoError(t, err)

	assert.Equal(t, 200, stats.Episodes)
	assert.Equal(t, 1000, stats.Steps)
	assert.Equal(t, 1000, steps)
	assert.Equal(t, 200, episodes)
	assert.Len(t, stats.EpisodeRewards, 200)
	total := 0
	for _, c := range stats.ActionCounts {
		total += c
	}
	assert.Equal(t, 1000, total)

	best, err := p.PredictAction(0)
	require.NoError(t, err)
	assert.Equal(t, 2, best)

	before, err := p.Row(0)
	require.NoError(t, err)
	eval, err := Evaluate(context.Background(), p, agent, 10, rand.New(rand.NewSource(5)), Hooks{})
	require.NoError(t, err)
	after, err := p.Row(0)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, 5.0, eval.AvgLifetime)
	assert.Equal(t, 0.0, eval.LifetimeStdDev)
	assert.InDelta(t, 1.0, eval.AvgReward, 1e-12)
	assert.Equal(t, []int{0, 0, 50, 0}, eval.ActionCounts)
}

func TestTrainAbortsOnAgentError(t *testing.T) {
	p := NewPolicy()
	require.NoError(t, p.Init(1, 2, nil))
	agent := &banditAgent{horizon: 10, failAt: 3}

	stats, err := Train(context.Background(), p, agent, TrainConfig{Episodes: 5, Alpha: 0.1}, rand.New(rand.NewSource(1)), Hooks{})
	assert.ErrorIs(t, err, errBandit)
	assert.Equal(t, 0, stats.Episodes)
	assert.Equal(t, 1, agent.resets)
}

func TestTrainAbortsOnOutOfRangeKey(t *testing.T) {
	p := NewPolicy()
	require.NoError(t, p.Init(2, 2, nil))
	_, err := Train(context.Background(), p, badKeyAgent{}, TrainConfig{Episodes: 1, Alpha: 0.1}, rand.New(rand.NewSource(1)), Hooks{})
	assert.ErrorIs(t, err, ErrStateOutOfRange)
}

func TestTrainRequiresInit(t *testing.T) {
	_, err := Train(context.Background(), NewPolicy(), &banditAgent{horizon: 1}, TrainConfig{Episodes: 1}, rand.New(rand.NewSource(1)), Hooks{})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestTrainStopsBetweenEpisodesOnCancel(t *testing.T) {
	p := NewPolicy()
	require.NoError(t, p.Init(1, 2, nil))
	agent := &banditAgent{horizon: 3}

	ctx, cancel := context.WithCancel(context.Background())
	hooks := Hooks{OnEpisode: func(ep Episode) {
		if ep.Index == 1 {
			cancel()
		}
	}}
	stats, err := Train(ctx, p, agent, TrainConfig{Episodes: 10, Alpha: 0.1}, rand.New(rand.NewSource(1)), hooks)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, stats.Episodes)
	assert.Equal(t, 6, stats.Steps)
	// Averaged over the two finished episodes, not the ten requested.
	assert.InDelta(t, 1.0, stats.AvgReward, 1e-9)
}

func TestEvaluateRejectsNoEpisodes(t *testing.T) {
	p := NewPolicy()
	require.NoError(t, p.Init(1, 2, nil))
	_, err := Evaluate(context.Background(), p, &banditAgent{horizon: 1}, 0, rand.New(rand.NewSource(1)), Hooks{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunsRequireRandomSource(t *testing.T) {
	p := NewPolicy()
	require.NoError(t, p.Init(1, 2, nil))
	agent := &banditAgent{horizon: 1}

	_, err := Train(context.Background(), p, agent, TrainConfig{Episodes: 1, Alpha: 0.1}, nil, Hooks{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = Evaluate(context.Background(), p, agent, 1, nil, Hooks{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Zero(t, agent.resets)
}
