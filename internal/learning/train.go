package learning

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// Agent is anything the training loop can drive through episodes.
type Agent interface {
	// Reset starts a fresh episode and returns its initial state. rng is
	// never nil.
	Reset(rng *rand.Rand) (StateKey, error)
	// SimulateAction executes an action plus one time step and returns the
	// next state, the reward for the transition and whether the episode ended.
	SimulateAction(action int) (next StateKey, reward float64, done bool, err error)
}

// TrainConfig holds the Q-learning hyperparameters. They stay constant for
// the whole run.
type TrainConfig struct {
	Episodes int     // Reset-to-termination runs
	Alpha    float64 // Learning rate
	Gamma    float64 // Discount factor
	Epsilon  float64 // Probability of a uniformly random action
}

// DefaultTrainConfig returns the hyperparameters the classic world was trained with.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Episodes: 100000,
		Alpha:    0.1,
		Gamma:    0.6,
		Epsilon:  0.1,
	}
}

// Validate checks every parameter lies in its legal range.
func (c TrainConfig) Validate() error {
	switch {
	case c.Episodes < 0:
		return fmt.Errorf("episodes %d: %w", c.Episodes, ErrInvalidConfig)
	case c.Alpha < 0 || c.Alpha > 1:
		return fmt.Errorf("alpha %v: %w", c.Alpha, ErrInvalidConfig)
	case c.Gamma < 0 || c.Gamma > 1:
		return fmt.Errorf("gamma %v: %w", c.Gamma, ErrInvalidConfig)
	case c.Epsilon < 0 || c.Epsilon > 1:
		return fmt.Errorf("epsilon %v: %w", c.Epsilon, ErrInvalidConfig)
	}
	return nil
}

// Transition is one (s, a, r, s') step of an episode.
type Transition struct {
	Episode int
	Step    int
	State   StateKey
	Action  int
	Reward  float64
	Next    StateKey
	Done    bool
}

// Episode summarizes one finished episode.
type Episode struct {
	Index       int
	Lifetime    int // Steps until termination
	TotalReward float64
	Training    bool
}

// AvgReward returns the mean per-step reward of the episode.
func (e Episode) AvgReward() float64 {
	if e.Lifetime == 0 {
		return 0
	}
	return e.TotalReward / float64(e.Lifetime)
}

// Hooks observe a run without influencing it. Either callback may be nil.
type Hooks struct {
	OnStep    func(Transition)
	OnEpisode func(Episode)
}

// TrainStats are diagnostics accumulated across a training run. They play
// no part in the update rule.
type TrainStats struct {
	Episodes       int
	Steps          int
	AvgReward      float64 // Mean over episodes of the per-step reward
	ActionCounts   []int
	EpisodeRewards []float64 // Total reward of each episode, in order
	RewardMean     float64
	RewardStdDev   float64
}

// EvalStats summarize a greedy evaluation run.
type EvalStats struct {
	Episodes       int
	AvgLifetime    float64
	LifetimeStdDev float64
	AvgReward      float64 // Mean over episodes of the per-step reward
	ActionCounts   []int
}

// Train runs epsilon-greedy Q-learning on an initialized policy. The context
// is checked between episodes only, so no update is ever half-applied. Any
// agent or table error aborts the run. rng drives exploration and episode
// starts and must not be nil.
func Train(ctx context.Context, p *Policy, agent Agent, cfg TrainConfig, rng *rand.Rand, hooks Hooks) (TrainStats, error) {
	if err := cfg.Validate(); err != nil {
		return TrainStats{}, err
	}
	if !p.Initialized() {
		return TrainStats{}, ErrNotInitialized
	}
	if rng == nil {
		return TrainStats{}, fmt.Errorf("training needs a random source: %w", ErrInvalidConfig)
	}

	r := runner{
		policy:  p,
		agent:   agent,
		rng:     rng,
		hooks:   hooks,
		learn:   true,
		alpha:   cfg.Alpha,
		gamma:   cfg.Gamma,
		epsilon: cfg.Epsilon,
		counts:  make([]int, p.NbActions()),
	}

	slog.Info("training begins",
		"episodes", cfg.Episodes,
		"alpha", cfg.Alpha,
		"gamma", cfg.Gamma,
		"epsilon", cfg.Epsilon,
		"states", p.NbStates(),
		"actions", p.NbActions(),
	)

	stats := TrainStats{EpisodeRewards: make([]float64, 0, cfg.Episodes)}
	var rewardSum float64
	tenth := max(cfg.Episodes/10, 1)
	for i := 0; i < cfg.Episodes; i++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("training stopped after %d episodes: %w", i, err)
		}

		ep, err := r.episode(i)
		if err != nil {
			return stats, fmt.Errorf("training episode %d: %w", i, err)
		}
		stats.Episodes++
		stats.Steps += ep.Lifetime
		rewardSum += ep.AvgReward()
		stats.AvgReward = rewardSum / float64(stats.Episodes)
		stats.EpisodeRewards = append(stats.EpisodeRewards, ep.TotalReward)

		if (i+1)%tenth == 0 {
			slog.Info("training progress", "percent", (i+1)*100/cfg.Episodes, "episode", i+1)
		}
	}

	stats.ActionCounts = r.counts
	stats.RewardMean, stats.RewardStdDev = meanStdDev(stats.EpisodeRewards)

	slog.Info("training finished",
		"episodes", stats.Episodes,
		"steps", stats.Steps,
		"avg_reward", fmt.Sprintf("%.3f", stats.AvgReward),
		"action_counts", fmt.Sprint(stats.ActionCounts),
	)
	return stats, nil
}

// Evaluate runs the greedy policy without touching the table. rng picks
// episode starts and must not be nil.
func Evaluate(ctx context.Context, p *Policy, agent Agent, episodes int, rng *rand.Rand, hooks Hooks) (EvalStats, error) {
	if episodes <= 0 {
		return EvalStats{}, fmt.Errorf("evaluate %d episodes: %w", episodes, ErrInvalidConfig)
	}
	if !p.Initialized() {
		return EvalStats{}, ErrNotInitialized
	}
	if rng == nil {
		return EvalStats{}, fmt.Errorf("evaluation needs a random source: %w", ErrInvalidConfig)
	}

	r := runner{
		policy: p,
		agent:  agent,
		rng:    rng,
		hooks:  hooks,
		counts: make([]int, p.NbActions()),
	}

	lifetimes := make([]float64, 0, episodes)
	stats := EvalStats{}
	var rewardSum float64
	for i := 0; i < episodes; i++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("evaluation stopped after %d episodes: %w", i, err)
		}

		ep, err := r.episode(i)
		if err != nil {
			return stats, fmt.Errorf("evaluation episode %d: %w", i, err)
		}
		stats.Episodes++
		rewardSum += ep.AvgReward()
		stats.AvgReward = rewardSum / float64(stats.Episodes)
		lifetimes = append(lifetimes, float64(ep.Lifetime))
	}

	stats.ActionCounts = r.counts
	stats.AvgLifetime, stats.LifetimeStdDev = meanStdDev(lifetimes)

	slog.Info("evaluation finished",
		"episodes", stats.Episodes,
		"avg_lifetime", fmt.Sprintf("%.1f", stats.AvgLifetime),
		"avg_reward", fmt.Sprintf("%.3f", stats.AvgReward),
		"action_counts", fmt.Sprint(stats.ActionCounts),
	)
	return stats, nil
}

// runner drives single episodes for both training and evaluation.
type runner struct {
	policy *Policy
	agent  Agent
	rng    *rand.Rand
	hooks  Hooks

	learn   bool
	alpha   float64
	gamma   float64
	epsilon float64

	counts []int
}

func (r *runner) episode(index int) (Episode, error) {
	ep := Episode{Index: index, Training: r.learn}

	state, err := r.agent.Reset(r.rng)
	if err != nil {
		return ep, fmt.Errorf("reset: %w", err)
	}

	for done := false; !done; {
		action, err := r.selectAction(state)
		if err != nil {
			return ep, err
		}
		r.counts[action]++

		next, reward, finished, err := r.agent.SimulateAction(action)
		if err != nil {
			return ep, fmt.Errorf("step %d action %d: %w", ep.Lifetime, action, err)
		}

		if r.learn {
			if err := r.policy.Update(state, action, reward, next, r.alpha, r.gamma); err != nil {
				return ep, fmt.Errorf("step %d update: %w", ep.Lifetime, err)
			}
		}

		if r.hooks.OnStep != nil {
			r.hooks.OnStep(Transition{
				Episode: index,
				Step:    ep.Lifetime,
				State:   state,
				Action:  action,
				Reward:  reward,
				Next:    next,
				Done:    finished,
			})
		}

		ep.Lifetime++
		ep.TotalReward += reward
		state = next
		done = finished
	}

	if r.hooks.OnEpisode != nil {
		r.hooks.OnEpisode(ep)
	}
	return ep, nil
}

// meanStdDev is stat.MeanStdDev that tolerates fewer than two samples.
func meanStdDev(x []float64) (mean, std float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

func (r *runner) selectAction(state StateKey) (int, error) {
	if r.epsilon > 0 && r.rng.Float64() < r.epsilon {
		return r.rng.Intn(len(r.counts)), nil
	}
	return r.policy.PredictAction(state)
}
