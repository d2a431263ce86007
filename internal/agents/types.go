// Package agents provides the human model: survival needs, the action set,
// the per-tick decay, reward shaping and the state encoder that connects a
// human to a learned policy.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/brains/internal/learning"
	"github.com/talgya/brains/internal/world"
)

// HumanID is a unique identifier for a human.
type HumanID uint64

// DefaultHorizon is the age after which an episode ends as survived.
const DefaultHorizon = 10000

// Human is a single simulated person. The environment and policy are shared
// handles owned by whoever drives the simulation; a human never mutates them.
type Human struct {
	ID HumanID `json:"id"`

	Position world.Position `json:"position"`
	Age      uint32         `json:"age"` // Ticks lived
	Alive    bool           `json:"alive"`

	Hunger Need `json:"hunger"`
	Thirst Need `json:"thirst"`
	Energy Need `json:"energy"`
	Money  Need `json:"money"`

	Horizon uint32 `json:"horizon"`

	env     *world.Environment
	policy  *learning.Policy
	encoder *Encoder
}

var _ learning.Agent = (*Human)(nil)

// NewHuman creates a human with full needs at pos. policy may be nil for a
// human that is only ever trained, never stepped.
func NewHuman(id HumanID, pos world.Position, env *world.Environment, policy *learning.Policy) *Human {
	h := &Human{
		ID:       id,
		Position: pos,
		Horizon:  DefaultHorizon,
		env:      env,
		policy:   policy,
		encoder:  NewEncoder(env),
	}
	h.restore()
	return h
}

// Environment returns the shared environment handle.
func (h *Human) Environment() *world.Environment { return h.env }

// Encoder returns the encoder bound to this human's environment.
func (h *Human) Encoder() *Encoder { return h.encoder }

// CurrentCell returns the cell the human stands on.
func (h *Human) CurrentCell() (world.Cell, error) {
	return h.env.CellAt(h.Position)
}

func (h *Human) restore() {
	h.Age = 0
	h.Alive = true
	h.Hunger = fullNeed(InitialHunger)
	h.Thirst = fullNeed(InitialThirst)
	h.Energy = fullNeed(InitialEnergy)
	h.Money = moneyNeed()
}

// Reset starts a new episode: a random position drawn from rng, full needs,
// age zero.
func (h *Human) Reset(rng *rand.Rand) (learning.StateKey, error) {
	h.Position = world.Pos(rng.Intn(h.env.Height()), rng.Intn(h.env.Width()))
	h.restore()
	return h.encoder.Encode(h)
}

// StepTime advances one tick: every need decays by one, the human dies when
// hunger or thirst bottoms out, and age increments.
func (h *Human) StepTime() {
	h.Hunger.Decay()
	h.Thirst.Decay()
	h.Energy.Decay()
	h.Money.Decay()
	if h.Hunger.AtFloor() || h.Thirst.AtFloor() {
		h.Alive = false
	}
	h.Age++
}

// Survived reports whether the human has outlived the episode horizon.
func (h *Human) Survived() bool {
	return h.Alive && h.Age > h.Horizon
}

// SimulateAction runs action index a, then one tick of decay, and reports the
// resulting state and combined reward.
func (h *Human) SimulateAction(a int) (learning.StateKey, float64, bool, error) {
	reward, err := h.DoAction(a)
	if err != nil {
		return 0, 0, false, err
	}
	h.StepTime()
	reward += h.ComputeReward()

	key, err := h.encoder.Encode(h)
	if err != nil {
		return 0, 0, false, err
	}
	return key, reward, !h.Alive || h.Age > h.Horizon, nil
}

// DoAction executes action index a and returns its immediate reward.
func (h *Human) DoAction(a int) (float64, error) {
	action, err := ActionAt(a)
	if err != nil {
		return 0, err
	}
	return Apply(h, action), nil
}

// ChooseAction returns the greedy action for the human's current state.
func (h *Human) ChooseAction() (int, error) {
	if h.policy == nil {
		return 0, fmt.Errorf("human %d: %w", h.ID, learning.ErrNotInitialized)
	}
	key, err := h.encoder.Encode(h)
	if err != nil {
		return 0, err
	}
	return h.policy.PredictAction(key)
}

// Step is one simulation tick outside training: act greedily, then age.
// Dead humans don't act. It returns the action taken, or -1 if none.
func (h *Human) Step() (int, error) {
	if !h.Alive {
		return -1, nil
	}
	a, err := h.ChooseAction()
	if err != nil {
		return -1, err
	}
	if _, err := h.DoAction(a); err != nil {
		return -1, err
	}
	h.StepTime()
	return a, nil
}
