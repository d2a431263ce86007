// Human spawning: places new humans on the grid and issues their IDs.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/brains/internal/learning"
	"github.com/talgya/brains/internal/world"
)

// Spawner creates humans bound to one environment and policy.
type Spawner struct {
	rng     *rand.Rand
	nextID  HumanID
	env     *world.Environment
	policy  *learning.Policy
	horizon uint32
}

// NewSpawner creates a spawner with the given seed.
func NewSpawner(seed int64, env *world.Environment, policy *learning.Policy) *Spawner {
	return &Spawner{
		rng:     rand.New(rand.NewSource(seed + 300)),
		nextID:  1,
		env:     env,
		policy:  policy,
		horizon: DefaultHorizon,
	}
}

// SetNextID sets the next ID to be issued.
func (s *Spawner) SetNextID(id HumanID) {
	s.nextID = id
}

// SetHorizon sets the horizon given to every human spawned from now on.
func (s *Spawner) SetHorizon(h uint32) {
	s.horizon = h
}

// Spawn creates a human at pos.
func (s *Spawner) Spawn(pos world.Position) (*Human, error) {
	if !s.env.InBounds(pos) {
		return nil, fmt.Errorf("spawn at %v: %w", pos, world.ErrOutOfBounds)
	}
	h := NewHuman(s.nextID, pos, s.env, s.policy)
	h.Horizon = s.horizon
	s.nextID++
	return h, nil
}

// SpawnRandom creates a human at a uniformly random cell.
func (s *Spawner) SpawnRandom() *Human {
	pos := world.Pos(s.rng.Intn(s.env.Height()), s.rng.Intn(s.env.Width()))
	h, _ := s.Spawn(pos) // pos is in bounds by construction
	return h
}

// SpawnPopulation creates count humans at random cells. A count below one
// spawns nobody.
func (s *Spawner) SpawnPopulation(count int) []*Human {
	if count <= 0 {
		return nil
	}
	humans := make([]*Human, 0, count)
	for i := 0; i < count; i++ {
		humans = append(humans, s.SpawnRandom())
	}
	return humans
}
