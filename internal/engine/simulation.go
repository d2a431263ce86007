// Simulation ties the world, the trained policy and the population together
// and steps them each tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/brains/internal/agents"
	"github.com/talgya/brains/internal/learning"
	"github.com/talgya/brains/internal/world"
)

// ErrWorldSealed is returned when the world is edited after ticking began.
var ErrWorldSealed = errors.New("engine: world is sealed once ticking has begun")

// maxEvents bounds the retained event log.
const maxEvents = 1000

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64         `json:"tick" db:"tick"`
	HumanID     agents.HumanID `json:"human_id" db:"human_id"`
	Description string         `json:"description" db:"description"`
	Category    string         `json:"category" db:"category"` // "death", "survival"
}

// SimStats tracks aggregate population statistics.
type SimStats struct {
	Population int     `json:"population"`
	Alive      int     `json:"alive"`
	Deaths     int     `json:"deaths"`
	AvgAge     float64 `json:"avg_age"`
	AvgHunger  float64 `json:"avg_hunger"`
	AvgThirst  float64 `json:"avg_thirst"`
	Actions    []int   `json:"actions"` // Greedy picks per action index
}

// HumanView is a copy of the parts of a human a renderer needs.
type HumanView struct {
	ID         agents.HumanID `json:"id"`
	Position   world.Position `json:"position"`
	Age        uint32         `json:"age"`
	Alive      bool           `json:"alive"`
	Hunger     int            `json:"hunger"`
	Thirst     int            `json:"thirst"`
	LastAction int            `json:"last_action"` // -1 before the first step
}

// Snapshot is a consistent read-only view of the simulation at one tick.
type Snapshot struct {
	Tick   uint64
	Env    *world.Environment // Private copy
	Humans []HumanView
	Events []Event // Most recent last
	Stats  SimStats
}

// Simulation holds the complete world state. All access goes through the
// lock: stepping and world edits take it exclusively, snapshots share it.
type Simulation struct {
	mu sync.RWMutex

	env     *world.Environment
	policy  *learning.Policy
	spawner *agents.Spawner

	humans     []*agents.Human
	lastAction map[agents.HumanID]int
	events     []Event
	lastTick   uint64
	sealed     bool
	stats      SimStats
}

// NewSimulation creates a simulation over env whose humans act greedily on
// policy. The policy must be initialized for env's encoder.
func NewSimulation(env *world.Environment, policy *learning.Policy, seed int64) *Simulation {
	s := &Simulation{
		env:        env,
		policy:     policy,
		spawner:    agents.NewSpawner(seed, env, policy),
		lastAction: make(map[agents.HumanID]int),
	}
	s.stats.Actions = make([]int, agents.NbActions)
	return s
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// SetHorizon sets the horizon of humans added from now on.
func (s *Simulation) SetHorizon(h uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawner.SetHorizon(h)
}

// PlaceRegion edits the world. Only allowed before the first tick.
func (s *Simulation) PlaceRegion(start, stop world.Position, c world.Cell) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return 0, ErrWorldSealed
	}
	return s.env.PlaceRegion(start, stop, c), nil
}

// AddHuman spawns a human at pos and returns a copy of it.
func (s *Simulation) AddHuman(pos world.Position) (HumanView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.spawner.Spawn(pos)
	if err != nil {
		return HumanView{}, err
	}
	s.add(h)
	return s.view(h), nil
}

// Populate spawns count humans at random cells.
func (s *Simulation) Populate(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.spawner.SpawnPopulation(count) {
		s.add(h)
	}
	slog.Info("population spawned", "count", count, "total", len(s.humans))
}

func (s *Simulation) add(h *agents.Human) {
	s.humans = append(s.humans, h)
	s.lastAction[h.ID] = -1
}

// TickMinute steps every live human once. The world is sealed from the first
// call on. A human whose state cannot be encoded stops the tick with an error.
func (s *Simulation) TickMinute(tick uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sealed = true
	s.lastTick = tick
	for _, h := range s.humans {
		if !h.Alive {
			continue
		}
		wasSurvivor := h.Survived()

		a, err := h.Step()
		if err != nil {
			return fmt.Errorf("tick %d human %d: %w", tick, h.ID, err)
		}
		s.lastAction[h.ID] = a
		s.stats.Actions[a]++

		if !h.Alive {
			s.record(Event{
				Tick:        tick,
				HumanID:     h.ID,
				Description: fmt.Sprintf("human %d died at age %d", h.ID, h.Age),
				Category:    "death",
			})
		} else if !wasSurvivor && h.Survived() {
			s.record(Event{
				Tick:        tick,
				HumanID:     h.ID,
				Description: fmt.Sprintf("human %d outlived its horizon", h.ID),
				Category:    "survival",
			})
		}
	}
	s.updateStats()
	return nil
}

// TickReport logs a population summary.
func (s *Simulation) TickReport(tick uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range s.events {
		counts[e.Category]++
	}
	slog.Info("population report",
		"tick", tick,
		"time", SimTime(tick),
		"alive", s.stats.Alive,
		"deaths", s.stats.Deaths,
		"avg_age", fmt.Sprintf("%.1f", s.stats.AvgAge),
		"avg_hunger", fmt.Sprintf("%.1f", s.stats.AvgHunger),
		"avg_thirst", fmt.Sprintf("%.1f", s.stats.AvgThirst),
		"events_death", counts["death"],
		"events_survival", counts["survival"],
	)
}

// Stats returns the statistics as of the last tick.
func (s *Simulation) Stats() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.Actions = append([]int(nil), s.stats.Actions...)
	return st
}

// Snapshot copies the current state for a renderer.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]HumanView, len(s.humans))
	for i, h := range s.humans {
		views[i] = s.view(h)
	}
	st := s.stats
	st.Actions = append([]int(nil), s.stats.Actions...)
	return Snapshot{
		Tick:   s.lastTick,
		Env:    s.env.Clone(),
		Humans: views,
		Events: append([]Event(nil), s.events...),
		Stats:  st,
	}
}

func (s *Simulation) view(h *agents.Human) HumanView {
	return HumanView{
		ID:         h.ID,
		Position:   h.Position,
		Age:        h.Age,
		Alive:      h.Alive,
		Hunger:     h.Hunger.Value,
		Thirst:     h.Thirst.Value,
		LastAction: s.lastAction[h.ID],
	}
}

func (s *Simulation) record(e Event) {
	slog.Debug("event", "category", e.Category, "description", e.Description)
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

func (s *Simulation) updateStats() {
	alive := 0
	var age, hunger, thirst float64
	for _, h := range s.humans {
		if !h.Alive {
			continue
		}
		alive++
		age += float64(h.Age)
		hunger += float64(h.Hunger.Value)
		thirst += float64(h.Thirst.Value)
	}

	s.stats.Population = len(s.humans)
	s.stats.Alive = alive
	s.stats.Deaths = len(s.humans) - alive
	s.stats.AvgAge, s.stats.AvgHunger, s.stats.AvgThirst = 0, 0, 0
	if alive > 0 {
		n := float64(alive)
		s.stats.AvgAge = age / n
		s.stats.AvgHunger = hunger / n
		s.stats.AvgThirst = thirst / n
	}
}
