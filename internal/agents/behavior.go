// Human actions and reward shaping.
// Each action mutates the human against the shared grid and returns an
// immediate reward. Reward bands, best to worst: satisfying a need, moving
// toward the resource an urgent need calls for, neutral, wasted action, wall bump.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/brains/internal/world"
)

// ErrUnknownAction is returned for an action index outside the action table.
var ErrUnknownAction = errors.New("agents: unknown action")

// ActionKind enumerates the primitive actions.
type ActionKind uint8

const (
	ActionMove  ActionKind = iota // Step by Delta
	ActionDrink                   // Raise thirst by Amount on a water cell
	ActionEat                     // Raise hunger by Amount on a tree cell
)

// Action is a primitive action with its parameter.
type Action struct {
	Kind   ActionKind
	Delta  world.Position // Move only
	Amount int            // Drink and Eat only
}

// ConsumeAmount is how much one drink or meal restores.
const ConsumeAmount = 30

// Actions is the action table indexed by policy column.
var Actions = [...]Action{
	{Kind: ActionMove, Delta: world.Directions[0]},
	{Kind: ActionMove, Delta: world.Directions[1]},
	{Kind: ActionMove, Delta: world.Directions[2]},
	{Kind: ActionMove, Delta: world.Directions[3]},
	{Kind: ActionDrink, Amount: ConsumeAmount},
	{Kind: ActionEat, Amount: ConsumeAmount},
}

// NbActions is the number of policy columns.
const NbActions = len(Actions)

// Indices into Actions.
const (
	MoveDown  = 0 // +X
	MoveUp    = 1 // -X
	MoveRight = 2 // +Y
	MoveLeft  = 3 // -Y
	Drink     = 4
	Eat       = 5
)

// Reward constants for actions.
const (
	RewardSatisfied     = 10.0 // Plus one per point of need restored
	RewardReachResource = 5.0  // Stepped onto the resource the urgent need calls for
	RewardApproach      = 1.0  // Moved toward the nearest matching landmark
	RewardIdle          = 0.1  // Moved with no urgent need
	RewardNeutral       = 0.0
	RewardMisuse        = -1.0 // Drank off water or ate off a tree
	RewardWallBump      = -2.0 // Tried to leave the grid
)

// Reward constants for the state after each tick.
const (
	RewardDeath      = -1000.0
	RewardSurvived   = 1000.0
	RewardOnResource = 0.5
)

// ActionAt looks up an action by policy column.
func ActionAt(i int) (Action, error) {
	if i < 0 || i >= NbActions {
		return Action{}, fmt.Errorf("action %d of %d: %w", i, NbActions, ErrUnknownAction)
	}
	return Actions[i], nil
}

// ActionName returns a short label for a policy column.
func ActionName(i int) string {
	switch i {
	case MoveDown:
		return "down"
	case MoveUp:
		return "up"
	case MoveRight:
		return "right"
	case MoveLeft:
		return "left"
	case Drink:
		return "drink"
	case Eat:
		return "eat"
	default:
		return "unknown"
	}
}

// Apply executes an action on h and returns its immediate reward.
func Apply(h *Human, a Action) float64 {
	switch a.Kind {
	case ActionMove:
		return applyMove(h, a.Delta)
	case ActionDrink:
		return applyConsume(h, &h.Thirst, world.CellWater, a.Amount)
	case ActionEat:
		return applyConsume(h, &h.Hunger, world.CellTree, a.Amount)
	default:
		return RewardNeutral
	}
}

func applyConsume(h *Human, need *Need, source world.CellKind, amount int) float64 {
	cell, err := h.CurrentCell()
	if err != nil || cell.Kind != source {
		return RewardMisuse
	}
	gained := need.Add(amount)
	if gained == 0 {
		return RewardNeutral
	}
	return RewardSatisfied + float64(gained)
}

func applyMove(h *Human, delta world.Position) float64 {
	from := h.Position
	to := from.Add(delta)
	if !h.env.InBounds(to) {
		h.Position = h.env.Clamp(to)
		return RewardWallBump
	}
	h.Position = to

	target, ok := h.urgentResource()
	if !ok {
		return RewardIdle
	}
	if h.landedOn(to, target) {
		return RewardReachResource
	}

	landmark, err := h.closestLandmark(target, from)
	if err != nil {
		// Nothing of that kind exists to walk toward.
		return RewardNeutral
	}
	toward := landmark.Sub(from)
	if delta.X*toward.X > 0 || delta.Y*toward.Y > 0 {
		return RewardApproach
	}
	return RewardNeutral
}

// urgentResource returns the cell kind the most urgent need calls for:
// water when thirsty, else trees when hungry.
func (h *Human) urgentResource() (world.CellKind, bool) {
	switch {
	case h.Thirst.Urgent():
		return world.CellWater, true
	case h.Hunger.Urgent():
		return world.CellTree, true
	default:
		return world.CellEmpty, false
	}
}

// landedOn reports whether the cell at p is of the given kind.
func (h *Human) landedOn(p world.Position, kind world.CellKind) bool {
	c, err := h.env.CellAt(p)
	return err == nil && c.Kind == kind
}

func (h *Human) closestLandmark(kind world.CellKind, p world.Position) (world.Position, error) {
	if kind == world.CellWater {
		return h.env.ClosestLake(p)
	}
	return h.env.ClosestForest(p)
}

// ComputeReward scores the state reached after a tick: death is a fixed
// penalty, outliving the horizon a fixed bonus, and otherwise hunger and
// thirst levels plus standing on a resource.
func (h *Human) ComputeReward() float64 {
	if !h.Alive {
		return RewardDeath
	}

	r := needReward(h.Thirst) + needReward(h.Hunger)
	if cell, err := h.CurrentCell(); err == nil && (cell.Kind == world.CellWater || cell.Kind == world.CellTree) {
		r += RewardOnResource
	}
	if h.Age > h.Horizon {
		r += RewardSurvived
	}
	return r
}

func needReward(n Need) float64 {
	switch n.Bucket() {
	case 0:
		return 1
	case 1:
		return 0
	case 2:
		return -1
	default:
		return -3
	}
}
