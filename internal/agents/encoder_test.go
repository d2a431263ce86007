package agents

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/brains/internal/learning"
	"github.com/talgya/brains/internal/world"
)

func TestNbStatesIsProductOfCardinalities(t *testing.T) {
	env := lakeWorld(t)
	enc := NewEncoder(env)
	assert.Equal(t, []int{100, 4, 4, 5, 5, 3}, enc.Cardinalities())
	assert.Equal(t, 100*4*4*5*5*3, enc.NbStates())

	classic, err := world.Classic()
	require.NoError(t, err)
	assert.Equal(t, 2500*4*4*5*5*3, NewEncoder(classic).NbStates())
}

// Every reachable combination of position and need level must land inside
// the table and decode back to the digits it came from.
func TestEncodeStaysInRange(t *testing.T) {
	classic, err := world.Classic()
	require.NoError(t, err)

	for name, env := range map[string]*world.Environment{
		"lake only": lakeWorld(t),
		"classic":   classic,
	} {
		t.Run(name, func(t *testing.T) {
			enc := NewEncoder(env)
			h := NewHuman(1, world.Pos(0, 0), env, nil)
			seen := make(map[learning.StateKey]bool)
			levels := []int{100, 60, 30, 0}

			for x := 0; x < env.Height(); x++ {
				for y := 0; y < env.Width(); y++ {
					h.Position = world.Pos(x, y)
					for _, thirst := range levels {
						for _, hunger := range levels {
							h.Thirst.Value, h.Hunger.Value = thirst, hunger

							key, err := enc.Encode(h)
							require.NoError(t, err)
							require.GreaterOrEqual(t, int(key), 0)
							require.Less(t, int(key), enc.NbStates())
							require.False(t, seen[key], "duplicate key %d", key)
							seen[key] = true

							digits, err := enc.Digits(h)
							require.NoError(t, err)
							decoded, err := enc.Decode(key)
							require.NoError(t, err)
							require.Equal(t, digits, decoded)
						}
					}
				}
			}
		})
	}
}

func TestEncodeRejectsOffGridHuman(t *testing.T) {
	env := lakeWorld(t)
	h := NewHuman(1, world.Pos(10, 3), env, nil)
	_, err := h.Encoder().Encode(h)
	assert.ErrorIs(t, err, world.ErrOutOfBounds)

	_, err = h.Encoder().Decode(learning.StateKey(h.Encoder().NbStates()))
	assert.ErrorIs(t, err, ErrKeyOutOfRange)
}

func TestDirectionDigits(t *testing.T) {
	env := lakeWorld(t) // lake landmark at (1,1), no forest

	tests := []struct {
		pos  world.Position
		want int
	}{
		{world.Pos(5, 1), DirMinusX},
		{world.Pos(0, 1), DirPlusX},
		{world.Pos(1, 5), DirMinusY},
		{world.Pos(1, 0), DirPlusY},
		{world.Pos(3, 3), DirMinusY}, // equal axes go to Y
		{world.Pos(1, 1), DirPlusY},
	}
	for _, tt := range tests {
		h := NewHuman(1, tt.pos, env, nil)
		d, err := h.Encoder().Digits(h)
		require.NoError(t, err)
		assert.Equal(t, tt.want, d[DigitLake], "from %v", tt.pos)
		assert.Equal(t, DirAbsent, d[DigitForest])
	}
}

func TestCellDigit(t *testing.T) {
	env := lakeWorld(t)
	env.AddForest(world.Pos(8, 8), world.Pos(10, 10))

	for pos, want := range map[world.Position]int{
		world.Pos(0, 0): OnWater,
		world.Pos(9, 9): OnTree,
		world.Pos(5, 5): OnOther,
	} {
		h := NewHuman(1, pos, env, nil)
		d, err := h.Encoder().Digits(h)
		require.NoError(t, err)
		assert.Equal(t, want, d[DigitCell], "at %v", pos)
	}
}

// A 2x2 all-water world has no forest at all. Training must run without
// landmark errors and must beat the untrained table it started from.
func TestTrainingBeatsUntrainedInWaterWorld(t *testing.T) {
	env, err := world.NewEnvironment(2, 2)
	require.NoError(t, err)
	env.AddLake(world.Pos(0, 0), world.Pos(2, 2))

	enc := NewEncoder(env)
	newPolicy := func() *learning.Policy {
		p := learning.NewPolicy()
		require.NoError(t, p.Init(enc.NbStates(), NbActions, rand.New(rand.NewSource(9))))
		return p
	}
	evaluate := func(p *learning.Policy) learning.EvalStats {
		h := NewHuman(1, world.Pos(0, 0), env, p)
		stats, err := learning.Evaluate(context.Background(), p, h, 20, rand.New(rand.NewSource(10)), learning.Hooks{})
		require.NoError(t, err)
		return stats
	}

	baseline := evaluate(newPolicy())

	trained := newPolicy()
	cfg := learning.TrainConfig{Episodes: 300, Alpha: 0.5, Gamma: 0.6, Epsilon: 0.2}
	h := NewHuman(1, world.Pos(0, 0), env, trained)
	_, err = learning.Train(context.Background(), trained, h, cfg, rand.New(rand.NewSource(11)), learning.Hooks{})
	require.NoError(t, err)

	got := evaluate(trained)
	assert.Greater(t, got.AvgReward, baseline.AvgReward)
	assert.Greater(t, got.ActionCounts[Drink], 0)
}
