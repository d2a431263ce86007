// World generation using layered simplex noise.
// A fertility field decides where grass grows (and how lush it is); a moisture
// field decides whether each placed resource region becomes a lake or a forest.
package world

import (
	"fmt"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Height        int     // Rows
	Width         int     // Columns
	Seed          int64   // Random seed (0 = random)
	Regions       int     // Resource regions to place (at least one lake and one forest are guaranteed)
	MaxRegionSize int     // Largest side of a region, in cells (>= 2)
	GrassLevel    float64 // Fertility threshold above which a cell is grass (0.0–1.0)
	MoistureLevel float64 // Moisture threshold above which a region is a lake (0.0–1.0)
}

// DefaultGenConfig returns the 50×50 world size the simulation was tuned on.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Height:        50,
		Width:         50,
		Seed:          0,
		Regions:       4,
		MaxRegionSize: 8,
		GrassLevel:    0.55,
		MoistureLevel: 0.5,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Height:        10,
		Width:         10,
		Seed:          42,
		Regions:       2,
		MaxRegionSize: 3,
		GrassLevel:    0.6,
		MoistureLevel: 0.5,
	}
}

// Classic builds the hand-placed world: one forest in the north-west and a
// long lake through the middle of a 50×50 grid.
func Classic() (*Environment, error) {
	env, err := NewEnvironment(50, 50)
	if err != nil {
		return nil, err
	}
	env.AddForest(Pos(12, 1), Pos(18, 4))
	env.AddLake(Pos(27, 24), Pos(30, 42))
	return env, nil
}

// Generate creates an environment with grass and resource regions.
func Generate(cfg GenConfig) (*Environment, error) {
	env, err := NewEnvironment(cfg.Height, cfg.Width)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	maxSize := cfg.MaxRegionSize
	if maxSize < 2 {
		maxSize = 2
	}

	fertility := opensimplex.NewNormalized(seed)
	moisture := opensimplex.NewNormalized(seed + 1)

	for x := 0; x < env.height; x++ {
		for y := 0; y < env.width; y++ {
			f := octaveNoise(fertility, float64(x), float64(y), 3, 0.1, 0.5)
			if f > cfg.GrassLevel {
				env.cells[x][y] = Grass(f)
			}
		}
	}

	rng := rand.New(rand.NewSource(seed + 100))
	for i := 0; i < cfg.Regions; i++ {
		start, stop := randomRegion(rng, env, maxSize)
		wet := octaveNoise(moisture, float64(start.X), float64(start.Y), 2, 0.08, 0.5)
		if wet > cfg.MoistureLevel {
			env.AddLake(start, stop)
		} else {
			env.AddForest(start, stop)
		}
	}

	// Every world needs somewhere to drink and somewhere to eat.
	if !env.HasLakes() {
		start, stop := randomRegion(rng, env, maxSize)
		env.AddLake(start, stop)
	}
	if !env.HasForests() {
		start, stop := randomRegion(rng, env, maxSize)
		env.AddForest(start, stop)
	}

	return env, nil
}

func randomRegion(rng *rand.Rand, env *Environment, maxSize int) (Position, Position) {
	start := Pos(rng.Intn(env.height), rng.Intn(env.width))
	size := Pos(1+rng.Intn(maxSize), 1+rng.Intn(maxSize))
	return start, start.Add(size)
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
