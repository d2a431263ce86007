package world

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned when a coordinate lies outside the grid.
	ErrOutOfBounds = errors.New("world: coordinate out of bounds")
	// ErrNoLandmarks is returned by closest/distance queries on an empty
	// landmark collection.
	ErrNoLandmarks = errors.New("world: no landmarks of requested kind")
	// ErrEmptyWorld is returned when constructing a grid with a zero dimension.
	ErrEmptyWorld = errors.New("world: height and width must be positive")
)

// Environment holds the cell grid and the landmark registries used for
// distance shaping. It is built once, then only read while humans step;
// callers sharing it with a renderer must guard it externally.
type Environment struct {
	cells  [][]Cell // cells[x][y], x < height, y < width
	height int
	width  int

	forests []Position // Midpoint of every placed forest region
	lakes   []Position // Midpoint of every placed lake region
}

// NewEnvironment creates an all-empty grid of the given size.
func NewEnvironment(height, width int) (*Environment, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("new environment %dx%d: %w", height, width, ErrEmptyWorld)
	}
	cells := make([][]Cell, height)
	for x := range cells {
		cells[x] = make([]Cell, width)
	}
	return &Environment{cells: cells, height: height, width: width}, nil
}

// Clone returns a deep copy, safe to read while the original changes.
func (e *Environment) Clone() *Environment {
	cells := make([][]Cell, e.height)
	for x := range cells {
		cells[x] = append([]Cell(nil), e.cells[x]...)
	}
	return &Environment{
		cells:   cells,
		height:  e.height,
		width:   e.width,
		forests: e.Forests(),
		lakes:   e.Lakes(),
	}
}

// Height returns the number of rows (X extent).
func (e *Environment) Height() int { return e.height }

// Width returns the number of columns (Y extent).
func (e *Environment) Width() int { return e.width }

// CellCount returns height × width.
func (e *Environment) CellCount() int { return e.height * e.width }

// InBounds reports whether p lies on the grid.
func (e *Environment) InBounds(p Position) bool {
	return p.X >= 0 && p.X < e.height && p.Y >= 0 && p.Y < e.width
}

// Clamp pulls p onto the grid, axis by axis.
func (e *Environment) Clamp(p Position) Position {
	p.X = clamp(p.X, 0, e.height-1)
	p.Y = clamp(p.Y, 0, e.width-1)
	return p
}

// Cell returns the cell at (x, y).
func (e *Environment) Cell(x, y int) (Cell, error) {
	if !e.InBounds(Position{X: x, Y: y}) {
		return Cell{}, fmt.Errorf("cell (%d,%d) in %dx%d grid: %w", x, y, e.height, e.width, ErrOutOfBounds)
	}
	return e.cells[x][y], nil
}

// CellAt is Cell keyed by Position.
func (e *Environment) CellAt(p Position) (Cell, error) {
	return e.Cell(p.X, p.Y)
}

// SetCell overwrites a single cell, e.g. to change its quality.
func (e *Environment) SetCell(p Position, c Cell) error {
	if !e.InBounds(p) {
		return fmt.Errorf("set cell (%d,%d): %w", p.X, p.Y, ErrOutOfBounds)
	}
	e.cells[p.X][p.Y] = c
	return nil
}

// PlaceRegion fills the half-open rectangle [start, stop) with c, clamped to
// the grid. Tree and Water regions register their midpoint as a forest or
// lake landmark. It returns the number of cells written.
func (e *Environment) PlaceRegion(start, stop Position, c Cell) int {
	x0, x1 := clamp(start.X, 0, e.height), clamp(stop.X, 0, e.height)
	y0, y1 := clamp(start.Y, 0, e.width), clamp(stop.Y, 0, e.width)
	if x0 >= x1 || y0 >= y1 {
		return 0
	}

	for x := x0; x < x1; x++ {
		for y := y0; y < y1; y++ {
			e.cells[x][y] = c
		}
	}

	mid := Position{X: (x0 + x1) / 2, Y: (y0 + y1) / 2}
	switch c.Kind {
	case CellTree:
		e.forests = append(e.forests, mid)
	case CellWater:
		e.lakes = append(e.lakes, mid)
	}
	return (x1 - x0) * (y1 - y0)
}

// AddForest places a pristine forest region.
func (e *Environment) AddForest(start, stop Position) int {
	return e.PlaceRegion(start, stop, Tree(1.0))
}

// AddLake places a pristine lake region.
func (e *Environment) AddLake(start, stop Position) int {
	return e.PlaceRegion(start, stop, Water(1.0))
}

// Lakes returns a copy of the lake landmarks in placement order.
func (e *Environment) Lakes() []Position { return append([]Position(nil), e.lakes...) }

// Forests returns a copy of the forest landmarks in placement order.
func (e *Environment) Forests() []Position { return append([]Position(nil), e.forests...) }

// HasLakes reports whether any lake has been placed.
func (e *Environment) HasLakes() bool { return len(e.lakes) > 0 }

// HasForests reports whether any forest has been placed.
func (e *Environment) HasForests() bool { return len(e.forests) > 0 }

// ClosestLake returns the lake landmark nearest to p (first wins on ties).
func (e *Environment) ClosestLake(p Position) (Position, error) {
	return closest(e.lakes, p, "lake")
}

// ClosestForest returns the forest landmark nearest to p (first wins on ties).
func (e *Environment) ClosestForest(p Position) (Position, error) {
	return closest(e.forests, p, "forest")
}

// DistanceToLake returns the Manhattan distance from p to the nearest lake.
func (e *Environment) DistanceToLake(p Position) (int, error) {
	l, err := e.ClosestLake(p)
	if err != nil {
		return 0, err
	}
	return l.ManhattanDist(p), nil
}

// DistanceToForest returns the Manhattan distance from p to the nearest forest.
func (e *Environment) DistanceToForest(p Position) (int, error) {
	f, err := e.ClosestForest(p)
	if err != nil {
		return 0, err
	}
	return f.ManhattanDist(p), nil
}

// CountKind returns how many cells hold the given kind.
func (e *Environment) CountKind(k CellKind) int {
	n := 0
	for _, row := range e.cells {
		for _, c := range row {
			if c.Kind == k {
				n++
			}
		}
	}
	return n
}

// String returns a summary of the environment.
func (e *Environment) String() string {
	return fmt.Sprintf("Environment(%dx%d, lakes=%d, forests=%d)", e.height, e.width, len(e.lakes), len(e.forests))
}

func closest(landmarks []Position, p Position, kind string) (Position, error) {
	if len(landmarks) == 0 {
		return Position{}, fmt.Errorf("closest %s to (%d,%d): %w", kind, p.X, p.Y, ErrNoLandmarks)
	}
	best := landmarks[0]
	bestDist := best.ManhattanDist(p)
	for _, l := range landmarks[1:] {
		if d := l.ManhattanDist(p); d < bestDist {
			best, bestDist = l, d
		}
	}
	return best, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
