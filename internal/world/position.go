// Package world provides the 2-D resource grid humans live on.
// Coordinates are (X, Y) with X indexing rows (height) and Y indexing columns (width).
package world

// Position is an integer coordinate on the grid. It is a value type and is
// copied freely.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pos is a convenience constructor for Position.
func Pos(x, y int) Position { return Position{X: x, Y: y} }

// Add returns the component-wise sum of two positions.
func (p Position) Add(other Position) Position {
	p.X += other.X
	p.Y += other.Y
	return p
}

// Sub returns the component-wise difference p - other.
func (p Position) Sub(other Position) Position {
	p.X -= other.X
	p.Y -= other.Y
	return p
}

// ManhattanDist returns |dx| + |dy| between two positions.
func (p Position) ManhattanDist(other Position) int {
	d := p.Sub(other)
	return abs(d.X) + abs(d.Y)
}

// Directions are the four unit moves on the grid.
var Directions = [4]Position{
	{X: 1, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: 1},
	{X: 0, Y: -1},
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
