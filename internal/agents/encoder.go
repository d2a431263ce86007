package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/brains/internal/learning"
	"github.com/talgya/brains/internal/world"
)

// ErrKeyOutOfRange is returned when an encoded state would not fit the table.
var ErrKeyOutOfRange = errors.New("agents: state key out of range")

// Direction buckets toward the closest landmark of a kind.
const (
	DirPlusX  = 0
	DirMinusX = 1
	DirPlusY  = 2
	DirMinusY = 3
	DirAbsent = 4 // The world has no landmark of that kind

	DirectionBuckets = 5
)

// Cell buckets for the cell a human stands on.
const (
	OnWater = 0
	OnTree  = 1
	OnOther = 2

	CellBuckets = 3
)

// Digit positions in the mixed-radix key, most significant first.
const (
	DigitPosition = iota
	DigitThirst
	DigitHunger
	DigitLake
	DigitForest
	DigitCell

	nbDigits
)

// Encoder maps a human's situation to a dense state key. The key function and
// NbStates are both derived from the one radix table so they cannot disagree.
type Encoder struct {
	env   *world.Environment
	radix [nbDigits]int
}

// NewEncoder builds the encoder for env.
func NewEncoder(env *world.Environment) *Encoder {
	return &Encoder{
		env: env,
		radix: [nbDigits]int{
			DigitPosition: env.CellCount(),
			DigitThirst:   NeedBuckets,
			DigitHunger:   NeedBuckets,
			DigitLake:     DirectionBuckets,
			DigitForest:   DirectionBuckets,
			DigitCell:     CellBuckets,
		},
	}
}

// NbStates is the number of distinct keys Encode can produce.
func (e *Encoder) NbStates() int {
	n := 1
	for _, r := range e.radix {
		n *= r
	}
	return n
}

// Cardinalities returns a copy of the radix table.
func (e *Encoder) Cardinalities() []int {
	return append([]int(nil), e.radix[:]...)
}

// Digits returns the per-dimension values for h, in radix order.
func (e *Encoder) Digits(h *Human) ([]int, error) {
	cell, err := e.env.CellAt(h.Position)
	if err != nil {
		return nil, fmt.Errorf("encode human %d: %w", h.ID, err)
	}

	d := make([]int, nbDigits)
	d[DigitPosition] = h.Position.X*e.env.Width() + h.Position.Y
	d[DigitThirst] = h.Thirst.Bucket()
	d[DigitHunger] = h.Hunger.Bucket()
	if d[DigitLake], err = direction(e.env.HasLakes(), e.env.ClosestLake, h.Position); err != nil {
		return nil, err
	}
	if d[DigitForest], err = direction(e.env.HasForests(), e.env.ClosestForest, h.Position); err != nil {
		return nil, err
	}
	d[DigitCell] = cellBucket(cell.Kind)
	return d, nil
}

// Encode returns the state key for h.
func (e *Encoder) Encode(h *Human) (learning.StateKey, error) {
	d, err := e.Digits(h)
	if err != nil {
		return 0, err
	}

	key := 0
	for i, r := range e.radix {
		if d[i] < 0 || d[i] >= r {
			return 0, fmt.Errorf("digit %d value %d radix %d: %w", i, d[i], r, ErrKeyOutOfRange)
		}
		key = key*r + d[i]
	}
	return learning.StateKey(key), nil
}

// Decode splits a key back into its digits.
func (e *Encoder) Decode(key learning.StateKey) ([]int, error) {
	k := int(key)
	if k < 0 || k >= e.NbStates() {
		return nil, fmt.Errorf("key %d of %d: %w", k, e.NbStates(), ErrKeyOutOfRange)
	}
	d := make([]int, nbDigits)
	for i := nbDigits - 1; i >= 0; i-- {
		d[i] = k % e.radix[i]
		k /= e.radix[i]
	}
	return d, nil
}

// direction buckets the dominant axis and sign of the vector from p to the
// closest landmark. Ties between axes go to Y.
func direction(has bool, closest func(world.Position) (world.Position, error), p world.Position) (int, error) {
	if !has {
		return DirAbsent, nil
	}
	l, err := closest(p)
	if err != nil {
		return 0, err
	}

	v := l.Sub(p)
	if abs(v.X) > abs(v.Y) {
		if v.X >= 0 {
			return DirPlusX, nil
		}
		return DirMinusX, nil
	}
	if v.Y >= 0 {
		return DirPlusY, nil
	}
	return DirMinusY, nil
}

func cellBucket(k world.CellKind) int {
	switch k {
	case world.CellWater:
		return OnWater
	case world.CellTree:
		return OnTree
	default:
		return OnOther
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
