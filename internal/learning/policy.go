// Package learning implements tabular Q-learning over a dense state/action
// value table, plus the agent contract the training loop drives.
package learning

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrAlreadyInitialized = errors.New("learning: policy already initialized")
	ErrNotInitialized     = errors.New("learning: policy not initialized")
	ErrStateOutOfRange    = errors.New("learning: state key out of range")
	ErrActionOutOfRange   = errors.New("learning: action index out of range")
	ErrInvalidConfig      = errors.New("learning: invalid configuration")
)

// StateKey is a dense row index into the value table.
type StateKey int

// Policy is a dense nbStates × nbActions table of action values.
// It is written only by Train; once trained it may be read concurrently.
type Policy struct {
	table *mat.Dense
}

// NewPolicy returns an empty, uninitialized policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// Init allocates the table. With a non-nil rng every entry is drawn
// uniformly from [-1, 1) so untrained actions don't tie; otherwise the table
// starts at zero. Init may be called only once.
func (p *Policy) Init(nbStates, nbActions int, rng *rand.Rand) error {
	if p.table != nil {
		return ErrAlreadyInitialized
	}
	if nbStates <= 0 || nbActions <= 0 {
		return fmt.Errorf("init %d×%d table: %w", nbStates, nbActions, ErrInvalidConfig)
	}

	data := make([]float64, nbStates*nbActions)
	if rng != nil {
		for i := range data {
			data[i] = rng.Float64()*2 - 1
		}
	}
	p.table = mat.NewDense(nbStates, nbActions, data)
	return nil
}

// Initialized reports whether Init has run.
func (p *Policy) Initialized() bool { return p.table != nil }

// NbStates returns the number of table rows (0 before Init).
func (p *Policy) NbStates() int {
	if p.table == nil {
		return 0
	}
	r, _ := p.table.Dims()
	return r
}

// NbActions returns the number of table columns (0 before Init).
func (p *Policy) NbActions() int {
	if p.table == nil {
		return 0
	}
	_, c := p.table.Dims()
	return c
}

// Value returns Q[s][a]. Indices are only checked by the underlying matrix.
func (p *Policy) Value(s StateKey, a int) float64 {
	return p.table.At(int(s), a)
}

// SetValue overwrites Q[s][a]. Indices are only checked by the underlying matrix.
func (p *Policy) SetValue(s StateKey, a int, v float64) {
	p.table.Set(int(s), a, v)
}

// Row returns a copy of the action values for state s.
func (p *Policy) Row(s StateKey) ([]float64, error) {
	row, err := p.row(s)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), row...), nil
}

// PredictAction returns the greedy action for s: the first column holding
// the row's maximum.
func (p *Policy) PredictAction(s StateKey) (int, error) {
	row, err := p.row(s)
	if err != nil {
		return 0, err
	}
	return floats.MaxIdx(row), nil
}

// MaxValue returns max_a Q[s][a].
func (p *Policy) MaxValue(s StateKey) (float64, error) {
	row, err := p.row(s)
	if err != nil {
		return 0, err
	}
	return floats.Max(row), nil
}

// Update applies one Q-learning step:
//
//	Q[s][a] ← (1-α)·Q[s][a] + α·(r + γ·max_a' Q[next][a'])
func (p *Policy) Update(s StateKey, a int, reward float64, next StateKey, alpha, gamma float64) error {
	row, err := p.row(s)
	if err != nil {
		return err
	}
	if a < 0 || a >= len(row) {
		return fmt.Errorf("update action %d of %d: %w", a, len(row), ErrActionOutOfRange)
	}
	nextMax, err := p.MaxValue(next)
	if err != nil {
		return err
	}
	row[a] = (1-alpha)*row[a] + alpha*(reward+gamma*nextMax)
	return nil
}

// row returns the live backing slice for state s.
func (p *Policy) row(s StateKey) ([]float64, error) {
	if p.table == nil {
		return nil, ErrNotInitialized
	}
	if n := p.NbStates(); s < 0 || int(s) >= n {
		return nil, fmt.Errorf("state %d of %d: %w", s, n, ErrStateOutOfRange)
	}
	return p.table.RawRowView(int(s)), nil
}
