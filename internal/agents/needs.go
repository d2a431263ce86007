// Survival needs.
package agents

import "math"

// Need is a bounded counter. Value always stays within [Min, Max].
type Need struct {
	Value int `json:"value"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

// Starting values restored on every reset.
const (
	InitialHunger = 100
	InitialThirst = 100
	InitialEnergy = 100
	InitialMoney  = 0
)

// UrgentThreshold is the level below which hunger or thirst drives behavior.
const UrgentThreshold = 80

func fullNeed(initial int) Need {
	return Need{Value: initial, Min: 0, Max: 100}
}

// Money has no practical ceiling.
func moneyNeed() Need {
	return Need{Value: InitialMoney, Min: 0, Max: math.MaxInt32}
}

// Add changes the value by delta, clamped to [Min, Max], and returns the
// change actually applied.
func (n *Need) Add(delta int) int {
	before := n.Value
	v := n.Value + delta
	if v < n.Min {
		v = n.Min
	}
	if v > n.Max {
		v = n.Max
	}
	n.Value = v
	return v - before
}

// Decay lowers the value by one tick's worth.
func (n *Need) Decay() {
	n.Add(-1)
}

// AtFloor reports whether the need is fully depleted.
func (n Need) AtFloor() bool {
	return n.Value <= n.Min
}

// Urgent reports whether the need is below the urgency threshold.
func (n Need) Urgent() bool {
	return n.Value < UrgentThreshold
}

// Bucket quantizes a 0–100 need into four levels: 0 (>80), 1 (>50), 2 (>20), 3 (otherwise).
func (n Need) Bucket() int {
	switch {
	case n.Value > 80:
		return 0
	case n.Value > 50:
		return 1
	case n.Value > 20:
		return 2
	default:
		return 3
	}
}

// NeedBuckets is the number of values Bucket can return.
const NeedBuckets = 4
