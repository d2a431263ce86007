// Package engine provides the tick-based simulation loop and the driver that
// steps trained humans through a shared world.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Tick schedule. One tick is one step of every live human.
const (
	TicksPerHour   = 60
	TicksPerDay    = 1440
	TicksPerReport = TicksPerDay
)

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Base tick interval

	// Callbacks, populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnReport func(tick uint64) // Every TicksPerReport ticks

	running atomic.Bool
}

// NewEngine creates an engine ticking ten times per second.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: 100 * time.Millisecond,
	}
}

// Run starts the loop. It blocks until Stop is called or ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed)

	for e.running.Load() && ctx.Err() == nil {
		if e.Speed <= 0 {
			// Paused.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			select {
			case <-ctx.Done():
			case <-time.After(target - elapsed):
			}
		}
	}

	e.running.Store(false)
	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.Tick%TicksPerReport == 0 && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
}

// SimTime returns a readable time for a tick number.
func SimTime(tick uint64) string {
	minutes := tick % 60
	hours := (tick / TicksPerHour) % 24
	days := tick/TicksPerDay + 1
	return fmt.Sprintf("Day %d, %d:%02d", days, hours, minutes)
}
