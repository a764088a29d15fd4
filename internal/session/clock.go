// Package session runs the replay pipeline: it owns the session state
// machine, paces ticks through the replay clock, and emits the ordered
// event stream.
package session

import (
	"context"
	"sync"
	"time"
)

// Clock paces the replay loop. One wall-clock wait covers one game-time
// window, divided by the current speed multiplier. Speed changes take effect
// at the next tick boundary.
type Clock struct {
	windowDur time.Duration
	minSpeed  float64
	maxSpeed  float64

	mu    sync.Mutex
	speed float64
}

// NewClock builds a clock for windows of the given game-minute length. The
// initial speed is clamped into [minSpeed, maxSpeed].
func NewClock(windowMinutes int, speed, minSpeed, maxSpeed float64) *Clock {
	c := &Clock{
		windowDur: time.Duration(windowMinutes) * time.Minute,
		minSpeed:  minSpeed,
		maxSpeed:  maxSpeed,
	}
	c.speed = c.clamp(speed)
	return c
}

func (c *Clock) clamp(v float64) float64 {
	if v < c.minSpeed {
		return c.minSpeed
	}
	if v > c.maxSpeed {
		return c.maxSpeed
	}
	return v
}

// SetSpeed updates the speed multiplier, clamped into range, and returns the
// effective value.
func (c *Clock) SetSpeed(v float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = c.clamp(v)
	return c.speed
}

// Speed returns the current multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Wait sleeps for one window of game time at the current speed, returning
// early with the context's error if the session is cancelled.
func (c *Clock) Wait(ctx context.Context) error {
	d := time.Duration(float64(c.windowDur) / c.Speed())
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
