// Package util provides small shared helpers for the trading bot.
package util

import "time"

// Clock abstracts time for components that gate on elapsed durations,
// so tests never depend on wall-clock sleeps.
type Clock interface {
	Now() time.Time
}

// RealClock returns the system time.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FakeClock is a manually advanced Clock for tests.
type FakeClock struct {
	Current time.Time
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time { return c.Current }

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }
