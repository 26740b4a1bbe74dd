package domain

import "time"

// CounterState is the persisted half of an AttemptCounter
type CounterState struct {
	Attempts    int
	LockedUntil *time.Time
}

// AttemptCounter counts failed attempts against a resource and trips once
// Threshold failures have been registered. With a positive Lockout the trip
// sets LockedUntil; with a zero Lockout the caller treats the trip as terminal.
//
// The counter holds no lock itself. Callers apply it to state loaded under
// their own per-resource mutual exclusion.
type AttemptCounter struct {
	Threshold int
	Lockout   time.Duration
}

// Locked reports whether s is locked at now and for how much longer
func (c AttemptCounter) Locked(s CounterState, now time.Time) (bool, time.Duration) {
	if s.LockedUntil == nil || !s.LockedUntil.After(now) {
		return false, 0
	}
	return true, s.LockedUntil.Sub(now)
}

// Register counts one failed attempt and returns true only for the attempt
// that trips the counter. An elapsed lockout restarts counting from zero.
// Attempts never exceeds Threshold.
func (c AttemptCounter) Register(s *CounterState, now time.Time) bool {
	if s.LockedUntil != nil && !s.LockedUntil.After(now) {
		c.Reset(s)
	}
	if s.Attempts >= c.Threshold {
		return false
	}
	s.Attempts++
	if s.Attempts < c.Threshold {
		return false
	}
	if c.Lockout > 0 {
		until := now.Add(c.Lockout)
		s.LockedUntil = &until
	}
	return true
}

// Reset clears the failure count and any lockout
func (c AttemptCounter) Reset(s *CounterState) {
	s.Attempts = 0
	s.LockedUntil = nil
}

// Remaining returns how many failures are left before the counter trips
func (c AttemptCounter) Remaining(s CounterState, now time.Time) int {
	if locked, _ := c.Locked(s, now); locked {
		return 0
	}
	if s.LockedUntil != nil {
		return c.Threshold
	}
	if s.Attempts >= c.Threshold {
		return 0
	}
	return c.Threshold - s.Attempts
}
