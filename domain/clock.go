package domain

import "time"

// Clock supplies the current time. Lockout and expiry are evaluated lazily
// against it, so tests swap it for a controllable one.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
