// Package system provides course.Clock implementations.
package system

import "time"

// Clock reads the wall clock in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports T. Run-start bookkeeping and D-day tests use it.
type Fixed struct {
	T time.Time
}

// Now returns T.
func (f Fixed) Now() time.Time { return f.T }
