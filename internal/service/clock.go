package service

import "time"

// Clock abstracts wall time and timer creation so the auto-save scheduler
// can be driven by a synthetic clock in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the single pending handle an auto-save session may hold.
type Timer interface {
	// Stop cancels the timer; it reports whether the call prevented the
	// function from firing.
	Stop() bool
}

type realClock struct{}

// NewClock returns the wall clock.
func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
