package service

import (
	"time"
)

// Timer is a scheduled continuation that can be cancelled.
// An alias so fakes outside this package can satisfy Scheduler.
type Timer = interface {
	Stop() bool
}

// Scheduler runs f once after d. The tracker takes all of its phase
// delays from a Scheduler so tests can drive time by hand.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type realScheduler struct{}

// NewRealScheduler returns a Scheduler backed by time.AfterFunc
func NewRealScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realScheduler) Now() time.Time {
	return time.Now()
}
