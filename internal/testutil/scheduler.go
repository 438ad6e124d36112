package testutil

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler is a scheduler whose clock only moves when Advance is
// called. Due callbacks run synchronously on the caller's goroutine, in
// deadline order, including callbacks scheduled while advancing.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*ManualTimer
}

// ManualTimer is a callback registered on a ManualScheduler
type ManualTimer struct {
	s       *ManualScheduler
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// NewManualScheduler starts the clock at start
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) interface{ Stop() bool } {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &ManualTimer{s: s, at: s.now.Add(d), seq: s.seq, fn: f}
	s.timers = append(s.timers, t)
	return t
}

// Stop cancels the timer; it reports false if it already fired or stopped.
func (t *ManualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, firing everything that comes due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

// Pending returns the number of timers that have neither fired nor stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (s *ManualScheduler) nextDue(target time.Time) *ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.timers = live

	sort.Slice(s.timers, func(i, j int) bool {
		if s.timers[i].at.Equal(s.timers[j].at) {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].at.Before(s.timers[j].at)
	})

	if len(s.timers) == 0 || s.timers[0].at.After(target) {
		return nil
	}
	t := s.timers[0]
	t.fired = true
	if t.at.After(s.now) {
		s.now = t.at
	}
	return t
}
