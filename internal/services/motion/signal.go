package motion

import "time"

// Signal is a one-slot coalescing mailbox between the frame monitor and
// the recording worker. Raising an already-raised signal is a no-op, so a
// motion storm while a recording is in flight collapses into at most one
// pending recording instead of a growing backlog.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Raise sets the signal. Returns true if the slot was empty.
func (s *Signal) Raise() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Wait consumes the signal if it is raised within the timeout. The short
// timeout lets the consumer interleave shutdown checks between waits.
func (s *Signal) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ch:
		return true
	case <-timer.C:
		return false
	}
}

// Pending reports whether an unconsumed raise is sitting in the slot.
func (s *Signal) Pending() bool {
	return len(s.ch) > 0
}
