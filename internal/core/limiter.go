package core

// limiter.go bounds concurrent work with a counting semaphore.
//
// The service uses two limiters: one around whole analyses (requests that
// cannot get a slot within maxWait fail with ErrTooManyAnalyses) and one
// handed to the provider as its Gate so model calls stay bounded no matter
// how many frames are in flight. WaitForDrain lets shutdown wait for work
// in progress.

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	// DefaultMaxConcurrent is the default number of slots.
	DefaultMaxConcurrent = 2

	// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
	DefaultMaxWaitTime = 30 * time.Second
)

// Limiter is a semaphore with a bounded wait.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
	total   atomic.Int64
}

// NewLimiter creates a limiter with maxConcurrent slots. Acquire gives up
// after maxWait.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. The caller must Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		l.total.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyAnalyses
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		l.total.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of held slots.
func (l *Limiter) ActiveCount() int {
	return int(l.active.Load())
}

// Available returns the number of free slots.
func (l *Limiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no slot is held or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a point-in-time view of a limiter.
type LimiterStatus struct {
	Active        int   `json:"active"`
	Available     int   `json:"available"`
	MaxConcurrent int   `json:"max_concurrent"`
	Served        int64 `json:"served"`
}

// Status returns the limiter's current state.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
		Served:        l.total.Load(),
	}
}
