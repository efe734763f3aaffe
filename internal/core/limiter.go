package core

// limiter.go serializes runs that talk to the ERP.
//
// The ERP session is shared by every request, and a run issues one remote
// call per row, so runs are admitted through a semaphore (one slot unless
// configured otherwise). A request that cannot get a slot within maxWait
// fails with ErrTooManyRuns. WaitForDrain lets shutdown wait for runs in
// flight.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JonMunkholm/stocktransfer/internal/metrics"
)

// ErrTooManyRuns is returned when no run slot frees up before the wait
// timeout expires. Clients should retry after a short delay.
var ErrTooManyRuns = errors.New("too many runs in progress, please try again later")

// DefaultMaxConcurrentRuns is the default number of parallel runs.
const DefaultMaxConcurrentRuns = 1

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// ProcessLimiter bounds the number of runs in flight.
type ProcessLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewProcessLimiter creates a limiter admitting at most maxConcurrent runs.
func NewProcessLimiter(maxConcurrent int, maxWait time.Duration) *ProcessLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &ProcessLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a run slot.
// Returns nil on success, ErrTooManyRuns if the wait times out, or the
// context error. The caller must call Release when the run completes.
func (l *ProcessLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.acquired()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns
	}
}

// TryAcquire takes a slot without blocking.
func (l *ProcessLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.acquired()
		return true
	default:
		return false
	}
}

func (l *ProcessLimiter) acquired() {
	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	metrics.RunStarted()
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *ProcessLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	metrics.RunFinished()

	<-l.semaphore
}

// ActiveCount returns the number of runs holding a slot.
func (l *ProcessLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the number of slots.
func (l *ProcessLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *ProcessLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no run holds a slot or ctx is done.
func (l *ProcessLimiter) WaitForDrain(ctx context.Context) error {
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

// LimiterStatus is a snapshot of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *ProcessLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
