package core

// limiter.go bounds how many conversions run at once.
//
// Each conversion holds one slot of a buffered-channel semaphore for its
// lifetime. When every slot is busy a caller waits up to maxWait and then
// gets ErrTooManyConversions. WaitForDrain lets shutdown wait for in-flight
// conversions.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyConversions is returned when no slot frees up within the wait time.
var ErrTooManyConversions = errors.New("too many concurrent conversions, please try again later")

// Defaults applied by NewConversionLimiter for non-positive arguments.
const (
	DefaultMaxConcurrentConversions = 5
	DefaultMaxWaitTime              = 30 * time.Second
)

// ConversionLimiter is a counting semaphore over conversions.
type ConversionLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// LimiterStatus is a point-in-time view of a ConversionLimiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// NewConversionLimiter allows at most maxConcurrent conversions. Callers that
// cannot get a slot within maxWait receive ErrTooManyConversions.
func NewConversionLimiter(maxConcurrent int, maxWait time.Duration) *ConversionLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentConversions
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &ConversionLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, ctx is done, or maxWait elapses.
// Every successful Acquire must be paired with one Release.
func (l *ConversionLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyConversions
	}
}

// Release frees a slot taken by Acquire.
func (l *ConversionLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of conversions holding a slot.
func (l *ConversionLimiter) Active() int { return int(l.active.Load()) }

// Capacity returns the maximum number of concurrent conversions.
func (l *ConversionLimiter) Capacity() int { return cap(l.slots) }

// Status returns the current limiter state for monitoring.
func (l *ConversionLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.Active(),
		Available:     l.Capacity() - len(l.slots),
		MaxConcurrent: l.Capacity(),
	}
}

// WaitForDrain blocks until no conversion holds a slot or ctx is done.
func (l *ConversionLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
