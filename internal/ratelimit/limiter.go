// Package ratelimit provides a sliding-window limiter shared by all OCR workers.
//
// The limiter allows at most N grants in any trailing window (one second by
// default). Callers are admitted in the order they reach the limiter: each
// caller reserves its grant time under the lock and then sleeps outside it, so
// a later caller can never be scheduled ahead of an earlier one.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Limiter enforces a maximum number of grants per rolling window.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	grants []time.Time // scheduled grant times, ascending, at most limit entries
	now    func() time.Time
}

// New returns a limiter permitting perSecond grants in any trailing second.
// Values below 1 are treated as 1.
func New(perSecond int) *Limiter {
	return NewWindow(perSecond, time.Second)
}

// NewWindow returns a limiter permitting limit grants in any trailing window.
func NewWindow(limit int, window time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	return &Limiter{
		limit:  limit,
		window: window,
		grants: make([]time.Time, 0, limit),
		now:    time.Now,
	}
}

// Limit returns the configured number of grants per window.
func (l *Limiter) Limit() int { return l.limit }

// Acquire blocks until a grant is available. It only returns an error when ctx
// is done before the grant time; the reserved slot is not handed back, which
// can only make the limiter more conservative.
func (l *Limiter) Acquire(ctx context.Context) error {
	at, now := l.reserve()
	wait := at.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}

	log.Debug().Dur("wait", wait).Int("limit", l.limit).Msg("Rate limit reached, waiting")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve schedules the next grant and returns its time along with the
// reservation instant.
func (l *Limiter) reserve() (at, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now = l.now()
	expired := 0
	for expired < len(l.grants) && now.Sub(l.grants[expired]) >= l.window {
		expired++
	}
	if expired > 0 {
		l.grants = append(l.grants[:0], l.grants[expired:]...)
	}

	at = now
	if len(l.grants) >= l.limit {
		// The window is full: wait for the oldest grant still counted against it.
		if earliest := l.grants[len(l.grants)-l.limit].Add(l.window); earliest.After(at) {
			at = earliest
		}
	}

	l.grants = append(l.grants, at)
	if len(l.grants) > l.limit {
		l.grants = append(l.grants[:0], l.grants[len(l.grants)-l.limit:]...)
	}
	return at, now
}
