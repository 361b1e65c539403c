// Package scheduler bounds the number of simultaneously in-flight model calls
// during workflow fan-out.
package scheduler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultLimit is used when no positive limit is configured.
const DefaultLimit = 10

// Options configures a Limiter.
type Options struct {
	// Limit is the fixed capacity. Values < 1 select DefaultLimit.
	Limit int
	// OnChange, when set, observes the in-flight count after every
	// acquire and release.
	OnChange func(inFlight int)
}

// Limiter is a counting limiter with a fixed capacity.
type Limiter struct {
	sem      *semaphore.Weighted
	limit    int
	inFlight atomic.Int64
	onChange func(int)
}

// New creates a Limiter.
func New(optFns ...func(o *Options)) *Limiter {
	opts := Options{Limit: DefaultLimit}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Limit < 1 {
		opts.Limit = DefaultLimit
	}

	return &Limiter{
		sem:      semaphore.NewWeighted(int64(opts.Limit)),
		limit:    opts.Limit,
		onChange: opts.OnChange,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	l.notify(l.inFlight.Add(1))

	return nil
}

// Release returns a slot.
func (l *Limiter) Release() {
	n := l.inFlight.Add(-1)
	l.sem.Release(1)
	l.notify(n)
}

// Do runs fn while holding a slot.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()

	return fn(ctx)
}

// Limit returns the capacity.
func (l *Limiter) Limit() int { return l.limit }

// InFlight returns the number of held slots.
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

func (l *Limiter) notify(n int64) {
	if l.onChange != nil {
		l.onChange(int(n))
	}
}
