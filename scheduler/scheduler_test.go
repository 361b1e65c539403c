package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Defaults(t *testing.T) {
	assert.Equal(t, DefaultLimit, New().Limit())
	assert.Equal(t, DefaultLimit, New(func(o *Options) { o.Limit = 0 }).Limit())
	assert.Equal(t, 3, New(func(o *Options) { o.Limit = 3 }).Limit())
}

func TestLimiter_BoundsConcurrency(t *testing.T) {
	l := New(func(o *Options) { o.Limit = 2 })

	var (
		current atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := l.Do(context.Background(), func(context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}

				time.Sleep(5 * time.Millisecond)
				current.Add(-1)

				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 0, l.InFlight())
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	l := New(func(o *Options) { o.Limit = 1 })
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, l.Acquire(ctx))

	l.Release()
	assert.NoError(t, l.Acquire(context.Background()))
}

func TestLimiter_OnChange(t *testing.T) {
	var seen []int

	l := New(func(o *Options) {
		o.Limit = 2
		o.OnChange = func(n int) { seen = append(seen, n) }
	})

	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
	l.Release()

	assert.Equal(t, []int{1, 2, 1, 0}, seen)
}
