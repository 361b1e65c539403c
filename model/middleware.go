package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/agentforge/logging"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerOptions configures WithCircuitBreaker.
type CircuitBreakerOptions struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
	// Interval clears failure counts while closed. Zero never clears.
	Interval time.Duration
	Logger   logging.Logger
}

type breakerModel struct {
	inner   Model
	breaker *gobreaker.CircuitBreaker[Response]
}

// WithCircuitBreaker wraps m so repeated failures open the circuit and later
// calls fail fast without reaching the provider.
func WithCircuitBreaker(m Model, optFns ...func(o *CircuitBreakerOptions)) Model {
	opts := CircuitBreakerOptions{
		MaxFailures: defaultCBMaxFailures,
		Timeout:     defaultCBTimeout,
		Interval:    defaultCBInterval,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	cb := gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:        "llm:" + m.Info().Name,
		MaxRequests: 1,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("model.circuit_breaker.state_change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's doing, not the provider's.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &breakerModel{inner: m, breaker: cb}
}

// Generate runs the inner call through the breaker. Streaming chunks are
// forwarded as they arrive; the outcome of the whole call counts once.
func (b *breakerModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		_, err := b.breaker.Execute(func() (Response, error) {
			return forward(ctx, b.inner, req, out)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				err = fmt.Errorf("model %q circuit open: %w", b.inner.Info().Name, err)
			}

			errCh <- err
		}
	}()

	return out, errCh
}

func (b *breakerModel) Info() Info { return b.inner.Info() }

type rateLimitedModel struct {
	inner   Model
	limiter *rate.Limiter
}

// WithRateLimit wraps m so calls wait for a token from a limiter allowing
// requestsPerMinute with the given burst.
func WithRateLimit(m Model, requestsPerMinute float64, burst int) Model {
	if burst < 1 {
		burst = 1
	}

	return &rateLimitedModel{
		inner:   m,
		limiter: rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), burst),
	}
}

func (r *rateLimitedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := r.limiter.Wait(ctx); err != nil {
		out := make(chan Response)
		errCh := make(chan error, 1)

		close(out)
		errCh <- fmt.Errorf("rate limit wait: %w", err)
		close(errCh)

		return out, errCh
	}

	return r.inner.Generate(ctx, req)
}

func (r *rateLimitedModel) Info() Info { return r.inner.Info() }

// forward relays every chunk of one inner Generate call into out and returns
// the final response or the first error.
func forward(ctx context.Context, m Model, req Request, out chan<- Response) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final    Response
		firstErr error
	)

	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if !r.Partial {
				final = r
			}

			out <- r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return final, firstErr
}
