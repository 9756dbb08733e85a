package adapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/Ak-9647/queryflow/pkg/models"
)

// Provider executes operations for one tool backend.
type Provider interface {
	Invoke(ctx context.Context, op string, params map[string]any) (any, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, op string, params map[string]any) (any, error)

// Invoke calls f.
func (f ProviderFunc) Invoke(ctx context.Context, op string, params map[string]any) (any, error) {
	return f(ctx, op, params)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithMaxRetries sets how many times a failed attempt is retried.
func WithMaxRetries(n int) Option {
	return func(a *Adapter) { a.maxRetries = n }
}

// WithBackoffBase sets the base delay for exponential backoff.
func WithBackoffBase(d time.Duration) Option {
	return func(a *Adapter) { a.backoffBase = d }
}

// WithBreaker sets the circuit breaker shared across invocations.
func WithBreaker(b *Breaker) Option {
	return func(a *Adapter) { a.breaker = b }
}

// Adapter invokes tool providers with uniform timeout, retry, and breaker
// policy.
type Adapter struct {
	providers   map[string]Provider
	breaker     *Breaker
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration
	// sleep is swappable for tests.
	sleep func(context.Context, time.Duration) error
}

// New creates an adapter with the default policy: 30s per attempt, two
// retries, 500ms backoff base, breaker opening after five consecutive
// failures with a 60s cooldown.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		providers:   make(map[string]Provider),
		breaker:     NewBreaker(5, 60*time.Second),
		timeout:     30 * time.Second,
		maxRetries:  2,
		backoffBase: 500 * time.Millisecond,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register binds a provider to a tool name. Later registrations replace
// earlier ones.
func (a *Adapter) Register(tool string, p Provider) {
	a.providers[tool] = p
}

// Breaker exposes the adapter's circuit breaker for status reporting.
func (a *Adapter) Breaker() *Breaker {
	return a.breaker
}

// Invoke runs op against the given tool, applying the breaker, timeout, and
// retry policy. Retries happen only for transient and rate-limited errors;
// rate-limit hints stretch the backoff.
func (a *Adapter) Invoke(ctx context.Context, tool *models.ToolDescriptor, op string, params map[string]any) (any, error) {
	p, ok := a.providers[tool.Name]
	if !ok {
		return nil, NewToolError(tool.Name, KindBadRequest, fmt.Errorf("no provider registered"))
	}

	if !a.breaker.Allow(tool.Name) {
		return nil, &ToolError{Tool: tool.Name, Kind: KindCircuitOpen, Err: ErrCircuitOpen}
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			delay := a.backoff(attempt, lastErr)
			log.Printf("[adapter] tool %s: attempt %d after %v (%v)", tool.Name, attempt+1, delay, lastErr)
			if err := a.sleep(ctx, delay); err != nil {
				a.breaker.AbandonTrial(tool.Name)
				return nil, NewToolError(tool.Name, KindCancelled, err)
			}
			// The circuit can open between attempts, from concurrent
			// invocations of the same tool. A half-open trial this call
			// already holds keeps the state at HalfOpen, so Open here
			// always means stop.
			if a.breaker.State(tool.Name) == Open {
				return nil, &ToolError{Tool: tool.Name, Kind: KindCircuitOpen, Err: ErrCircuitOpen}
			}
		}

		result, err := a.attempt(ctx, p, op, params)
		if err == nil {
			a.breaker.RecordSuccess(tool.Name)
			return result, nil
		}
		if ctx.Err() != nil {
			// Caller gave up; the tool is not at fault.
			a.breaker.AbandonTrial(tool.Name)
			return nil, NewToolError(tool.Name, KindCancelled, ctx.Err())
		}

		lastErr = a.classify(tool.Name, err)
		kind := KindOf(lastErr)
		if !kind.Retryable() {
			a.breaker.RecordFailure(tool.Name)
			return nil, lastErr
		}
	}

	a.breaker.RecordFailure(tool.Name)
	return nil, lastErr
}

// attempt runs one provider call under the per-attempt timeout.
func (a *Adapter) attempt(ctx context.Context, p Provider, op string, params map[string]any) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return p.Invoke(attemptCtx, op, params)
}

// classify ensures every failure carries a tool and kind. Unclassified
// errors, including single-attempt deadline overruns, count as transient.
func (a *Adapter) classify(tool string, err error) error {
	var te *ToolError
	if errors.As(err, &te) {
		return err
	}
	return NewToolError(tool, KindTransient, err)
}

// backoff computes the delay before the given attempt, honoring
// rate-limit hints and adding jitter to avoid thundering herds.
func (a *Adapter) backoff(attempt int, lastErr error) time.Duration {
	delay := a.backoffBase << (attempt - 1)

	var te *ToolError
	if errors.As(lastErr, &te) && te.Kind == KindRateLimited && te.RetryAfter > delay {
		delay = te.RetryAfter
	}

	jitter := time.Duration(rand.Int63n(int64(a.backoffBase)/2 + 1))
	return delay + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
