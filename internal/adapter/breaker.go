package adapter

import (
	"log"
	"sync"
	"time"
)

// BreakerState is the lifecycle state of a tool's circuit.
type BreakerState int

const (
	// Closed allows calls; consecutive failures are counted.
	Closed BreakerState = iota
	// Open rejects calls until the cooldown elapses.
	Open
	// HalfOpen admits a single trial call after cooldown.
	HalfOpen
)

// String returns a human-readable representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker tracks per-tool circuits. Each tool gets an independent circuit
// so one flaky backend does not block the rest.
type Breaker struct {
	mu        sync.Mutex
	circuits  map[string]*circuit
	threshold int
	cooldown  time.Duration
	// now is swappable for tests.
	now func() time.Time
}

type circuit struct {
	state    BreakerState
	failures int
	openedAt time.Time
	// trialing guards half-open so only one probe runs at a time.
	trialing bool
}

// NewBreaker creates a breaker that opens a tool's circuit after threshold
// consecutive failures and probes again after cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		circuits:  make(map[string]*circuit),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call to tool may proceed. In half-open state only
// the first caller gets through; concurrent callers are rejected until the
// trial resolves.
func (b *Breaker) Allow(tool string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(tool)
	switch c.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(c.openedAt) < b.cooldown {
			return false
		}
		c.state = HalfOpen
		c.trialing = true
		log.Printf("[breaker] tool %s: cooldown elapsed, half-open trial", tool)
		return true
	case HalfOpen:
		if c.trialing {
			return false
		}
		c.trialing = true
		return true
	}
	return false
}

// RecordSuccess closes the circuit and clears the failure count.
func (b *Breaker) RecordSuccess(tool string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(tool)
	if c.state != Closed {
		log.Printf("[breaker] tool %s: recovered, closing circuit", tool)
	}
	c.state = Closed
	c.failures = 0
	c.trialing = false
}

// RecordFailure counts a failure, opening the circuit at the threshold or
// re-opening immediately on a failed half-open trial.
func (b *Breaker) RecordFailure(tool string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(tool)
	switch c.state {
	case HalfOpen:
		c.state = Open
		c.openedAt = b.now()
		c.trialing = false
		log.Printf("[breaker] tool %s: trial failed, reopening circuit", tool)
	case Closed:
		c.failures++
		if c.failures >= b.threshold {
			c.state = Open
			c.openedAt = b.now()
			log.Printf("[breaker] tool %s: %d consecutive failures, opening circuit", tool, c.failures)
		}
	}
}

// AbandonTrial releases an in-flight half-open trial whose call ended
// without a verdict, typically cancellation, so a later call can probe.
func (b *Breaker) AbandonTrial(tool string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(tool)
	if c.state == HalfOpen {
		c.trialing = false
	}
}

// State returns the current state of a tool's circuit.
func (b *Breaker) State(tool string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.circuit(tool).state
}

func (b *Breaker) circuit(tool string) *circuit {
	c, ok := b.circuits[tool]
	if !ok {
		c = &circuit{state: Closed}
		b.circuits[tool] = c
	}
	return c
}
