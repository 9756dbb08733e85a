// Package coordinator schedules task DAG execution across tool adapters
// with bounded concurrency.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Ak-9647/queryflow/internal/adapter"
	"github.com/Ak-9647/queryflow/internal/fallback"
	"github.com/Ak-9647/queryflow/internal/graph"
	"github.com/Ak-9647/queryflow/pkg/models"
)

// ErrRequiredTaskFailed aborts the whole request when a must-succeed node
// fails with no fallback path.
var ErrRequiredTaskFailed = errors.New("required task failed")

// localResolver marks results computed by the offline fallback engine.
const localResolver = "local"

// DefaultMaxConcurrency bounds how many nodes run at once.
const DefaultMaxConcurrency = 5

// Invoker executes one tool call. Satisfied by *adapter.Adapter.
type Invoker interface {
	Invoke(ctx context.Context, tool *models.ToolDescriptor, op string, params map[string]any) (any, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxConcurrency bounds parallel node execution.
func WithMaxConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithEmitter attaches an event emitter for progress reporting.
func WithEmitter(e *Emitter) Option {
	return func(c *Coordinator) { c.emitter = e }
}

// Coordinator runs a task graph: independent nodes in parallel, candidates
// in relevance order, local fallback when every candidate is exhausted.
type Coordinator struct {
	invoker        Invoker
	local          *fallback.Engine
	maxConcurrency int
	emitter        *Emitter
}

// New creates a coordinator using invoker for external calls and local for
// offline computation.
func New(invoker Invoker, local *fallback.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{
		invoker:        invoker,
		local:          local,
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs the graph to completion. It returns ErrRequiredTaskFailed
// when a required node fails, the context error on cancellation, and nil
// otherwise; per-node failures are recorded on the nodes themselves.
func (c *Coordinator) Execute(ctx context.Context, g *graph.TaskGraph) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, c.maxConcurrency)
	finished := make(chan string, g.Size())
	dispatched := make(map[string]bool, g.Size())

	var wg sync.WaitGroup
	var mu sync.Mutex
	var abortErr error

	abort := func(err error) {
		mu.Lock()
		if abortErr == nil {
			abortErr = err
		}
		mu.Unlock()
		cancel()
	}

	inFlight := 0
	for {
		c.skipBlocked(g)
		if g.Done() {
			break
		}

		if runCtx.Err() == nil {
			for _, node := range g.Ready() {
				if dispatched[node.ID] {
					continue
				}
				dispatched[node.ID] = true
				inFlight++
				wg.Add(1)
				go func(n *models.TaskNode) {
					defer wg.Done()
					defer func() { finished <- n.ID }()

					select {
					case sem <- struct{}{}:
					case <-runCtx.Done():
						return
					}
					defer func() { <-sem }()

					c.runNode(runCtx, g, n)
					if n.Status == models.NodeStatusFailed && n.Required {
						abort(fmt.Errorf("%w: %s", ErrRequiredTaskFailed, n.ID))
					}
				}(node)
			}
		}

		if inFlight == 0 {
			break
		}
		<-finished
		inFlight--
	}

	wg.Wait()
	c.sweepUnstarted(g)

	c.emit(Event{Type: EventRunFinished, Time: time.Now()})

	mu.Lock()
	err := abortErr
	mu.Unlock()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// runNode executes one node: candidates in relevance order, then the local
// fallback path.
func (c *Coordinator) runNode(ctx context.Context, g *graph.TaskGraph, node *models.TaskNode) {
	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	node.StartedAt = &started
	g.SetStatus(node.ID, models.NodeStatusRunning)
	c.emit(Event{Type: EventNodeStarted, TaskID: node.ID, Status: models.NodeStatusRunning, Time: started})

	inputs := dependencyResults(g, node)

	var lastErr error
	if !node.LocalOnly {
		for _, cand := range node.Candidates {
			result, err := c.invoker.Invoke(ctx, cand.Tool, node.Operation, node.Params)
			if err == nil {
				node.Result = result
				node.ResolvedBy = cand.Tool.Name
				c.finish(g, node, models.NodeStatusSucceeded)
				return
			}
			if ctx.Err() != nil || adapter.KindOf(err) == adapter.KindCancelled {
				node.SkipReason = "cancelled"
				c.finish(g, node, models.NodeStatusSkipped)
				return
			}
			lastErr = err
			log.Printf("[coordinator] task %s: tool %s failed: %v", node.ID, cand.Tool.Name, err)
		}
	}

	if c.local != nil && c.local.CanHandle(node.Class) {
		node.Result = c.local.Handle(node, inputs)
		node.ResolvedBy = localResolver
		if lastErr != nil {
			node.Err = lastErr.Error()
		}
		c.finish(g, node, models.NodeStatusFallenBack)
		return
	}

	if lastErr == nil {
		lastErr = errors.New("no tool available")
	}
	node.Err = lastErr.Error()
	c.finish(g, node, models.NodeStatusFailed)
}

func (c *Coordinator) finish(g *graph.TaskGraph, node *models.TaskNode, status models.NodeStatus) {
	finished := time.Now()
	node.FinishedAt = &finished
	g.SetStatus(node.ID, status)
	c.emit(Event{
		Type:   EventNodeFinished,
		TaskID: node.ID,
		Status: status,
		Tool:   node.ResolvedBy,
		Err:    node.Err,
		Time:   finished,
	})
}

// skipBlocked marks pending nodes with a failed dependency as skipped so
// the graph can settle. Dependents of skipped nodes still run; the missing
// input shows up as a degraded annotation instead.
func (c *Coordinator) skipBlocked(g *graph.TaskGraph) {
	for _, node := range g.Nodes() {
		if g.Status(node.ID) != models.NodeStatusPending {
			continue
		}
		for _, dep := range node.DependsOn {
			if g.Status(dep) == models.NodeStatusFailed {
				node.SkipReason = fmt.Sprintf("dependency %s failed", dep)
				c.finish(g, node, models.NodeStatusSkipped)
				break
			}
		}
	}
}

// sweepUnstarted marks nodes that never ran as skipped after cancellation
// or abort.
func (c *Coordinator) sweepUnstarted(g *graph.TaskGraph) {
	for _, node := range g.Nodes() {
		if g.Status(node.ID) == models.NodeStatusPending {
			node.SkipReason = "cancelled"
			c.finish(g, node, models.NodeStatusSkipped)
		}
	}
}

// dependencyResults collects the results of resolved dependencies in
// declaration order. Reading a result is safe once its node's status is
// terminal.
func dependencyResults(g *graph.TaskGraph, node *models.TaskNode) []any {
	var inputs []any
	for _, dep := range node.DependsOn {
		status := g.Status(dep)
		if status != models.NodeStatusSucceeded && status != models.NodeStatusFallenBack {
			continue
		}
		if d := g.Node(dep); d != nil {
			inputs = append(inputs, d.Result)
		}
	}
	return inputs
}

func (c *Coordinator) emit(e Event) {
	if c.emitter != nil {
		c.emitter.Emit(e)
	}
}
