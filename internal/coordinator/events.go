package coordinator

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/Ak-9647/queryflow/pkg/models"
)

// EventType identifies what happened during DAG execution.
type EventType string

const (
	// EventNodeStarted fires when a node begins executing.
	EventNodeStarted EventType = "node_started"
	// EventNodeFinished fires when a node reaches a terminal state.
	EventNodeFinished EventType = "node_finished"
	// EventRunFinished fires once per Execute call when the DAG settles.
	EventRunFinished EventType = "run_finished"
)

// Event describes one step of DAG execution, consumed by the CLI for
// progress reporting.
type Event struct {
	Type   EventType
	TaskID string
	Status models.NodeStatus
	// Tool names the resolver for finished nodes, empty otherwise.
	Tool string
	Err  string
	Time time.Time
}

// Emitter fans execution events out to a subscriber without ever blocking
// the coordinator for long.
type Emitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEmitter creates an emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{events: make(chan Event, bufferSize)}
}

// Emit sends an event. If the buffer is full it waits briefly for the
// subscriber to drain, then drops the event and counts it.
func (e *Emitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[coordinator] event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns how many events have been dropped.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the read-only event channel.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Close closes the event channel. Call only after Execute returns.
func (e *Emitter) Close() {
	close(e.events)
}
