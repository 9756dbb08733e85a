package models

import "time"

// SessionState represents the lifecycle state of a session.
type SessionState string

const (
	// SessionActive means the session has had a turn within the idle TTL.
	SessionActive SessionState = "active"
	// SessionIdle means the idle TTL elapsed; the session is eligible for
	// eviction from the fast store but its durable history is retained.
	SessionIdle SessionState = "idle"
	// SessionEvicted means the fast-store entry was removed; durable
	// history remains queryable by id.
	SessionEvicted SessionState = "evicted"
)

// Session is the conversational context for one user interaction stream.
// It is owned exclusively by the memory manager.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"id"`
	// CreatedAt is when the session was first seen.
	CreatedAt time.Time `json:"created_at"`
	// LastActivity is when the most recent turn was recorded.
	LastActivity time.Time `json:"last_activity"`
	// Turns is the ordered in-memory window of recent turns.
	Turns []Turn `json:"turns"`
	// Preferences is the monotonic preference map learned for the session.
	Preferences Preferences `json:"preferences"`
	// State is the current lifecycle state.
	State SessionState `json:"state"`
}

// Turn is one query/response exchange. Turns are immutable once created
// and appended to the session's durable history in timestamp order.
type Turn struct {
	// SessionID references the owning session.
	SessionID string `json:"session_id"`
	// Query is the raw query text.
	Query string `json:"query"`
	// Intent is the resolved intent label for the query.
	Intent Intent `json:"intent"`
	// Summary is the synthesized response summary.
	Summary string `json:"summary"`
	// Degraded records whether the response was degraded.
	Degraded bool `json:"degraded"`
	// Timestamp is when the turn completed.
	Timestamp time.Time `json:"timestamp"`
}

// Preferences aggregates learned signals for a session. All fields grow
// monotonically: counters only increment and sets only merge, never a
// wholesale overwrite.
type Preferences struct {
	// IntentCounts counts observed intent categories.
	IntentCounts map[string]int `json:"intent_counts,omitempty"`
	// ChartCounts counts chart-type choices observed in turns.
	ChartCounts map[string]int `json:"chart_counts,omitempty"`
	// Topics is the merged set of topic terms seen across turns.
	Topics []string `json:"topics,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate manager-owned state.
func (p Preferences) Clone() Preferences {
	out := Preferences{}
	if p.IntentCounts != nil {
		out.IntentCounts = make(map[string]int, len(p.IntentCounts))
		for k, v := range p.IntentCounts {
			out.IntentCounts[k] = v
		}
	}
	if p.ChartCounts != nil {
		out.ChartCounts = make(map[string]int, len(p.ChartCounts))
		for k, v := range p.ChartCounts {
			out.ChartCounts[k] = v
		}
	}
	if p.Topics != nil {
		out.Topics = append([]string(nil), p.Topics...)
	}
	return out
}
