package memory

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Ak-9647/queryflow/pkg/models"
)

// DefaultRetention is how many turns a session keeps, in memory and
// durably.
const DefaultRetention = 50

// DefaultIdleTTL is how long a session stays in the fast store without
// activity.
const DefaultIdleTTL = 30 * time.Minute

// DefaultContextTurns is how many recent turns feed back into
// decomposition.
const DefaultContextTurns = 5

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRetention sets the per-session turn retention limit.
func WithRetention(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.retention = n
		}
	}
}

// WithIdleTTL sets how long inactive sessions stay in the fast store.
func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

// WithContextTurns sets how many recent turns Context returns.
func WithContextTurns(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.contextTurns = n
		}
	}
}

// Manager owns session state. Reads hit the in-process fast store and fall
// through to SQLite after eviction; writes go to both.
type Manager struct {
	store *Store

	mu       sync.Mutex
	sessions map[string]*models.Session
	inflight map[string]*sync.Mutex

	retention    int
	idleTTL      time.Duration
	contextTurns int
	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a manager over the given durable store.
func NewManager(store *Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		sessions:     make(map[string]*models.Session),
		inflight:     make(map[string]*sync.Mutex),
		retention:    DefaultRetention,
		idleTTL:      DefaultIdleTTL,
		contextTurns: DefaultContextTurns,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire serializes request processing for one session. It blocks until
// the session is free and returns the release function.
func (m *Manager) Acquire(sessionID string) func() {
	m.mu.Lock()
	lock, ok := m.inflight[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.inflight[sessionID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Context returns the recent turn window and a copy of the learned
// preferences for a session. Unknown sessions get empty context.
func (m *Manager) Context(sessionID string) ([]models.Turn, models.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessionLocked(sessionID)
	if err != nil {
		return nil, models.Preferences{}, err
	}

	turns := sess.Turns
	if len(turns) > m.contextTurns {
		turns = turns[len(turns)-m.contextTurns:]
	}
	out := append([]models.Turn(nil), turns...)
	return out, sess.Preferences.Clone(), nil
}

// RecordTurn appends a completed turn to the session's history, durably
// and in the fast window, trimming both to the retention limit.
func (m *Manager) RecordTurn(turn models.Turn) error {
	if turn.SessionID == "" {
		return fmt.Errorf("record turn: empty session id")
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessionLocked(turn.SessionID)
	if err != nil {
		return err
	}

	sess.Turns = append(sess.Turns, turn)
	if len(sess.Turns) > m.retention {
		sess.Turns = sess.Turns[len(sess.Turns)-m.retention:]
	}
	sess.LastActivity = turn.Timestamp
	sess.State = models.SessionActive

	if err := m.store.UpsertSession(sess.ID, sess.CreatedAt, sess.LastActivity); err != nil {
		return err
	}
	if err := m.store.AppendTurn(turn); err != nil {
		return err
	}
	return m.store.PruneTurns(turn.SessionID, m.retention)
}

// UpdatePreferences merges newly observed signals into the session's
// preference map. The merge is monotonic: counters increment and topic
// sets union, nothing is overwritten or removed.
func (m *Manager) UpdatePreferences(sessionID string, intent models.Intent, chartType string, topics []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessionLocked(sessionID)
	if err != nil {
		return err
	}

	prefs := &sess.Preferences
	if intent != "" {
		if prefs.IntentCounts == nil {
			prefs.IntentCounts = make(map[string]int)
		}
		prefs.IntentCounts[string(intent)]++
	}
	if chartType != "" {
		if prefs.ChartCounts == nil {
			prefs.ChartCounts = make(map[string]int)
		}
		prefs.ChartCounts[chartType]++
	}
	for _, topic := range topics {
		if topic == "" || containsTopic(prefs.Topics, topic) {
			continue
		}
		prefs.Topics = append(prefs.Topics, topic)
	}

	// The preferences row references the session row; a session seen only
	// through preference updates has no turn to upsert it yet.
	if err := m.store.UpsertSession(sess.ID, sess.CreatedAt, sess.LastActivity); err != nil {
		return err
	}
	return m.store.SavePreferences(sessionID, *prefs)
}

// Sweep transitions sessions past the idle TTL to idle and evicts them
// from the fast store. Durable history survives eviction; the next access
// reads through from SQLite. Returns how many sessions were evicted.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for id, sess := range m.sessions {
		if now.Sub(sess.LastActivity) < m.idleTTL {
			continue
		}
		sess.State = models.SessionEvicted
		delete(m.sessions, id)
		evicted++
		log.Printf("[memory] session %s idle past %v, evicted from fast store", id, m.idleTTL)
	}
	return evicted
}

// SessionStats summarizes one session's recorded history.
type SessionStats struct {
	// Turns is the durable turn count, which may exceed the fast window.
	Turns int
	// Span is the time between session creation and the last activity.
	Span time.Duration
	// AvgQueryLength is the mean query length, in runes, over the
	// retained turn window.
	AvgQueryLength float64
}

// Stats reports summary statistics for a session.
func (m *Manager) Stats(sessionID string) (SessionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessionLocked(sessionID)
	if err != nil {
		return SessionStats{}, err
	}

	count, err := m.store.CountTurns(sessionID)
	if err != nil {
		return SessionStats{}, err
	}

	// Durable times survive eviction; the fast-store entry resets
	// LastActivity on read-through.
	created, last := sess.CreatedAt, sess.LastActivity
	if dc, dl, ok, err := m.store.SessionTimes(sessionID); err != nil {
		return SessionStats{}, err
	} else if ok {
		created, last = dc, dl
	}

	stats := SessionStats{
		Turns: count,
		Span:  last.Sub(created),
	}
	if len(sess.Turns) > 0 {
		total := 0
		for _, turn := range sess.Turns {
			total += len([]rune(turn.Query))
		}
		stats.AvgQueryLength = float64(total) / float64(len(sess.Turns))
	}
	return stats, nil
}

// State reports a session's lifecycle state without loading it.
func (m *Manager) State(sessionID string) models.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		if m.now().Sub(sess.LastActivity) >= m.idleTTL {
			return models.SessionIdle
		}
		return sess.State
	}
	return models.SessionEvicted
}

// sessionLocked returns the fast-store session, reading through from the
// durable store when the session was evicted or never loaded.
func (m *Manager) sessionLocked(sessionID string) (*models.Session, error) {
	if sess, ok := m.sessions[sessionID]; ok {
		return sess, nil
	}

	now := m.now()
	sess := &models.Session{
		ID:           sessionID,
		CreatedAt:    now,
		LastActivity: now,
		State:        models.SessionActive,
	}

	created, _, ok, err := m.store.SessionTimes(sessionID)
	if err != nil {
		return nil, err
	}
	if ok {
		sess.CreatedAt = created
		// LastActivity stays at now: restoring counts as activity,
		// otherwise the session would be idle again on the next sweep.

		turns, err := m.store.ListTurns(sessionID, m.retention)
		if err != nil {
			return nil, err
		}
		sess.Turns = turns

		prefs, err := m.store.GetPreferences(sessionID)
		if err != nil {
			return nil, err
		}
		sess.Preferences = prefs
		log.Printf("[memory] session %s restored from durable store (%d turns)", sessionID, len(turns))
	}

	m.sessions[sessionID] = sess
	return sess, nil
}

func containsTopic(topics []string, topic string) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}
