package memory

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ak-9647/queryflow/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "queryflow.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func turn(session, query string, ts time.Time) models.Turn {
	return models.Turn{
		SessionID: session,
		Query:     query,
		Intent:    models.IntentDescriptive,
		Summary:   "summary of " + query,
		Timestamp: ts,
	}
}

func TestStoreTurnRoundTrip(t *testing.T) {
	store := testStore(t)
	now := time.Now().Truncate(time.Second)

	if err := store.UpsertSession("s1", now, now); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn(turn("s1", "show sales", now)); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn(turn("s1", "show revenue", now.Add(time.Second))); err != nil {
		t.Fatal(err)
	}

	turns, err := store.ListTurns("s1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Query != "show sales" || turns[1].Query != "show revenue" {
		t.Errorf("turns out of order: %v, %v", turns[0].Query, turns[1].Query)
	}
	if turns[0].Intent != models.IntentDescriptive {
		t.Errorf("intent = %v", turns[0].Intent)
	}
}

func TestStoreListTurnsLimitKeepsNewest(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	if err := store.UpsertSession("s1", now, now); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := store.AppendTurn(turn("s1", fmt.Sprintf("q%d", i), now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	turns, err := store.ListTurns("s1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Query != "q3" || turns[1].Query != "q4" {
		t.Errorf("limit should keep newest in order, got %s, %s", turns[0].Query, turns[1].Query)
	}
}

func TestStorePruneTurns(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	if err := store.UpsertSession("s1", now, now); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := store.AppendTurn(turn("s1", fmt.Sprintf("q%d", i), now)); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.PruneTurns("s1", 4); err != nil {
		t.Fatal(err)
	}

	count, err := store.CountTurns("s1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}
	turns, _ := store.ListTurns("s1", 0)
	if turns[0].Query != "q6" {
		t.Errorf("oldest surviving turn = %s, want q6", turns[0].Query)
	}
}

func TestStorePreferencesRoundTrip(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	if err := store.UpsertSession("s1", now, now); err != nil {
		t.Fatal(err)
	}

	prefs := models.Preferences{
		IntentCounts: map[string]int{"descriptive": 3},
		ChartCounts:  map[string]int{"bar": 1},
		Topics:       []string{"sales"},
	}
	if err := store.SavePreferences("s1", prefs); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetPreferences("s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.IntentCounts["descriptive"] != 3 || got.ChartCounts["bar"] != 1 {
		t.Errorf("preferences = %+v", got)
	}

	empty, err := store.GetPreferences("unknown")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.IntentCounts) != 0 {
		t.Error("unknown session should have empty preferences")
	}
}

func TestStorePurgeCascades(t *testing.T) {
	store := testStore(t)
	old := time.Now().Add(-48 * time.Hour)
	now := time.Now()

	if err := store.UpsertSession("stale", old, old); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn(turn("stale", "old query", old)); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertSession("fresh", now, now); err != nil {
		t.Fatal(err)
	}

	purged, err := store.PurgeSessionsBefore(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}

	count, _ := store.CountTurns("stale")
	if count != 0 {
		t.Errorf("stale turns survived purge: %d", count)
	}
	if _, _, ok, _ := store.SessionTimes("fresh"); !ok {
		t.Error("fresh session should survive purge")
	}
}

func TestManagerRetentionEvictsOldest(t *testing.T) {
	m := NewManager(testStore(t), WithRetention(50), WithContextTurns(50))

	now := time.Now()
	for i := 0; i < 51; i++ {
		if err := m.RecordTurn(turn("s1", fmt.Sprintf("q%d", i), now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	turns, _, err := m.Context("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 50 {
		t.Fatalf("window = %d, want 50", len(turns))
	}
	if turns[0].Query != "q1" {
		t.Errorf("oldest retained = %s, want q1 (q0 evicted)", turns[0].Query)
	}

	count, err := m.store.CountTurns("s1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 50 {
		t.Errorf("durable count = %d, want 50", count)
	}
}

func TestManagerContextWindow(t *testing.T) {
	m := NewManager(testStore(t), WithContextTurns(2))
	now := time.Now()
	for i := 0; i < 4; i++ {
		if err := m.RecordTurn(turn("s1", fmt.Sprintf("q%d", i), now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	turns, _, err := m.Context("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Fatalf("context = %d turns, want 2", len(turns))
	}
	if turns[0].Query != "q2" || turns[1].Query != "q3" {
		t.Errorf("context window = %s, %s", turns[0].Query, turns[1].Query)
	}
}

func TestManagerEvictionReadThrough(t *testing.T) {
	m := NewManager(testStore(t), WithIdleTTL(time.Minute))

	base := time.Now()
	clock := base
	m.now = func() time.Time { return clock }

	if err := m.RecordTurn(turn("s1", "show sales", base)); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdatePreferences("s1", models.IntentDescriptive, "bar", []string{"sales"}); err != nil {
		t.Fatal(err)
	}

	clock = base.Add(2 * time.Minute)
	if evicted := m.Sweep(); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if got := m.State("s1"); got != models.SessionEvicted {
		t.Fatalf("state = %v, want evicted", got)
	}

	turns, prefs, err := m.Context("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 || turns[0].Query != "show sales" {
		t.Errorf("read-through turns = %v", turns)
	}
	if prefs.IntentCounts["descriptive"] != 1 {
		t.Errorf("read-through preferences = %+v", prefs)
	}
	if got := m.State("s1"); got != models.SessionActive {
		t.Errorf("state after read-through = %v, want active", got)
	}
}

func TestManagerPreferencesBeforeFirstTurn(t *testing.T) {
	store := testStore(t)
	m := NewManager(store)

	// A session can accumulate preferences before any turn is recorded.
	if err := m.UpdatePreferences("s1", models.IntentPredictive, "line", []string{"sales"}); err != nil {
		t.Fatalf("UpdatePreferences on fresh session: %v", err)
	}

	prefs, err := store.GetPreferences("s1")
	if err != nil {
		t.Fatal(err)
	}
	if prefs.IntentCounts[string(models.IntentPredictive)] != 1 {
		t.Errorf("durable intent counts = %v", prefs.IntentCounts)
	}

	if _, _, ok, err := store.SessionTimes("s1"); err != nil || !ok {
		t.Fatalf("session row missing after preference update: ok=%v err=%v", ok, err)
	}

	// A second manager over the same store reads them back through.
	m2 := NewManager(store)
	_, prefs, err = m2.Context("s1")
	if err != nil {
		t.Fatal(err)
	}
	if prefs.ChartCounts["line"] != 1 {
		t.Errorf("restored chart counts = %v", prefs.ChartCounts)
	}
}

func TestManagerStats(t *testing.T) {
	m := NewManager(testStore(t))
	base := time.Now()
	m.now = func() time.Time { return base }

	queries := []string{"ab", "abcd", "abcdef"}
	for i, q := range queries {
		if err := m.RecordTurn(turn("s1", q, base.Add(time.Duration(i)*10*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := m.Stats("s1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Turns != 3 {
		t.Errorf("Turns = %d, want 3", stats.Turns)
	}
	if stats.Span != 20*time.Second {
		t.Errorf("Span = %v, want 20s", stats.Span)
	}
	if stats.AvgQueryLength != 4 {
		t.Errorf("AvgQueryLength = %v, want 4", stats.AvgQueryLength)
	}
}

func TestManagerPreferencesMonotonic(t *testing.T) {
	m := NewManager(testStore(t))

	for i := 0; i < 3; i++ {
		if err := m.UpdatePreferences("s1", models.IntentComparative, "line", []string{"sales", "revenue"}); err != nil {
			t.Fatal(err)
		}
	}

	_, prefs, err := m.Context("s1")
	if err != nil {
		t.Fatal(err)
	}
	if prefs.IntentCounts["comparative"] != 3 {
		t.Errorf("intent count = %d, want 3", prefs.IntentCounts["comparative"])
	}
	if prefs.ChartCounts["line"] != 3 {
		t.Errorf("chart count = %d, want 3", prefs.ChartCounts["line"])
	}
	if len(prefs.Topics) != 2 {
		t.Errorf("topics = %v, want deduplicated pair", prefs.Topics)
	}
}

func TestManagerContextCopyIsolated(t *testing.T) {
	m := NewManager(testStore(t))
	if err := m.UpdatePreferences("s1", models.IntentDescriptive, "", []string{"sales"}); err != nil {
		t.Fatal(err)
	}

	_, prefs, err := m.Context("s1")
	if err != nil {
		t.Fatal(err)
	}
	prefs.IntentCounts["descriptive"] = 99
	prefs.Topics = append(prefs.Topics, "mutated")

	_, again, err := m.Context("s1")
	if err != nil {
		t.Fatal(err)
	}
	if again.IntentCounts["descriptive"] != 1 {
		t.Error("caller mutation leaked into manager state")
	}
	if len(again.Topics) != 1 {
		t.Error("caller topic mutation leaked into manager state")
	}
}

func TestManagerAcquireSerializes(t *testing.T) {
	m := NewManager(testStore(t))

	release := m.Acquire("s1")
	acquired := make(chan struct{})
	go func() {
		r := m.Acquire("s1")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while first holds the session")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never proceeded")
	}
}
