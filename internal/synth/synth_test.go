package synth

import (
	"reflect"
	"strings"
	"testing"

	"github.com/Ak-9647/queryflow/internal/graph"
	"github.com/Ak-9647/queryflow/pkg/models"
)

func settledGraph(t *testing.T, nodes []*models.TaskNode) *graph.TaskGraph {
	t.Helper()
	g := graph.New()
	if err := g.Build(nodes); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestSynthesizeCleanRun(t *testing.T) {
	g := settledGraph(t, []*models.TaskNode{
		{ID: "t1", Operation: "q1 sales", Status: models.NodeStatusSucceeded, ResolvedBy: "db", Result: 10.0},
		{ID: "t2", Operation: "q2 sales", Status: models.NodeStatusSucceeded, ResolvedBy: "db", Result: 12.0},
		{ID: "t3", Operation: "compare", DependsOn: []string{"t1", "t2"}, Status: models.NodeStatusSucceeded, ResolvedBy: "stats"},
	})

	resp, err := New().Synthesize(g)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if resp.Degraded {
		t.Error("clean run must not be degraded")
	}
	if len(resp.DegradedReasons) != 0 {
		t.Errorf("reasons = %v, want none", resp.DegradedReasons)
	}
	if len(resp.NodeResults) != 3 {
		t.Fatalf("results = %d, want 3", len(resp.NodeResults))
	}
	if resp.Summary == "" {
		t.Error("summary missing")
	}
}

func TestSynthesizeOrdersResultsTopologically(t *testing.T) {
	// Dependents listed first to prove ordering comes from the graph, not
	// the input slice.
	g := settledGraph(t, []*models.TaskNode{
		{ID: "t3", Operation: "compare", DependsOn: []string{"t1", "t2"}, Status: models.NodeStatusSucceeded},
		{ID: "t1", Operation: "left", Status: models.NodeStatusSucceeded},
		{ID: "t2", Operation: "right", Status: models.NodeStatusSucceeded},
	})

	resp, err := New().Synthesize(g)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	pos := make(map[string]int)
	for i, r := range resp.NodeResults {
		pos[r.TaskID] = i
	}
	if pos["t3"] < pos["t1"] || pos["t3"] < pos["t2"] {
		t.Errorf("t3 ordered before its dependencies: %v", pos)
	}
}

func TestSynthesizeAnnotatesDegradation(t *testing.T) {
	g := settledGraph(t, []*models.TaskNode{
		{ID: "t1", Operation: "fetch sales", Status: models.NodeStatusFallenBack, ResolvedBy: "local", Err: "tool db: transient: down"},
		{ID: "t2", Operation: "summarize", Status: models.NodeStatusFailed, Err: "no tool available"},
		{ID: "t3", Operation: "chart", DependsOn: []string{"t2"}, Status: models.NodeStatusSkipped, SkipReason: "dependency t2 failed"},
	})

	resp, err := New().Synthesize(g)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !resp.Degraded {
		t.Fatal("response must be degraded")
	}
	if len(resp.DegradedReasons) != 3 {
		t.Fatalf("reasons = %d, want 3: %v", len(resp.DegradedReasons), resp.DegradedReasons)
	}

	joined := strings.Join(resp.DegradedReasons, "\n")
	for _, want := range []string{"fetch sales", "summarize", "chart", "dependency t2 failed"} {
		if !strings.Contains(joined, want) {
			t.Errorf("reasons missing %q: %v", want, resp.DegradedReasons)
		}
	}
}

func TestSynthesizeRejectsUnsettledGraph(t *testing.T) {
	g := settledGraph(t, []*models.TaskNode{
		{ID: "t1", Operation: "still going", Status: models.NodeStatusRunning},
	})

	if _, err := New().Synthesize(g); err == nil {
		t.Fatal("expected error for unsettled node")
	}
}

func TestSynthesizeIdempotent(t *testing.T) {
	g := settledGraph(t, []*models.TaskNode{
		{ID: "t1", Operation: "fetch", Status: models.NodeStatusSucceeded, ResolvedBy: "db", Result: 1.0},
		{ID: "t2", Operation: "trend", DependsOn: []string{"t1"}, Status: models.NodeStatusFallenBack, ResolvedBy: "local"},
	})

	s := New()
	first, err := s.Synthesize(g)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Synthesize(g)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("synthesis must be deterministic for a settled graph")
	}
}
