package decompose

import (
	"errors"
	"strings"
	"testing"

	"github.com/Ak-9647/queryflow/pkg/models"
)

func TestDecomposeSingleClause(t *testing.T) {
	d := New(0)
	nodes, err := d.Decompose("show me sales by region", models.IntentDescriptive, nil)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	n := nodes[0]
	if n.ID != "t1" {
		t.Errorf("ID = %s, want t1", n.ID)
	}
	if n.Class != models.OpDescribe {
		t.Errorf("class = %v, want %v", n.Class, models.OpDescribe)
	}
	if len(n.DependsOn) != 0 {
		t.Errorf("single node should have no dependencies, got %v", n.DependsOn)
	}
}

func TestDecomposeEmptyQuery(t *testing.T) {
	d := New(0)
	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := d.Decompose(q, models.IntentGeneral, nil); !errors.Is(err, ErrEmptyDecomposition) {
			t.Errorf("Decompose(%q) err = %v, want ErrEmptyDecomposition", q, err)
		}
	}
}

func TestDecomposeCompareWithFollowups(t *testing.T) {
	d := New(0)
	nodes, err := d.Decompose(
		"Compare Q1 vs Q2 sales, identify trends, and predict Q3",
		models.IntentComparative, nil)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	// Two retrieval legs, the comparison, the trend step, the forecast.
	if len(nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d: %v", len(nodes), names(nodes))
	}

	byID := make(map[string]*models.TaskNode)
	for _, n := range nodes {
		byID[n.ID] = n
	}

	leg1, leg2, cmp, trend, forecast := byID["t1"], byID["t2"], byID["t3"], byID["t4"], byID["t5"]

	if !strings.Contains(strings.ToLower(leg1.Operation), "q1") {
		t.Errorf("t1 should fetch Q1, got %q", leg1.Operation)
	}
	if !strings.Contains(strings.ToLower(leg1.Operation), "sales") {
		t.Errorf("shared subject should carry to the left leg, got %q", leg1.Operation)
	}
	if !strings.Contains(strings.ToLower(leg2.Operation), "q2") {
		t.Errorf("t2 should fetch Q2, got %q", leg2.Operation)
	}
	if cmp.Class != models.OpCompare {
		t.Errorf("t3 class = %v, want %v", cmp.Class, models.OpCompare)
	}
	if !sameSet(cmp.DependsOn, []string{"t1", "t2"}) {
		t.Errorf("t3 deps = %v, want [t1 t2]", cmp.DependsOn)
	}

	if trend.Class != models.OpTrend {
		t.Errorf("t4 class = %v, want %v", trend.Class, models.OpTrend)
	}
	if !sameSet(trend.DependsOn, []string{"t3"}) {
		t.Errorf("t4 deps = %v, want [t3]", trend.DependsOn)
	}

	if forecast.Class != models.OpForecast {
		t.Errorf("t5 class = %v, want %v", forecast.Class, models.OpForecast)
	}
	if !sameSet(forecast.DependsOn, []string{"t4"}) {
		t.Errorf("t5 deps = %v, want [t4]", forecast.DependsOn)
	}
}

func TestDecomposeNeverFlagsRequired(t *testing.T) {
	// Required is reserved for operations explicitly flagged by the
	// caller; a decomposed node that loses every candidate must degrade
	// to a skip, never abort the request.
	d := New(0)
	queries := []string{
		"compare Q1 vs Q2 sales",
		"Compare Q1 vs Q2 sales, identify trends, and predict Q3",
		"show revenue by product then chart it",
	}
	for _, q := range queries {
		nodes, err := d.Decompose(q, models.IntentComparative, nil)
		if err != nil {
			t.Fatalf("Decompose(%q): %v", q, err)
		}
		for _, n := range nodes {
			if n.Required {
				t.Errorf("Decompose(%q): node %s flagged required", q, n.ID)
			}
		}
	}
}

func TestDecomposeThenChains(t *testing.T) {
	d := New(0)
	nodes, err := d.Decompose("show revenue by product then chart it", models.IntentDescriptive, nil)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[1].Class != models.OpVisualize {
		t.Errorf("second class = %v, want %v", nodes[1].Class, models.OpVisualize)
	}
	if !sameSet(nodes[1].DependsOn, []string{"t1"}) {
		t.Errorf("chart should depend on the data step, got %v", nodes[1].DependsOn)
	}
}

func TestDecomposeTopicCarryOver(t *testing.T) {
	d := New(0)
	nodes, err := d.Decompose("break that down by month", models.IntentDescriptive, []string{"sales by region"})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if !strings.Contains(nodes[0].Operation, "sales by region") {
		t.Errorf("anaphoric clause should carry the context topic, got %q", nodes[0].Operation)
	}
}

func TestDecomposeNoTopicWithoutAnaphora(t *testing.T) {
	d := New(0)
	nodes, err := d.Decompose("show revenue by product", models.IntentDescriptive, []string{"sales by region"})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if strings.Contains(nodes[0].Operation, "sales by region") {
		t.Errorf("self-contained clause should not absorb context topics, got %q", nodes[0].Operation)
	}
}

func TestDecomposeCapsSubtasks(t *testing.T) {
	d := New(3)
	nodes, err := d.Decompose(
		"show sales and show revenue and show profit and show costs and show orders",
		models.IntentDescriptive, nil)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected cap of 3 nodes, got %d", len(nodes))
	}
	last := nodes[2]
	for _, want := range []string{"profit", "costs", "orders"} {
		if !strings.Contains(last.Operation, want) {
			t.Errorf("folded node should mention %q, got %q", want, last.Operation)
		}
	}
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if dep != "t1" && dep != "t2" && dep != "t3" {
				t.Errorf("node %s depends on folded node %s", n.ID, dep)
			}
			if dep == n.ID {
				t.Errorf("node %s depends on itself", n.ID)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		clause string
		want   models.OperationClass
	}{
		{"show total sales by region", models.OpDescribe},
		{"compare east vs west revenue", models.OpCompare},
		{"top 5 products by profit", models.OpRank},
		{"revenue trends over time", models.OpTrend},
		{"forecast next quarter sales", models.OpForecast},
		{"find anomalies in daily orders", models.OpAnomaly},
		{"plot revenue as a bar chart", models.OpVisualize},
		{"tell me something", models.OpGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.clause, func(t *testing.T) {
			if got := Classify(tt.clause); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.clause, got, tt.want)
			}
		})
	}
}

func TestIntentFor(t *testing.T) {
	tests := []struct {
		query string
		want  models.Intent
	}{
		{"predict Q3 revenue", models.IntentPredictive},
		{"why did sales spike in June", models.IntentDiagnostic},
		{"compare Q1 vs Q2", models.IntentComparative},
		{"explore correlations in the data", models.IntentExploratory},
		{"list tables in the warehouse", models.IntentOperational},
		{"show total sales", models.IntentDescriptive},
		{"hello", models.IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := IntentFor(tt.query); got != tt.want {
				t.Errorf("IntentFor(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func names(nodes []*models.TaskNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID + ":" + n.Operation
	}
	return out
}

func sameSet(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	set := make(map[string]bool, len(got))
	for _, g := range got {
		set[g] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
