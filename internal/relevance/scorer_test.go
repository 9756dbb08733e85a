package relevance

import (
	"testing"

	"github.com/Ak-9647/queryflow/internal/registry"
	"github.com/Ak-9647/queryflow/pkg/models"
)

func TestScoreExactMatchRanksHigh(t *testing.T) {
	s := NewScorer(registry.New())
	node := &models.TaskNode{ID: "t1", Operation: "total sales by region"}

	s.Score(node, models.IntentDescriptive)

	if node.LocalOnly {
		t.Fatal("node should not be local-only")
	}
	if len(node.Candidates) == 0 {
		t.Fatal("expected candidates")
	}
	top := node.Candidates[0]
	if top.Tier != models.TierHigh {
		t.Errorf("top tier = %v, want %v", top.Tier, models.TierHigh)
	}
	if top.Tool.Name != "warehouse-sql" {
		t.Errorf("top tool = %s, want warehouse-sql", top.Tool.Name)
	}
}

func TestScoreCostBreaksTierTies(t *testing.T) {
	// warehouse-sql (low cost) and redshift-warehouse (high cost) both match
	// "sales" exactly; the cheaper tool must rank first.
	s := NewScorer(registry.New())
	node := &models.TaskNode{ID: "t1", Operation: "sales last month"}

	s.Score(node, models.IntentDescriptive)

	var warehouse, redshift = -1, -1
	for i, c := range node.Candidates {
		switch c.Tool.Name {
		case "warehouse-sql":
			warehouse = i
		case "redshift-warehouse":
			redshift = i
		}
	}
	if warehouse == -1 || redshift == -1 {
		t.Fatal("both warehouses should be candidates")
	}
	if warehouse > redshift {
		t.Errorf("warehouse-sql (cost low) ranked %d after redshift-warehouse at %d", warehouse, redshift)
	}
}

func TestScoreIntentAffinityRanksMedium(t *testing.T) {
	s := NewScorer(registry.New())
	// No forecast vocabulary in the operation text, but predictive intent
	// should still surface stats-engine at medium confidence.
	node := &models.TaskNode{ID: "t1", Operation: "what happens next quarter"}

	s.Score(node, models.IntentPredictive)

	found := false
	for _, c := range node.Candidates {
		if c.Tool.Name == "stats-engine" {
			found = true
			if c.Tier != models.TierMedium {
				t.Errorf("stats-engine tier = %v, want %v", c.Tier, models.TierMedium)
			}
		}
	}
	if !found {
		t.Error("stats-engine should be a candidate under predictive intent")
	}
}

func TestScoreGeneralPurposeRanksLow(t *testing.T) {
	s := NewScorer(registry.New())
	node := &models.TaskNode{ID: "t1", Operation: "sales by region"}

	s.Score(node, models.IntentDescriptive)

	for _, c := range node.Candidates {
		if c.Tool.GeneralPurpose && c.Tier != models.TierLow {
			t.Errorf("general-purpose tool %s tier = %v, want %v", c.Tool.Name, c.Tier, models.TierLow)
		}
	}
	last := node.Candidates[len(node.Candidates)-1]
	if !last.Tool.GeneralPurpose {
		t.Errorf("general-purpose tool should rank last, got %s", last.Tool.Name)
	}
}

func TestScoreNoMatchMarksLocalOnly(t *testing.T) {
	r := registry.New()
	// Strip the general-purpose tool so nothing can match.
	disabled := r.Get("answer-assist")
	if disabled == nil {
		t.Fatal("answer-assist missing from defaults")
	}
	disabled.Enabled = false

	s := NewScorer(r)
	node := &models.TaskNode{ID: "t1", Operation: "zzz unmatched gibberish"}

	s.Score(node, models.IntentGeneral)

	if !node.LocalOnly {
		t.Error("node with no candidates must be local-only")
	}
	if len(node.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(node.Candidates))
	}
}

func TestScoreAll(t *testing.T) {
	s := NewScorer(registry.New())
	nodes := []*models.TaskNode{
		{ID: "t1", Operation: "sales by region"},
		{ID: "t2", Operation: "forecast next quarter"},
	}

	s.ScoreAll(nodes, models.IntentPredictive)

	for _, n := range nodes {
		if len(n.Candidates) == 0 {
			t.Errorf("node %s has no candidates", n.ID)
		}
	}
}
