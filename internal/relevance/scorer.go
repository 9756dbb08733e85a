// Package relevance ranks registry tools against decomposed task nodes.
package relevance

import (
	"sort"
	"strings"

	"github.com/Ak-9647/queryflow/internal/registry"
	"github.com/Ak-9647/queryflow/pkg/models"
)

// intentAffinity maps intents to the capability vocabulary that makes a
// tool a plausible (medium-confidence) match even without an exact
// operation hit.
var intentAffinity = map[models.Intent][]string{
	models.IntentDescriptive: {"sales", "revenue", "aggregate", "sum", "query", "table"},
	models.IntentComparative: {"sales", "revenue", "aggregate", "statistics"},
	models.IntentDiagnostic:  {"anomaly", "outlier", "correlation", "statistics"},
	models.IntentPredictive:  {"forecast", "predict", "trend", "regression"},
	models.IntentExploratory: {"statistics", "distribution", "query", "market"},
	models.IntentOperational: {"query", "table", "sql"},
}

// Scorer assigns relevance tiers to tools for each task node.
type Scorer struct {
	registry *registry.Registry
}

// NewScorer creates a scorer backed by the given registry.
func NewScorer(r *registry.Registry) *Scorer {
	return &Scorer{registry: r}
}

// Score populates node.Candidates with enabled tools ranked by relevance.
// Candidates are ordered by tier descending, then cost ascending, then
// name. Nodes with no matching tool are marked LocalOnly.
func (s *Scorer) Score(node *models.TaskNode, intent models.Intent) {
	op := strings.ToLower(node.Operation)

	var candidates []models.Candidate
	for _, tool := range s.registry.Enabled() {
		tier, ok := s.tierFor(tool, op, intent)
		if !ok {
			continue
		}
		candidates = append(candidates, models.Candidate{Tool: tool, Tier: tier})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Tier != b.Tier {
			return a.Tier > b.Tier
		}
		if a.Tool.Cost != b.Tool.Cost {
			return a.Tool.Cost < b.Tool.Cost
		}
		return a.Tool.Name < b.Tool.Name
	})

	node.Candidates = candidates
	node.LocalOnly = len(candidates) == 0
}

// ScoreAll scores every node in the slice.
func (s *Scorer) ScoreAll(nodes []*models.TaskNode, intent models.Intent) {
	for _, n := range nodes {
		s.Score(n, intent)
	}
}

// tierFor classifies a single tool against an operation. Exact vocabulary
// hits rank high, intent affinity ranks medium, general-purpose tools rank
// low, anything else is excluded.
func (s *Scorer) tierFor(tool *models.ToolDescriptor, op string, intent models.Intent) (models.RelevanceTier, bool) {
	for _, kw := range tool.Operations {
		if strings.Contains(op, strings.ToLower(kw)) {
			return models.TierHigh, true
		}
	}

	for _, kw := range intentAffinity[intent] {
		if tool.Supports(kw) {
			return models.TierMedium, true
		}
	}

	if tool.GeneralPurpose {
		return models.TierLow, true
	}
	return 0, false
}
