// Package synth merges completed task results into a single response.
package synth

import (
	"fmt"
	"strings"

	"github.com/Ak-9647/queryflow/internal/graph"
	"github.com/Ak-9647/queryflow/pkg/models"
)

// Synthesizer folds a settled task graph into one response. Synthesis is
// read-only over the graph and deterministic: the same graph always yields
// the same response.
type Synthesizer struct{}

// New creates a synthesizer.
func New() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize merges node outputs in topological order, flagging the
// response degraded when any node failed, was skipped, or fell back to a
// local computation.
func (s *Synthesizer) Synthesize(g *graph.TaskGraph) (*models.Response, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	resp := &models.Response{}
	var lines []string

	for _, id := range order {
		node := g.Node(id)
		if node == nil {
			continue
		}

		resp.NodeResults = append(resp.NodeResults, models.NodeResult{
			TaskID:     node.ID,
			Operation:  node.Operation,
			Status:     node.Status,
			Payload:    node.Result,
			Error:      node.Err,
			ResolvedBy: node.ResolvedBy,
		})

		switch node.Status {
		case models.NodeStatusSucceeded:
			lines = append(lines, fmt.Sprintf("%s: completed via %s", node.Operation, node.ResolvedBy))
		case models.NodeStatusFallenBack:
			lines = append(lines, fmt.Sprintf("%s: computed locally (degraded)", node.Operation))
			resp.Degraded = true
			resp.DegradedReasons = append(resp.DegradedReasons, degradedReason(node))
		case models.NodeStatusFailed:
			lines = append(lines, fmt.Sprintf("%s: failed", node.Operation))
			resp.Degraded = true
			resp.DegradedReasons = append(resp.DegradedReasons, degradedReason(node))
		case models.NodeStatusSkipped:
			lines = append(lines, fmt.Sprintf("%s: skipped", node.Operation))
			resp.Degraded = true
			resp.DegradedReasons = append(resp.DegradedReasons, degradedReason(node))
		default:
			return nil, fmt.Errorf("synthesize: node %s not settled (status %s)", node.ID, node.Status)
		}
	}

	resp.Summary = strings.Join(lines, "\n")
	return resp, nil
}

// degradedReason explains which operation degraded and why, so no sub-task
// result is dropped silently.
func degradedReason(node *models.TaskNode) string {
	switch node.Status {
	case models.NodeStatusFallenBack:
		if node.Err != "" {
			return fmt.Sprintf("%s: local fallback after tool failure: %s", node.Operation, node.Err)
		}
		return fmt.Sprintf("%s: no external tool available, computed locally", node.Operation)
	case models.NodeStatusFailed:
		return fmt.Sprintf("%s: failed: %s", node.Operation, node.Err)
	case models.NodeStatusSkipped:
		return fmt.Sprintf("%s: skipped: %s", node.Operation, node.SkipReason)
	default:
		return node.Operation
	}
}
