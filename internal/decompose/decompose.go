// Package decompose turns analytics queries into dependency-ordered task
// nodes.
package decompose

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Ak-9647/queryflow/pkg/models"
)

// ErrEmptyDecomposition is returned when a query yields no task nodes.
var ErrEmptyDecomposition = errors.New("decomposition produced no tasks")

// DefaultMaxSubtasks caps how many nodes a single query may fan out into.
const DefaultMaxSubtasks = 8

// Decomposer splits a query into task nodes using connective and keyword
// rules.
type Decomposer struct {
	maxSubtasks int
}

// New creates a decomposer. maxSubtasks values below 1 fall back to the
// default cap.
func New(maxSubtasks int) *Decomposer {
	if maxSubtasks < 1 {
		maxSubtasks = DefaultMaxSubtasks
	}
	return &Decomposer{maxSubtasks: maxSubtasks}
}

// Decompose splits query into task nodes. contextTopics carries the topics
// of recent turns so follow-up clauses ("break that down", "what about it")
// keep their subject. Nodes are returned in dependency order with IDs
// t1..tn.
func (d *Decomposer) Decompose(query string, intent models.Intent, contextTopics []string) ([]*models.TaskNode, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, ErrEmptyDecomposition
	}

	clauses := splitClauses(trimmed)
	if len(clauses) == 0 {
		return nil, ErrEmptyDecomposition
	}

	var nodes []*models.TaskNode
	// lastDataID is the most recent node producing data; analytical and
	// visual steps depend on it.
	lastDataID := ""
	nextID := func() string { return fmt.Sprintf("t%d", len(nodes)+1) }

	for _, clause := range clauses {
		clause = carryTopic(clause, contextTopics)
		class := Classify(clause)

		if class == models.OpCompare {
			legs := compareLegs(clause)
			if len(legs) == 2 {
				legIDs := make([]string, 0, 2)
				for _, leg := range legs {
					leg = carryTopic(leg, contextTopics)
					n := &models.TaskNode{
						ID:        nextID(),
						Operation: leg,
						Class:     models.OpDescribe,
						Status:    models.NodeStatusPending,
					}
					nodes = append(nodes, n)
					legIDs = append(legIDs, n.ID)
				}
				cmp := &models.TaskNode{
					ID:        nextID(),
					Operation: clause,
					Class:     models.OpCompare,
					DependsOn: legIDs,
					Status:    models.NodeStatusPending,
				}
				nodes = append(nodes, cmp)
				lastDataID = cmp.ID
				continue
			}
		}

		n := &models.TaskNode{
			ID:        nextID(),
			Operation: clause,
			Class:     class,
			Status:    models.NodeStatusPending,
		}
		if dependsOnData(class) && lastDataID != "" {
			n.DependsOn = []string{lastDataID}
		}
		nodes = append(nodes, n)
		if class != models.OpVisualize {
			lastDataID = n.ID
		}
	}

	if len(nodes) == 0 {
		return nil, ErrEmptyDecomposition
	}

	nodes = capSubtasks(nodes, d.maxSubtasks)
	log.Printf("[decompose] %d clauses -> %d tasks", len(clauses), len(nodes))
	return nodes, nil
}

// dependsOnData reports whether a class consumes the output of the previous
// data-producing node rather than fetching fresh data itself.
func dependsOnData(class models.OperationClass) bool {
	switch class {
	case models.OpTrend, models.OpForecast, models.OpAnomaly, models.OpVisualize, models.OpRank:
		return true
	}
	return false
}

// connectives split a multi-part request into clauses. Longer separators
// are tried first so ", and" is not split twice.
var connectives = []string{
	", and then ", ", then ", " and then ", ", and ", " then ", "; ", " and ", ", ",
}

func splitClauses(query string) []string {
	parts := []string{query}
	for _, sep := range connectives {
		var next []string
		for _, p := range parts {
			for _, piece := range strings.Split(p, sep) {
				piece = strings.TrimSpace(strings.Trim(piece, ".?!"))
				if piece != "" {
					next = append(next, piece)
				}
			}
		}
		parts = next
	}
	return parts
}

// compareLegs extracts the two sides of a comparison clause. It returns nil
// when the clause has no recognizable "X vs Y" shape, in which case the
// comparison runs as a single node.
func compareLegs(clause string) []string {
	lower := strings.ToLower(clause)

	for _, sep := range []string{" versus ", " vs. ", " vs ", " against ", " with "} {
		idx := strings.Index(lower, sep)
		if idx < 0 {
			continue
		}
		left := strings.TrimSpace(clause[:idx])
		right := strings.TrimSpace(clause[idx+len(sep):])
		if left == "" || right == "" {
			continue
		}
		// Drop the leading compare verb from the left leg.
		for _, verb := range []string{"compare ", "comparing "} {
			if strings.HasPrefix(strings.ToLower(left), verb) {
				left = strings.TrimSpace(left[len(verb):])
				break
			}
		}
		// A trailing shared subject on the right leg ("Q2 sales") also
		// applies to the left ("Q1" -> "Q1 sales").
		if subject := trailingSubject(right); subject != "" && !strings.Contains(strings.ToLower(left), subject) {
			left = left + " " + subject
		}
		return []string{left, right}
	}
	return nil
}

// trailingSubject returns the last word of a leg when it names a metric.
func trailingSubject(leg string) string {
	words := strings.Fields(strings.ToLower(leg))
	if len(words) < 2 {
		return ""
	}
	last := words[len(words)-1]
	for _, metric := range []string{"sales", "revenue", "profit", "orders", "costs", "traffic", "usage"} {
		if last == metric {
			return metric
		}
	}
	return ""
}

// anaphora are the referring words that signal a clause leans on earlier
// conversation for its subject.
var anaphora = []string{"that", "it", "those", "this", "them"}

// carryTopic appends the most recent context topic to clauses that refer
// back without naming a subject.
func carryTopic(clause string, topics []string) string {
	if len(topics) == 0 {
		return clause
	}
	words := strings.Fields(strings.ToLower(clause))
	for _, w := range words {
		for _, a := range anaphora {
			if w == a {
				topic := topics[len(topics)-1]
				if !strings.Contains(strings.ToLower(clause), strings.ToLower(topic)) {
					return clause + " (" + topic + ")"
				}
				return clause
			}
		}
	}
	return clause
}

// capSubtasks folds overflow nodes into the final kept node so the graph
// never exceeds max. Dependencies pointing at folded nodes are rewired to
// the fold target.
func capSubtasks(nodes []*models.TaskNode, max int) []*models.TaskNode {
	if len(nodes) <= max {
		return nodes
	}

	kept := nodes[:max]
	tail := kept[max-1]
	folded := make(map[string]bool)

	var ops []string
	ops = append(ops, tail.Operation)
	for _, n := range nodes[max:] {
		folded[n.ID] = true
		ops = append(ops, n.Operation)
	}
	tail.Operation = strings.Join(ops, "; ")

	for _, n := range kept {
		var deps []string
		seen := make(map[string]bool)
		for _, dep := range n.DependsOn {
			if folded[dep] {
				dep = tail.ID
			}
			if dep != n.ID && !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
		n.DependsOn = deps
	}
	return kept
}
