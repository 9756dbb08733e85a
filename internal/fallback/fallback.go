// Package fallback computes degraded local results when no external tool
// can serve a task.
package fallback

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/Ak-9647/queryflow/pkg/models"
)

// Engine executes tasks locally with simple deterministic computations. It
// never fails: a task with no usable inputs still gets a descriptive
// result so the response can explain what was skipped.
type Engine struct{}

// New creates a fallback engine.
func New() *Engine {
	return &Engine{}
}

// CanHandle reports whether a local computation path exists for class.
// General conversation has no offline equivalent; everything numeric does.
func (e *Engine) CanHandle(class models.OperationClass) bool {
	return class != models.OpGeneral
}

// Handle computes a local result for node. inputs carries the results of
// the node's resolved dependencies in dependency order.
func (e *Engine) Handle(node *models.TaskNode, inputs []any) any {
	series := gatherSeries(node, inputs)
	log.Printf("[fallback] local %s for task %s (%d input points)", node.Class, node.ID, len(series))

	switch node.Class {
	case models.OpCompare:
		return e.compare(node, inputs)
	case models.OpTrend:
		return e.trend(node, series)
	case models.OpForecast:
		return e.forecast(node, series)
	case models.OpAnomaly:
		return e.anomalies(node, series)
	case models.OpRank:
		return e.rank(node, series)
	case models.OpVisualize:
		return map[string]any{
			"operation":  node.Operation,
			"chart_spec": map[string]any{"type": "table", "values": series},
			"note":       "rendering unavailable, returning tabular spec",
		}
	default:
		return e.describe(node, series)
	}
}

func (e *Engine) describe(node *models.TaskNode, series []float64) map[string]any {
	out := map[string]any{"operation": node.Operation, "source": "local"}
	if len(series) > 0 {
		out["count"] = len(series)
		out["sum"] = sum(series)
		out["mean"] = mean(series)
		out["min"] = series[indexOfMin(series)]
		out["max"] = series[indexOfMax(series)]
	}
	return out
}

// compare diffs the first two numeric inputs when both sides produced one.
func (e *Engine) compare(node *models.TaskNode, inputs []any) map[string]any {
	out := map[string]any{"operation": node.Operation, "source": "local"}

	var sides []float64
	for _, in := range inputs {
		s := seriesFrom(in)
		if len(s) > 0 {
			sides = append(sides, sum(s))
		}
	}
	if len(sides) >= 2 {
		a, b := sides[0], sides[1]
		out["left"] = a
		out["right"] = b
		out["delta"] = b - a
		if a != 0 {
			out["pct_change"] = (b - a) / a * 100
		}
	} else {
		out["note"] = "insufficient numeric inputs for comparison"
	}
	return out
}

func (e *Engine) trend(node *models.TaskNode, series []float64) map[string]any {
	out := map[string]any{"operation": node.Operation, "source": "local"}
	if len(series) < 2 {
		out["note"] = "not enough points to fit a trend"
		return out
	}
	m := slope(series)
	out["slope"] = m
	switch {
	case m > 0:
		out["direction"] = "increasing"
	case m < 0:
		out["direction"] = "decreasing"
	default:
		out["direction"] = "flat"
	}
	return out
}

// forecast extrapolates one step ahead from the fitted trend line.
func (e *Engine) forecast(node *models.TaskNode, series []float64) map[string]any {
	out := map[string]any{"operation": node.Operation, "source": "local"}
	if len(series) < 2 {
		out["note"] = "not enough points to forecast"
		return out
	}
	m := slope(series)
	out["forecast"] = series[len(series)-1] + m
	out["method"] = "linear extrapolation"
	return out
}

// anomalies flags points more than two standard deviations from the mean.
func (e *Engine) anomalies(node *models.TaskNode, series []float64) map[string]any {
	out := map[string]any{"operation": node.Operation, "source": "local"}
	if len(series) < 3 {
		out["note"] = "not enough points for anomaly detection"
		return out
	}

	mu := mean(series)
	sd := stddev(series, mu)
	var idx []int
	if sd > 0 {
		for i, v := range series {
			if math.Abs(v-mu)/sd > 2 {
				idx = append(idx, i)
			}
		}
	}
	out["anomaly_indexes"] = idx
	out["mean"] = mu
	out["stddev"] = sd
	return out
}

func (e *Engine) rank(node *models.TaskNode, series []float64) map[string]any {
	out := map[string]any{"operation": node.Operation, "source": "local"}
	if len(series) == 0 {
		out["note"] = "no values to rank"
		return out
	}
	ranked := append([]float64(nil), series...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ranked)))
	out["ranked"] = ranked
	return out
}

// gatherSeries pulls numeric values from the node params first, then from
// dependency results.
func gatherSeries(node *models.TaskNode, inputs []any) []float64 {
	if s := seriesFrom(node.Params["series"]); len(s) > 0 {
		return s
	}
	var all []float64
	for _, in := range inputs {
		all = append(all, seriesFrom(in)...)
	}
	return all
}

// seriesFrom extracts float64 values from the loosely-typed results tools
// and local handlers return.
func seriesFrom(v any) []float64 {
	switch t := v.(type) {
	case []float64:
		return t
	case []any:
		var out []float64
		for _, e := range t {
			out = append(out, seriesFrom(e)...)
		}
		return out
	case map[string]any:
		// Common result shapes put numbers under values/rows/series.
		for _, key := range []string{"series", "values", "rows"} {
			if s := seriesFrom(t[key]); len(s) > 0 {
				return s
			}
		}
		return nil
	case float64:
		return []float64{t}
	case int:
		return []float64{float64(t)}
	default:
		return nil
	}
}

func indexOfMin(s []float64) int {
	idx := 0
	for i, v := range s {
		if v < s[idx] {
			idx = i
		}
	}
	return idx
}

func indexOfMax(s []float64) int {
	idx := 0
	for i, v := range s {
		if v > s[idx] {
			idx = i
		}
	}
	return idx
}

func sum(s []float64) float64 {
	var total float64
	for _, v := range s {
		total += v
	}
	return total
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return sum(s) / float64(len(s))
}

func stddev(s []float64, mu float64) float64 {
	if len(s) < 2 {
		return 0
	}
	var ss float64
	for _, v := range s {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(s)-1))
}

// slope fits y = mx + b over indexes 0..n-1 and returns m.
func slope(s []float64) float64 {
	n := float64(len(s))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range s {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// Describe returns a short label for logs and degradation reasons.
func Describe(node *models.TaskNode) string {
	return fmt.Sprintf("task %s (%s) computed locally", node.ID, node.Class)
}
