package decompose

import (
	"strings"

	"github.com/Ak-9647/queryflow/pkg/models"
)

// classKeywords maps operation classes to the vocabulary that selects them.
// Order matters: specific analytical classes are checked before the broad
// descriptive ones.
var classKeywords = []struct {
	class    models.OperationClass
	keywords []string
}{
	{models.OpForecast, []string{"forecast", "predict", "projection", "next quarter", "next month", "next year", "will be"}},
	{models.OpAnomaly, []string{"anomaly", "anomalies", "outlier", "unusual", "spike", "drop", "why did"}},
	{models.OpTrend, []string{"trend", "trends", "over time", "growth", "trajectory", "pattern"}},
	{models.OpCompare, []string{"compare", "versus", " vs ", " vs. ", "difference between", "against"}},
	{models.OpRank, []string{"top ", "best", "worst", "rank", "highest", "lowest", "bottom "}},
	{models.OpVisualize, []string{"chart", "plot", "graph", "visualize", "visualization", "dashboard", "heatmap"}},
	{models.OpDescribe, []string{"show", "total", "sum", "average", "count", "how many", "how much", "what is", "what are", "list", "breakdown", "break down", "by region", "by product"}},
}

// Classify assigns an operation class to a clause by keyword match. Clauses
// matching nothing are general.
func Classify(clause string) models.OperationClass {
	lower := " " + strings.ToLower(clause) + " "
	for _, entry := range classKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.class
			}
		}
	}
	return models.OpGeneral
}

// IntentFor infers the dominant conversational intent of a whole query,
// used when the caller does not supply one.
func IntentFor(query string) models.Intent {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, "forecast", "predict", "projection", "will be", "next quarter", "next month"):
		return models.IntentPredictive
	case containsAny(lower, "why", "anomaly", "outlier", "unusual", "spike", "root cause"):
		return models.IntentDiagnostic
	case containsAny(lower, "compare", "versus", " vs ", "difference"):
		return models.IntentComparative
	case containsAny(lower, "explore", "correlat", "relationship", "distribution", "interesting"):
		return models.IntentExploratory
	case containsAny(lower, "export", "schedule", "refresh", "list tables", "schema"):
		return models.IntentOperational
	case containsAny(lower, "show", "total", "sum", "average", "how many", "how much", "top ", "trend"):
		return models.IntentDescriptive
	}
	return models.IntentGeneral
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
