package models

// Intent is the resolved category of a natural-language query.
// The label is produced by the out-of-scope understanding layer and
// passed into the orchestration core unchanged.
type Intent string

const (
	// IntentDescriptive asks what the data looks like.
	IntentDescriptive Intent = "descriptive"
	// IntentComparative asks how two or more slices differ.
	IntentComparative Intent = "comparative"
	// IntentDiagnostic asks why something happened.
	IntentDiagnostic Intent = "diagnostic"
	// IntentPredictive asks what will happen next.
	IntentPredictive Intent = "predictive"
	// IntentExploratory asks open-ended questions about the data.
	IntentExploratory Intent = "exploratory"
	// IntentOperational asks about pipelines, schemas, and infrastructure.
	IntentOperational Intent = "operational"
	// IntentGeneral is the catch-all category.
	IntentGeneral Intent = "general"
)

// Valid returns true if the intent is a known category.
func (i Intent) Valid() bool {
	switch i {
	case IntentDescriptive, IntentComparative, IntentDiagnostic,
		IntentPredictive, IntentExploratory, IntentOperational, IntentGeneral:
		return true
	default:
		return false
	}
}

// ParseIntent converts a label into an Intent, falling back to general.
func ParseIntent(s string) Intent {
	i := Intent(s)
	if i.Valid() {
		return i
	}
	return IntentGeneral
}
