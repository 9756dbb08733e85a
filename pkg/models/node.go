package models

import "time"

// NodeStatus represents the current state of a task node.
type NodeStatus string

const (
	// NodeStatusPending indicates the node has not started.
	NodeStatusPending NodeStatus = "pending"
	// NodeStatusRunning indicates the node is executing.
	NodeStatusRunning NodeStatus = "running"
	// NodeStatusSucceeded indicates the node completed via its primary path.
	NodeStatusSucceeded NodeStatus = "succeeded"
	// NodeStatusFailed indicates every candidate for the node failed.
	NodeStatusFailed NodeStatus = "failed"
	// NodeStatusSkipped indicates the node was never attempted.
	NodeStatusSkipped NodeStatus = "skipped"
	// NodeStatusFallenBack indicates the node completed via a local fallback path.
	NodeStatusFallenBack NodeStatus = "fallen_back"
)

// Valid returns true if the status is a known value.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusPending, NodeStatusRunning, NodeStatusSucceeded,
		NodeStatusFailed, NodeStatusSkipped, NodeStatusFallenBack:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s NodeStatus) Terminal() bool {
	switch s {
	case NodeStatusSucceeded, NodeStatusFailed, NodeStatusSkipped, NodeStatusFallenBack:
		return true
	default:
		return false
	}
}

// OperationClass categorizes what kind of analytics work a node performs.
// The class selects both the tool vocabulary used for relevance scoring and
// the local fallback path when no external tool is reachable.
type OperationClass string

const (
	OpDescribe  OperationClass = "describe"
	OpCompare   OperationClass = "compare"
	OpRank      OperationClass = "rank"
	OpTrend     OperationClass = "trend"
	OpForecast  OperationClass = "forecast"
	OpAnomaly   OperationClass = "anomaly"
	OpVisualize OperationClass = "visualize"
	OpGeneral   OperationClass = "general"
)

// Candidate is a tool ranked for a node by the relevance scorer.
type Candidate struct {
	// Tool is the descriptor of the ranked tool.
	Tool *ToolDescriptor `json:"tool"`
	// Tier is the relevance tier assigned to the tool for this node.
	Tier RelevanceTier `json:"tier"`
}

// TaskNode is a single unit of work in a decomposed query DAG.
// Nodes are owned by their graph for the duration of one request and
// discarded after synthesis.
type TaskNode struct {
	// ID is the unique identifier of the node within its DAG.
	ID string `json:"id"`
	// Operation is the text of the sub-task this node performs.
	Operation string `json:"operation"`
	// Class is the operation class derived from the operation text.
	Class OperationClass `json:"class"`
	// DependsOn lists node IDs that must resolve before this node runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// Candidates holds tools ordered by descending relevance.
	Candidates []Candidate `json:"candidates,omitempty"`
	// LocalOnly marks a node for offline handling; no external call is attempted.
	LocalOnly bool `json:"local_only,omitempty"`
	// Required marks a node whose failure aborts the whole request.
	Required bool `json:"required,omitempty"`
	// Params carries operation parameters extracted at decomposition time.
	Params map[string]any `json:"params,omitempty"`
	// Status is the current execution state.
	Status NodeStatus `json:"status"`
	// Result holds the payload produced by the winning candidate or fallback.
	Result any `json:"result,omitempty"`
	// Err holds error detail when the node failed.
	Err string `json:"error,omitempty"`
	// SkipReason records why a skipped node was not attempted.
	SkipReason string `json:"skip_reason,omitempty"`
	// ResolvedBy names the tool (or "local") that produced the result.
	ResolvedBy string `json:"resolved_by,omitempty"`
	// StartedAt is when execution began, if it did.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// FinishedAt is when the node reached a terminal state.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
