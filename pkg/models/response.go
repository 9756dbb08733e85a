package models

// NodeResult is the per-node slice of a synthesized response.
type NodeResult struct {
	// TaskID is the node identifier within the request's DAG.
	TaskID string `json:"task_id"`
	// Operation is the sub-task text the node performed.
	Operation string `json:"operation"`
	// Status is the terminal state the node reached.
	Status NodeStatus `json:"status"`
	// Payload is the node output, present for succeeded/fallen-back nodes.
	Payload any `json:"payload,omitempty"`
	// Error is the error detail, present for failed/skipped nodes.
	Error string `json:"error,omitempty"`
	// ResolvedBy names the tool (or "local") that produced the payload.
	ResolvedBy string `json:"resolved_by,omitempty"`
}

// Response is the merged output of one orchestrated request.
type Response struct {
	// Summary is the textual roll-up of all node outputs in DAG order.
	Summary string `json:"summary"`
	// NodeResults holds the raw per-node outputs in topological order.
	NodeResults []NodeResult `json:"node_results"`
	// Degraded is true when at least one node did not succeed via its
	// primary path.
	Degraded bool `json:"degraded"`
	// DegradedReasons lists the affected operations and why, one entry
	// per non-succeeded node.
	DegradedReasons []string `json:"degraded_reasons,omitempty"`
}
