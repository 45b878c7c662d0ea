package domain

// RunResult is the outcome of executing a workflow graph once against one
// IO case.
type RunResult struct {
	InvocationID string            `json:"invocationId"`
	IOIndex      int               `json:"ioIndex"`
	Output       string            `json:"output"`
	NodeOutputs  map[string]string `json:"nodeOutputs,omitempty"`
	Cost         float64           `json:"cost"`
	Aborted      bool              `json:"aborted"`
	Error        string            `json:"error,omitempty"`
}

// Fitness is the aggregated evaluation score of a workflow across all its
// IO cases.
type Fitness struct {
	Score     float64 `json:"score"`
	Accuracy  float64 `json:"accuracy"`
	TotalCost float64 `json:"totalCost"`
}
