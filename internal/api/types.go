// In file: internal/api/types.go

// Package api defines the public request and response shapes of the gateway's HTTP surface,
// plus the token accounting type shared by every provider client.
package api

// Usage holds token accounting for one or more provider calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// DispatchRequest is the body of POST /api/v1/dispatch.
type DispatchRequest struct {
	Input string `json:"input" binding:"required"`
	// RequireTool overrides the configured default. A nil value keeps the default.
	RequireTool *bool `json:"require_tool,omitempty"`
}

// PhaseTrace describes one phase of a dispatch cycle for the caller.
type PhaseTrace struct {
	Phase     string `json:"phase"`
	Provider  string `json:"provider,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// DispatchResponse is returned when a cycle reaches Done.
type DispatchResponse struct {
	CycleID        string       `json:"cycle_id"`
	State          string       `json:"state"`
	Tool           string       `json:"tool,omitempty"`
	SelectedBy     string       `json:"selected_by,omitempty"`
	ConfirmedBy    string       `json:"confirmed_by,omitempty"`
	Success        bool         `json:"success"`
	Output         string       `json:"output"`
	ErrorKind      string       `json:"error_kind,omitempty"`
	Answer         string       `json:"answer,omitempty"`
	Usage          Usage        `json:"usage"`
	LatencyMS      int64        `json:"latency_ms"`
	CatalogVersion string       `json:"catalog_version"`
	Trace          []PhaseTrace `json:"trace,omitempty"`
}

// ErrorResponse is returned when a cycle terminates in the Error state.
type ErrorResponse struct {
	CycleID string       `json:"cycle_id,omitempty"`
	Error   string       `json:"error"`
	Kind    string       `json:"kind,omitempty"`
	Phase   string       `json:"phase,omitempty"`
	Tool    string       `json:"tool,omitempty"`
	Trace   []PhaseTrace `json:"trace,omitempty"`
}
