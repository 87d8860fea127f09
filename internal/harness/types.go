package harness

// TraceEvent records one step's outcome for assertions and golden
// comparison.
type TraceEvent struct {
	Step          int            `json:"step"`
	Intent        string         `json:"intent"`
	Input         map[string]any `json:"input,omitempty"`
	Status        string         `json:"status"`
	TerminatedBy  string         `json:"terminated_by"`
	ResultVersion int64          `json:"result_version"`
	StateHash     string         `json:"state_hash"`
	ErrorCode     string         `json:"error_code,omitempty"`
	Requirement   string         `json:"requirement,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause matched.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalData and FinalComputed are the last snapshot's trees, for
	// test assertions beyond the per-step subset checks.
	FinalData     map[string]any `json:"final_data"`
	FinalComputed map[string]any `json:"final_computed"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Trace: []TraceEvent{},
	}
}

// AddError records an expectation failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
