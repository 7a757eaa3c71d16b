package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// TraceEvent is one step boundary in a run. An invocation carries the
// action and its canonical args; the completion that follows carries the
// outcome and, on success, the canonical result.
type TraceEvent struct {
	Type       string `json:"type"`
	Action     string `json:"action,omitempty"`
	Args       any    `json:"args,omitempty"`
	OutputCase string `json:"output_case,omitempty"`
	Result     any    `json:"result,omitempty"`
	Seq        int64  `json:"seq"`
}

// Result is the outcome of a scenario run. Pass is false as soon as any
// expect clause or assertion fails; Errors lists each failure.
type Result struct {
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult returns an empty, passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError records a failure.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

func (r *Result) AddInvocationTrace(action string, args any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Type: EventInvocation, Action: action, Args: args, Seq: seq})
}

func (r *Result) AddCompletionTrace(outputCase string, result any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Type: EventCompletion, OutputCase: outputCase, Result: result, Seq: seq})
}

// invocations returns the invocation events of trace in order.
func invocations(trace []TraceEvent) []TraceEvent {
	var out []TraceEvent
	for _, e := range trace {
		if e.Type == EventInvocation {
			out = append(out, e)
		}
	}
	return out
}
