package harness

import (
	"github.com/roach88/mapsync/internal/mapengine"
)

// Trace event types.
const (
	TraceEventDelivered = "event"
	TraceEngineCall     = "call"
)

// TraceEvent is either a delivered feed event or an engine call.
// Delivered events carry Seq, Collection and Action; engine calls carry Op,
// Target, Handles and Failed.
type TraceEvent struct {
	Type       string             `json:"type"`
	Seq        int64              `json:"seq,omitempty"`
	Collection string             `json:"collection,omitempty"`
	Action     string             `json:"action,omitempty"`
	Op         string             `json:"op,omitempty"`
	Target     string             `json:"target,omitempty"`
	Handles    []mapengine.Handle `json:"handles,omitempty"`
	Failed     bool               `json:"failed,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace interleaves delivered events with the engine calls they caused.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// StateDigest is the digest of the final engine state.
	StateDigest string `json:"state_digest"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEventTrace records a delivered event.
func (r *Result) AddEventTrace(seq int64, collection, action string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       TraceEventDelivered,
		Seq:        seq,
		Collection: collection,
		Action:     action,
	})
}

// AddCallTrace records an engine call.
func (r *Result) AddCallTrace(c mapengine.Call) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    TraceEngineCall,
		Op:      string(c.Op),
		Target:  c.Target,
		Handles: c.Handles,
		Failed:  c.Failed,
	})
}

// Calls returns the engine calls in the trace, in order.
func (r *Result) Calls() []TraceEvent {
	var calls []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == TraceEngineCall {
			calls = append(calls, ev)
		}
	}
	return calls
}
