package tools

import (
	"encoding/json"
)

// ExecError is the error object returned to callers when a remote execution
// does not succeed.
type ExecError struct {
	Message string `json:"error"`
	Tool    string `json:"tool,omitempty"`
	Details string `json:"details,omitempty"`
}

func (e *ExecError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Result is either a JSON value or an ExecError, never both.
type Result struct {
	Value json.RawMessage
	Err   *ExecError
}

var emptyObject = json.RawMessage(`{}`)

// OK wraps a successful value. A missing or null value becomes {}.
func OK(v json.RawMessage) Result {
	if len(v) == 0 || string(v) == "null" {
		v = emptyObject
	}
	return Result{Value: v}
}

func Fail(msg, tool string) Result {
	return Result{Err: &ExecError{Message: msg, Tool: tool}}
}

func (r Result) Failed() bool { return r.Err != nil }

// MarshalJSON renders the value itself or the error object.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(r.Err)
	}
	if len(r.Value) == 0 {
		return emptyObject, nil
	}
	return r.Value, nil
}
