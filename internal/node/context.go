package node

import (
	"maps"

	"github.com/google/uuid"
)

// ExecutionContext carries a single capability invocation.
type ExecutionContext struct {
	RequestID  string         `json:"request_id"`
	Capability string         `json:"capability"`
	InputData  map[string]any `json:"input_data"`
	UserID     string         `json:"user_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewExecutionContext returns an ExecutionContext for the capability with a
// freshly generated request ID.
func NewExecutionContext(capability string, input map[string]any) ExecutionContext {
	return ExecutionContext{
		RequestID:  uuid.NewString(),
		Capability: capability,
		InputData:  input,
	}
}

// normalized fills in a request ID when none was supplied and guarantees a
// non-nil input map, without sharing the caller's map.
func (ec ExecutionContext) normalized() ExecutionContext {
	if ec.RequestID == "" {
		ec.RequestID = uuid.NewString()
	}
	if ec.InputData == nil {
		ec.InputData = map[string]any{}
	} else {
		ec.InputData = maps.Clone(ec.InputData)
	}
	return ec
}
