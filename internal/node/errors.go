package node

import (
	"errors"
	"fmt"
)

var (
	// ErrNode is the base error every node error wraps.
	ErrNode = errors.New("mcp node error")

	// ErrValidation is returned when metadata, input, or output fails
	// schema validation.
	ErrValidation = fmt.Errorf("%w: validation failed", ErrNode)

	// ErrExecution is returned when a capability cannot be executed. Handlers
	// wrap it to report a failure whose message is safe to surface to
	// callers verbatim.
	ErrExecution = fmt.Errorf("%w: execution failed", ErrNode)

	// ErrConfiguration is returned when a node or one of its capabilities is
	// misconfigured.
	ErrConfiguration = fmt.Errorf("%w: invalid configuration", ErrNode)
)

// ExecutionError builds an error wrapping ErrExecution whose message is
// exactly the formatted text, so it can be reported as-is.
func ExecutionError(format string, args ...any) error {
	return &messageError{msg: fmt.Sprintf(format, args...), kind: ErrExecution}
}

type messageError struct {
	msg  string
	kind error
}

func (e *messageError) Error() string { return e.msg }

func (e *messageError) Unwrap() error { return e.kind }

// ValidationError describes a schema validation failure. It wraps
// ErrValidation.
type ValidationError struct {
	// Subject is what was being validated: "metadata", "input", or
	// "output".
	Subject string

	// Detail is the location and reason of the first failing keyword.
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Subject, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
