package node

import (
	"context"
	"maps"
)

// Handler implements a capability. The returned map becomes the response
// data.
type Handler func(ctx context.Context, ec ExecutionContext) (map[string]any, error)

// Capability is a named operation a node exposes.
type Capability struct {
	Name         string
	Description  string
	InputSchema  map[string]any
	OutputSchema map[string]any
	CostEstimate *float64
	Handler      Handler
}

// CapabilityOption configures a Capability built with NewCapability.
type CapabilityOption func(*Capability)

// NewCapability builds a Capability named name, served by handler.
func NewCapability(name string, handler Handler, opts ...CapabilityOption) Capability {
	c := Capability{
		Name:    name,
		Handler: handler,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDescription sets the human-readable description.
func WithDescription(description string) CapabilityOption {
	return func(c *Capability) {
		c.Description = description
	}
}

// WithInputSchema sets the JSON schema inputs are validated against before
// the handler runs.
func WithInputSchema(schema map[string]any) CapabilityOption {
	return func(c *Capability) {
		c.InputSchema = maps.Clone(schema)
	}
}

// WithOutputSchema sets the JSON schema handler output is validated against.
func WithOutputSchema(schema map[string]any) CapabilityOption {
	return func(c *Capability) {
		c.OutputSchema = maps.Clone(schema)
	}
}

// WithCostEstimate sets the cost reported with each successful execution.
func WithCostEstimate(cost float64) CapabilityOption {
	return func(c *Capability) {
		c.CostEstimate = &cost
	}
}
