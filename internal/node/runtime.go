package node

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Node is implemented by every model node.
type Node interface {
	// Metadata describes the node. It may be loaded lazily, e.g. from a
	// file, so it can fail.
	Metadata(ctx context.Context) (Metadata, error)

	// Initialize loads models and connects to resources.
	Initialize(ctx context.Context) error

	// Cleanup releases whatever Initialize acquired.
	Cleanup(ctx context.Context) error

	// Capabilities lists the operations the node exposes.
	Capabilities() []Capability
}

// HealthChecker can optionally be implemented by a Node to contribute checks
// to HealthCheck. Boolean values count towards overall health.
type HealthChecker interface {
	HealthChecks(ctx context.Context) (map[string]any, error)
}

// Outcome classifies how an execution ended.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeUnknownCapability Outcome = "unknown_capability"
	OutcomeValidationError   Outcome = "validation_error"
	OutcomeExecutionError    Outcome = "execution_error"
	OutcomeTimeout           Outcome = "timeout"
	OutcomeInternalError     Outcome = "internal_error"
)

// Observer receives a record of every execution.
type Observer interface {
	ObserveExecution(capability string, outcome Outcome, duration time.Duration)
}

type registeredCapability struct {
	capability Capability
	input      *jsonschema.Schema
	output     *jsonschema.Schema
}

const tracerName = "github.com/aj-en/mcp-sim/internal/node"

// Runtime wraps a Node, routing executions to its capabilities.
type Runtime struct {
	node     Node
	logger   *zap.Logger
	clock    clockwork.Clock
	observer Observer
	timeout  time.Duration
	tracer   trace.Tracer

	capabilities map[string]registeredCapability
	order        []string

	mu      sync.Mutex
	started bool
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock clockwork.Clock) RuntimeOption {
	return func(r *Runtime) {
		r.clock = clock
	}
}

// WithObserver registers an Observer for executions.
func WithObserver(observer Observer) RuntimeOption {
	return func(r *Runtime) {
		r.observer = observer
	}
}

// WithExecutionTimeout bounds how long a single handler may run. Zero
// disables the bound.
func WithExecutionTimeout(timeout time.Duration) RuntimeOption {
	return func(r *Runtime) {
		r.timeout = timeout
	}
}

// WithTracerProvider sets the provider execution spans are recorded with.
// The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) RuntimeOption {
	return func(r *Runtime) {
		r.tracer = tp.Tracer(tracerName)
	}
}

// NewRuntime discovers the capabilities of n and compiles their schemas.
func NewRuntime(n Node, opts ...RuntimeOption) (*Runtime, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: node is nil", ErrConfiguration)
	}
	r := &Runtime{
		node:         n,
		logger:       zap.NewNop(),
		clock:        clockwork.NewRealClock(),
		tracer:       otel.Tracer(tracerName),
		capabilities: map[string]registeredCapability{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.discoverCapabilities(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) discoverCapabilities() error {
	for _, c := range r.node.Capabilities() {
		if c.Name == "" {
			return fmt.Errorf("%w: capability with empty name", ErrConfiguration)
		}
		if c.Handler == nil {
			return fmt.Errorf("%w: capability %q has no handler", ErrConfiguration, c.Name)
		}
		if _, ok := r.capabilities[c.Name]; ok {
			return fmt.Errorf("%w: duplicate capability %q", ErrConfiguration, c.Name)
		}
		reg := registeredCapability{capability: c}
		if len(c.InputSchema) > 0 {
			schema, err := CompileSchema(c.Name+".input", c.InputSchema)
			if err != nil {
				return fmt.Errorf("capability %q: %w", c.Name, err)
			}
			reg.input = schema
		}
		if len(c.OutputSchema) > 0 {
			schema, err := CompileSchema(c.Name+".output", c.OutputSchema)
			if err != nil {
				return fmt.Errorf("capability %q: %w", c.Name, err)
			}
			reg.output = schema
		}
		r.capabilities[c.Name] = reg
		r.order = append(r.order, c.Name)
		r.logger.Info("discovered capability", zap.String("capability", c.Name))
	}
	return nil
}

// Start initializes the node. Calling it again after a successful start is
// a no-op.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if err := r.node.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize node: %w", err)
	}
	r.started = true
	return nil
}

// Stop cleans up a started node.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil
	}
	r.started = false
	if err := r.node.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleanup node: %w", err)
	}
	return nil
}

// Metadata returns the wrapped node's metadata.
func (r *Runtime) Metadata(ctx context.Context) (Metadata, error) {
	return r.node.Metadata(ctx)
}

// ListCapabilities returns capability names in registration order.
func (r *Runtime) ListCapabilities() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// CapabilityInfo returns the named capability, if registered.
func (r *Runtime) CapabilityInfo(name string) (Capability, bool) {
	reg, ok := r.capabilities[name]
	if !ok {
		return Capability{}, false
	}
	return reg.capability, true
}

// ValidateMetadata reports whether the node's metadata satisfies the
// metadata schema. Failures are logged.
func (r *Runtime) ValidateMetadata(ctx context.Context) bool {
	meta, err := r.node.Metadata(ctx)
	if err != nil {
		r.logger.Error("metadata unavailable", zap.Error(err))
		return false
	}
	if err := ValidateMetadata(meta); err != nil {
		r.logger.Error("metadata validation failed", zap.Error(err))
		return false
	}
	return true
}

// HealthCheck runs the built-in checks plus any the node contributes.
func (r *Runtime) HealthCheck(ctx context.Context) Response {
	checks := map[string]any{
		"metadata_valid":      r.ValidateMetadata(ctx),
		"capabilities_loaded": len(r.capabilities) > 0,
		"timestamp":           r.clock.Now().UTC().Format(time.RFC3339Nano),
	}

	if hc, ok := r.node.(HealthChecker); ok {
		custom, err := hc.HealthChecks(ctx)
		if err != nil {
			r.logger.Error("health check failed", zap.Error(err))
			return Response{
				Success: false,
				Error:   fmt.Sprintf("Health check failed: %v", err),
			}
		}
		maps.Copy(checks, custom)
	}

	healthy := true
	for _, v := range checks {
		if ok, isBool := v.(bool); isBool && !ok {
			healthy = false
		}
	}

	return Response{
		Success:  healthy,
		Data:     map[string]any{"health_checks": checks},
		Metadata: map[string]any{"node_id": r.nodeID(ctx)},
	}
}

// Execute runs the capability named by ec. Every failure is reported in the
// Response rather than returned.
func (r *Runtime) Execute(ctx context.Context, ec ExecutionContext) Response {
	start := r.clock.Now()
	ec = ec.normalized()

	ctx, span := r.tracer.Start(ctx, "node.Execute", trace.WithAttributes(
		attribute.String("mcp.capability", ec.Capability),
		attribute.String("mcp.request_id", ec.RequestID),
	))
	defer span.End()

	reg, ok := r.capabilities[ec.Capability]
	if !ok {
		msg := fmt.Sprintf("Unknown capability: %s. Available: %v", ec.Capability, r.order)
		r.logger.Error("execution error", zap.String("request_id", ec.RequestID), zap.String("error", msg))
		return r.fail(span, ec, OutcomeUnknownCapability, start, msg)
	}

	if reg.input != nil {
		if err := validateAgainst(reg.input, "input", ec.InputData); err != nil {
			r.logger.Error("validation error", zap.String("request_id", ec.RequestID), zap.Error(err))
			return r.fail(span, ec, OutcomeValidationError, start, "Input validation failed: "+validationDetail(err))
		}
	}

	r.logger.Info("executing capability",
		zap.String("capability", ec.Capability),
		zap.String("request_id", ec.RequestID),
	)

	data, err := r.invoke(ctx, reg.capability, ec)
	if err != nil {
		var outcome Outcome
		var msg string
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = OutcomeTimeout
			msg = fmt.Sprintf("Execution of %s timed out after %s", ec.Capability, r.timeout)
		case errors.Is(err, ErrValidation):
			outcome = OutcomeValidationError
			msg = "Input validation failed: " + validationDetail(err)
		case errors.Is(err, ErrExecution):
			outcome = OutcomeExecutionError
			msg = err.Error()
		default:
			outcome = OutcomeInternalError
			msg = "Internal error: " + err.Error()
		}
		r.logger.Error("execution error",
			zap.String("capability", ec.Capability),
			zap.String("request_id", ec.RequestID),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		return r.fail(span, ec, outcome, start, msg)
	}
	if data == nil {
		data = map[string]any{}
	}

	if reg.output != nil {
		if err := validateAgainst(reg.output, "output", data); err != nil {
			r.logger.Error("output validation error", zap.String("request_id", ec.RequestID), zap.Error(err))
			return r.fail(span, ec, OutcomeValidationError, start, "Output validation failed: "+validationDetail(err))
		}
	}

	elapsed := r.clock.Since(start)
	r.observe(ec.Capability, OutcomeSuccess, elapsed)
	span.SetAttributes(attribute.String("mcp.outcome", string(OutcomeSuccess)))
	span.SetStatus(codes.Ok, "")

	return Response{
		Success:         true,
		Data:            data,
		ExecutionTimeMs: durationMillis(elapsed),
		Cost:            reg.capability.CostEstimate,
		Metadata: map[string]any{
			"capability": ec.Capability,
			"request_id": ec.RequestID,
			"node_id":    r.nodeID(ctx),
		},
	}
}

// invoke runs the handler under the configured timeout, turning panics into
// errors.
func (r *Runtime) invoke(ctx context.Context, c Capability, ec ExecutionContext) (map[string]any, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type result struct {
		data map[string]any
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("panic in capability %s: %v", c.Name, p)}
			}
		}()
		data, err := c.Handler(ctx, ec)
		done <- result{data: data, err: err}
	}()

	select {
	case res := <-done:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Runtime) fail(span trace.Span, ec ExecutionContext, outcome Outcome, start time.Time, msg string) Response {
	elapsed := r.clock.Since(start)
	r.observe(ec.Capability, outcome, elapsed)
	span.SetAttributes(attribute.String("mcp.outcome", string(outcome)))
	span.SetStatus(codes.Error, msg)
	return Response{
		Success:         false,
		Error:           msg,
		ExecutionTimeMs: durationMillis(elapsed),
	}
}

func (r *Runtime) observe(capability string, outcome Outcome, d time.Duration) {
	if r.observer != nil {
		r.observer.ObserveExecution(capability, outcome, d)
	}
}

func (r *Runtime) nodeID(ctx context.Context) string {
	meta, err := r.node.Metadata(ctx)
	if err != nil {
		return ""
	}
	return meta.ModelID
}

func validationDetail(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Detail
	}
	return err.Error()
}
