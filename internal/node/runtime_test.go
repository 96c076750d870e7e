package node

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

type fakeNode struct {
	meta         Metadata
	metaErr      error
	capabilities []Capability
	checks       map[string]any
	checksErr    error

	initialized int
	cleaned     int
}

func (f *fakeNode) Metadata(context.Context) (Metadata, error) {
	return f.meta, f.metaErr
}

func (f *fakeNode) Initialize(context.Context) error {
	f.initialized++
	return nil
}

func (f *fakeNode) Cleanup(context.Context) error {
	f.cleaned++
	return nil
}

func (f *fakeNode) Capabilities() []Capability {
	return f.capabilities
}

type checkingNode struct {
	*fakeNode
}

func (c checkingNode) HealthChecks(context.Context) (map[string]any, error) {
	return c.checks, c.checksErr
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (o *recordingObserver) ObserveExecution(_ string, outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func validMetadata() Metadata {
	cost := 1.0
	return Metadata{
		ModelID:      "test-node",
		Name:         "Test Node",
		Version:      "0.1.0",
		Capabilities: []string{"simulate"},
		Endpoints:    Endpoints{Execute: "/mcp/execute", Health: "/health"},
		CostPerCall:  &cost,
	}
}

func echoCapability() Capability {
	return NewCapability("simulate", func(_ context.Context, ec ExecutionContext) (map[string]any, error) {
		return map[string]any{"echo": ec.InputData}, nil
	}, WithCostEstimate(1.5), WithDescription("echoes its input"))
}

func newTestRuntime(t *testing.T, n Node, opts ...RuntimeOption) *Runtime {
	t.Helper()
	opts = append([]RuntimeOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	rt, err := NewRuntime(n, opts...)
	require.NoError(t, err)
	return rt
}

func TestExecuteEchoesInput(t *testing.T) {
	t.Parallel()

	n := &fakeNode{meta: validMetadata(), capabilities: []Capability{echoCapability()}}
	rt := newTestRuntime(t, n)

	resp := rt.Execute(context.Background(), ExecutionContext{
		RequestID:  "test-123",
		Capability: "simulate",
		InputData:  map[string]any{"input": "test data"},
	})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, map[string]any{"input": "test data"}, resp.Data["echo"])
	require.NotNil(t, resp.Cost)
	assert.InDelta(t, 1.5, *resp.Cost, 1e-9)
	require.NotNil(t, resp.ExecutionTimeMs)
	assert.Equal(t, "simulate", resp.Metadata["capability"])
	assert.Equal(t, "test-123", resp.Metadata["request_id"])
	assert.Equal(t, "test-node", resp.Metadata["node_id"])
}

func TestExecuteGeneratesRequestID(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{echoCapability()}})

	resp := rt.Execute(context.Background(), ExecutionContext{Capability: "simulate"})

	require.True(t, resp.Success)
	id, _ := resp.Metadata["request_id"].(string)
	assert.Len(t, id, 36)
}

func TestExecuteUnknownCapability(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{echoCapability()}}, WithObserver(obs))

	resp := rt.Execute(context.Background(), ExecutionContext{
		RequestID:  "test-456",
		Capability: "invalid_capability",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown capability: invalid_capability. Available: [simulate]", resp.Error)
	assert.NotNil(t, resp.ExecutionTimeMs)
	assert.Nil(t, resp.Data)
	assert.Equal(t, []Outcome{OutcomeUnknownCapability}, obs.outcomes)
}

func TestExecuteValidatesInput(t *testing.T) {
	t.Parallel()

	c := NewCapability("square", func(_ context.Context, ec ExecutionContext) (map[string]any, error) {
		x := ec.InputData["x"].(float64)
		return map[string]any{"y": x * x}, nil
	}, WithInputSchema(map[string]any{
		"type":     "object",
		"required": []any{"x"},
		"properties": map[string]any{
			"x": map[string]any{"type": "number"},
		},
	}))
	rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{c}})

	resp := rt.Execute(context.Background(), ExecutionContext{Capability: "square", InputData: map[string]any{"x": "nope"}})
	assert.False(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Error, "Input validation failed: "), resp.Error)
	assert.Contains(t, resp.Error, "/x")

	resp = rt.Execute(context.Background(), ExecutionContext{Capability: "square", InputData: map[string]any{"x": 3.0}})
	require.True(t, resp.Success, resp.Error)
	assert.InDelta(t, 9.0, resp.Data["y"], 1e-9)
}

func TestExecuteValidatesOutput(t *testing.T) {
	t.Parallel()

	c := NewCapability("broken", func(context.Context, ExecutionContext) (map[string]any, error) {
		return map[string]any{"value": "not a number"}, nil
	}, WithOutputSchema(map[string]any{
		"type":       "object",
		"properties": map[string]any{"value": map[string]any{"type": "number"}},
	}))
	rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{c}})

	resp := rt.Execute(context.Background(), ExecutionContext{Capability: "broken"})
	assert.False(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Error, "Output validation failed: "), resp.Error)
}

func TestExecuteErrorKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler Handler
		want    string
		outcome Outcome
	}{
		{
			name: "ExecutionError",
			handler: func(context.Context, ExecutionContext) (map[string]any, error) {
				return nil, ExecutionError("model diverged at step %d", 3)
			},
			want:    "model diverged at step 3",
			outcome: OutcomeExecutionError,
		},
		{
			name: "UnexpectedError",
			handler: func(context.Context, ExecutionContext) (map[string]any, error) {
				return nil, errors.New("disk on fire")
			},
			want:    "Internal error: disk on fire",
			outcome: OutcomeInternalError,
		},
		{
			name: "Panic",
			handler: func(context.Context, ExecutionContext) (map[string]any, error) {
				panic("boom")
			},
			want:    "Internal error: panic in capability op: boom",
			outcome: OutcomeInternalError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			obs := &recordingObserver{}
			n := &fakeNode{meta: validMetadata(), capabilities: []Capability{NewCapability("op", tc.handler)}}
			rt := newTestRuntime(t, n, WithObserver(obs))

			resp := rt.Execute(context.Background(), ExecutionContext{Capability: "op"})
			assert.False(t, resp.Success)
			assert.Equal(t, tc.want, resp.Error)
			assert.Equal(t, []Outcome{tc.outcome}, obs.outcomes)
		})
	}
}

func TestExecuteTimeout(t *testing.T) {
	t.Parallel()

	c := NewCapability("slow", func(ctx context.Context, _ ExecutionContext) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{c}}, WithExecutionTimeout(10*time.Millisecond))

	resp := rt.Execute(context.Background(), ExecutionContext{Capability: "slow"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Execution of slow timed out after 10ms", resp.Error)
}

func TestExecuteReportsElapsedTime(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := NewCapability("tick", func(context.Context, ExecutionContext) (map[string]any, error) {
		clock.Advance(250 * time.Millisecond)
		return map[string]any{}, nil
	})
	rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{c}}, WithClock(clock))

	resp := rt.Execute(context.Background(), ExecutionContext{Capability: "tick"})
	require.True(t, resp.Success)
	require.NotNil(t, resp.ExecutionTimeMs)
	assert.InDelta(t, 250.0, *resp.ExecutionTimeMs, 1e-9)
	assert.Nil(t, resp.Cost)
}

func TestExecuteDoesNotShareInput(t *testing.T) {
	t.Parallel()

	c := NewCapability("mutate", func(_ context.Context, ec ExecutionContext) (map[string]any, error) {
		ec.InputData["added"] = true
		return nil, nil
	})
	rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{c}})

	input := map[string]any{"a": 1}
	resp := rt.Execute(context.Background(), ExecutionContext{Capability: "mutate", InputData: input})
	require.True(t, resp.Success)
	assert.NotContains(t, input, "added")
	assert.Empty(t, resp.Data)
}

func TestNewRuntimeRejectsBadCapabilities(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, ExecutionContext) (map[string]any, error) { return nil, nil }
	cases := map[string][]Capability{
		"duplicate":  {NewCapability("a", noop), NewCapability("a", noop)},
		"empty name": {NewCapability("", noop)},
		"no handler": {NewCapability("a", nil)},
		"bad schema": {NewCapability("a", noop, WithInputSchema(map[string]any{"type": 12}))},
	}
	for name, caps := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRuntime(&fakeNode{meta: validMetadata(), capabilities: caps})
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.ErrorIs(t, err, ErrNode)
		})
	}

	_, err := NewRuntime(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCapabilityDiscovery(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, ExecutionContext) (map[string]any, error) { return nil, nil }
	n := &fakeNode{meta: validMetadata(), capabilities: []Capability{
		NewCapability("b", noop),
		NewCapability("a", noop, WithDescription("first letter")),
	}}
	rt := newTestRuntime(t, n)

	assert.Equal(t, []string{"b", "a"}, rt.ListCapabilities())
	info, ok := rt.CapabilityInfo("a")
	require.True(t, ok)
	assert.Equal(t, "first letter", info.Description)
	_, ok = rt.CapabilityInfo("missing")
	assert.False(t, ok)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{echoCapability()}})
		resp := rt.HealthCheck(context.Background())
		require.True(t, resp.Success)
		checks := resp.Data["health_checks"].(map[string]any)
		assert.Equal(t, true, checks["metadata_valid"])
		assert.Equal(t, true, checks["capabilities_loaded"])
		assert.NotEmpty(t, checks["timestamp"])
		assert.Equal(t, "test-node", resp.Metadata["node_id"])
	})

	t.Run("invalid metadata", func(t *testing.T) {
		meta := validMetadata()
		meta.Version = "latest"
		rt := newTestRuntime(t, &fakeNode{meta: meta, capabilities: []Capability{echoCapability()}})
		resp := rt.HealthCheck(context.Background())
		assert.False(t, resp.Success)
	})

	t.Run("no capabilities", func(t *testing.T) {
		rt := newTestRuntime(t, &fakeNode{meta: validMetadata()})
		resp := rt.HealthCheck(context.Background())
		assert.False(t, resp.Success)
	})

	t.Run("custom checks", func(t *testing.T) {
		n := checkingNode{&fakeNode{
			meta:         validMetadata(),
			capabilities: []Capability{echoCapability()},
			checks:       map[string]any{"model_loaded": false, "version": "abc"},
		}}
		rt := newTestRuntime(t, n)
		resp := rt.HealthCheck(context.Background())
		assert.False(t, resp.Success)
		checks := resp.Data["health_checks"].(map[string]any)
		assert.Equal(t, "abc", checks["version"])
	})

	t.Run("custom check error", func(t *testing.T) {
		n := checkingNode{&fakeNode{
			meta:         validMetadata(),
			capabilities: []Capability{echoCapability()},
			checksErr:    errors.New("gpu missing"),
		}}
		rt := newTestRuntime(t, n)
		resp := rt.HealthCheck(context.Background())
		assert.False(t, resp.Success)
		assert.Equal(t, "Health check failed: gpu missing", resp.Error)
	})
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	n := &fakeNode{meta: validMetadata(), capabilities: []Capability{echoCapability()}}
	rt := newTestRuntime(t, n)
	ctx := context.Background()

	require.NoError(t, rt.Stop(ctx))
	assert.Equal(t, 0, n.cleaned)

	require.NoError(t, rt.Start(ctx))
	require.NoError(t, rt.Start(ctx))
	assert.Equal(t, 1, n.initialized)

	require.NoError(t, rt.Stop(ctx))
	assert.Equal(t, 1, n.cleaned)
}

func TestExecuteRecordsSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{echoCapability()}}, WithTracerProvider(tp))

	ok := rt.Execute(context.Background(), ExecutionContext{RequestID: "req-ok", Capability: "simulate"})
	require.True(t, ok.Success)
	failed := rt.Execute(context.Background(), ExecutionContext{RequestID: "req-bad", Capability: "nope"})
	require.False(t, failed.Success)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "node.Execute", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("mcp.request_id", "req-ok"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("mcp.outcome", "success"))

	assert.Equal(t, "node.Execute", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, failed.Error, spans[1].Status().Description)
	assert.Contains(t, spans[1].Attributes(), attribute.String("mcp.capability", "nope"))
	assert.Contains(t, spans[1].Attributes(), attribute.String("mcp.outcome", "unknown_capability"))
}

func TestResponseJSONKeepsEmptyData(t *testing.T) {
	t.Parallel()

	empty := NewCapability("noop", func(context.Context, ExecutionContext) (map[string]any, error) {
		return map[string]any{}, nil
	})
	rt := newTestRuntime(t, &fakeNode{meta: validMetadata(), capabilities: []Capability{empty}})

	encoded, err := json.Marshal(rt.Execute(context.Background(), ExecutionContext{Capability: "noop"}))
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"data":{}`)

	encoded, err = json.Marshal(Response{Success: false, Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"boom"}`, string(encoded))
}
