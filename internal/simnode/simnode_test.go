package simnode

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aj-en/mcp-sim/internal/node"
	"github.com/aj-en/mcp-sim/internal/storage"
)

func newRuntime(t *testing.T) (*node.Runtime, *Node) {
	t.Helper()
	store, err := storage.NewMemoryStorage(DefaultMetadata())
	require.NoError(t, err)
	n := New(store, zaptest.NewLogger(t))
	rt, err := node.NewRuntime(n, node.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return rt, n
}

func TestNodeBasicFunctionality(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))
	defer func() { require.NoError(t, rt.Stop(ctx)) }()

	health := rt.HealthCheck(ctx)
	assert.True(t, health.Success)

	meta, err := rt.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultModelID, meta.ModelID)
	assert.Contains(t, meta.Capabilities, "simulate")

	resp := rt.Execute(ctx, node.ExecutionContext{
		RequestID:  "test-123",
		Capability: "simulate",
		InputData:  map[string]any{"input": "test data"},
	})
	require.True(t, resp.Success, resp.Error)
	assert.Contains(t, resp.Data, "echo")
}

func TestNodeValidation(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))

	resp := rt.Execute(ctx, node.ExecutionContext{
		RequestID:  "test-456",
		Capability: "invalid_capability",
		InputData:  map[string]any{},
	})
	assert.False(t, resp.Success)
}

func TestHealthRequiresInitialize(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()

	assert.False(t, rt.HealthCheck(ctx).Success)
	require.NoError(t, rt.Start(ctx))
	assert.True(t, rt.HealthCheck(ctx).Success)
	require.NoError(t, rt.Stop(ctx))
	assert.False(t, rt.HealthCheck(ctx).Success)
}

func TestProjectile(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()

	resp := rt.Execute(ctx, node.NewExecutionContext("projectile", map[string]any{
		"velocity":  20.0,
		"angle_deg": 45.0,
		"gravity":   10.0,
	}))
	require.True(t, resp.Success, resp.Error)
	assert.InDelta(t, 40.0, resp.Data["range_m"], 1e-9)
	assert.InDelta(t, 10.0, resp.Data["max_height_m"], 1e-9)
	assert.InDelta(t, 2*math.Sqrt2, resp.Data["flight_time_s"], 1e-9)
	require.NotNil(t, resp.Cost)
	assert.InDelta(t, 2.5, *resp.Cost, 1e-9)

	resp = rt.Execute(ctx, node.NewExecutionContext("projectile", map[string]any{
		"velocity":  10,
		"angle_deg": 30,
	}))
	require.True(t, resp.Success, resp.Error)
	assert.InDelta(t, 100*math.Sin(math.Pi/3)/standardGravity, resp.Data["range_m"], 1e-9)
}

func TestProjectileRejectsBadInput(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()

	for name, input := range map[string]map[string]any{
		"missing angle":   {"velocity": 10.0},
		"negative speed":  {"velocity": -1.0, "angle_deg": 10.0},
		"angle too large": {"velocity": 1.0, "angle_deg": 91.0},
		"unknown field":   {"velocity": 1.0, "angle_deg": 10.0, "mass": 3.0},
	} {
		t.Run(name, func(t *testing.T) {
			resp := rt.Execute(ctx, node.NewExecutionContext("projectile", input))
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, "Input validation failed")
		})
	}
}

func TestLoadMetadata(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		meta, err := LoadMetadata("")
		require.NoError(t, err)
		assert.Equal(t, DefaultModelID, meta.ModelID)
	})

	t.Run("missing file", func(t *testing.T) {
		meta, err := LoadMetadata(filepath.Join(t.TempDir(), "metadata.json"))
		require.NoError(t, err)
		assert.Equal(t, DefaultModelID, meta.ModelID)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.json")
		body := `{"model_id":"heat-eq","name":"Heat Equation","version":"2.0.0","capabilities":["simulate"],"cost_per_call":0.25}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		meta, err := LoadMetadata(path)
		require.NoError(t, err)
		assert.Equal(t, "heat-eq", meta.ModelID)
		require.NotNil(t, meta.CostPerCall)
		assert.InDelta(t, 0.25, *meta.CostPerCall, 1e-9)
	})

	t.Run("unmodelled fields survive", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.json")
		body := `{"model_id":"heat-eq","name":"Heat Equation","version":"2.0.0","capabilities":["simulate"],"license":"MIT"}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		meta, err := LoadMetadata(path)
		require.NoError(t, err)
		assert.Equal(t, "MIT", meta.Extra["license"])
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metadata.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"model_id":"heat-eq"}`), 0o600))

		_, err := LoadMetadata(path)
		assert.ErrorIs(t, err, node.ErrValidation)
	})
}
