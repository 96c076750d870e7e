// Package simnode is the default model node served by mcp-sim. It echoes
// its input through the simulate capability and exposes a projectile-motion
// formula as a worked example of a scientific capability.
package simnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/aj-en/mcp-sim/internal/node"
	"github.com/aj-en/mcp-sim/internal/storage"
)

const (
	// DefaultModelID identifies the node when no metadata file is provided.
	DefaultModelID = "mcp-sim-node"

	standardGravity = 9.80665
)

// DefaultMetadata is the metadata advertised when no metadata file exists.
func DefaultMetadata() node.Metadata {
	cost := 1.0
	return node.Metadata{
		ModelID:      DefaultModelID,
		Name:         "MCP-Sim Node",
		Version:      "0.1.0",
		Description:  "Reference node exposing an echo simulation and projectile motion.",
		Capabilities: []string{"simulate", "projectile"},
		Endpoints: node.Endpoints{
			Execute: "/mcp/execute",
			Health:  "/health",
		},
		CostPerCall: &cost,
	}
}

// LoadMetadata reads node metadata from a JSON file. An empty path or a
// missing file yields DefaultMetadata.
func LoadMetadata(path string) (node.Metadata, error) {
	if path == "" {
		return DefaultMetadata(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultMetadata(), nil
	}
	if err != nil {
		return node.Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	if err := node.ValidateMetadataJSON(data); err != nil {
		return node.Metadata{}, err
	}
	var meta node.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return node.Metadata{}, fmt.Errorf("parse metadata: %w", err)
	}
	return meta, nil
}

// Node is the reference node implementation.
type Node struct {
	store       storage.Storage
	logger      *zap.Logger
	initialized atomic.Bool
}

// New returns a Node advertising the metadata held by store.
func New(store storage.Storage, logger *zap.Logger) *Node {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Node{store: store, logger: logger}
}

// Metadata returns the metadata currently held by the store.
func (n *Node) Metadata(context.Context) (node.Metadata, error) {
	return n.store.GetMetadata()
}

// Initialize marks the node ready.
func (n *Node) Initialize(context.Context) error {
	n.initialized.Store(true)
	n.logger.Info("node initialized")
	return nil
}

// Cleanup marks the node stopped.
func (n *Node) Cleanup(context.Context) error {
	n.initialized.Store(false)
	n.logger.Info("node cleaned up")
	return nil
}

// HealthChecks reports whether Initialize has run.
func (n *Node) HealthChecks(context.Context) (map[string]any, error) {
	return map[string]any{"initialized": n.initialized.Load()}, nil
}

// Capabilities lists simulate and projectile.
func (n *Node) Capabilities() []node.Capability {
	return []node.Capability{
		node.NewCapability("simulate", simulate,
			node.WithDescription("Default simulation capability; echoes the input data."),
			node.WithCostEstimate(1.0),
		),
		node.NewCapability("projectile", projectile,
			node.WithDescription("Range, apex height and flight time of a projectile launched over flat ground."),
			node.WithInputSchema(projectileInputSchema),
			node.WithOutputSchema(projectileOutputSchema),
			node.WithCostEstimate(2.5),
		),
	}
}

func simulate(_ context.Context, ec node.ExecutionContext) (map[string]any, error) {
	return map[string]any{"echo": ec.InputData}, nil
}

var projectileInputSchema = map[string]any{
	"type":     "object",
	"required": []any{"velocity", "angle_deg"},
	"properties": map[string]any{
		"velocity":  map[string]any{"type": "number", "exclusiveMinimum": 0},
		"angle_deg": map[string]any{"type": "number", "exclusiveMinimum": 0, "maximum": 90},
		"gravity":   map[string]any{"type": "number", "exclusiveMinimum": 0},
	},
	"additionalProperties": false,
}

var projectileOutputSchema = map[string]any{
	"type":     "object",
	"required": []any{"range_m", "max_height_m", "flight_time_s"},
	"properties": map[string]any{
		"range_m":       map[string]any{"type": "number", "minimum": 0},
		"max_height_m":  map[string]any{"type": "number", "minimum": 0},
		"flight_time_s": map[string]any{"type": "number", "minimum": 0},
	},
}

func projectile(_ context.Context, ec node.ExecutionContext) (map[string]any, error) {
	v := number(ec.InputData["velocity"])
	angle := number(ec.InputData["angle_deg"])
	g := standardGravity
	if raw, ok := ec.InputData["gravity"]; ok {
		g = number(raw)
	}
	if g <= 0 || v <= 0 {
		return nil, node.ExecutionError("velocity and gravity must be positive")
	}

	theta := angle * math.Pi / 180
	sin := math.Sin(theta)
	return map[string]any{
		"range_m":       v * v * math.Sin(2*theta) / g,
		"max_height_m":  v * v * sin * sin / (2 * g),
		"flight_time_s": 2 * v * sin / g,
	}, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
