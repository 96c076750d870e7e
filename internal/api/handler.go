package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aj-en/mcp-sim/internal/node"
	"github.com/aj-en/mcp-sim/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// NodeRuntime is the part of node.Runtime the HTTP layer depends on.
type NodeRuntime interface {
	HealthCheck(ctx context.Context) node.Response
	Execute(ctx context.Context, ec node.ExecutionContext) node.Response
	ListCapabilities() []string
	CapabilityInfo(name string) (node.Capability, bool)
}

// Handler wires the node runtime and metadata storage into HTTP handlers.
type Handler struct {
	runtime NodeRuntime
	storage storage.Storage

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(rt NodeRuntime, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		runtime: rt,
		storage: store,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleNodeHealth(w http.ResponseWriter, r *http.Request) {
	resp := h.runtime.HealthCheck(r.Context())
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleGetMetadata(w http.ResponseWriter, _ *http.Request) {
	meta, err := h.storage.GetMetadata()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if updated := h.storage.UpdatedAt(); !updated.IsZero() {
		w.Header().Set("Last-Modified", updated.UTC().Format(http.TimeFormat))
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) handlePutMetadata(w http.ResponseWriter, r *http.Request) {
	var meta node.Metadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if err := h.storage.SetMetadata(meta); err != nil {
		if errors.Is(err, storage.ErrInvalidMetadata) {
			writeError(w, http.StatusBadRequest, "Invalid metadata", err.Error(),
				"Check the document against the node metadata schema")
			return
		}
		writeInternalError(w, err)
		return
	}

	stored, err := h.storage.GetMetadata()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := metadataResponse{
		Metadata:  stored,
		UpdatedAt: h.storage.UpdatedAt(),
		Message:   "Metadata updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExecute always answers 200 with the runtime's envelope once the body
// parses; capability failures are reported inside it.
func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	ec := node.ExecutionContext{
		RequestID:  req.RequestID,
		Capability: req.Capability,
		InputData:  req.InputData,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Metadata:   req.Metadata,
	}
	if ec.RequestID == "" {
		ec.RequestID = requestIDFromContext(r.Context())
	}

	writeJSON(w, http.StatusOK, h.runtime.Execute(r.Context(), ec))
}

func (h *Handler) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	names := h.runtime.ListCapabilities()
	resp := capabilitiesResponse{Capabilities: make([]capabilityInfo, 0, len(names))}
	for _, name := range names {
		c, ok := h.runtime.CapabilityInfo(name)
		if !ok {
			continue
		}
		resp.Capabilities = append(resp.Capabilities, capabilityInfo{
			Name:         c.Name,
			Description:  c.Description,
			InputSchema:  c.InputSchema,
			OutputSchema: c.OutputSchema,
			CostEstimate: c.CostEstimate,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type executeRequest struct {
	RequestID  string         `json:"request_id"`
	Capability string         `json:"capability"`
	InputData  map[string]any `json:"input_data"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Metadata   map[string]any `json:"metadata"`
}

type metadataResponse struct {
	Metadata  node.Metadata `json:"metadata"`
	UpdatedAt time.Time     `json:"updated_at"`
	Message   string        `json:"message,omitempty"`
}

type capabilityInfo struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	CostEstimate *float64       `json:"cost_estimate,omitempty"`
}

type capabilitiesResponse struct {
	Capabilities []capabilityInfo `json:"capabilities"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
