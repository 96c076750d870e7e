package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/aj-en/mcp-sim/internal/node"
	"github.com/aj-en/mcp-sim/internal/simnode"
	"github.com/aj-en/mcp-sim/internal/storage"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	router  http.Handler
	clock   *controllableClock
	runtime *node.Runtime
	store   *storage.MemoryStorage
}

func setupTestEnv(t *testing.T) testEnv {
	t.Helper()

	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))
	logger := zaptest.NewLogger(t)

	store, err := storage.NewMemoryStorage(simnode.DefaultMetadata(), storage.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewMemoryStorage returned error: %v", err)
	}
	rt, err := node.NewRuntime(simnode.New(store, logger), node.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(func() { _ = rt.Stop(context.Background()) })

	handler := NewHandler(rt, store, WithClock(clock.Now))
	router := NewRouter(handler, logger, WithLogging(false))

	return testEnv{router: router, clock: clock, runtime: rt, store: store}
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected status ok, got %s", resp.Status)
	}
	if !resp.Timestamp.Equal(env.clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", env.clock.Now(), resp.Timestamp)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestNodeHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp node.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected healthy node, got %+v", resp)
	}
	checks, ok := resp.Data["health_checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected health_checks in data, got %v", resp.Data)
	}
	if checks["metadata_valid"] != true || checks["capabilities_loaded"] != true || checks["initialized"] != true {
		t.Fatalf("unexpected checks %v", checks)
	}
}

func TestNodeHealthEndpointUnavailableWhenStopped(t *testing.T) {
	env := setupTestEnv(t)
	if err := env.runtime.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestGetMetadata(t *testing.T) {
	env := setupTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metadata", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var meta node.Metadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if meta.ModelID != simnode.DefaultModelID {
		t.Fatalf("expected model id %s, got %s", simnode.DefaultModelID, meta.ModelID)
	}
	if want := env.clock.Now().Format(http.TimeFormat); rec.Header().Get("Last-Modified") != want {
		t.Fatalf("expected Last-Modified %s, got %s", want, rec.Header().Get("Last-Modified"))
	}
}

func TestPutMetadata(t *testing.T) {
	env := setupTestEnv(t)
	env.clock.Advance(time.Hour)

	meta := simnode.DefaultMetadata()
	meta.Version = "0.2.0"
	meta.Tags = []string{"physics"}
	body, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("failed to marshal metadata: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/metadata", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp metadataResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Metadata.Version != "0.2.0" {
		t.Fatalf("expected version 0.2.0, got %s", resp.Metadata.Version)
	}
	if !resp.UpdatedAt.Equal(env.clock.Now()) {
		t.Fatalf("expected updated_at %s, got %s", env.clock.Now(), resp.UpdatedAt)
	}
	if resp.Message == "" {
		t.Fatalf("expected confirmation message")
	}

	stored, err := env.store.GetMetadata()
	if err != nil {
		t.Fatalf("GetMetadata returned error: %v", err)
	}
	if stored.Version != "0.2.0" {
		t.Fatalf("expected storage to hold version 0.2.0, got %s", stored.Version)
	}
}

func TestPutMetadataKeepsUnmodelledFields(t *testing.T) {
	env := setupTestEnv(t)

	body := `{"model_id":"sim-1","name":"Sim","version":"1.0.0","capabilities":["add"],` +
		`"endpoints":{"execute":"/mcp/execute"},"license":"MIT","owner":{"team":"physics"}}`
	req := httptest.NewRequest(http.MethodPut, "/metadata", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metadata", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if doc["license"] != "MIT" {
		t.Fatalf("expected license MIT to survive, got %v", doc["license"])
	}
	owner, ok := doc["owner"].(map[string]any)
	if !ok || owner["team"] != "physics" {
		t.Fatalf("expected nested owner to survive, got %v", doc["owner"])
	}
}

func TestPutMetadataValidation(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "malformed json", body: `{"model_id":`, wantErr: "Invalid request"},
		{name: "missing capabilities", body: `{"model_id":"x","name":"X","version":"1.0.0"}`, wantErr: "Invalid metadata"},
		{name: "bad version", body: `{"model_id":"x","name":"X","version":"one","capabilities":["simulate"]}`, wantErr: "Invalid metadata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/metadata", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error != tt.wantErr {
				t.Fatalf("expected error %q, got %q", tt.wantErr, resp.Error)
			}
		})
	}

	stored, err := env.store.GetMetadata()
	if err != nil {
		t.Fatalf("GetMetadata returned error: %v", err)
	}
	if stored.ModelID != simnode.DefaultModelID {
		t.Fatalf("expected metadata to be unchanged, got %s", stored.ModelID)
	}
}

func TestExecuteSimulate(t *testing.T) {
	env := setupTestEnv(t)

	body := `{"request_id":"req-1","capability":"simulate","input_data":{"x":1}}`
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp/execute", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp node.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	echo, ok := resp.Data["echo"].(map[string]any)
	if !ok || echo["x"] != float64(1) {
		t.Fatalf("expected input to be echoed, got %v", resp.Data)
	}
	if resp.Metadata["request_id"] != "req-1" {
		t.Fatalf("expected request id req-1, got %v", resp.Metadata["request_id"])
	}
	if resp.Metadata["node_id"] != simnode.DefaultModelID {
		t.Fatalf("expected node id %s, got %v", simnode.DefaultModelID, resp.Metadata["node_id"])
	}
	if resp.Cost == nil || *resp.Cost != 1.0 {
		t.Fatalf("expected cost 1.0, got %v", resp.Cost)
	}
	if resp.ExecutionTimeMs == nil {
		t.Fatalf("expected execution time")
	}
}

func TestExecuteUsesHeaderRequestID(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp/execute", strings.NewReader(`{"capability":"simulate"}`))
	req.Header.Set("X-Request-ID", "trace-42")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var resp node.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Metadata["request_id"] != "trace-42" {
		t.Fatalf("expected request id from header, got %v", resp.Metadata["request_id"])
	}
}

func TestExecuteFailuresStayInEnvelope(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{
			name:      "unknown capability",
			body:      `{"capability":"teleport"}`,
			wantError: "Unknown capability: teleport. Available: [simulate projectile]",
		},
		{
			name:      "missing capability",
			body:      `{"input_data":{}}`,
			wantError: "Unknown capability: . Available: [simulate projectile]",
		},
		{
			name:      "invalid input",
			body:      `{"capability":"projectile","input_data":{"velocity":-3,"angle_deg":45}}`,
			wantError: "Input validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp/execute", strings.NewReader(tt.body)))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
			var resp node.Response
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Success {
				t.Fatalf("expected failure")
			}
			if !strings.HasPrefix(resp.Error, tt.wantError) {
				t.Fatalf("expected error starting with %q, got %q", tt.wantError, resp.Error)
			}
		})
	}
}

func TestExecuteMalformedJSON(t *testing.T) {
	env := setupTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp/execute", strings.NewReader(`{"capability":`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestCapabilitiesEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/capabilities", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp capabilitiesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Capabilities) != 2 {
		t.Fatalf("expected 2 capabilities, got %d", len(resp.Capabilities))
	}
	projectile := resp.Capabilities[1]
	if projectile.Name != "projectile" {
		t.Fatalf("expected projectile second, got %s", projectile.Name)
	}
	if projectile.InputSchema == nil || projectile.OutputSchema == nil {
		t.Fatalf("expected schemas for projectile")
	}
	if projectile.CostEstimate == nil || *projectile.CostEstimate != 2.5 {
		t.Fatalf("expected cost estimate 2.5, got %v", projectile.CostEstimate)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/metadata", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/mcp/execute", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS headers")
	}
}
