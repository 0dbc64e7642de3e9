package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/cache"
	"github.com/nlq-engine/nlq-engine/pkg/config"
	"github.com/nlq-engine/nlq-engine/pkg/services"
)

// newTestState builds application state with no active connection; query
// and schema requests against it must fail with not_connected.
func newTestState() *services.AppState {
	matcher := services.NewHintMatcher(services.DefaultHintRules())
	discovery := services.NewSchemaDiscoveryService(matcher,
		config.DiscoveryConfig{SampleRows: 3, MaxTables: 200, TimeoutSeconds: 60}, nil)
	return services.NewAppState(discovery, services.DefaultHintRules(),
		config.QueryConfig{DefaultPageSize: 50, MaxPageSize: 200, TimeoutSeconds: 30},
		cache.NewResultCache(10, time.Minute, nil), services.NewQueryHistory(10), nil)
}

func newQueryHandler() *QueryHandler {
	state := newTestState()
	engine := services.NewQueryEngine(state, nil,
		config.QueryConfig{DefaultPageSize: 50, MaxPageSize: 200, TimeoutSeconds: 30},
		config.DocSearchConfig{Limit: 10, TimeoutSeconds: 5}, nil, nil)
	return NewQueryHandler(engine, state, zap.NewNop())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func TestQueryHandler_Query_MethodNotAllowed(t *testing.T) {
	handler := newQueryHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	rec := httptest.NewRecorder()
	handler.Query(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "method_not_allowed" {
		t.Errorf("expected error 'method_not_allowed', got '%s'", body["error"])
	}
}

func TestQueryHandler_Query_InvalidBody(t *testing.T) {
	handler := newQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	handler.Query(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "invalid_request" {
		t.Errorf("expected error 'invalid_request', got '%s'", body["error"])
	}
}

func TestQueryHandler_Query_EmptyQuery(t *testing.T) {
	handler := newQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": ""}`))
	rec := httptest.NewRecorder()
	handler.Query(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestQueryHandler_Query_NotConnected(t *testing.T) {
	handler := newQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"query": "how many employees"}`))
	rec := httptest.NewRecorder()
	handler.Query(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "not_connected" {
		t.Errorf("expected error 'not_connected', got '%s'", body["error"])
	}
}

func TestQueryHandler_History(t *testing.T) {
	handler := newQueryHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/query/history", nil)
	rec := httptest.NewRecorder()
	handler.History(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode history response: %v", err)
	}
	if string(body["history"]) != "[]" {
		t.Errorf("expected empty history array, got %s", body["history"])
	}
}

func TestQueryHandler_History_MethodNotAllowed(t *testing.T) {
	handler := newQueryHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/query/history", nil)
	rec := httptest.NewRecorder()
	handler.History(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestQueryHandler_Schema_NotConnected(t *testing.T) {
	handler := newQueryHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/schema", nil)
	rec := httptest.NewRecorder()
	handler.Schema(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestQueryHandler_RegisterRoutes(t *testing.T) {
	handler := newQueryHandler()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	for _, path := range []string{"/api/query", "/api/query/history", "/api/schema"} {
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}
