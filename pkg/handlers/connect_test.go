package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/metrics"
)

func newConnectHandler() *ConnectHandler {
	return NewConnectHandler(newTestState(), metrics.New(), zap.NewNop())
}

func TestConnectHandler_MethodNotAllowed(t *testing.T) {
	handler := newConnectHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/connect", nil)
	rec := httptest.NewRecorder()
	handler.Connect(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestConnectHandler_InvalidBody(t *testing.T) {
	handler := newConnectHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/connect", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler.Connect(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestConnectHandler_MissingConnectionString(t *testing.T) {
	handler := newConnectHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/connect", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.Connect(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "invalid_request" {
		t.Errorf("expected error 'invalid_request', got '%s'", body["error"])
	}
}

func TestConnectHandler_UnrecognizedScheme(t *testing.T) {
	handler := newConnectHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/connect",
		strings.NewReader(`{"connection_string": "gopher://somewhere/db"}`))
	rec := httptest.NewRecorder()
	handler.Connect(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
	if body := decodeError(t, rec); body["error"] != "connection_failed" {
		t.Errorf("expected error 'connection_failed', got '%s'", body["error"])
	}
}

// No adapters are linked into this test binary, so even a well-formed
// descriptor cannot resolve to a registered dialect.
func TestConnectHandler_UnregisteredDialect(t *testing.T) {
	handler := newConnectHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/connect",
		strings.NewReader(`{"connection_string": "postgres://user:pw@localhost:5432/hr"}`))
	rec := httptest.NewRecorder()
	handler.Connect(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
}
