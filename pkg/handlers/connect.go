package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/metrics"
	"github.com/nlq-engine/nlq-engine/pkg/services"
)

// ConnectHandler establishes a connection to a target store and runs
// schema discovery.
type ConnectHandler struct {
	state   *services.AppState
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewConnectHandler creates a ConnectHandler.
func NewConnectHandler(state *services.AppState, m *metrics.Metrics, logger *zap.Logger) *ConnectHandler {
	return &ConnectHandler{state: state, metrics: m, logger: logger}
}

// RegisterRoutes registers the connect route on the given mux.
func (h *ConnectHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/connect", h.Connect)
}

type connectRequest struct {
	ConnectionString string `json:"connection_string"`
}

// Connect handles POST /api/connect. On success the discovered catalog
// replaces any previous connection and the result cache is invalidated.
func (h *ConnectHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		_ = ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with connection_string")
		return
	}
	if req.ConnectionString == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "connection_string is required")
		return
	}

	catalog, err := h.state.Connect(r.Context(), req.ConnectionString)
	if err != nil {
		h.logger.Warn("connect failed", zap.Error(err))
		_ = writeEngineError(w, err)
		return
	}
	h.metrics.ObserveDiscovery()

	if err := WriteJSON(w, http.StatusOK, catalog); err != nil {
		h.logger.Error("Failed to encode connect response", zap.Error(err))
	}
}
