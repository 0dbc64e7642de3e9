package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nlq-engine/nlq-engine/pkg/services"
)

// QueryHandler serves natural-language queries, the current schema and
// query history.
type QueryHandler struct {
	engine *services.QueryEngine
	state  *services.AppState
	logger *zap.Logger
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(engine *services.QueryEngine, state *services.AppState, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{engine: engine, state: state, logger: logger}
}

// RegisterRoutes registers the query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/query", h.Query)
	mux.HandleFunc("/api/query/history", h.History)
	mux.HandleFunc("/api/schema", h.Schema)
}

type queryRequest struct {
	Query    string `json:"query"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// Query handles POST /api/query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		_ = ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with query")
		return
	}
	if req.Query == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	response, err := h.engine.Run(r.Context(), req.Query, req.Page, req.PageSize)
	if err != nil {
		h.logger.Warn("query failed", zap.String("query", req.Query), zap.Error(err))
		_ = writeEngineError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode query response", zap.Error(err))
	}
}

// History handles GET /api/query/history, most recent first.
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	records := h.state.History().List()
	if err := WriteJSON(w, http.StatusOK, map[string]any{"history": records}); err != nil {
		h.logger.Error("Failed to encode history response", zap.Error(err))
	}
}

// Schema handles GET /api/schema with the current catalog snapshot.
func (h *QueryHandler) Schema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	catalog, err := h.state.Catalog()
	if err != nil {
		_ = writeEngineError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, catalog); err != nil {
		h.logger.Error("Failed to encode schema response", zap.Error(err))
	}
}
