package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nlq-engine/nlq-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeEngineError maps engine error taxonomy onto HTTP responses.
// QueryNotUnderstood gets its own shape so callers can show the user
// which tokens were and were not recognized.
func writeEngineError(w http.ResponseWriter, err error) error {
	var notUnderstood *apperrors.QueryNotUnderstoodError
	if errors.As(err, &notUnderstood) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		return json.NewEncoder(w).Encode(map[string]any{
			"error":      "query_not_understood",
			"message":    notUnderstood.Error(),
			"recognized": notUnderstood.Matched,
			"unmatched":  notUnderstood.Unmatched,
		})
	}

	switch {
	case errors.Is(err, apperrors.ErrNotConnected):
		return ErrorResponse(w, http.StatusConflict, "not_connected", err.Error())
	case errors.Is(err, apperrors.ErrConnectionFailed):
		return ErrorResponse(w, http.StatusBadGateway, "connection_failed", err.Error())
	case errors.Is(err, apperrors.ErrTimeout):
		return ErrorResponse(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, apperrors.ErrUnsafeParameter):
		return ErrorResponse(w, http.StatusBadRequest, "unsafe_parameter", err.Error())
	case errors.Is(err, apperrors.ErrIntrospection):
		return ErrorResponse(w, http.StatusBadGateway, "introspection_failed", err.Error())
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
