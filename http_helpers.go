package shelterboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// writeJSON encodes data as JSON and writes it to the response.
// Logs any encoding errors instead of silently ignoring them.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
	}
}

// writeJSONStatus writes a JSON response with a specific status code.
func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
	}
}

// jsonError writes a JSON-formatted error response in the dashboard's
// uniform envelope.
func jsonError(w http.ResponseWriter, status int, message string) {
	slog.Warn("HTTP error", "status", status, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status": "error",
		"error":  message,
	}); err != nil {
		slog.Error("failed to encode error response", "err", err)
	}
}

// jsonSuccess writes a JSON success response.
func jsonSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, map[string]any{
		"status": "success",
		"data":   data,
	})
}

// jsonDomainError maps package errors to HTTP statuses: unknown organization
// 404, missing columns 422, bad request parameters 400, missing login 401,
// unreachable source 502, everything else 500.
func jsonDomainError(w http.ResponseWriter, err error) {
	var missing *MissingColumnsError
	switch {
	case errors.Is(err, ErrOrgNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &missing):
		jsonError(w, http.StatusUnprocessableEntity, missing.Error())
	case errors.Is(err, ErrInvalidRequest):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnauthorized):
		jsonError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrSnapshotNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrLoginThrottled):
		jsonError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrSourceUnavailable):
		jsonError(w, http.StatusBadGateway, err.Error())
	default:
		jsonError(w, http.StatusInternalServerError, err.Error())
	}
}
