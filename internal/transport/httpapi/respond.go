package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"alertbot/internal/alerts"
)

type response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func okMessage(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: msg, Data: data})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, response{Error: &errorDetail{Code: code, Message: msg}})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "BAD_REQUEST", msg)
}

// handleError maps alert error kinds to HTTP statuses.
func handleError(w http.ResponseWriter, err error) {
	if errors.Is(err, alerts.ErrNotInitialized) {
		writeError(w, http.StatusServiceUnavailable, "NOT_INITIALIZED", err.Error())
		return
	}
	switch alerts.KindOf(err) {
	case alerts.KindNotFound:
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case alerts.KindPermissionDenied:
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", err.Error())
	case alerts.KindScheduling:
		writeError(w, http.StatusUnprocessableEntity, "SCHEDULING", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "PLATFORM", err.Error())
	}
}
