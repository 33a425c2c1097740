// Package httpapi provides the read-only REST adapter mounted under /api/v1.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/idleledger/internal/adapters/server/common"
)

// Handler serves the versioned API subrouter.
type Handler struct {
	ledger common.LedgerReader
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs the API adapter over a ledger reader.
func NewHandler(ledger common.LedgerReader) *Handler {
	return &Handler{ledger: ledger}
}

// ServeHTTP routes one versioned API request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimSpace(r.URL.Path), "/")
	switch path {
	case "day":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleDay(w, r)
	case "summary":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleSummary(w, r)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleDay serves GET /day?date=YYYY-MM-DD.
func (h *Handler) handleDay(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeUnavailable(w)
		return
	}
	view, err := common.DayReport(h.ledger, r.URL.Query().Get("date"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSummary serves GET /summary?period=today|yesterday|week.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeUnavailable(w)
		return
	}
	view, err := common.PeriodSummary(h.ledger, r.URL.Query().Get("period"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// writeErrorFrom maps adapter errors to status codes.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSONError(w, http.StatusServiceUnavailable, APIError{
		Code:    "service_unavailable",
		Message: "ledger is not configured",
	})
}

// writeMethodNotAllowed writes a structured 405 response with Allow headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":%q}}`, err.Error()), http.StatusInternalServerError)
	}
}
