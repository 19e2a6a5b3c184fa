package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"overcast-labs/creditguard/pkg/governor"
	"overcast-labs/creditguard/pkg/telemetry/logging"
)

// UsageHandler serves the usage summary and breaker endpoints.
type UsageHandler struct {
	gov *governor.Governor
}

// NewUsageHandler creates a handler over the given governor.
func NewUsageHandler(gov *governor.Governor) *UsageHandler {
	return &UsageHandler{gov: gov}
}

// Summary handles GET /v1/usage with the current usage snapshot.
func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	writeJSON(w, http.StatusOK, h.gov.Summary(r.Context()))
}

// tripRequest is the body of POST /v1/breaker.
type tripRequest struct {
	Reason          string `json:"reason"`
	CooldownMinutes int64  `json:"cooldown_minutes"`
}

// breakerResponse is the body returned by both breaker methods.
type breakerResponse struct {
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

// Breaker handles /v1/breaker: GET reports the breaker state, POST
// trips it manually for operators.
func (h *UsageHandler) Breaker(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		active, reason := h.gov.CheckCircuitBreaker()
		writeJSON(w, http.StatusOK, breakerResponse{Active: active, Reason: reason})

	case http.MethodPost:
		var req tripRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
			return
		}
		if req.Reason == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "reason is required")
			return
		}

		h.gov.TriggerCircuitBreaker(r.Context(), req.Reason,
			time.Duration(req.CooldownMinutes)*time.Minute)

		logging.FromContext(r.Context()).Info("breaker tripped by operator",
			"reason", req.Reason,
			"cooldown_minutes", req.CooldownMinutes,
		)

		active, reason := h.gov.CheckCircuitBreaker()
		writeJSON(w, http.StatusOK, breakerResponse{Active: active, Reason: reason})

	default:
		writeMethodNotAllowed(w, "GET, POST")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

func writeMethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}
