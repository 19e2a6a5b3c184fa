package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"overcast-labs/creditguard/pkg/governor"
	"overcast-labs/creditguard/pkg/governor/pricing"
	"overcast-labs/creditguard/pkg/processing/tokens"
	"overcast-labs/creditguard/pkg/telemetry/logging"
)

// Response headers exposing quota state to clients.
const (
	HeaderTier              = "X-Credit-Tier"
	HeaderDailyRequests     = "X-Daily-Requests"
	HeaderDailyCost         = "X-Daily-Cost"
	HeaderDailyUsagePercent = "X-Daily-Usage-Percent"
)

// maxBodyBytes caps how much request body the estimator will read.
const maxBodyBytes = 10 << 20

// denialBody is the JSON body of a 429 response.
type denialBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Tier       string `json:"tier"`
	RetryAfter int64  `json:"retry_after"`
}

// Admission gates requests through the governor.
//
// The request body is read once for token estimation and restored for
// the next handler. Denials answer 429 with a Retry-After hint and
// never reach upstream. Admitted requests get quota headers, are
// forwarded, and their estimated usage is recorded afterwards. A body
// the estimator can't parse is admitted as a zero-token request so the
// request count is still enforced. A body over the size cap is rejected
// with 413; a truncated body is never forwarded upstream.
func Admission(gov *governor.Governor, estimator *tokens.Estimator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			// Read one byte past the cap so truncation is detectable;
			// a body at the cap boundary is still served whole.
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body.Close()
			if len(body) > maxBodyBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "request_too_large",
					fmt.Sprintf("request body exceeds the %d byte limit", maxBodyBytes))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var estimated int64
			model := pricing.ModelUnknown
			if est, err := estimator.EstimateRequest(body); err != nil {
				logger.Warn("token estimation failed, admitting as zero-token request",
					"error", err,
				)
			} else {
				estimated = est.TotalTokens
				model = pricing.ParseModel(est.Model)
			}

			decision := gov.CanAdmit(ctx, estimated, model)
			if !decision.Allowed {
				writeDenial(w, gov.Tier().Name, decision)
				return
			}

			if usage := decision.Usage; usage != nil {
				w.Header().Set(HeaderTier, usage.Tier)
				w.Header().Set(HeaderDailyRequests, fmt.Sprintf("%d/%d",
					usage.Daily.Usage.Requests, usage.Daily.Limits.Requests))
				w.Header().Set(HeaderDailyCost, fmt.Sprintf("%.4f", usage.Daily.Usage.Cost))
				w.Header().Set(HeaderDailyUsagePercent, fmt.Sprintf("%.1f",
					usage.Daily.Percentages.Cost))
			}

			next.ServeHTTP(w, r)

			// The estimate is what gets recorded. Reconciling against
			// upstream-reported usage happens out of band.
			if err := gov.RecordUsage(ctx, estimated, model); err != nil {
				logger.Error("failed to record usage",
					"tokens", estimated,
					"model", string(model),
					"error", err,
				)
			}
		})
	}
}

// writeError answers with a JSON error body.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

// writeDenial answers a denied request with 429 and a Retry-After hint.
func writeDenial(w http.ResponseWriter, tier string, decision governor.Decision) {
	retryAfter := int64(math.Ceil(decision.RetryAfter.Seconds()))
	if retryAfter < 0 {
		retryAfter = 0
	}

	w.Header().Set("Content-Type", "application/json")
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	}
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(denialBody{
		Error:      decision.Code,
		Message:    decision.Message,
		Tier:       tier,
		RetryAfter: retryAfter,
	})
}
