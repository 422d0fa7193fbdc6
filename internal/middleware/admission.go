package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/admission"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/auth"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/logging"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/metrics"
)

// maxScanBody bounds how much of a request body is buffered for the
// content screen. The remainder streams through untouched.
const maxScanBody = 64 << 10

// AdmissionMiddleware gates every request through the admission controller.
// Denials short-circuit with 429 (rate limit) or 403 (security block), both
// carrying a machine-readable retry_after. Admitted responses are stamped
// with X-RateLimit headers for the most constrained tier, and the response
// status is fed back into the failure counters once the handler returns.
// A panic anywhere in the pipeline admits the request.
func AdmissionMiddleware(controller *admission.Controller, tracker *admission.Tracker, tokens *auth.TokenManager, logger *logging.Logger, skipPaths []string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	stats := metrics.GetGlobalStats()
	degradedLog := rate.NewLimiter(rate.Every(10*time.Second), 1)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			client := clientContext(tokens, r)
			decision := safeAdmit(controller, logger, r, client)

			if decision.Degraded {
				metrics.RecordDegraded()
				if degradedLog.Allow() {
					logger.Warn("Admission degraded, counter store unavailable", map[string]interface{}{
						"ip":   client.IP,
						"path": client.Path,
					})
				}
			}

			if !decision.Admitted {
				writeDenial(w, r, stats, logger, client, decision)
				return
			}

			stats.RecordAdmitted(decision.Degraded)
			metrics.RecordAdmission("admitted", decision.LimitType.String())
			setRateLimitHeaders(w.Header(), decision)

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(recorder, r)

			// Detached from the request context so a client disconnect
			// cannot drop the accounting.
			tracker.RecordResponse(context.WithoutCancel(r.Context()), client, recorder.statusCode)
		})
	}
}

// clientContext assembles the identity and evidence the admission pipeline
// inspects. Scannable bodies are buffered up to maxScanBody and the reader
// is rebuilt for the downstream handler.
func clientContext(tokens *auth.TokenManager, r *http.Request) *admission.ClientContext {
	client := &admission.ClientContext{
		IP:          admission.ClientIP(r),
		Path:        r.URL.Path,
		Method:      r.Method,
		UserAgent:   r.UserAgent(),
		ContentType: r.Header.Get("Content-Type"),
		ObservedAt:  time.Now(),
	}
	if tokens != nil {
		client.UserID = tokens.Identify(r)
	}

	if r.Body != nil && r.Body != http.NoBody && admission.ScannableContent(r.Method, client.ContentType) {
		body, _ := io.ReadAll(io.LimitReader(r.Body, maxScanBody))
		client.Body = body
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
	}

	return client
}

// safeAdmit runs the admission pipeline and fails open if it panics.
func safeAdmit(controller *admission.Controller, logger *logging.Logger, r *http.Request, client *admission.ClientContext) (decision admission.AdmissionDecision) {
	defer func() {
		if err := recover(); err != nil {
			logger.Error("Admission panic, failing open", nil, map[string]interface{}{
				"error": err,
				"path":  client.Path,
			})
			decision = admission.AdmissionDecision{Admitted: true, Degraded: true}
		}
	}()

	return controller.Admit(context.WithoutCancel(r.Context()), client)
}

func writeDenial(w http.ResponseWriter, r *http.Request, stats *metrics.Stats, logger *logging.Logger, client *admission.ClientContext, decision admission.AdmissionDecision) {
	limitType := decision.LimitType.String()
	stats.RecordDenied(limitType, decision.Degraded)
	metrics.RecordAdmission("denied", limitType)

	status := http.StatusTooManyRequests
	if decision.LimitType == admission.Security {
		status = http.StatusForbidden
		stats.RecordSecurityBlock(decision.Reason)
		metrics.RecordSecurityBlock(decision.Reason)
	}

	retryAfter := retryAfterSeconds(decision.RetryAfter)

	logger.Warn("Request denied", map[string]interface{}{
		"request_id":  GetRequestID(r.Context()),
		"ip":          client.IP,
		"user_id":     client.UserID,
		"method":      client.Method,
		"path":        client.Path,
		"limit_type":  limitType,
		"reason":      decision.Reason,
		"retry_after": retryAfter,
	})

	setRateLimitHeaders(w.Header(), decision)
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":       decision.Reason,
		"limit_type":  limitType,
		"retry_after": retryAfter,
	})
}

// setRateLimitHeaders stamps the X-RateLimit contract headers from a decision.
func setRateLimitHeaders(h http.Header, decision admission.AdmissionDecision) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
}

// retryAfterSeconds rounds a retry interval up to whole seconds.
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
