package admission

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Tracker records post-response evidence consumed by the screener: failed
// logins per IP and the error/total response ratio per IP. Recording is
// best effort; a store outage loses evidence but never fails a request.
type Tracker struct {
	store             CounterStore
	authPathPrefix    string
	failedLoginWindow time.Duration
	errorRateWindow   time.Duration
}

// NewTracker builds a tracker sharing the screener's thresholds.
func NewTracker(store CounterStore, cfg ScreenerConfig) *Tracker {
	return &Tracker{
		store:             store,
		authPathPrefix:    cfg.AuthPathPrefix,
		failedLoginWindow: cfg.FailedLoginWindow,
		errorRateWindow:   cfg.ErrorRateWindow,
	}
}

// RecordResponse feeds one downstream response into the counters. Callers
// pass a context detached from the request so that a client disconnect
// cannot suppress the accounting.
func (t *Tracker) RecordResponse(ctx context.Context, client *ClientContext, status int) {
	_, _ = t.store.Increment(ctx, responseTotalKey(client.IP), t.errorRateWindow)

	if status >= http.StatusBadRequest {
		_, _ = t.store.Increment(ctx, responseErrorKey(client.IP), t.errorRateWindow)
	}

	if status == http.StatusUnauthorized && strings.HasPrefix(client.Path, t.authPathPrefix) {
		_, _ = t.store.Increment(ctx, bruteForceKey(client.IP), t.failedLoginWindow)
	}
}
