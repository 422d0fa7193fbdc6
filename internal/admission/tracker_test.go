package admission

import (
	"context"
	"net/http"
	"testing"
)

func TestTrackerRecordsResponses(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, DefaultScreenerConfig())
	ctx := context.Background()

	client := &ClientContext{IP: "198.51.100.4", Path: "/api/v1/analyses"}

	tracker.RecordResponse(ctx, client, http.StatusOK)
	if got := store.get(responseTotalKey(client.IP)); got != 1 {
		t.Errorf("total after 200 = %d, want 1", got)
	}
	if got := store.get(responseErrorKey(client.IP)); got != 0 {
		t.Errorf("errors after 200 = %d, want 0", got)
	}

	tracker.RecordResponse(ctx, client, http.StatusInternalServerError)
	if got := store.get(responseTotalKey(client.IP)); got != 2 {
		t.Errorf("total after 500 = %d, want 2", got)
	}
	if got := store.get(responseErrorKey(client.IP)); got != 1 {
		t.Errorf("errors after 500 = %d, want 1", got)
	}

	// A 500 outside the auth prefix must not look like a failed login.
	if got := store.get(bruteForceKey(client.IP)); got != 0 {
		t.Errorf("failed logins = %d, want 0", got)
	}
}

func TestTrackerCountsFailedLoginsOnAuthPaths(t *testing.T) {
	store := newFakeStore()
	tracker := NewTracker(store, DefaultScreenerConfig())
	ctx := context.Background()

	login := &ClientContext{IP: "198.51.100.4", Path: "/api/v1/auth/login"}
	tracker.RecordResponse(ctx, login, http.StatusUnauthorized)
	tracker.RecordResponse(ctx, login, http.StatusUnauthorized)

	if got := store.get(bruteForceKey(login.IP)); got != 2 {
		t.Errorf("failed logins = %d, want 2", got)
	}
	if got := store.get(responseErrorKey(login.IP)); got != 2 {
		t.Errorf("errors = %d, want 2", got)
	}

	// 401s elsewhere (expired token on a data route) are errors but not
	// login failures.
	other := &ClientContext{IP: "198.51.100.4", Path: "/api/v1/analyses"}
	tracker.RecordResponse(ctx, other, http.StatusUnauthorized)

	if got := store.get(bruteForceKey(other.IP)); got != 2 {
		t.Errorf("failed logins after non-auth 401 = %d, want 2", got)
	}
}

func TestTrackerSurvivesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.err = context.DeadlineExceeded
	tracker := NewTracker(store, DefaultScreenerConfig())

	client := &ClientContext{IP: "198.51.100.4", Path: "/api/v1/auth/login"}
	tracker.RecordResponse(context.Background(), client, http.StatusUnauthorized)
}
