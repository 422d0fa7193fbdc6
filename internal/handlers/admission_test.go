package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/admission"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New("error", "text", io.Discard)
}

func policyRegistry(t *testing.T) *admission.Registry {
	t.Helper()
	defaults := map[admission.RateLimitType]admission.RateLimitConfig{
		admission.Global:  {Sustained: 300, Window: time.Minute, BurstMultiplier: 2.0},
		admission.PerIP:   {Sustained: 60, Window: time.Minute, BurstMultiplier: 2.0},
		admission.PerUser: {Sustained: 120, Window: time.Minute, BurstMultiplier: 2.0},
	}
	rules := []admission.PathRule{
		{
			Prefix: "/api/v1/auth/login",
			IP:     &admission.RateLimitConfig{Sustained: 5, Window: time.Minute, BurstMultiplier: 2.0},
		},
	}
	reg, err := admission.NewRegistry(defaults, rules)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestGetPolicy(t *testing.T) {
	h := NewAdmissionHandlers(policyRegistry(t), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admission/policy", nil)
	rec := httptest.NewRecorder()
	h.GetPolicy(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var policy struct {
		Defaults map[string]policyTierView `json:"defaults"`
		Paths    []struct {
			Prefix string          `json:"prefix"`
			IP     *policyTierView `json:"ip"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &policy); err != nil {
		t.Fatalf("decoding policy: %v", err)
	}

	global, ok := policy.Defaults["global"]
	if !ok {
		t.Fatalf("missing global default in %v", policy.Defaults)
	}
	if global.Sustained != 300 || global.WindowSeconds != 60 {
		t.Errorf("global default = %+v, want sustained 300 over 60s", global)
	}
	if global.BurstLimit != 600 {
		t.Errorf("global burst limit = %d, want 600", global.BurstLimit)
	}

	if len(policy.Paths) != 1 {
		t.Fatalf("paths = %d rows, want 1", len(policy.Paths))
	}
	row := policy.Paths[0]
	if row.Prefix != "/api/v1/auth/login" {
		t.Errorf("prefix = %q, want /api/v1/auth/login", row.Prefix)
	}
	if row.IP == nil || row.IP.Sustained != 5 {
		t.Errorf("login ip tier = %+v, want sustained 5", row.IP)
	}
}

func TestGetStats(t *testing.T) {
	h := NewAdmissionHandlers(policyRegistry(t), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admission/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snapshot map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if _, ok := snapshot["requests"]; !ok {
		t.Errorf("snapshot missing requests section: %v", snapshot)
	}
}

func TestStatsWebSocket(t *testing.T) {
	h := NewAdmissionHandlers(policyRegistry(t), testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.StatsWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot map[string]interface{}
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("reading first frame: %v", err)
	}
	if _, ok := snapshot["requests"]; !ok {
		t.Errorf("frame missing requests section: %v", snapshot)
	}
}
