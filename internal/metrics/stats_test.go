package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestStatsRecordAndSnapshot(t *testing.T) {
	s := NewStats()

	s.RecordRequest("/api/v1/analyses", 20*time.Millisecond)
	s.RecordRequest("/api/v1/analyses", 40*time.Millisecond)
	s.RecordRequest("/api/v1/auth/login", 10*time.Millisecond)

	s.RecordAdmitted(false)
	s.RecordAdmitted(true)
	s.RecordDenied("ip", false)
	s.RecordSecurityBlock("suspicious request content")

	snapshot := s.GetStats()

	requests, ok := snapshot["requests"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing requests section in %v", snapshot)
	}
	if got := requests["total"].(int64); got != 3 {
		t.Errorf("total = %d, want 3", got)
	}
	if got := requests["admitted"].(int64); got != 2 {
		t.Errorf("admitted = %d, want 2", got)
	}
	if got := requests["denied"].(int64); got != 1 {
		t.Errorf("denied = %d, want 1", got)
	}

	responseTime := snapshot["response_time"].(map[string]interface{})
	if got := responseTime["min_ms"].(int64); got != 10 {
		t.Errorf("min_ms = %d, want 10", got)
	}
	if got := responseTime["max_ms"].(int64); got != 40 {
		t.Errorf("max_ms = %d, want 40", got)
	}

	denials := snapshot["denials_by_type"].(map[string]int64)
	if denials["ip"] != 1 {
		t.Errorf("denials_by_type[ip] = %d, want 1", denials["ip"])
	}

	security := snapshot["security"].(map[string]interface{})
	if got := security["blocks"].(int64); got != 1 {
		t.Errorf("security blocks = %d, want 1", got)
	}

	if got := snapshot["degraded"].(int64); got != 1 {
		t.Errorf("degraded = %d, want 1", got)
	}
}

func TestStatsEmptySnapshot(t *testing.T) {
	s := NewStats()

	snapshot := s.GetStats()
	responseTime := snapshot["response_time"].(map[string]interface{})
	if got := responseTime["min_ms"].(int64); got != 0 {
		t.Errorf("min_ms on empty stats = %d, want 0", got)
	}
	if got := responseTime["avg_ms"].(int64); got != 0 {
		t.Errorf("avg_ms on empty stats = %d, want 0", got)
	}
}

func TestStatsReset(t *testing.T) {
	s := NewStats()
	s.RecordRequest("/health", time.Millisecond)
	s.RecordDenied("user", false)

	s.Reset()

	snapshot := s.GetStats()
	requests := snapshot["requests"].(map[string]interface{})
	if got := requests["total"].(int64); got != 0 {
		t.Errorf("total after reset = %d, want 0", got)
	}
	denials := snapshot["denials_by_type"].(map[string]int64)
	if len(denials) != 0 {
		t.Errorf("denials after reset = %v, want empty", denials)
	}
}

func TestStatsConcurrentAccess(t *testing.T) {
	s := NewStats()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.RecordRequest("/api/v1/analyses", time.Millisecond)
				s.RecordAdmitted(false)
				_ = s.GetStats()
			}
		}()
	}
	wg.Wait()

	snapshot := s.GetStats()
	requests := snapshot["requests"].(map[string]interface{})
	if got := requests["total"].(int64); got != 800 {
		t.Errorf("total = %d, want 800", got)
	}
}
