package metrics

import (
	"sync"
	"time"
)

/* Stats collects request and admission statistics */
type Stats struct {
	mu sync.RWMutex

	TotalRequests    int64
	AdmittedRequests int64
	DeniedRequests   int64

	SecurityBlocks    int64
	DegradedDecisions int64

	TotalResponseTime time.Duration
	MinResponseTime   time.Duration
	MaxResponseTime   time.Duration

	DenialsByType  map[string]int64
	BlocksByReason map[string]int64
	EndpointCounts map[string]int64

	startedAt time.Time
}

var globalStats = NewStats()

/* NewStats creates a new statistics instance */
func NewStats() *Stats {
	return &Stats{
		DenialsByType:   make(map[string]int64),
		BlocksByReason:  make(map[string]int64),
		EndpointCounts:  make(map[string]int64),
		MinResponseTime: time.Hour, /* Initialize to large value */
		startedAt:       time.Now(),
	}
}

/* GetGlobalStats returns the global statistics instance */
func GetGlobalStats() *Stats {
	return globalStats
}

/* RecordRequest records a completed request */
func (s *Stats) RecordRequest(endpoint string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalRequests++
	s.EndpointCounts[endpoint]++
	s.TotalResponseTime += duration

	if duration < s.MinResponseTime {
		s.MinResponseTime = duration
	}
	if duration > s.MaxResponseTime {
		s.MaxResponseTime = duration
	}
}

/* RecordAdmitted records an admitted request */
func (s *Stats) RecordAdmitted(degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.AdmittedRequests++
	if degraded {
		s.DegradedDecisions++
	}
}

/* RecordDenied records a denied request by limit type */
func (s *Stats) RecordDenied(limitType string, degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeniedRequests++
	s.DenialsByType[limitType]++
	if degraded {
		s.DegradedDecisions++
	}
}

/* RecordSecurityBlock records a request denied by security screening */
func (s *Stats) RecordSecurityBlock(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SecurityBlocks++
	s.BlocksByReason[reason]++
}

/* GetStats returns current statistics */
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	avgResponseTime := time.Duration(0)
	minResponseTime := time.Duration(0)
	if s.TotalRequests > 0 {
		avgResponseTime = s.TotalResponseTime / time.Duration(s.TotalRequests)
		minResponseTime = s.MinResponseTime
	}

	denials := make(map[string]int64, len(s.DenialsByType))
	for k, v := range s.DenialsByType {
		denials[k] = v
	}
	blocks := make(map[string]int64, len(s.BlocksByReason))
	for k, v := range s.BlocksByReason {
		blocks[k] = v
	}
	endpoints := make(map[string]int64, len(s.EndpointCounts))
	for k, v := range s.EndpointCounts {
		endpoints[k] = v
	}

	return map[string]interface{}{
		"requests": map[string]interface{}{
			"total":    s.TotalRequests,
			"admitted": s.AdmittedRequests,
			"denied":   s.DeniedRequests,
		},
		"response_time": map[string]interface{}{
			"avg_ms": avgResponseTime.Milliseconds(),
			"min_ms": minResponseTime.Milliseconds(),
			"max_ms": s.MaxResponseTime.Milliseconds(),
		},
		"security": map[string]interface{}{
			"blocks":    s.SecurityBlocks,
			"by_reason": blocks,
		},
		"denials_by_type": denials,
		"endpoints":       endpoints,
		"degraded":        s.DegradedDecisions,
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
	}
}

/* Reset resets all statistics */
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalRequests = 0
	s.AdmittedRequests = 0
	s.DeniedRequests = 0
	s.SecurityBlocks = 0
	s.DegradedDecisions = 0
	s.TotalResponseTime = 0
	s.MinResponseTime = time.Hour
	s.MaxResponseTime = 0
	s.DenialsByType = make(map[string]int64)
	s.BlocksByReason = make(map[string]int64)
	s.EndpointCounts = make(map[string]int64)
}
