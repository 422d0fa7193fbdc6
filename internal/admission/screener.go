package admission

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/logging"
)

// Counter key prefixes reserved for the screener's store-backed checks.
// They live on the same CounterStore as the rate-limit tiers, so they
// inherit its atomic increment-with-TTL semantics.
func bruteForceKey(ip string) string {
	return "bruteforce:" + ip
}

func responseTotalKey(ip string) string {
	return "respall:" + ip
}

func responseErrorKey(ip string) string {
	return "resperr:" + ip
}

// ScreenerConfig holds the security heuristics' thresholds.
type ScreenerConfig struct {
	AuthPathPrefix      string        // paths under this prefix get the brute-force check
	FailedLoginLimit    int           // failures above this count trigger a block
	FailedLoginWindow   time.Duration // window the failure counter lives in
	ErrorRateThreshold  float64       // error/total ratio that denies
	ErrorRateWindow     time.Duration // window the response counters live in
	ErrorRateMinSamples int           // observations required before the ratio check fires
	DenyRetryAfter      time.Duration // fixed retry-after for ratio and threshold denials
	BlockDuration       time.Duration // blocklist TTL applied on brute-force verdicts
	BlockThreshold      ThreatLevel   // aggregate level at which a verdict denies
	SuspiciousRanges    []string      // CIDR list standing in for a reputation feed
}

// DefaultScreenerConfig returns the production thresholds.
func DefaultScreenerConfig() ScreenerConfig {
	return ScreenerConfig{
		AuthPathPrefix:      "/api/v1/auth",
		FailedLoginLimit:    10,
		FailedLoginWindow:   15 * time.Minute,
		ErrorRateThreshold:  0.5,
		ErrorRateWindow:     5 * time.Minute,
		ErrorRateMinSamples: 20,
		DenyRetryAfter:      time.Minute,
		BlockDuration:       15 * time.Minute,
		BlockThreshold:      Critical,
	}
}

// Screener runs the security pipeline over one request: blocklist lookup,
// IP reputation, content scan, brute-force detection and error-ratio
// analysis. Store failures degrade individual checks to "no evidence";
// only an unparsable source address fails closed, and only for the
// reputation stage.
type Screener struct {
	store     CounterStore
	blocklist TemporaryBlocklist
	cfg       ScreenerConfig
	ranges    []*net.IPNet
	logger    *logging.Logger
}

// NewScreener validates cfg and builds a screener.
func NewScreener(store CounterStore, blocklist TemporaryBlocklist, cfg ScreenerConfig, logger *logging.Logger) (*Screener, error) {
	if cfg.FailedLoginLimit <= 0 {
		return nil, fmt.Errorf("failed login limit must be positive, got %d", cfg.FailedLoginLimit)
	}
	if cfg.FailedLoginWindow <= 0 || cfg.ErrorRateWindow <= 0 {
		return nil, fmt.Errorf("screener windows must be positive")
	}
	if cfg.ErrorRateThreshold <= 0 || cfg.ErrorRateThreshold >= 1 {
		return nil, fmt.Errorf("error rate threshold must be within (0, 1), got %g", cfg.ErrorRateThreshold)
	}
	if cfg.ErrorRateMinSamples <= 0 {
		return nil, fmt.Errorf("error rate min samples must be positive, got %d", cfg.ErrorRateMinSamples)
	}
	if cfg.BlockDuration <= 0 {
		return nil, fmt.Errorf("block duration must be positive, got %s", cfg.BlockDuration)
	}

	ranges := make([]*net.IPNet, 0, len(cfg.SuspiciousRanges))
	for _, cidr := range cfg.SuspiciousRanges {
		_, block, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("suspicious range %q: %w", cidr, err)
		}
		ranges = append(ranges, block)
	}

	return &Screener{
		store:     store,
		blocklist: blocklist,
		cfg:       cfg,
		ranges:    ranges,
		logger:    logger,
	}, nil
}

// Screen judges one request. The blocklist stage exits early; the remaining
// stages all run and fold their levels together with max().
func (s *Screener) Screen(ctx context.Context, client *ClientContext) SecurityVerdict {
	if blocked, remaining, err := s.blocklist.IsBlocked(ctx, client.IP); err == nil && blocked {
		return SecurityVerdict{
			Blocked:    true,
			Reason:     "temporarily blocked",
			Level:      Critical,
			RetryAfter: remaining,
		}
	}

	verdict := SecurityVerdict{Level: Low}
	escalate := func(level ThreatLevel, reason string) {
		if level > verdict.Level {
			verdict.Level = level
			verdict.Reason = reason
		}
	}

	escalate(s.reputationLevel(client.IP))

	if ScannableContent(client.Method, client.ContentType) {
		if category, ok := scanContent(client.Body); ok {
			s.logger.Warn("content pattern match", map[string]interface{}{
				"client_ip": client.IP,
				"path":      client.Path,
				"category":  category,
			})
			escalate(Medium, "suspicious request content")
		}
	}

	bruteForce := false
	if strings.HasPrefix(client.Path, s.cfg.AuthPathPrefix) {
		failures, ok, err := s.store.Get(ctx, bruteForceKey(client.IP))
		if err == nil && ok && failures > int64(s.cfg.FailedLoginLimit) {
			bruteForce = true
			escalate(Critical, "brute force detected")
			if blockErr := s.blocklist.Block(ctx, client.IP, s.cfg.BlockDuration); blockErr != nil {
				s.logger.Error("failed to insert blocklist entry", blockErr, map[string]interface{}{
					"client_ip": client.IP,
				})
			} else {
				s.logger.Warn("blocking client after repeated failed logins", map[string]interface{}{
					"client_ip":      client.IP,
					"failed_logins":  failures,
					"block_duration": s.cfg.BlockDuration.String(),
				})
			}
		}
	}

	ratioExceeded := s.errorRatioExceeded(ctx, client.IP)
	if ratioExceeded {
		escalate(High, "suspicious error ratio")
	}

	// Denial policy: brute force and a bad error ratio deny on their own.
	// Everything else denies only once the aggregate level reaches the
	// configured threshold.
	switch {
	case bruteForce:
		verdict.Blocked = true
		verdict.Reason = "brute force detected"
		verdict.RetryAfter = s.cfg.BlockDuration
	case ratioExceeded:
		verdict.Blocked = true
		verdict.Reason = "suspicious error ratio"
		verdict.RetryAfter = s.cfg.DenyRetryAfter
	case verdict.Level >= s.cfg.BlockThreshold:
		verdict.Blocked = true
		verdict.RetryAfter = s.cfg.DenyRetryAfter
	}

	return verdict
}

// reputationLevel classifies the source address. Private, loopback and
// link-local addresses are never suspicious. Addresses that fail to parse
// are: this is the one fail-closed check in the pipeline.
func (s *Screener) reputationLevel(ip string) (ThreatLevel, string) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Medium, "unparsable source address"
	}
	if parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast() {
		return Low, ""
	}
	for _, block := range s.ranges {
		if block.Contains(parsed) {
			return High, "suspicious source address"
		}
	}
	return Low, ""
}

func (s *Screener) errorRatioExceeded(ctx context.Context, ip string) bool {
	total, ok, err := s.store.Get(ctx, responseTotalKey(ip))
	if err != nil || !ok || total < int64(s.cfg.ErrorRateMinSamples) {
		return false
	}
	errors, ok, err := s.store.Get(ctx, responseErrorKey(ip))
	if err != nil || !ok {
		return false
	}
	return float64(errors)/float64(total) > s.cfg.ErrorRateThreshold
}
