package admission

import (
	"context"
	"fmt"
	"time"
)

// RateLimitType identifies one tier of rate limiting. The zero value is
// Global. Values are ordered by identity specificity: a higher value is a
// more specific tier and wins retry-after ties.
type RateLimitType int

const (
	Global RateLimitType = iota
	PerIP
	PerEndpoint
	PerResource
	PerUser
	// Security tags decisions produced by the screener rather than a
	// counter tier. It never participates in tier resolution.
	Security
)

var limitTypeNames = map[RateLimitType]string{
	Global:      "global",
	PerIP:       "ip",
	PerEndpoint: "endpoint",
	PerResource: "resource",
	PerUser:     "user",
	Security:    "security",
}

func (t RateLimitType) String() string {
	if name, ok := limitTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseRateLimitType maps a policy-file label to its tier.
func ParseRateLimitType(s string) (RateLimitType, error) {
	for t, name := range limitTypeNames {
		if name == s && t != Security {
			return t, nil
		}
	}
	return Global, fmt.Errorf("unknown rate limit type %q", s)
}

// ThreatLevel is the ordered severity scale used by the security screener.
// Levels only ever escalate: folding in new evidence takes the max.
type ThreatLevel int

const (
	Low ThreatLevel = iota
	Medium
	High
	Critical
)

var threatLevelNames = map[ThreatLevel]string{
	Low:      "low",
	Medium:   "medium",
	High:     "high",
	Critical: "critical",
}

func (l ThreatLevel) String() string {
	if name, ok := threatLevelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseThreatLevel maps a config label to its level.
func ParseThreatLevel(s string) (ThreatLevel, error) {
	for l, name := range threatLevelNames {
		if name == s {
			return l, nil
		}
	}
	return Low, fmt.Errorf("unknown threat level %q", s)
}

func maxLevel(a, b ThreatLevel) ThreatLevel {
	if b > a {
		return b
	}
	return a
}

// RateLimitConfig holds the numeric policy for one tier.
type RateLimitConfig struct {
	Sustained       int           // requests allowed per Window
	Window          time.Duration // sustained window length
	BurstMultiplier float64       // burst allowance relative to Sustained
	BlockDuration   time.Duration // blocklist TTL applied on critical verdicts
}

// BurstLimit returns the burst-window ceiling, floor(Sustained × BurstMultiplier).
func (c RateLimitConfig) BurstLimit() int {
	return int(float64(c.Sustained) * c.BurstMultiplier)
}

// Validate rejects configs that could never admit a request or whose burst
// ceiling would undercut the sustained limit.
func (c RateLimitConfig) Validate() error {
	if c.Sustained <= 0 {
		return fmt.Errorf("sustained must be positive, got %d", c.Sustained)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	if c.BurstMultiplier < 1 {
		return fmt.Errorf("burst multiplier must be >= 1, got %g", c.BurstMultiplier)
	}
	if c.BlockDuration < 0 {
		return fmt.Errorf("block duration must not be negative, got %s", c.BlockDuration)
	}
	return nil
}

// ClientContext is the read-only view of one inbound request that the
// admission pipeline consumes. It is built once by the middleware and
// never mutated afterwards. Body is populated only for non-multipart
// POST/PUT/PATCH requests; the content check never reads uploads.
type ClientContext struct {
	IP          string
	UserID      string // empty when the request is anonymous
	Path        string
	Method      string
	UserAgent   string
	ContentType string
	Body        []byte
	ObservedAt  time.Time
}

// Authenticated reports whether the request carries a verified identity.
func (c *ClientContext) Authenticated() bool {
	return c.UserID != ""
}

// SecurityVerdict is the screener's judgement of one request.
type SecurityVerdict struct {
	Blocked    bool
	Reason     string
	Level      ThreatLevel
	RetryAfter time.Duration
}

// AdmissionDecision is the controller's final answer for one request.
// Limit/Remaining/ResetAt reflect the most restrictive tier and feed the
// X-RateLimit-* response headers. Degraded marks decisions made while the
// counter store was unreachable (fail-open).
type AdmissionDecision struct {
	Admitted   bool
	LimitType  RateLimitType
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Reason     string
	Degraded   bool
}

// BlockedEntry records one temporarily blocked identity.
type BlockedEntry struct {
	Identity  string
	ExpiresAt time.Time
}

// Tier is one applicable rate limit for a request: the counter identity
// plus the config that bounds it.
type Tier struct {
	Type       RateLimitType
	Identifier string // IP, user ID, or resource tag depending on Type
	Bucket     string // path bucket the counters are scoped to
	Config     RateLimitConfig
}

// Key returns the sustained-window counter key, `{type}:{identifier}:{bucket}`.
func (t Tier) Key() string {
	return fmt.Sprintf("%s:%s:%s", t.Type, t.Identifier, t.Bucket)
}

// BurstKey returns the burst-window counter key.
func (t Tier) BurstKey() string {
	return t.Key() + ":burst"
}

// CounterStore is the shared counter backend consumed by the admission
// pipeline. Increment must atomically add one and set the key's TTL to
// window only when the key did not exist before. Get reports the current
// count and whether the key exists.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, bool, error)
}

// TemporaryBlocklist tracks identities under a time-bounded block. IsBlocked
// reports the remaining TTL alongside the verdict so denials can carry it as
// retry_after. Block must not extend an existing unexpired entry.
// UnblockExpired is an optional sweep; lazy expiry on IsBlocked is the
// correctness mechanism.
type TemporaryBlocklist interface {
	IsBlocked(ctx context.Context, identity string) (bool, time.Duration, error)
	Block(ctx context.Context, identity string, duration time.Duration) error
	UnblockExpired(ctx context.Context)
}
