package admission

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PathRule is one row of the rate-limit table: a path prefix plus the tier
// configs that apply under it. Nil tier pointers fall through to the
// registry defaults. Rules never change after the registry is built.
type PathRule struct {
	Prefix   string
	Bucket   string // counter bucket label; defaults to Prefix
	Resource string // resource kind tag, e.g. "analysis"; empty disables the resource tier

	IP             *RateLimitConfig // per-IP override scoped to this prefix
	User           *RateLimitConfig // per-user override scoped to this prefix
	Endpoint       *RateLimitConfig
	ResourceLimits *RateLimitConfig
}

// Registry resolves a request to the ordered set of rate-limit tiers that
// apply to it. Global and per-IP always apply; per-user applies only to
// authenticated requests; endpoint and resource tiers apply where a path
// rule binds them. Resolution is longest matching prefix. The table is
// immutable once built.
type Registry struct {
	defaults map[RateLimitType]RateLimitConfig
	rules    []PathRule // sorted by prefix length, longest first
}

// NewRegistry validates the defaults and rules and builds a registry.
// Defaults must cover Global, PerIP and PerUser. Validation is fail-fast:
// a bad table is a startup error, never a silent fallback.
func NewRegistry(defaults map[RateLimitType]RateLimitConfig, rules []PathRule) (*Registry, error) {
	for _, required := range []RateLimitType{Global, PerIP, PerUser} {
		cfg, ok := defaults[required]
		if !ok {
			return nil, fmt.Errorf("missing default config for %s tier", required)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("default config for %s tier: %w", required, err)
		}
	}

	seen := make(map[string]bool, len(rules))
	sorted := make([]PathRule, len(rules))
	copy(sorted, rules)
	for i := range sorted {
		rule := &sorted[i]
		if rule.Prefix == "" || !strings.HasPrefix(rule.Prefix, "/") {
			return nil, fmt.Errorf("path rule prefix %q must start with /", rule.Prefix)
		}
		if seen[rule.Prefix] {
			return nil, fmt.Errorf("duplicate path rule for prefix %q", rule.Prefix)
		}
		seen[rule.Prefix] = true
		if rule.Bucket == "" {
			rule.Bucket = rule.Prefix
		}
		if (rule.Resource == "") != (rule.ResourceLimits == nil) {
			return nil, fmt.Errorf("path rule %q must set resource and resource limits together", rule.Prefix)
		}
		for name, cfg := range map[string]*RateLimitConfig{
			"ip": rule.IP, "user": rule.User, "endpoint": rule.Endpoint, "resource": rule.ResourceLimits,
		} {
			if cfg == nil {
				continue
			}
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("path rule %q, %s tier: %w", rule.Prefix, name, err)
			}
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	return &Registry{defaults: defaults, rules: sorted}, nil
}

// Resolve returns every tier applicable to the request. The per-IP and
// per-user tiers use the matched rule's scoped config when one is bound,
// otherwise the cross-path default with the shared "*" bucket.
func (r *Registry) Resolve(client *ClientContext) []Tier {
	rule := r.match(client.Path)

	tiers := make([]Tier, 0, 5)
	tiers = append(tiers, Tier{Type: Global, Identifier: "all", Bucket: "*", Config: r.defaults[Global]})

	ipTier := Tier{Type: PerIP, Identifier: client.IP, Bucket: "*", Config: r.defaults[PerIP]}
	if rule != nil && rule.IP != nil {
		ipTier.Bucket = rule.Bucket
		ipTier.Config = *rule.IP
	}
	tiers = append(tiers, ipTier)

	if rule != nil && rule.Endpoint != nil {
		tiers = append(tiers, Tier{Type: PerEndpoint, Identifier: client.IP, Bucket: rule.Bucket, Config: *rule.Endpoint})
	}
	if rule != nil && rule.Resource != "" {
		tiers = append(tiers, Tier{Type: PerResource, Identifier: rule.Resource, Bucket: rule.Bucket, Config: *rule.ResourceLimits})
	}

	if client.Authenticated() {
		userTier := Tier{Type: PerUser, Identifier: client.UserID, Bucket: "*", Config: r.defaults[PerUser]}
		if rule != nil && rule.User != nil {
			userTier.Bucket = rule.Bucket
			userTier.Config = *rule.User
		}
		tiers = append(tiers, userTier)
	}

	return tiers
}

func (r *Registry) match(path string) *PathRule {
	for i := range r.rules {
		if strings.HasPrefix(path, r.rules[i].Prefix) {
			return &r.rules[i]
		}
	}
	return nil
}

// Defaults returns a copy of the tier defaults, for read-only reporting.
func (r *Registry) Defaults() map[RateLimitType]RateLimitConfig {
	out := make(map[RateLimitType]RateLimitConfig, len(r.defaults))
	for t, cfg := range r.defaults {
		out[t] = cfg
	}
	return out
}

// Rules returns a copy of the path rules, for read-only reporting.
func (r *Registry) Rules() []PathRule {
	out := make([]PathRule, len(r.rules))
	copy(out, r.rules)
	return out
}

// DefaultRegistry builds the built-in table for the palmistry API. The
// login path carries a strict per-IP limit; analyses and conversations
// carry shared resource capacity ceilings on top of the endpoint limits.
func DefaultRegistry() *Registry {
	defaults := map[RateLimitType]RateLimitConfig{
		Global:  {Sustained: 300, Window: time.Minute, BurstMultiplier: 2.0, BlockDuration: 15 * time.Minute},
		PerIP:   {Sustained: 60, Window: time.Minute, BurstMultiplier: 2.0, BlockDuration: 15 * time.Minute},
		PerUser: {Sustained: 120, Window: time.Minute, BurstMultiplier: 2.0, BlockDuration: 15 * time.Minute},
	}
	rules := []PathRule{
		{
			Prefix: "/api/v1/auth/login",
			IP:     &RateLimitConfig{Sustained: 5, Window: time.Minute, BurstMultiplier: 2.0, BlockDuration: 15 * time.Minute},
		},
		{
			Prefix:         "/api/v1/auth",
			Endpoint:       &RateLimitConfig{Sustained: 30, Window: time.Minute, BurstMultiplier: 2.0, BlockDuration: 15 * time.Minute},
			Resource:       "auth",
			ResourceLimits: &RateLimitConfig{Sustained: 600, Window: time.Minute, BurstMultiplier: 2.0, BlockDuration: 15 * time.Minute},
		},
		{
			Prefix:         "/api/v1/analyses",
			Endpoint:       &RateLimitConfig{Sustained: 20, Window: time.Minute, BurstMultiplier: 1.5, BlockDuration: 15 * time.Minute},
			Resource:       "analysis",
			ResourceLimits: &RateLimitConfig{Sustained: 200, Window: 5 * time.Minute, BurstMultiplier: 1.5, BlockDuration: 15 * time.Minute},
		},
		{
			Prefix:         "/api/v1/conversations",
			Endpoint:       &RateLimitConfig{Sustained: 40, Window: time.Minute, BurstMultiplier: 2.0, BlockDuration: 15 * time.Minute},
			Resource:       "conversation",
			ResourceLimits: &RateLimitConfig{Sustained: 400, Window: time.Minute, BurstMultiplier: 2.0, BlockDuration: 15 * time.Minute},
		},
	}

	reg, err := NewRegistry(defaults, rules)
	if err != nil {
		// The built-in table is fixed at compile time; failing to build it
		// is a programming error.
		panic(err)
	}
	return reg
}

/* YAML policy file schema:

defaults:
  global: {sustained: 300, window_seconds: 60, burst_multiplier: 2.0, block_duration_seconds: 900}
  ip:     {sustained: 60,  window_seconds: 60, burst_multiplier: 2.0, block_duration_seconds: 900}
  user:   {sustained: 120, window_seconds: 60, burst_multiplier: 2.0, block_duration_seconds: 900}
paths:
  - prefix: /api/v1/auth/login
    ip: {sustained: 5, window_seconds: 60, burst_multiplier: 2.0, block_duration_seconds: 900}
  - prefix: /api/v1/analyses
    endpoint: {sustained: 20, window_seconds: 60, burst_multiplier: 1.5, block_duration_seconds: 900}
    resource: analysis
    resource_limits: {sustained: 200, window_seconds: 300, burst_multiplier: 1.5, block_duration_seconds: 900}
*/

type policyTier struct {
	Sustained            int     `yaml:"sustained"`
	WindowSeconds        int     `yaml:"window_seconds"`
	BurstMultiplier      float64 `yaml:"burst_multiplier"`
	BlockDurationSeconds int     `yaml:"block_duration_seconds"`
}

func (p policyTier) config() RateLimitConfig {
	return RateLimitConfig{
		Sustained:       p.Sustained,
		Window:          time.Duration(p.WindowSeconds) * time.Second,
		BurstMultiplier: p.BurstMultiplier,
		BlockDuration:   time.Duration(p.BlockDurationSeconds) * time.Second,
	}
}

type policyPath struct {
	Prefix         string      `yaml:"prefix"`
	Bucket         string      `yaml:"bucket"`
	Resource       string      `yaml:"resource"`
	IP             *policyTier `yaml:"ip"`
	User           *policyTier `yaml:"user"`
	Endpoint       *policyTier `yaml:"endpoint"`
	ResourceLimits *policyTier `yaml:"resource_limits"`
}

type policyFile struct {
	Defaults map[string]policyTier `yaml:"defaults"`
	Paths    []policyPath          `yaml:"paths"`
}

// LoadPolicy reads a YAML policy file and builds the registry from it.
func LoadPolicy(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	defaults := make(map[RateLimitType]RateLimitConfig, len(file.Defaults))
	for label, tier := range file.Defaults {
		t, err := ParseRateLimitType(label)
		if err != nil {
			return nil, fmt.Errorf("policy defaults: %w", err)
		}
		defaults[t] = tier.config()
	}

	rules := make([]PathRule, 0, len(file.Paths))
	for _, p := range file.Paths {
		rule := PathRule{Prefix: p.Prefix, Bucket: p.Bucket, Resource: p.Resource}
		if p.IP != nil {
			cfg := p.IP.config()
			rule.IP = &cfg
		}
		if p.User != nil {
			cfg := p.User.config()
			rule.User = &cfg
		}
		if p.Endpoint != nil {
			cfg := p.Endpoint.config()
			rule.Endpoint = &cfg
		}
		if p.ResourceLimits != nil {
			cfg := p.ResourceLimits.config()
			rule.ResourceLimits = &cfg
		}
		rules = append(rules, rule)
	}

	return NewRegistry(defaults, rules)
}
