package admission

import (
	"context"
	"time"
)

// Controller makes the final admit/deny decision for a request by combining
// the screener's verdict with counter reads for every applicable tier.
// Store failures never deny: the decision is made from whatever evidence
// survived and is flagged Degraded.
type Controller struct {
	store       CounterStore
	registry    *Registry
	screener    *Screener
	burstWindow time.Duration
}

// NewController builds a controller. burstWindow is the short fixed
// sub-window the burst counters live in; zero selects 10 seconds.
func NewController(store CounterStore, registry *Registry, screener *Screener, burstWindow time.Duration) *Controller {
	if burstWindow <= 0 {
		burstWindow = 10 * time.Second
	}
	return &Controller{
		store:       store,
		registry:    registry,
		screener:    screener,
		burstWindow: burstWindow,
	}
}

// tierState is one tier's counter snapshot taken during admission.
type tierState struct {
	tier       Tier
	count      int64 // sustained-window count
	exceeded   bool
	retryAfter time.Duration
}

// Admit decides one request. Counters are read first and incremented only
// when the request is admitted, with one exception: security denials still
// increment every applicable counter, so repeated blocked attempts stay
// visible in later windows.
func (c *Controller) Admit(ctx context.Context, client *ClientContext) AdmissionDecision {
	now := client.ObservedAt
	if now.IsZero() {
		now = time.Now()
	}

	verdict := c.screener.Screen(ctx, client)
	tiers := c.registry.Resolve(client)

	if verdict.Blocked {
		c.incrementAll(ctx, tiers)
		return AdmissionDecision{
			Admitted:   false,
			LimitType:  Security,
			RetryAfter: verdict.RetryAfter,
			ResetAt:    now.Add(verdict.RetryAfter),
			Reason:     verdict.Reason,
		}
	}

	degraded := false
	states := make([]tierState, 0, len(tiers))
	for _, tier := range tiers {
		state := tierState{tier: tier}

		count, ok, err := c.store.Get(ctx, tier.Key())
		if err != nil {
			degraded = true
			states = append(states, state)
			continue
		}
		if ok {
			state.count = count
		}
		if ok && count >= int64(tier.Config.Sustained) {
			state.exceeded = true
			state.retryAfter = tier.Config.Window
			states = append(states, state)
			continue
		}

		burst, ok, err := c.store.Get(ctx, tier.BurstKey())
		if err != nil {
			degraded = true
		} else if ok && burst >= int64(tier.Config.BurstLimit()) {
			state.exceeded = true
			state.retryAfter = c.burstWindow
		}
		states = append(states, state)
	}

	if denied := pickDenied(states); denied != nil {
		return AdmissionDecision{
			Admitted:   false,
			LimitType:  denied.tier.Type,
			Limit:      denied.tier.Config.Sustained,
			Remaining:  remainingOf(denied),
			ResetAt:    now.Add(denied.retryAfter),
			RetryAfter: denied.retryAfter,
			Reason:     "rate limit exceeded",
			Degraded:   degraded,
		}
	}

	// Admitted: count the request in every applicable window.
	for i := range states {
		newCount, err := c.store.Increment(ctx, states[i].tier.Key(), states[i].tier.Config.Window)
		if err != nil {
			degraded = true
		} else {
			states[i].count = newCount
		}
		if _, err := c.store.Increment(ctx, states[i].tier.BurstKey(), c.burstWindow); err != nil {
			degraded = true
		}
	}

	reported := pickReported(states)
	return AdmissionDecision{
		Admitted:  true,
		LimitType: reported.tier.Type,
		Limit:     reported.tier.Config.Sustained,
		Remaining: remainingOf(reported),
		ResetAt:   now.Add(reported.tier.Config.Window),
		Degraded:  degraded,
	}
}

// BurstWindow reports the burst sub-window length.
func (c *Controller) BurstWindow() time.Duration {
	return c.burstWindow
}

func (c *Controller) incrementAll(ctx context.Context, tiers []Tier) {
	for _, tier := range tiers {
		_, _ = c.store.Increment(ctx, tier.Key(), tier.Config.Window)
		_, _ = c.store.Increment(ctx, tier.BurstKey(), c.burstWindow)
	}
}

// pickDenied selects the exceeded tier with the largest retry-after.
// Exact ties go to the more identity-specific tier.
func pickDenied(states []tierState) *tierState {
	var denied *tierState
	for i := range states {
		s := &states[i]
		if !s.exceeded {
			continue
		}
		if denied == nil || s.retryAfter > denied.retryAfter ||
			(s.retryAfter == denied.retryAfter && s.tier.Type > denied.tier.Type) {
			denied = s
		}
	}
	return denied
}

// pickReported selects the tier closest to exhaustion for header reporting:
// smallest remaining/limit ratio, ties to the more identity-specific tier.
func pickReported(states []tierState) *tierState {
	best := &states[0]
	bestRatio := headroom(best)
	for i := 1; i < len(states); i++ {
		s := &states[i]
		if r := headroom(s); r < bestRatio || (r == bestRatio && s.tier.Type > best.tier.Type) {
			best = s
			bestRatio = r
		}
	}
	return best
}

func headroom(s *tierState) float64 {
	return float64(remainingOf(s)) / float64(s.tier.Config.Sustained)
}

func remainingOf(s *tierState) int {
	remaining := s.tier.Config.Sustained - int(s.count)
	if remaining < 0 {
		return 0
	}
	return remaining
}
