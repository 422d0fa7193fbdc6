package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/admission"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/logging"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/metrics"
)

// AdmissionHandlers exposes the admission layer's observability endpoints
type AdmissionHandlers struct {
	registry *admission.Registry
	stats    *metrics.Stats
	logger   *logging.Logger
}

// NewAdmissionHandlers creates new admission handlers
func NewAdmissionHandlers(registry *admission.Registry, logger *logging.Logger) *AdmissionHandlers {
	return &AdmissionHandlers{
		registry: registry,
		stats:    metrics.GetGlobalStats(),
		logger:   logger,
	}
}

// GetStats returns the in-memory admission statistics snapshot
func (h *AdmissionHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.stats.GetStats(), http.StatusOK)
}

// StatsWebSocket streams the statistics snapshot once per second
func (h *AdmissionHandlers) StatsWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", err, nil)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	if err := conn.WriteJSON(h.stats.GetStats()); err != nil {
		return
	}

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteJSON(h.stats.GetStats()); err != nil {
				h.logger.Error("Failed to write stats to WebSocket", err, nil)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

type policyTierView struct {
	Sustained            int     `json:"sustained"`
	WindowSeconds        int     `json:"window_seconds"`
	BurstMultiplier      float64 `json:"burst_multiplier"`
	BurstLimit           int     `json:"burst_limit"`
	BlockDurationSeconds int     `json:"block_duration_seconds"`
}

func tierView(cfg admission.RateLimitConfig) policyTierView {
	return policyTierView{
		Sustained:            cfg.Sustained,
		WindowSeconds:        int(cfg.Window / time.Second),
		BurstMultiplier:      cfg.BurstMultiplier,
		BurstLimit:           cfg.BurstLimit(),
		BlockDurationSeconds: int(cfg.BlockDuration / time.Second),
	}
}

// GetPolicy returns the loaded rate-limit table. The table is immutable at
// runtime; there is intentionally no mutation endpoint.
func (h *AdmissionHandlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	defaults := make(map[string]policyTierView)
	for t, cfg := range h.registry.Defaults() {
		defaults[t.String()] = tierView(cfg)
	}

	rules := h.registry.Rules()
	paths := make([]map[string]interface{}, 0, len(rules))
	for _, rule := range rules {
		row := map[string]interface{}{
			"prefix": rule.Prefix,
			"bucket": rule.Bucket,
		}
		if rule.Resource != "" {
			row["resource"] = rule.Resource
		}
		if rule.IP != nil {
			row["ip"] = tierView(*rule.IP)
		}
		if rule.User != nil {
			row["user"] = tierView(*rule.User)
		}
		if rule.Endpoint != nil {
			row["endpoint"] = tierView(*rule.Endpoint)
		}
		if rule.ResourceLimits != nil {
			row["resource_limits"] = tierView(*rule.ResourceLimits)
		}
		paths = append(paths, row)
	}

	WriteSuccess(w, map[string]interface{}{
		"defaults": defaults,
		"paths":    paths,
	}, http.StatusOK)
}
