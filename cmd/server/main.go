package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/admission"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/auth"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/config"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/db"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/handlers"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/logging"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/metrics"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/middleware"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	logger.Info("Starting palmistry API server", nil)

	if cfg.Auth.JWTSecret == "" {
		logger.Error("JWT_SECRET is required", fmt.Errorf("JWT_SECRET environment variable not set"), nil)
		os.Exit(1)
	}

	// Connect to database
	database, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		logger.Error("Failed to open database", err, nil)
		os.Exit(1)
	}
	defer database.Close()

	// Configure connection pool
	database.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	database.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := database.PingContext(ctx); err != nil {
		logger.Error("Failed to ping database", err, nil)
		os.Exit(1)
	}

	logger.Info("Connected to database", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
		"name": cfg.Database.Name,
	})

	queries := db.NewQueries(database)
	if err := queries.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to ensure database schema", err, nil)
		os.Exit(1)
	}

	// Pick the counter store. Redis shares windows across replicas; the
	// in-process store is for single-node and development setups.
	var counters admission.CounterStore
	var blocklist admission.TemporaryBlocklist
	var memCounters *store.MemoryCounterStore
	var memBlocklist *admission.MemoryBlocklist

	if cfg.Redis.Addr != "" {
		client := store.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("Failed to ping Redis", err, nil)
			os.Exit(1)
		}
		defer client.Close()

		counters = store.NewRedisCounterStore(client, "")
		blocklist = store.NewRedisBlocklist(client, "")
		logger.Info("Connected to Redis", map[string]interface{}{
			"addr": cfg.Redis.Addr,
		})
	} else {
		memCounters = store.NewMemoryCounterStore()
		memBlocklist = admission.NewMemoryBlocklist()
		counters = memCounters
		blocklist = memBlocklist
		logger.Info("Using in-process counter store", nil)
	}

	// Build the rate limit table
	var registry *admission.Registry
	if cfg.Admission.PolicyFile != "" {
		registry, err = admission.LoadPolicy(cfg.Admission.PolicyFile)
		if err != nil {
			logger.Error("Failed to load admission policy", err, map[string]interface{}{
				"file": cfg.Admission.PolicyFile,
			})
			os.Exit(1)
		}
		logger.Info("Loaded admission policy", map[string]interface{}{
			"file":  cfg.Admission.PolicyFile,
			"rules": len(registry.Rules()),
		})
	} else {
		registry = admission.DefaultRegistry()
		logger.Info("Using built-in admission policy", nil)
	}

	// Build the security screener and admission controller
	blockThreshold, err := admission.ParseThreatLevel(cfg.Admission.BlockThreshold)
	if err != nil {
		logger.Error("Invalid ADMISSION_BLOCK_THRESHOLD", err, nil)
		os.Exit(1)
	}

	screenerCfg := admission.ScreenerConfig{
		AuthPathPrefix:      cfg.Admission.AuthPathPrefix,
		FailedLoginLimit:    cfg.Admission.FailedLoginLimit,
		FailedLoginWindow:   cfg.Admission.FailedLoginWindow,
		ErrorRateThreshold:  cfg.Admission.ErrorRateThreshold,
		ErrorRateWindow:     cfg.Admission.ErrorRateWindow,
		ErrorRateMinSamples: cfg.Admission.ErrorRateMinSamples,
		DenyRetryAfter:      cfg.Admission.DenyRetryAfter,
		BlockDuration:       cfg.Admission.BlockDuration,
		BlockThreshold:      blockThreshold,
		SuspiciousRanges:    cfg.Admission.SuspiciousRanges,
	}

	screener, err := admission.NewScreener(counters, blocklist, screenerCfg, logger)
	if err != nil {
		logger.Error("Failed to build security screener", err, nil)
		os.Exit(1)
	}

	controller := admission.NewController(counters, registry, screener, cfg.Admission.BurstWindow)
	tracker := admission.NewTracker(counters, screenerCfg)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("Failed to build token manager", err, nil)
		os.Exit(1)
	}

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(queries, tokens)
	analysisHandlers := handlers.NewAnalysisHandlers()
	admissionHandlers := handlers.NewAdmissionHandlers(registry, logger)
	systemHandlers := handlers.NewSystemHandlers(logger)

	// Setup router
	router := mux.NewRouter()

	// Apply middleware (order matters): request id and recovery first so
	// every later stage is tagged and panic-safe, logging next so denials
	// are recorded, then admission over everything that is not skipped.
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.AdmissionMiddleware(controller, tracker, tokens, logger, cfg.Admission.SkipPaths))

	// Health check (no auth)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"service":   "palmistry-api",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	// Prometheus exposition (scraped internally; listed in skip paths)
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Admission observability endpoints (no auth, ops dashboard feed)
	admissionRouter := router.PathPrefix("/api/v1/admission").Subrouter()
	admissionRouter.HandleFunc("/stats", admissionHandlers.GetStats).Methods("GET")
	admissionRouter.HandleFunc("/stats/ws", admissionHandlers.StatsWebSocket).Methods("GET")
	admissionRouter.HandleFunc("/policy", admissionHandlers.GetPolicy).Methods("GET")

	// System metrics endpoint (no auth, ops dashboard feed)
	router.HandleFunc("/api/v1/system/metrics", systemHandlers.GetSystemMetrics).Methods("GET")

	// Auth routes (no token required)
	authRouter := router.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandlers.Register).Methods("POST")
	authRouter.HandleFunc("/login", authHandlers.Login).Methods("POST")

	// Palm analysis routes. Uploads stay anonymous so first-time visitors
	// can try a reading before registering; per-IP limits still apply.
	router.HandleFunc("/api/v1/analyses", analysisHandlers.CreateAnalysis).Methods("POST")
	router.HandleFunc("/api/v1/analyses/{id}", analysisHandlers.GetAnalysis).Methods("GET")
	router.HandleFunc("/api/v1/conversations/{id}/messages", analysisHandlers.CreateMessage).Methods("POST")

	// Authenticated routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(auth.RequireAuth(tokens))
	apiRouter.HandleFunc("/auth/me", authHandlers.Me).Methods("GET")

	// Expired block entries and dead counter windows are swept in the
	// background; Redis handles its own TTLs so only the in-process
	// stores need this.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go func() {
		ticker := time.NewTicker(cfg.Admission.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if memBlocklist != nil {
					memBlocklist.UnblockExpired(sweepCtx)
				}
				if memCounters != nil {
					memCounters.Sweep()
				}
			}
		}
	}()

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", map[string]interface{}{
			"address": addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", err, nil)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server", nil)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err, nil)
	}

	logger.Info("Server stopped", nil)
}
