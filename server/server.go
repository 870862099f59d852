// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

// Package server wires the usage, generation, and content subsystems into
// one HTTP service: database pool, settings cache, provider registry,
// reset sweeper, and the mux router behind CORS and JWT auth.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"jobflow/platform/content"
	"jobflow/platform/generate"
	"jobflow/platform/shared/config"
	"jobflow/platform/usage"
)

const shutdownTimeout = 15 * time.Second

// Run starts the JobFlow platform service and blocks until shutdown
func Run() {
	log.Println("Starting JobFlow platform...")

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	usageRepo := usage.NewPostgresRepository(db)
	if err := usageRepo.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize usage schema: %v", err)
	}
	contentRepo := content.NewPostgresRepository(db)
	if err := contentRepo.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize content schema: %v", err)
	}

	cache, err := buildSettingsCache(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	usageService := usage.NewServiceWithOptions(usageRepo, cache, nil)
	contentService := content.NewService(contentRepo, usageService)
	registry := buildProviderRegistry(cfg)

	sweeper := usage.NewSweeper(usageService, cfg.SweepInterval, nil)
	go sweeper.Start(ctx)
	defer sweeper.Stop()

	r := mux.NewRouter()
	usage.NewHandler(usageService).RegisterRoutes(r)
	generate.NewHandler(registry, usageService).RegisterRoutes(r)
	content.NewHandler(contentService).RegisterRoutes(r)

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", healthHandler(usageService, registry)).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	handler := c.Handler(NewAuthMiddleware(cfg.JWTSecret).Handler(r))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // LLM completions are slow
	}

	go func() {
		log.Printf("JobFlow platform listening on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func buildSettingsCache(cfg *config.Config) (usage.SettingsCache, error) {
	if cfg.RedisURL == "" {
		return usage.NewMemorySettingsCache(cfg.SettingsCacheTTL), nil
	}
	return usage.NewRedisSettingsCache(cfg.RedisURL, cfg.SettingsCacheTTL)
}

// buildProviderRegistry registers every provider with a configured key.
// Registration order sets the default: OpenAI first when available.
func buildProviderRegistry(cfg *config.Config) *generate.Registry {
	registry := generate.NewRegistry()

	if cfg.OpenAIAPIKey != "" {
		if p, err := generate.NewOpenAIProvider(generate.OpenAIConfig{APIKey: cfg.OpenAIAPIKey}); err == nil {
			registry.Register(p)
			log.Println("Registered LLM provider: openai")
		}
	}
	if cfg.AnthropicAPIKey != "" {
		if p, err := generate.NewAnthropicProvider(generate.AnthropicConfig{APIKey: cfg.AnthropicAPIKey}); err == nil {
			registry.Register(p)
			log.Println("Registered LLM provider: anthropic")
		}
	}
	if cfg.GeminiAPIKey != "" {
		if p, err := generate.NewGeminiProvider(generate.GeminiConfig{APIKey: cfg.GeminiAPIKey}); err == nil {
			registry.Register(p)
			log.Println("Registered LLM provider: gemini")
		}
	}

	if len(registry.Names()) == 0 {
		log.Println("Warning: no LLM providers configured, /api/v1/generate will reject requests")
	}
	return registry
}

func healthHandler(usageService *usage.Service, registry *generate.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers := make(map[string]bool)
		for _, name := range registry.Names() {
			if p, err := registry.Get(name); err == nil {
				providers[name] = p.IsHealthy()
			}
		}

		dbHealthy := usageService.IsHealthy(r.Context())
		status := "healthy"
		code := http.StatusOK
		if !dbHealthy {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    status,
			"database":  dbHealthy,
			"providers": providers,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
