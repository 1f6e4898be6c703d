// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Anaïs Email Intake Service
//
// Entry point for the intake service. It:
//  1. Loads configuration, failing fast on missing secrets
//  2. Connects to PostgreSQL (audit store) and Redis (dedup guard + events)
//  3. Builds the extraction, registry, and task-store clients
//  4. Wires the intake pipeline
//  5. Serves the webhook, health, index, and metrics endpoints
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/anaislegal/intake/internal/auditstore"
	"github.com/anaislegal/intake/internal/caseboard"
	"github.com/anaislegal/intake/internal/config"
	"github.com/anaislegal/intake/internal/dedup"
	"github.com/anaislegal/intake/internal/extract"
	"github.com/anaislegal/intake/internal/fingerprint"
	"github.com/anaislegal/intake/internal/matter"
	"github.com/anaislegal/intake/internal/pipeline"
	"github.com/anaislegal/intake/internal/queue"
	"github.com/anaislegal/intake/internal/tasks"
	"github.com/anaislegal/intake/internal/webhook"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting email intake service", "service", webhook.ServiceName, "version", webhook.Version)

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"dedup_window", cfg.DedupWindow,
		"extraction_model", cfg.Extraction.Model,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// --- Audit Store ---
	audit, err := auditstore.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise audit store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	events := queue.NewPublisher(rdb, cfg.ProcessedQueue)
	if err := events.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Dedup Guard ---
	guard := dedup.NewFilter(rdb, cfg.DedupWindow)

	// --- Capability Clients ---
	board := caseboard.NewClient(ctx, cfg.Caseboard)
	extractor := extract.New(extract.NewAnthropicClient(cfg.Extraction), cfg.Extraction.MaxAttempts)

	// --- Pipeline ---
	pipe := pipeline.New(pipeline.Config{
		Fingerprints: fingerprint.New(cfg.DedupWindow),
		Guard:        guard,
		Audit:        audit,
		Extractor:    extractor,
		Matcher:      matter.NewMatcher(board),
		Publisher:    tasks.NewPublisher(board),
		Events:       events,
		StoreTimeout: cfg.StoreTimeout,
	})

	// --- HTTP Server ---
	handler := webhook.NewHandler(pipe, map[string]webhook.Pinger{
		"postgres": audit,
		"redis":    events,
	})

	server := &http.Server{
		Handler:      webhook.NewMux(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // extraction dominates webhook latency
	}

	ready, err := webhook.Serve(ctx, cfg.Port, server)
	if err != nil {
		slog.Error("failed to start intake server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	cancel()
	rdb.Close()
	pgPool.Close()

	slog.Info("intake service stopped")
}
