// scoutlink-engagement-service
//
// Owns the engagement-acceptance workflow of the marketplace:
//   - acceptOffer(engagementId)  — SENT → ACCEPTED, room provisioning, notify
//   - declineOffer(engagementId) — SENT → DECLINED
//   - applyToJob(jobId)          — application creation + the same workflow tail
//   - myEngagements query        — list engagements
//
// Conversation rooms are provisioned idempotently: repeated or concurrent
// accepts converge on one room per (company, candidate) pair.
// Publishes EVENT_NOTIFY to Redis for the mailer; a cron sweeper re-publishes
// outbox rows whose first publish failed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scoutlink/engagement-service/internal/config"
	"scoutlink/engagement-service/internal/db"
	"scoutlink/engagement-service/internal/engagement"
	"scoutlink/engagement-service/internal/notify"
	"scoutlink/engagement-service/internal/postgres"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[engagement-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[engagement-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[engagement-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[engagement-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[engagement-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[engagement-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[engagement-service] Redis connected ✓")

	// ── Wiring ───────────────────────────────────────────────────────────────
	store := postgres.NewStore(pool)
	publisher := notify.NewRedisPublisher(rdb)
	dispatcher := notify.NewOutboxDispatcher(store, publisher)
	svc := engagement.NewService(store, dispatcher, cfg.MonitoringUserID)

	// ── Outbox sweeper ───────────────────────────────────────────────────────
	sweeper := notify.NewSweeper(store, publisher, cfg.SweepIntervalMinutes)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("[engagement-service] Sweeper: %v", err)
	}
	defer sweeper.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := engagement.NewHandler(svc)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[engagement-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[engagement-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[engagement-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[engagement-service] Shutdown error: %v", err)
	}
	log.Println("[engagement-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "engagement-service",
		"version": version,
	})
}
