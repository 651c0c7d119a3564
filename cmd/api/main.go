package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"reviewdesk.org/internal/auth"
	"reviewdesk.org/internal/config"
	"reviewdesk.org/internal/httpapi"
	"reviewdesk.org/internal/idempotency"
	"reviewdesk.org/internal/obs"
	"reviewdesk.org/internal/review"
	"reviewdesk.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.PGDSN == "" {
		log.Fatal("REVIEWDESK_PG_DSN is required")
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	marks := idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	svc := review.NewService(store, marks)

	authStore := auth.NewPGStore(store.DB())
	pool := auth.NewHashPool(cfg.HashWorkers, auth.BcryptHasher{})
	defer pool.Close()

	issuer, err := auth.NewIssuer(cfg.AuthSecret,
		auth.WithIssuerName(cfg.Issuer),
		auth.WithTokenTTL(cfg.TokenTTL),
	)
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}

	cache := auth.NewTokenCache()
	reconciler := auth.NewReconciler(cache, authStore,
		auth.WithReconcileInterval(cfg.ReconcileInterval))
	reconciler.Start(context.Background())
	defer reconciler.Stop()

	api := httpapi.New(httpapi.Config{
		ReadyProbe: httpapi.ReadyProbe{
			DB:   store.DB(),
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Version:    version,
		Service:    svc,
		Verifier:   auth.NewVerifier(authStore, pool),
		Issuer:     issuer,
		Tokens:     authStore,
		Cache:      cache,
		RateBurst:  cfg.RateBurst,
		RatePerSec: cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting reviewdesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
