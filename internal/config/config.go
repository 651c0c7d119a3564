package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the API process needs at startup. Values come from
// the environment; only the auth secret is mandatory.
type Config struct {
	Addr      string
	PGDSN     string
	RedisAddr string

	AuthSecret string
	Issuer     string
	TokenTTL   time.Duration

	IdempotencyTTL    time.Duration
	ReconcileInterval time.Duration

	RateBurst  int
	RatePerSec int

	HashWorkers int
}

const (
	envAddr              = "REVIEWDESK_ADDR"
	envPGDSN             = "REVIEWDESK_PG_DSN"
	envRedisAddr         = "REVIEWDESK_REDIS_ADDR"
	envAuthSecret        = "REVIEWDESK_AUTH_SECRET"
	envIssuer            = "REVIEWDESK_ISSUER"
	envTokenTTL          = "REVIEWDESK_TOKEN_TTL"
	envIdempotencyTTL    = "REVIEWDESK_IDEMPOTENCY_TTL"
	envReconcileInterval = "REVIEWDESK_RECONCILE_INTERVAL"
	envRateBurst         = "REVIEWDESK_RATE_BURST"
	envRatePerSec        = "REVIEWDESK_RATE_PER_SEC"
	envHashWorkers       = "REVIEWDESK_HASH_WORKERS"
)

// Load reads configuration from the environment and applies defaults.
func Load() (Config, error) {
	cfg := Config{
		Addr:              getenv(envAddr, ":8080"),
		PGDSN:             strings.TrimSpace(os.Getenv(envPGDSN)),
		RedisAddr:         getenv(envRedisAddr, "localhost:6379"),
		AuthSecret:        strings.TrimSpace(os.Getenv(envAuthSecret)),
		Issuer:            getenv(envIssuer, "reviewdesk"),
		TokenTTL:          15 * time.Minute,
		IdempotencyTTL:    5 * time.Minute,
		ReconcileInterval: 10 * time.Minute,
		RateBurst:         20,
		RatePerSec:        10,
		HashWorkers:       4,
	}

	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("%s is required", envAuthSecret)
	}

	var err error
	if cfg.TokenTTL, err = durationEnv(envTokenTTL, cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(envIdempotencyTTL, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileInterval, err = durationEnv(envReconcileInterval, cfg.ReconcileInterval); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = intEnv(envRateBurst, cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = intEnv(envRatePerSec, cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	if cfg.HashWorkers, err = intEnv(envHashWorkers, cfg.HashWorkers); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return v, nil
}
