package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"solifund/internal/allocation/models"
)

// Config captures process-level configuration for the allocation binaries.
type Config struct {
	DatabaseURL string
	Redis       RedisConfig

	// OpsAddr, when set, serves /healthz and /metrics for the lifetime of a
	// run.
	OpsAddr string

	// Holidays are ISO dates (YYYY-MM-DD) on which runs no-op.
	Holidays []string

	SMTP SMTPConfig

	MinTransactionAmount    int64
	GlobalMaxDonationAmount int64
	AnnualCeiling           int64
}

// RedisConfig carries connection settings for the run-lock backend. An empty
// URL means Redis is not configured and the in-process lock is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SMTPConfig carries mail relay settings for donor notifications. An empty
// Addr disables mail.
type SMTPConfig struct {
	Addr string
	From string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		OpsAddr:  os.Getenv("OPS_ADDR"),
		Holidays: envList("HOLIDAYS"),
		SMTP: SMTPConfig{
			Addr: os.Getenv("SMTP_ADDR"),
			From: envDefault("SMTP_FROM", "noreply@solifund.example"),
		},
		MinTransactionAmount:    envAmount("MIN_TRANSACTION_AMOUNT", models.DefaultMinTransactionAmount),
		GlobalMaxDonationAmount: envAmount("GLOBAL_MAX_DONATION_AMOUNT", models.DefaultGlobalMaxDonationAmount),
		AnnualCeiling:           envAmount("ANNUAL_CEILING", models.DefaultAnnualCeiling),
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envAmount(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
