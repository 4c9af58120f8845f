package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core runtime configuration for a service instance.
// It supports environment-based initialization, with sensible defaults.
type Config struct {
	ServiceName string // e.g. "swap-aggregator"
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.
	Port        int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Outbound aggregator call budget; each provider HTTP call is bounded
	// by this timeout individually.
	QuoteRequestTimeout time.Duration

	// Upstream API credentials
	ZeroXAPIKey   string
	OneInchAPIKey string

	// Relayer signing key. Resolved from AWS Secrets Manager when
	// RelayerKeySecret is set, otherwise read directly from
	// RELAYER_PRIVATE_KEY (dev only).
	RelayerKeySecret string
	RelayerKeyHex    string
	AWSRegion        string
	CacheTTL         time.Duration // TTL for secret cache
	CleanupFreq      time.Duration // frequency for cache cleanup goroutine

	// Gas price cache (optional). Empty RedisAddr disables caching.
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	GasPriceTTL time.Duration

	// Eventing (optional). Empty NATSURL disables publishing.
	NATSURL string

	// Per-chain RPC URL overrides, parsed from RPC_URL_OVERRIDES
	// ("1=https://...,137=https://...").
	RPCOverrides map[int64]string
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:         GetEnv("SERVICE_NAME", "swap-aggregator"),
		Env:                 GetEnv("ENV", "dev"),
		LogLevel:            GetEnv("LOG_LEVEL", "info"),
		Port:                GetEnvInt("PORT", 9040),
		HTTPReadTimeout:     GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:    GetEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:     GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:       GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),
		QuoteRequestTimeout: GetEnvDuration("QUOTE_REQUEST_TIMEOUT", 5*time.Second),
		ZeroXAPIKey:         GetEnv("ZEROX_API_KEY", ""),
		OneInchAPIKey:       GetEnv("ONEINCH_API_KEY", ""),
		RelayerKeySecret:    GetEnv("RELAYER_KEY_SECRET", ""),
		RelayerKeyHex:       GetEnv("RELAYER_PRIVATE_KEY", ""),
		AWSRegion:           GetEnv("AWS_REGION", "us-east-2"),
		CacheTTL:            GetEnvDuration("CACHE_TTL", 24*time.Hour),
		CleanupFreq:         GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),
		RedisAddr:           GetEnv("REDIS_ADDR", ""),
		RedisDB:             GetEnvInt("REDIS_DB", 0),
		RedisPass:           GetEnv("REDIS_PASS", ""),
		GasPriceTTL:         GetEnvDuration("GAS_PRICE_TTL", 3*time.Second),
		NATSURL:             GetEnv("NATS_URL", ""),
		RPCOverrides:        parseRPCOverrides(GetEnv("RPC_URL_OVERRIDES", "")),
	}

	return cfg
}

// parseRPCOverrides parses "chainId=url" pairs separated by commas.
// Malformed pairs are skipped.
func parseRPCOverrides(raw string) map[int64]string {
	out := make(map[int64]string)
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil || v == "" {
			continue
		}
		out[id] = v
	}
	return out
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
