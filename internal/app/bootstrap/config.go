package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the settlement service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	JWTSecret     string
	CookieSecret  string
	InternalToken string

	CookieWindowDays int
	DefaultCurrency  string

	StripeAPIKey     string
	StripeRefreshURL string
	StripeReturnURL  string

	SplitPayBaseURL   string
	SplitPayAPIKey    string
	SplitPayReturnURL string

	OrdersBaseURL      string
	OrdersServiceToken string

	RailCallTimeout    time.Duration
	RailStatusCacheTTL time.Duration
	IdempotencyTTL     time.Duration
	EventDedupTTL      time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Attribution struct {
		CookieWindowDays int    `yaml:"cookie_window_days"`
		DefaultCurrency  string `yaml:"default_currency"`
	} `yaml:"attribution"`
	Rails struct {
		Stripe struct {
			RefreshURL string `yaml:"refresh_url"`
			ReturnURL  string `yaml:"return_url"`
		} `yaml:"stripe"`
		SplitPay struct {
			BaseURL   string `yaml:"base_url"`
			ReturnURL string `yaml:"return_url"`
		} `yaml:"split_pay"`
	} `yaml:"rails"`
	Clients struct {
		OrdersBaseURL string `yaml:"orders_base_url"`
	} `yaml:"clients"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "Affiliate-Settlement-Service",
		HTTPPort:           8080,
		GRPCPort:           9090,
		CookieWindowDays:   30,
		DefaultCurrency:    "USD",
		RailCallTimeout:    15 * time.Second,
		RailStatusCacheTTL: 5 * time.Minute,
		IdempotencyTTL:     7 * 24 * time.Hour,
		EventDedupTTL:      7 * 24 * time.Hour,
		MaxDBConns:         20,
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    100,
		OutboxClaimTTL:     30 * time.Second,
		OutboxMaxRetries:   5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Attribution.CookieWindowDays > 0 {
			cfg.CookieWindowDays = f.Attribution.CookieWindowDays
		}
		if f.Attribution.DefaultCurrency != "" {
			cfg.DefaultCurrency = f.Attribution.DefaultCurrency
		}
		if f.Rails.Stripe.RefreshURL != "" {
			cfg.StripeRefreshURL = f.Rails.Stripe.RefreshURL
		}
		if f.Rails.Stripe.ReturnURL != "" {
			cfg.StripeReturnURL = f.Rails.Stripe.ReturnURL
		}
		if f.Rails.SplitPay.BaseURL != "" {
			cfg.SplitPayBaseURL = f.Rails.SplitPay.BaseURL
		}
		if f.Rails.SplitPay.ReturnURL != "" {
			cfg.SplitPayReturnURL = f.Rails.SplitPay.ReturnURL
		}
		if f.Clients.OrdersBaseURL != "" {
			cfg.OrdersBaseURL = f.Clients.OrdersBaseURL
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.CookieSecret = envOrDefault("ATTRIBUTION_COOKIE_SECRET", cfg.CookieSecret)
	cfg.InternalToken = envOrDefault("INTERNAL_SERVICE_TOKEN", cfg.InternalToken)
	cfg.StripeAPIKey = envOrDefault("STRIPE_API_KEY", cfg.StripeAPIKey)
	cfg.StripeRefreshURL = envOrDefault("STRIPE_REFRESH_URL", cfg.StripeRefreshURL)
	cfg.StripeReturnURL = envOrDefault("STRIPE_RETURN_URL", cfg.StripeReturnURL)
	cfg.SplitPayBaseURL = envOrDefault("SPLITPAY_BASE_URL", cfg.SplitPayBaseURL)
	cfg.SplitPayAPIKey = envOrDefault("SPLITPAY_API_KEY", cfg.SplitPayAPIKey)
	cfg.SplitPayReturnURL = envOrDefault("SPLITPAY_RETURN_URL", cfg.SplitPayReturnURL)
	cfg.OrdersBaseURL = envOrDefault("ORDERS_BASE_URL", cfg.OrdersBaseURL)
	cfg.OrdersServiceToken = envOrDefault("ORDERS_SERVICE_TOKEN", cfg.OrdersServiceToken)
	cfg.DefaultCurrency = envOrDefault("DEFAULT_CURRENCY", cfg.DefaultCurrency)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.CookieWindowDays = envInt("COOKIE_WINDOW_DAYS", cfg.CookieWindowDays)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.RailCallTimeout = time.Duration(envInt("RAIL_CALL_TIMEOUT_SECONDS", int(cfg.RailCallTimeout.Seconds()))) * time.Second
	cfg.RailStatusCacheTTL = time.Duration(envInt("RAIL_STATUS_CACHE_TTL_SECONDS", int(cfg.RailStatusCacheTTL.Seconds()))) * time.Second
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing JWT_SECRET")
	}
	if cfg.CookieSecret == "" {
		return Config{}, fmt.Errorf("missing ATTRIBUTION_COOKIE_SECRET")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
