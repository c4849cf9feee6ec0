package config

import (
	"os"
	"strconv"
	"time"
)

// ScopeLimit holds the limit and window length for one rate limit scope.
type ScopeLimit struct {
	Limit  int
	Window time.Duration
}

// Config captures process level configuration. Values come from the
// environment so main stays lean; everything has a development default.
type Config struct {
	Addr        string
	Environment string

	DatabaseURL string
	RedisURL    string

	// Slack credentials. The signing secret authenticates slash command
	// requests; client ID and secret complete the OAuth exchange; webhook
	// secrets are per-tenant and live in the store.
	SlackSigningSecret string
	SlackClientID      string
	SlackClientSecret  string

	// Rate limit scopes: commands per (team, user), OAuth callbacks per
	// source IP, webhook deliveries per team.
	CommandLimit ScopeLimit
	OAuthLimit   ScopeLimit
	WebhookLimit ScopeLimit

	// Cache TTLs. Installations change rarely, channel defaults more often.
	InstallationTTL   time.Duration
	ChannelDefaultTTL time.Duration

	// Ledger retention for processed events.
	LedgerRetention       time.Duration
	LedgerCleanupInterval time.Duration

	// Bound on every outbound call (store, cache, chat API) so a hung
	// dependency fails before the request timeout does.
	DependencyTimeout time.Duration
	DeliveryTimeout   time.Duration
	RequestTimeout    time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        envString("STOCKALERT_ADDR", ":8080"),
		Environment: envString("STOCKALERT_ENV", "development"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
		SlackClientID:      os.Getenv("SLACK_CLIENT_ID"),
		SlackClientSecret:  os.Getenv("SLACK_CLIENT_SECRET"),

		CommandLimit: ScopeLimit{
			Limit:  envInt("RATE_LIMIT_COMMAND", 30),
			Window: envDuration("RATE_LIMIT_COMMAND_WINDOW", time.Minute),
		},
		OAuthLimit: ScopeLimit{
			Limit:  envInt("RATE_LIMIT_OAUTH", 10),
			Window: envDuration("RATE_LIMIT_OAUTH_WINDOW", 10*time.Minute),
		},
		WebhookLimit: ScopeLimit{
			Limit:  envInt("RATE_LIMIT_WEBHOOK", 60),
			Window: envDuration("RATE_LIMIT_WEBHOOK_WINDOW", time.Minute),
		},

		InstallationTTL:   envDuration("CACHE_INSTALLATION_TTL", time.Hour),
		ChannelDefaultTTL: envDuration("CACHE_CHANNEL_TTL", 10*time.Minute),

		LedgerRetention:       envDuration("LEDGER_RETENTION", 30*24*time.Hour),
		LedgerCleanupInterval: envDuration("LEDGER_CLEANUP_INTERVAL", time.Hour),

		DependencyTimeout: envDuration("DEPENDENCY_TIMEOUT", 5*time.Second),
		DeliveryTimeout:   envDuration("DELIVERY_TIMEOUT", 10*time.Second),
		RequestTimeout:    envDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// RedisConfig holds connection tuning for the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisFromEnv builds Redis connection settings from the environment.
func RedisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     envInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
