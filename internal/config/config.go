package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

const (
	PermissionRead   = "USER_DETAILS_READ"
	PermissionWrite  = "USER_DETAILS_WRITE"
	PermissionDelete = "USER_DETAILS_DELETE"
	PermissionAdmin  = "VEHICLE_API_ADMIN"
)

type Config struct {
	ServerPort string `env:"SERVER_PORT,default=8080"`
	LogLevel   string `env:"LOG_LEVEL,default=info"`

	// empty means the in-memory store
	DatabaseURL string `env:"DATABASE_URL"`

	// empty disables redis discovery, rate limiting and the circuit breaker
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	AuthServiceName  string        `env:"AUTH_SERVICE_NAME,default=workshop-users-api"`
	AuthValidatePath string        `env:"AUTH_VALIDATE_TOKEN_API_URL,default=/api/v1/user/validateToken"`
	AuthTimeout      time.Duration `env:"AUTH_TIMEOUT,default=5s"`
	AuthInstances    string        `env:"AUTH_INSTANCES"` // comma separated base urls
	DiscoveryTTL     time.Duration `env:"AUTH_DISCOVERY_CACHE_TTL,default=5s"`
	BreakerFailures  int64         `env:"AUTH_BREAKER_FAILURES,default=5"`
	BreakerCooldown  time.Duration `env:"AUTH_BREAKER_COOLDOWN,default=30s"`

	DeletePermission string `env:"DELETE_PERMISSION,default=USER_DETAILS_DELETE"`

	RateLimit          float64 `env:"RATE_LIMIT_RPS,default=10"`
	RateBurst          int     `env:"RATE_LIMIT_BURST,default=20"`
	RateLimitOnFailure string  `env:"RATE_LIMIT_FAILURE_STRATEGY,default=fail_open"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=vehicle-events"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`

	// requests must carry an X-Timestamp within ReplayWindow of server time
	ReplayProtection bool          `env:"REPLAY_PROTECTION,default=false"`
	ReplayWindow     time.Duration `env:"REPLAY_WINDOW,default=60s"`

	OTELServiceName string `env:"OTEL_SERVICE_NAME,default=vehicle-api"`
	OTELEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.AuthServiceName == "" {
		return errors.New("AUTH_SERVICE_NAME must not be empty")
	}
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("AUTH_TIMEOUT must be positive, got %s", c.AuthTimeout)
	}
	if c.DeletePermission != PermissionDelete && c.DeletePermission != PermissionWrite {
		return fmt.Errorf("DELETE_PERMISSION must be %s or %s, got %q", PermissionDelete, PermissionWrite, c.DeletePermission)
	}
	if c.ReplayProtection && c.ReplayWindow <= 0 {
		return fmt.Errorf("REPLAY_WINDOW must be positive, got %s", c.ReplayWindow)
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// AuthInstanceList returns the static identity service instances.
func (c *Config) AuthInstanceList() []string { return splitList(c.AuthInstances) }

func (c *Config) KafkaBrokerList() []string { return splitList(c.KafkaBrokers) }

func (c *Config) CORSOrigins() []string { return splitList(c.CORSAllowedOrigins) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
