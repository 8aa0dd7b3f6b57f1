// Package config loads the authd settings from the environment, reading a
// .env file first when one exists.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	// CIDRs of reverse proxies allowed to set X-Forwarded-For. Empty means
	// the socket peer is the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD,unset"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret   string        `env:"JWT_SECRET,notEmpty,unset"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"authcore"`
	JWTAudience string        `env:"JWT_AUDIENCE"`
	AccessTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	CSRFSecret string        `env:"CSRF_SECRET,notEmpty,unset"`
	CSRFMaxAge time.Duration `env:"CSRF_MAX_AGE" envDefault:"1h"`

	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"true"`

	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaAuditTopic  string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"auth.events"`
	KafkaNotifyTopic string   `env:"KAFKA_NOTIFY_TOPIC" envDefault:"auth.notifications"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StoreTimeout   time.Duration `env:"STORE_TIMEOUT" envDefault:"2s"`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`
	ValidationMode string        `env:"VALIDATION_MODE" envDefault:"strict"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KafkaEnabled reports whether audit events and notifications go to kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Auth builds the engine config on top of [authcore.DefaultConfig] and
// validates it.
func (c *Config) Auth() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.CSRF.Secret = []byte(c.CSRFSecret)
	cfg.CSRF.MaxAge = c.CSRFMaxAge
	cfg.Cookie.Domain = c.CookieDomain
	cfg.Cookie.Secure = c.CookieSecure
	cfg.Store.OperationTimeout = c.StoreTimeout
	cfg.Metrics.Enabled = c.MetricsEnabled

	switch strings.ToLower(c.ValidationMode) {
	case "", "strict":
		cfg.ValidationMode = authcore.ModeStrict
	case "jwt_only", "jwt-only":
		cfg.ValidationMode = authcore.ModeJWTOnly
	default:
		return authcore.Config{}, fmt.Errorf("config: unknown VALIDATION_MODE %q", c.ValidationMode)
	}

	if err := cfg.Validate(); err != nil {
		return authcore.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
