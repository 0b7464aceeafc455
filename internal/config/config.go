// Package config loads the console API configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Edition values.
const (
	EditionSelfHosted = "SELF_HOSTED"
	EditionCloud      = "CLOUD"
)

// Migration modes.
const (
	MigrationsApply     = "apply"
	MigrationsVersioned = "versioned"
	MigrationsOff       = "off"
)

// Recommended app retrieval modes.
const (
	RecommendModeDB      = "db"
	RecommendModeBuiltin = "builtin"
)

// Config is the process configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Auth      AuthConfig
	Directory DirectoryConfig
	Recommend RecommendConfig
	Setup     SetupConfig
}

type ServerConfig struct {
	Host               string  `env:"HOST,default=0.0.0.0"`
	Port               int     `env:"PORT,default=5001"`
	APIPrefix          string  `env:"API_PREFIX,default=/console/api"`
	Edition            string  `env:"EDITION,default=SELF_HOSTED"`
	CORSAllowedOrigins string  `env:"CORS_ALLOWED_ORIGINS"`
	RateLimitRPS       float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST,default=40"`
	FilesURL           string  `env:"FILES_URL"`
	AuditLogFile       string  `env:"AUDIT_LOG_FILE"`
}

type DatabaseConfig struct {
	URL            string `env:"DATABASE_URL"`
	MaxOpenConns   int    `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns   int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	MigrationsMode string `env:"MIGRATIONS_MODE,default=apply"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type DirectoryConfig struct {
	URL      string        `env:"DIRECTORY_URL"`
	APIKey   string        `env:"DIRECTORY_API_KEY"`
	Timeout  time.Duration `env:"DIRECTORY_TIMEOUT,default=3s"`
	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"DIRECTORY_CACHE_TTL,default=10m"`
}

type RecommendConfig struct {
	Mode         string `env:"RECOMMEND_APPS_MODE,default=db"`
	BuiltinFile  string `env:"BUILTIN_APPS_FILE"`
	CuratorEmail string `env:"CURATOR_EMAIL,default=curator@takin.ai"`
}

type SetupConfig struct {
	InitPassword string `env:"INIT_PASSWORD"`
	InsertAPIKey string `env:"INSERT_API_KEY"`
}

// Load reads an optional .env file, decodes the environment and validates
// the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Server.Edition = strings.ToUpper(strings.TrimSpace(c.Server.Edition))
	c.Server.APIPrefix = "/" + strings.Trim(strings.TrimSpace(c.Server.APIPrefix), "/")
	if c.Server.APIPrefix == "/" {
		c.Server.APIPrefix = ""
	}
	c.Database.MigrationsMode = strings.ToLower(strings.TrimSpace(c.Database.MigrationsMode))
	c.Recommend.Mode = strings.ToLower(strings.TrimSpace(c.Recommend.Mode))
	c.Recommend.CuratorEmail = strings.ToLower(strings.TrimSpace(c.Recommend.CuratorEmail))
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Server.Edition {
	case EditionSelfHosted, EditionCloud:
	default:
		return fmt.Errorf("invalid EDITION %q", c.Server.Edition)
	}
	switch c.Database.MigrationsMode {
	case MigrationsApply, MigrationsVersioned, MigrationsOff:
	default:
		return fmt.Errorf("invalid MIGRATIONS_MODE %q", c.Database.MigrationsMode)
	}
	switch c.Recommend.Mode {
	case RecommendModeDB:
	case RecommendModeBuiltin:
		if c.Recommend.BuiltinFile == "" {
			return fmt.Errorf("BUILTIN_APPS_FILE is required when RECOMMEND_APPS_MODE=builtin")
		}
	default:
		return fmt.Errorf("invalid RECOMMEND_APPS_MODE %q", c.Recommend.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SelfHosted reports whether the deployment runs the self-hosted edition.
func (c *Config) SelfHosted() bool {
	return c.Server.Edition == EditionSelfHosted
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.Server.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
