// Package config provides application configuration loaded from environment variables
// and an optional config.yaml.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string   `mapstructure:"port"`
	ReadTimeout        int      `mapstructure:"read_timeout"` // seconds
	WriteTimeout       int      `mapstructure:"write_timeout"`
	IdleTimeout        int      `mapstructure:"idle_timeout"`
	CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig holds connection settings. DSN wins over the discrete fields.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres | sqlite
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Debug    bool   `mapstructure:"debug"` // gorm SQL logging
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret   string `mapstructure:"secret"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// RedisConfig enables the Redis-backed view state store when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// ArchiveConfig enables S3-compatible archiving of rendered documents when Bucket is set.
type ArchiveConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool `mapstructure:"dev"`
	Migrations bool `mapstructure:"migrations"`
}

// Configured reports whether a database was configured at all.
func (d DatabaseConfig) Configured() bool {
	return d.DSN != "" || d.Host != ""
}

// ConnString returns the DSN, building a PostgreSQL key=value string from the discrete fields if needed.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Host == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// SessionTTL returns the session lifetime.
func (s SessionConfig) SessionTTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// envKeys maps config keys to the flat environment variable names used in deployments.
var envKeys = map[string]string{
	"server.port":                 "PORT",
	"server.read_timeout":         "SERVER_READ_TIMEOUT",
	"server.write_timeout":        "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":         "SERVER_IDLE_TIMEOUT",
	"server.cors_allowed_origins": "CORS_ALLOWED_ORIGINS",
	"database.driver":             "DATABASE_DRIVER",
	"database.dsn":                "DATABASE_DSN",
	"database.host":               "DB_HOST",
	"database.port":               "DB_PORT",
	"database.user":               "DB_USER",
	"database.password":           "DB_PASSWORD",
	"database.name":               "DB_NAME",
	"database.sslmode":            "DB_SSLMODE",
	"database.debug":              "DB_DEBUG",
	"session.secret":              "SESSION_SECRET",
	"session.ttl_hours":           "SESSION_TTL_HOURS",
	"redis.addr":                  "REDIS_ADDR",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"redis.ttl_hours":             "REDIS_TTL_HOURS",
	"archive.bucket":              "ARCHIVE_BUCKET",
	"archive.endpoint":            "ARCHIVE_ENDPOINT",
	"archive.region":              "ARCHIVE_REGION",
	"archive.access_key":          "ARCHIVE_ACCESS_KEY",
	"archive.secret_key":          "ARCHIVE_SECRET_KEY",
	"archive.prefix":              "ARCHIVE_PREFIX",
	"app.dev":                     "DEV",
	"app.migrations":              "MIGRATIONS",
}

// Load reads configuration from .env, an optional config file and environment variables.
// It uses sensible defaults for local development.
func Load(configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Server.CorsAllowedOrigins = splitList(cfg.Server.CorsAllowedOrigins)
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if cfg.Session.Secret == "" {
		if !cfg.App.Dev {
			return nil, fmt.Errorf("SESSION_SECRET is required outside dev mode")
		}
		slog.Warn("SESSION_SECRET not set, using development secret")
		cfg.Session.Secret = "devsessionsecret"
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.idle_timeout", 60)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "backoffice")
	v.SetDefault("database.name", "backoffice")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("session.ttl_hours", 24*14)
	v.SetDefault("redis.ttl_hours", 24*30)
	v.SetDefault("archive.region", "auto")
	v.SetDefault("archive.prefix", "documents/")
	v.SetDefault("app.dev", true)
	v.SetDefault("app.migrations", false)
}

// splitList accepts either a YAML list or a single comma-separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
