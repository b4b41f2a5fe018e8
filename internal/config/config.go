// Package config loads application settings from an optional YAML file and
// environment variables. Environment variables always win.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL     string `mapstructure:"url"`
	LogMode string `mapstructure:"log_mode"`
}

type ImportConfig struct {
	BaseDir             string `mapstructure:"base_dir"`
	Workers             int    `mapstructure:"workers"`
	PollIntervalMS      int    `mapstructure:"poll_interval_ms"`
	LeaseSeconds        int    `mapstructure:"lease_seconds"`
	MaxAttempts         int    `mapstructure:"max_attempts"`
	CountMismatchedRows bool   `mapstructure:"count_mismatched_rows"`
	MaxFileBytes        int64  `mapstructure:"max_file_bytes"`
	RetentionDays       int    `mapstructure:"retention_days"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const maxWorkers = 10

// envBindings keeps the flat environment names used by deployments.
var envBindings = map[string]string{
	"server.port":                  "PORT",
	"server.shutdown_timeout":      "SERVER_SHUTDOWN_TIMEOUT",
	"database.url":                 "DATABASE_URL",
	"database.log_mode":            "DB_LOG_MODE",
	"import.base_dir":              "IMPORT_BASE_DIR",
	"import.workers":               "IMPORT_WORKERS",
	"import.poll_interval_ms":      "IMPORT_POLL_INTERVAL_MS",
	"import.lease_seconds":         "IMPORT_JOB_LEASE_SECONDS",
	"import.max_attempts":          "IMPORT_MAX_ATTEMPTS",
	"import.count_mismatched_rows": "IMPORT_COUNT_MISMATCHED_ROWS",
	"import.max_file_bytes":        "IMPORT_MAX_FILE_BYTES",
	"import.retention_days":        "IMPORT_RETENTION_DAYS",
	"auth.jwt_secret":              "JWT_SECRET",
	"mail.host":                    "SMTP_HOST",
	"mail.port":                    "SMTP_PORT",
	"mail.username":                "SMTP_USERNAME",
	"mail.password":                "SMTP_PASSWORD",
	"mail.from":                    "MAIL_FROM",
	"log.level":                    "LOG_LEVEL",
	"log.format":                   "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.log_mode", "silent")
	v.SetDefault("import.base_dir", "storage/imports")
	v.SetDefault("import.workers", maxWorkers)
	v.SetDefault("import.poll_interval_ms", 500)
	v.SetDefault("import.lease_seconds", 60)
	v.SetDefault("import.max_attempts", 5)
	v.SetDefault("import.count_mismatched_rows", false)
	v.SetDefault("import.max_file_bytes", 10<<20)
	v.SetDefault("import.retention_days", 30)
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "no-reply@collaborators.local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from path (YAML). An empty path skips the file and
// uses defaults plus environment variables only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Import.Workers <= 0 || c.Import.Workers > maxWorkers {
		c.Import.Workers = maxWorkers
	}
	if c.Import.PollIntervalMS <= 0 {
		c.Import.PollIntervalMS = 500
	}
	if c.Import.LeaseSeconds <= 0 {
		c.Import.LeaseSeconds = 60
	}
	if c.Import.MaxAttempts <= 0 {
		c.Import.MaxAttempts = 5
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Import.MaxFileBytes <= 0 {
		errs = append(errs, errors.New("IMPORT_MAX_FILE_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c ImportConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c ImportConfig) LeaseDuration() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

// MailEnabled reports whether an SMTP relay is configured.
func (c MailConfig) MailEnabled() bool {
	return c.Host != ""
}
