// Package config loads the admin service configuration from YAML with
// environment variable expansion and overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/alice21mota/oppia/pkg/auth"
)

// EnvPrefix prefixes environment overrides, e.g. OPPIA_DATABASE_DSN.
const EnvPrefix = "OPPIA"

// Storage backends.
const (
	StorageMemory = "memory"
	StorageS3     = "s3"
)

// Config is the service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DevMode   bool            `yaml:"dev_mode" split_words:"true"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Email     EmailConfig     `yaml:"email"`
	Storage   StorageConfig   `yaml:"storage"`
	Audit     AuditConfig     `yaml:"audit"`
	RateLimit RateLimitConfig `yaml:"rate_limit" split_words:"true"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// DatabaseConfig configures PostgreSQL. An empty DSN selects in-memory
// stores.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" split_words:"true"`
}

// AuthConfig configures sessions, CSRF tokens and API keys.
type AuthConfig struct {
	SigningKey        string        `yaml:"signing_key" split_words:"true"`
	Issuer            string        `yaml:"issuer"`
	SessionTTL        time.Duration `yaml:"session_ttl" split_words:"true"`
	CSRFSecret        string        `yaml:"csrf_secret" envconfig:"CSRF_SECRET"`
	DefaultAdminEmail string        `yaml:"default_admin_email" split_words:"true" validate:"omitempty,email"`
	APIKeys           []auth.APIKey `yaml:"api_keys" ignored:"true" validate:"dive"`
}

// EmailConfig configures outgoing mail.
type EmailConfig struct {
	CanSend       bool   `yaml:"can_send" split_words:"true"`
	AdminAddress  string `yaml:"admin_address" split_words:"true" validate:"omitempty,email"`
	SystemAddress string `yaml:"system_address" split_words:"true" validate:"omitempty,email"`
	SenderName    string `yaml:"sender_name" split_words:"true"`
}

// StorageConfig selects the file store.
type StorageConfig struct {
	Backend string   `yaml:"backend" validate:"omitempty,oneof=memory s3"`
	S3      S3Config `yaml:"s3"`
}

// S3Config configures the S3 file store.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKeyID  string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretKey    string `yaml:"secret_key" split_words:"true"`
	UsePathStyle bool   `yaml:"use_path_style" split_words:"true"`
}

// AuditConfig configures the audit log.
type AuditConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days" split_words:"true" validate:"min=0"`
}

// RateLimitConfig configures per-caller request limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" split_words:"true" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// LimitsConfig holds input limits.
type LimitsConfig struct {
	MaxUsernameLength int `yaml:"max_username_length" split_words:"true" validate:"min=0"`
}

// LoadConfig loads configuration from a file, then applies environment
// overrides and defaults. The path is expected to come from command line
// arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8181"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "oppia-admin"
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = auth.DefaultSessionTTL
	}
	if cfg.Email.SenderName == "" {
		cfg.Email.SenderName = "Site Admin"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageMemory
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 40
	}
	if cfg.Limits.MaxUsernameLength == 0 {
		cfg.Limits.MaxUsernameLength = 30
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if c.Auth.SigningKey == "" {
		errs = append(errs, "auth.signing_key is required")
	}
	if c.Auth.CSRFSecret == "" {
		errs = append(errs, "auth.csrf_secret is required")
	}
	if c.Auth.DefaultAdminEmail == "" {
		errs = append(errs, "auth.default_admin_email is required")
	}
	if c.Storage.Backend == StorageS3 && c.Storage.S3.Bucket == "" {
		errs = append(errs, "storage.s3.bucket is required when storage.backend is s3")
	}
	if c.Audit.Enabled && c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required when audit is enabled")
	}
	if c.Email.CanSend && (c.Email.AdminAddress == "" || c.Email.SystemAddress == "") {
		errs = append(errs, "email.admin_address and email.system_address are required when email.can_send is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
