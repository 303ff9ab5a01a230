// Package config defines the warden configuration file: its schema, defaults,
// and validation. Values can be overridden through WARDEN_* environment
// variables when loaded through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/warden/internal/store"
)

// DefaultFileName is the configuration file looked up when --config is not given.
const DefaultFileName = "warden.yaml"

// YAMLConfig represents the top-level warden configuration file.
type YAMLConfig struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Auth   AuthConfig   `yaml:"auth" mapstructure:"auth"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host" mapstructure:"host"`
	Port            int        `yaml:"port" mapstructure:"port"`
	MaxBodySize     string     `yaml:"max_body_size" mapstructure:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORS            CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins" mapstructure:"origins"`
}

// StoreConfig selects the database holding the credential and sessions.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	// DSN is required for postgres and mysql.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
	// DataDir holds warden.db for sqlite. Empty means ~/.warden.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// AuthConfig controls the admin login surface.
type AuthConfig struct {
	AdminUsername   string `yaml:"admin_username" mapstructure:"admin_username"`
	CookieName      string `yaml:"cookie_name" mapstructure:"cookie_name"`
	SecureCookie    bool   `yaml:"secure_cookie" mapstructure:"secure_cookie"`
	LoginRateLimit  int    `yaml:"login_rate_limit" mapstructure:"login_rate_limit"`
	LoginRateWindow string `yaml:"login_rate_window" mapstructure:"login_rate_window"`
	APIRateLimit    int    `yaml:"api_rate_limit" mapstructure:"api_rate_limit"`
	ReapInterval    string `yaml:"reap_interval" mapstructure:"reap_interval"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file on top of the
// defaults. Environment variables referenced as ${VAR_NAME} in the file are
// expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxBodySize:     "1MB",
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Store: StoreConfig{
			Driver: string(store.DialectSQLite),
		},
		Auth: AuthConfig{
			AdminUsername:   "admin",
			CookieName:      "sessionToken",
			LoginRateLimit:  5,
			LoginRateWindow: "15m",
			APIRateLimit:    100,
			ReapInterval:    "1h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultYAMLConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetDefaults registers every configuration key with its default on v, so
// that environment overrides apply even without a config file.
func SetDefaults(v *viper.Viper) {
	d := DefaultYAMLConfig()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors.origins", d.Server.CORS.Origins)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.data_dir", d.Store.DataDir)
	v.SetDefault("auth.admin_username", d.Auth.AdminUsername)
	v.SetDefault("auth.cookie_name", d.Auth.CookieName)
	v.SetDefault("auth.secure_cookie", d.Auth.SecureCookie)
	v.SetDefault("auth.login_rate_limit", d.Auth.LoginRateLimit)
	v.SetDefault("auth.login_rate_window", d.Auth.LoginRateWindow)
	v.SetDefault("auth.api_rate_limit", d.Auth.APIRateLimit)
	v.SetDefault("auth.reap_interval", d.Auth.ReapInterval)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// FromViper decodes the effective configuration from v. Call SetDefaults on v
// first so that every key is known.
func FromViper(v *viper.Viper) (*YAMLConfig, error) {
	cfg := DefaultYAMLConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *YAMLConfig) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port: %d is out of range", c.Server.Port)
	}
	if _, err := ParseSize(c.Server.MaxBodySize); err != nil {
		add("server.max_body_size: %v", err)
	}
	if err := checkDuration(c.Server.ShutdownTimeout); err != nil {
		add("server.shutdown_timeout: %v", err)
	}

	dialect, err := store.ParseDialect(c.Store.Driver)
	if err != nil {
		add("store.driver: %v", err)
	} else if dialect != store.DialectSQLite && c.Store.DSN == "" {
		add("store.dsn: required for driver %q", dialect)
	}

	if strings.TrimSpace(c.Auth.AdminUsername) == "" {
		add("auth.admin_username: must not be empty")
	}
	if !validCookieName(c.Auth.CookieName) {
		add("auth.cookie_name: %q is not a valid cookie name", c.Auth.CookieName)
	}
	if c.Auth.LoginRateLimit < 0 {
		add("auth.login_rate_limit: must not be negative")
	}
	if err := checkDuration(c.Auth.LoginRateWindow); err != nil {
		add("auth.login_rate_window: %v", err)
	}
	if c.Auth.APIRateLimit < 0 {
		add("auth.api_rate_limit: must not be negative")
	}
	if err := checkDuration(c.Auth.ReapInterval); err != nil {
		add("auth.reap_interval: %v", err)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level: %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format: %q must be text or json", c.Log.Format)
	}

	return errors.Join(errs...)
}

// ShutdownTimeout returns server.shutdown_timeout as a duration.
func (c *YAMLConfig) ShutdownTimeout() time.Duration {
	return mustDuration(c.Server.ShutdownTimeout)
}

// LoginRateWindow returns auth.login_rate_window as a duration.
func (c *YAMLConfig) LoginRateWindow() time.Duration {
	return mustDuration(c.Auth.LoginRateWindow)
}

// ReapInterval returns auth.reap_interval as a duration.
func (c *YAMLConfig) ReapInterval() time.Duration {
	return mustDuration(c.Auth.ReapInterval)
}

// MaxBodySize returns server.max_body_size in bytes.
func (c *YAMLConfig) MaxBodySize() int64 {
	n, _ := ParseSize(c.Server.MaxBodySize)
	return n
}

// ParseSize parses a byte size such as "512", "64KB", or "10MB". Units are
// powers of 1024 and case-insensitive.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, errors.New("size is empty")
	}

	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

func checkDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", s)
	}
	return nil
}

// mustDuration parses a duration that Validate has already accepted. Invalid
// values yield zero, which callers treat as "use the default".
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// validCookieName reports whether name is a valid RFC 6265 cookie name.
func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune(`()<>@,;:\"/[]?={}`, r) {
			return false
		}
	}
	return true
}
