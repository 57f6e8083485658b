// Package config loads SQLBatch settings from a YAML file and SQLBATCH_
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/nickyhof/sqlbatch/core"
	"github.com/nickyhof/sqlbatch/db"
	"github.com/nickyhof/sqlbatch/ps"
)

const EnvPrefix = "SQLBATCH"

type Config struct {
	Driver      string          `mapstructure:"driver"`
	WorkDir     string          `mapstructure:"work_dir"`
	GateTimeout time.Duration   `mapstructure:"gate_timeout"`
	LogLevel    string          `mapstructure:"log_level"`
	Journal     JournalConfig   `mapstructure:"journal"`
	Remote      db.RemoteConfig `mapstructure:"remote"`
	Server      ServerConfig    `mapstructure:"server"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"` // empty keeps the journal in memory
	Author  struct {
		Name  string `mapstructure:"name"`
		Email string `mapstructure:"email"`
	} `mapstructure:"author"`
	RemoteURL string        `mapstructure:"remote_url"`
	Auth      ps.RemoteAuth `mapstructure:"auth"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Auth AuthConfig `mapstructure:"auth"`
	TLS  TLSConfig  `mapstructure:"tls"`
}

// TLSConfig enables TLS when both files are set.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

// AuthConfig holds JWT settings for the server.
type AuthConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	JWTSecret  string `mapstructure:"jwt_secret"`
	Issuer     string `mapstructure:"issuer"`
	Audience   string `mapstructure:"audience"`
	NameClaim  string `mapstructure:"name_claim"`
	EmailClaim string `mapstructure:"email_claim"`
}

var defaults = map[string]any{
	"driver":                  "sqlite",
	"work_dir":                ".",
	"gate_timeout":            "1s",
	"log_level":               "info",
	"journal.enabled":         false,
	"journal.dir":             "",
	"journal.author.name":     "sqlbatch",
	"journal.author.email":    "sqlbatch@localhost",
	"journal.remote_url":      "",
	"journal.auth.type":       "none",
	"journal.auth.token":      "",
	"journal.auth.key_path":   "",
	"journal.auth.passphrase": "",
	"journal.auth.username":   "",
	"journal.auth.password":   "",
	"remote.access_key":       "",
	"remote.secret_key":       "",
	"remote.region":           "",
	"remote.endpoint":         "",
	"server.port":             3306,
	"server.auth.enabled":     false,
	"server.auth.jwt_secret":  "",
	"server.auth.issuer":      "",
	"server.auth.audience":    "",
	"server.auth.name_claim":  "name",
	"server.auth.email_claim": "email",
	"server.tls.cert_file":    "",
	"server.tls.key_file":     "",
}

// Load reads the YAML file at path, when path is not empty, and overlays
// SQLBATCH_ environment variables (SQLBATCH_SERVER_PORT, SQLBATCH_JOURNAL_DIR, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustDefault is Load("") for tests and examples. It panics when the
// environment holds an invalid setting.
func MustDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if _, err := db.LookupDialect(c.Driver); err != nil {
		return err
	}
	if c.GateTimeout < 0 {
		return fmt.Errorf("gate_timeout must not be negative")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls needs both cert_file and key_file")
	}
	if c.Server.Auth.Enabled && c.Server.Auth.JWTSecret == "" {
		return fmt.Errorf("server.auth.jwt_secret is required when auth is enabled")
	}
	return nil
}

// Identity is the author recorded on journal commits.
func (c *Config) Identity() core.Identity {
	return core.Identity{Name: c.Journal.Author.Name, Email: c.Journal.Author.Email}
}

// HandleOptions returns the options for opening database handles.
func (c *Config) HandleOptions() db.Options {
	return db.Options{
		Driver:  c.Driver,
		WorkDir: c.WorkDir,
		Remote:  c.Remote,
	}
}

// ApplyLogging sets the logrus level.
func (c *Config) ApplyLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
