// Package daemon manages the StarPath server lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/infra/keyring"
)

// Config holds all server configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Auth      AuthConfig      `toml:"auth"`
	Store     StoreConfig     `toml:"store"`
	Redis     RedisConfig     `toml:"redis"`
	AI        AIConfig        `toml:"ai"`
	Rewards   tracker.Rewards `toml:"rewards"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	CacheSize   int      `toml:"cache_size"` // habits held in the read cache
}

// AuthConfig controls bearer-token validation.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"` // empty: read from the OS keyring
	TokenTTL  string `toml:"token_ttl"`  // lifetime of tokens minted by `starpath token`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	Driver string `toml:"driver"` // sqlite | postgres
	Dir    string `toml:"dir"`    // sqlite data directory
	DSN    string `toml:"dsn"`    // postgres; empty: read from the OS keyring
}

// RedisConfig controls the shared rate limiter and event relay.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// AIConfig controls the generation endpoint and its quotas.
type AIConfig struct {
	Endpoint     string `toml:"endpoint"`
	APIKey       string `toml:"api_key"`
	FreeLimit    int    `toml:"free_limit"`
	PremiumLimit int    `toml:"premium_limit"`
	Window       string `toml:"window"`
	Timeout      string `toml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
	Debug     bool   `toml:"debug"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	homeDir := starpathHome()
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8420,
			CORSOrigins: []string{"*"},
			CacheSize:   1024,
		},
		Auth: AuthConfig{
			TokenTTL: "24h",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Dir:    homeDir,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		AI: AIConfig{
			FreeLimit:    10,
			PremiumLimit: 100,
			Window:       "1h",
			Timeout:      "60s",
		},
		Rewards: tracker.DefaultRewards(),
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(homeDir, "starpath.log"),
			MaxSizeMB: 50,
			MaxFiles:  5,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from ~/.starpath/config.toml, falling back to
// defaults, then applies STARPATH_* environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(starpathHome(), "config.toml")

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// SaveConfig writes the config to ~/.starpath/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(starpathHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ─── Environment Overrides ──────────────────────────────────────────────────

// envKeys maps config keys to setters. The environment variable is the key
// upper-cased with "." replaced by "_" and a STARPATH_ prefix, e.g.
// api.port -> STARPATH_API_PORT.
var envKeys = map[string]func(v *viper.Viper, key string, c *Config){
	"api.host":             func(v *viper.Viper, k string, c *Config) { c.API.Host = v.GetString(k) },
	"api.port":             func(v *viper.Viper, k string, c *Config) { c.API.Port = v.GetInt(k) },
	"api.cors_origins":     func(v *viper.Viper, k string, c *Config) { c.API.CORSOrigins = splitList(v.GetString(k)) },
	"auth.jwt_secret":      func(v *viper.Viper, k string, c *Config) { c.Auth.JWTSecret = v.GetString(k) },
	"store.driver":         func(v *viper.Viper, k string, c *Config) { c.Store.Driver = v.GetString(k) },
	"store.dir":            func(v *viper.Viper, k string, c *Config) { c.Store.Dir = v.GetString(k) },
	"store.dsn":            func(v *viper.Viper, k string, c *Config) { c.Store.DSN = v.GetString(k) },
	"redis.enabled":        func(v *viper.Viper, k string, c *Config) { c.Redis.Enabled = v.GetBool(k) },
	"redis.addr":           func(v *viper.Viper, k string, c *Config) { c.Redis.Addr = v.GetString(k) },
	"redis.password":       func(v *viper.Viper, k string, c *Config) { c.Redis.Password = v.GetString(k) },
	"redis.db":             func(v *viper.Viper, k string, c *Config) { c.Redis.DB = v.GetInt(k) },
	"ai.endpoint":          func(v *viper.Viper, k string, c *Config) { c.AI.Endpoint = v.GetString(k) },
	"ai.api_key":           func(v *viper.Viper, k string, c *Config) { c.AI.APIKey = v.GetString(k) },
	"ai.free_limit":        func(v *viper.Viper, k string, c *Config) { c.AI.FreeLimit = v.GetInt(k) },
	"ai.premium_limit":     func(v *viper.Viper, k string, c *Config) { c.AI.PremiumLimit = v.GetInt(k) },
	"logging.level":        func(v *viper.Viper, k string, c *Config) { c.Logging.Level = v.GetString(k) },
	"logging.debug":        func(v *viper.Viper, k string, c *Config) { c.Logging.Debug = v.GetBool(k) },
	"telemetry.prometheus": func(v *viper.Viper, k string, c *Config) { c.Telemetry.Prometheus = v.GetBool(k) },
}

func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("STARPATH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, set := range envKeys {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			set(v, key, cfg)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ─── Validation / Secrets ───────────────────────────────────────────────────

// ResolveSecrets fills empty secrets from the OS keyring.
func (c *Config) ResolveSecrets() {
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = keyring.Lookup(keyring.JWTSecret)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		c.Store.DSN = keyring.Lookup(keyring.StoreDSN)
	}
	if c.AI.APIKey == "" {
		c.AI.APIKey = keyring.Lookup(keyring.AIKey)
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver (set it or run `starpath secret set %s`)", keyring.StoreDSN)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.AI.FreeLimit <= 0 || c.AI.PremiumLimit <= 0 {
		return fmt.Errorf("ai limits must be positive")
	}
	return nil
}

// AIWindow returns the rate-limit window.
func (c Config) AIWindow() time.Duration { return parseDuration(c.AI.Window, time.Hour) }

// AITimeout returns the per-call generation timeout.
func (c Config) AITimeout() time.Duration { return parseDuration(c.AI.Timeout, 60*time.Second) }

// TokenTTL returns the lifetime of minted tokens.
func (c Config) TokenTTL() time.Duration { return parseDuration(c.Auth.TokenTTL, 24*time.Hour) }

// starpathHome returns the StarPath data directory.
func starpathHome() string {
	if env := os.Getenv("STARPATH_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".starpath")
}

// Home is exported for use by other packages.
func Home() string {
	return starpathHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
