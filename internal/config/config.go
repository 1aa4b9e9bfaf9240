// Package config loads flashsync configuration from a TOML file with
// environment overrides. Precedence: defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix is the prefix for override variables, e.g.
// FLASHSYNC_CLIENT_SECRET, FLASHSYNC_REDIS_ADDR.
const envPrefix = "flashsync"

// Auth holds the OAuth2 application registration.
type Auth struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TenantID     string `toml:"tenant_id"`
	RedirectURI  string `toml:"redirect_uri"`
	Scope        string `toml:"scope"`
}

// Folder is one watched remote folder.
type Folder struct {
	Key      string `toml:"key"`       // "MOD", "ORI"
	ShareURL string `toml:"share_url"` // sharing URL resolved per cycle
}

// Sync holds engine settings.
type Sync struct {
	BaseDir   string   `toml:"base_dir"`
	TempDir   string   `toml:"temp_dir"`
	Extension string   `toml:"extension"` // case-insensitive allow-list of one
	Folders   []Folder `toml:"folders"`

	BatchSize         int `toml:"batch_size"`
	BatchDelaySeconds int `toml:"batch_delay_seconds"`

	MetadataTimeoutSeconds int `toml:"metadata_timeout_seconds"`
	ContentTimeoutSeconds  int `toml:"content_timeout_seconds"`
}

// State selects and configures the state store backend.
type State struct {
	Backend string `toml:"backend"` // "redis", "sqlite", "memory"

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	SQLitePath string `toml:"sqlite_path"`
}

// Catalog configures the catalog database connection.
type Catalog struct {
	Driver       string `toml:"driver"` // "mysql", "sqlite"
	DSN          string `toml:"dsn"`
	DefaultPrice int    `toml:"default_price"`
}

// Serve configures the HTTP API.
type Serve struct {
	Addr string `toml:"addr"`
}

// Config is the full effective configuration.
type Config struct {
	Auth    Auth    `toml:"auth"`
	Sync    Sync    `toml:"sync"`
	State   State   `toml:"state"`
	Catalog Catalog `toml:"catalog"`
	Serve   Serve   `toml:"serve"`
}

// envOverrides is the flat set of environment variables applied on top of
// the file. Only secrets and deployment-specific endpoints are exposed;
// structural settings stay in the file.
type envOverrides struct {
	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`
	TenantID     string `envconfig:"TENANT_ID"`
	RedirectURI  string `envconfig:"REDIRECT_URI"`

	ModShareURL string `envconfig:"MOD_FILE_URL"`
	OriShareURL string `envconfig:"ORI_FILE_URL"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	CatalogDSN string `envconfig:"CATALOG_DSN"`
}

// Load reads the file at path (if it exists), applies environment
// overrides, and validates. An empty path loads defaults + environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %q: %w", path, err)
		}
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	applyEnv(cfg, env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv copies non-empty override values onto cfg.
func applyEnv(cfg *Config, env envOverrides) {
	if env.ClientID != "" {
		cfg.Auth.ClientID = env.ClientID
	}

	if env.ClientSecret != "" {
		cfg.Auth.ClientSecret = env.ClientSecret
	}

	if env.TenantID != "" {
		cfg.Auth.TenantID = env.TenantID
	}

	if env.RedirectURI != "" {
		cfg.Auth.RedirectURI = env.RedirectURI
	}

	if env.RedisAddr != "" {
		cfg.State.RedisAddr = env.RedisAddr
	}

	if env.RedisPassword != "" {
		cfg.State.RedisPassword = env.RedisPassword
	}

	if env.CatalogDSN != "" {
		cfg.Catalog.DSN = env.CatalogDSN
	}

	for i := range cfg.Sync.Folders {
		switch cfg.Sync.Folders[i].Key {
		case FolderMod:
			if env.ModShareURL != "" {
				cfg.Sync.Folders[i].ShareURL = env.ModShareURL
			}
		case FolderOri:
			if env.OriShareURL != "" {
				cfg.Sync.Folders[i].ShareURL = env.OriShareURL
			}
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Sync.Folders) == 0 {
		return errors.New("config: no sync folders configured")
	}

	seen := make(map[string]bool, len(c.Sync.Folders))
	for _, f := range c.Sync.Folders {
		if f.Key == "" {
			return errors.New("config: sync folder with empty key")
		}

		if seen[f.Key] {
			return fmt.Errorf("config: duplicate sync folder key %q", f.Key)
		}

		seen[f.Key] = true
	}

	switch c.State.Backend {
	case "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown state backend %q", c.State.Backend)
	}

	switch c.Catalog.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unknown catalog driver %q", c.Catalog.Driver)
	}

	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.Sync.BatchSize)
	}

	return nil
}

// Folder returns the folder config for key, or false.
func (c *Config) Folder(key string) (Folder, bool) {
	for _, f := range c.Sync.Folders {
		if f.Key == key {
			return f, true
		}
	}

	return Folder{}, false
}

// BatchDelay returns the inter-batch pause as a duration.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Sync.BatchDelaySeconds) * time.Second
}

// MetadataTimeout bounds listing and token calls.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Sync.MetadataTimeoutSeconds) * time.Second
}

// ContentTimeout bounds content downloads, which move real payloads and
// need more headroom than metadata calls.
func (c *Config) ContentTimeout() time.Duration {
	return time.Duration(c.Sync.ContentTimeoutSeconds) * time.Second
}
