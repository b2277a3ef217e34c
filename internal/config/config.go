// Package config loads dfctl configuration from an HCL file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/afero"

	"github.com/elvisfernandes/ng-dfservice/pkg/database"
	"github.com/elvisfernandes/ng-dfservice/pkg/tokenstore"
	"github.com/elvisfernandes/ng-dfservice/pkg/transport"
)

// Environment variables that override the config file.
const (
	EnvAPIURL   = "DF_API_URL"
	EnvAPIKey   = "DF_API_KEY"
	EnvLogLevel = "DF_LOG_LEVEL"
	EnvConfig   = "DF_CONFIG"
)

// Token store drivers.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = database.DriverSQLite
	StorePostgres = database.DriverPostgres
)

// Config is the root of the configuration file.
type Config struct {
	// API configures the remote endpoint.
	API *API `hcl:"api,block"`

	// TokenStore configures where the session token is persisted.
	TokenStore *TokenStore `hcl:"token_store,block"`

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `hcl:"log_level,optional"`
}

// API configures the remote endpoint.
type API struct {
	BaseURL   string `hcl:"base_url,optional"`
	APIKey    string `hcl:"api_key,optional"`
	Timeout   string `hcl:"timeout,optional"`
	TLSVerify *bool  `hcl:"tls_verify,optional"`
}

// TokenStore configures session token persistence.
type TokenStore struct {
	Driver string `hcl:"driver,optional"`

	// Path is the file for the file and sqlite drivers. A leading "~/" is
	// expanded to the home directory.
	Path string `hcl:"path,optional"`

	// DSN is the connection string for the postgres driver.
	DSN string `hcl:"dsn,optional"`
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	return filepath.Join("~", ".dfctl", "config.hcl")
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.API == nil {
		cfg.API = &API{}
	}
	if cfg.API.Timeout == "" {
		cfg.API.Timeout = "30s"
	}
	if cfg.TokenStore == nil {
		cfg.TokenStore = &TokenStore{}
	}
	if cfg.TokenStore.Driver == "" {
		cfg.TokenStore.Driver = StoreFile
	}
	if cfg.TokenStore.Path == "" {
		switch cfg.TokenStore.Driver {
		case StoreFile:
			cfg.TokenStore.Path = filepath.Join("~", ".dfctl", "session.json")
		case StoreSQLite:
			cfg.TokenStore.Path = filepath.Join("~", ".dfctl", "session.db")
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
}

// Load reads the config file at path, then applies defaults and environment
// overrides. A missing file is not an error when path is the default path.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if v, ok := lookupEnv(EnvConfig); ok && v != "" {
			path, explicit = v, true
		} else {
			path = DefaultPath()
		}
	}

	resolved, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if _, err := os.Stat(resolved); err == nil {
		if err := hclsimple.DecodeFile(resolved, nil, cfg); err != nil {
			return nil, fmt.Errorf("error decoding config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) || explicit {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	applyDefaults(cfg)
	cfg.applyEnv(lookupEnv)
	return cfg, nil
}

// Parse decodes configuration from src. filename is used in diagnostics and
// must end in .hcl or .json.
func Parse(filename string, src []byte) (*Config, error) {
	cfg := &Config{}
	if err := hclsimple.Decode(filename, src, nil, cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) {
	if v, ok := lookupEnv(EnvAPIURL); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookupEnv(EnvAPIKey); ok && v != "" {
		c.API.APIKey = v
	}
	if v, ok := lookupEnv(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.API == nil {
		result = multierror.Append(result, errors.New("api block is required"))
	} else if _, err := c.Transport(); err != nil {
		result = multierror.Append(result, err)
	}

	if c.TokenStore == nil {
		result = multierror.Append(result, errors.New("token_store block is required"))
	} else {
		switch c.TokenStore.Driver {
		case StoreMemory:
		case StoreFile, StoreSQLite:
			if c.TokenStore.Path == "" {
				result = multierror.Append(result,
					fmt.Errorf("token_store.path is required for the %s driver", c.TokenStore.Driver))
			}
		case StorePostgres:
			if c.TokenStore.DSN == "" {
				result = multierror.Append(result, errors.New("token_store.dsn is required for the postgres driver"))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("unknown token_store.driver %q", c.TokenStore.Driver))
		}
	}

	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}

	return result.ErrorOrNil()
}

// Transport converts the api block into a gateway configuration.
func (c *Config) Transport() (*transport.Config, error) {
	tc := transport.DefaultConfig()
	tc.BaseURL = c.API.BaseURL
	tc.APIKey = c.API.APIKey
	if c.API.TLSVerify != nil {
		tc.TLSVerify = c.API.TLSVerify
	}
	if c.API.Timeout != "" {
		d, err := time.ParseDuration(c.API.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid api.timeout: %w", err)
		}
		tc.Timeout = d
	}
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return tc, nil
}

// Level returns the configured log level, defaulting to warn.
func (c *Config) Level() hclog.Level {
	level := hclog.LevelFromString(c.LogLevel)
	if level == hclog.NoLevel {
		return hclog.Warn
	}
	return level
}

// OpenTokenStore creates the configured token store. The returned function
// releases any resources held by the store. The sqlite driver opens its file
// directly, so fs must be backed by the OS filesystem when it is used.
func (c *Config) OpenTokenStore(fs afero.Fs, log hclog.Logger) (tokenstore.Store, func() error, error) {
	noop := func() error { return nil }
	ts := c.TokenStore

	switch ts.Driver {
	case StoreMemory:
		return tokenstore.NewMemory(), noop, nil

	case StoreFile:
		path, err := expandHome(ts.Path)
		if err != nil {
			return nil, nil, err
		}
		return tokenstore.NewFile(fs, path), noop, nil

	case StoreSQLite, StorePostgres:
		dbCfg := database.Config{Driver: ts.Driver, DSN: ts.DSN}
		if ts.Driver == StoreSQLite {
			path, err := expandHome(ts.Path)
			if err != nil {
				return nil, nil, err
			}
			if path != ":memory:" {
				if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
					return nil, nil, fmt.Errorf("error creating database directory: %w", err)
				}
			}
			dbCfg.DSN = path
		}

		db, err := database.Connect(dbCfg, log)
		if err != nil {
			return nil, nil, err
		}
		store, err := tokenstore.NewSQL(db)
		if err != nil {
			_ = database.Close(db)
			return nil, nil, err
		}
		return store, func() error { return database.Close(db) }, nil
	}

	return nil, nil, fmt.Errorf("unknown token_store.driver %q", ts.Driver)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
