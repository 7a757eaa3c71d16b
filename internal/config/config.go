// Package config loads till configuration from kasir.yaml, KASIR_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/kasir/internal/shift"
	"github.com/roach88/kasir/internal/syncer"
)

// EnvPrefix is the prefix of environment overrides: remote.url is read from
// KASIR_REMOTE_URL.
const EnvPrefix = "KASIR"

// Remote kinds.
const (
	RemoteNone     = "none"
	RemoteHTTP     = "http"
	RemotePostgres = "postgres"
)

// Config is the resolved till configuration.
type Config struct {
	Database string        `mapstructure:"database"`
	Location string        `mapstructure:"location"`
	Shift    ShiftConfig   `mapstructure:"shift"`
	Cashier  CashierConfig `mapstructure:"cashier"`
	Remote   RemoteConfig  `mapstructure:"remote"`
	Sync     SyncConfig    `mapstructure:"sync"`
}

type ShiftConfig struct {
	Scope string `mapstructure:"scope"`
}

type CashierConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type RemoteConfig struct {
	Kind    string        `mapstructure:"kind"`
	URL     string        `mapstructure:"url"`
	Key     string        `mapstructure:"key"`
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Listen is the address of the reference server started by
	// "kasir remote serve".
	Listen string `mapstructure:"listen"`
}

type SyncConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxRetries  int64         `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	Jitter      float64       `mapstructure:"jitter"`
}

// New returns a viper instance with defaults, the KASIR_ environment prefix
// and the kasir.yaml search path configured.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("kasir")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.kasir")
	return v
}

func setDefaults(v *viper.Viper) {
	d := syncer.DefaultConfig()
	v.SetDefault("database", "kasir.db")
	v.SetDefault("location", "Local")
	v.SetDefault("shift.scope", string(shift.ScopeDevice))
	v.SetDefault("cashier.id", "")
	v.SetDefault("cashier.name", "")
	v.SetDefault("remote.kind", RemoteNone)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.key", "")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("remote.timeout", d.RemoteTimeout)
	v.SetDefault("remote.listen", ":8080")
	v.SetDefault("sync.interval", d.Interval)
	v.SetDefault("sync.max_retries", d.MaxRetries)
	v.SetDefault("sync.base_backoff", d.BaseBackoff)
	v.SetDefault("sync.max_backoff", d.MaxBackoff)
	v.SetDefault("sync.jitter", d.Jitter)
}

// Load reads the config file (path, or kasir.yaml on the search path when
// path is empty) into v and returns the validated result. A missing
// kasir.yaml on the search path is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that would otherwise fail later at first use.
func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("config: database is required")
	}
	if _, err := c.TimeLocation(); err != nil {
		return err
	}
	if _, err := c.ShiftScope(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Remote.Kind {
	case RemoteNone, "":
	case RemoteHTTP:
		if c.Remote.URL == "" {
			return errors.New("config: remote.url is required for the http remote")
		}
	case RemotePostgres:
		if c.Remote.DSN == "" {
			return errors.New("config: remote.dsn is required for the postgres remote")
		}
	default:
		return fmt.Errorf("config: unknown remote.kind %q (want none, http or postgres)", c.Remote.Kind)
	}
	if c.Sync.MaxRetries < 0 {
		return errors.New("config: sync.max_retries cannot be negative")
	}
	return nil
}

// TimeLocation resolves Location; empty and "Local" mean the system zone.
func (c Config) TimeLocation() (*time.Location, error) {
	if c.Location == "" || c.Location == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("config: location: %w", err)
	}
	return loc, nil
}

// ShiftScope returns the configured shift exclusivity scope.
func (c Config) ShiftScope() (shift.Scope, error) {
	return shift.ParseScope(c.Shift.Scope)
}

// SyncerConfig maps the sync settings onto the processor's tuning knobs.
func (c Config) SyncerConfig() syncer.Config {
	return syncer.Config{
		MaxRetries:    c.Sync.MaxRetries,
		BaseBackoff:   c.Sync.BaseBackoff,
		MaxBackoff:    c.Sync.MaxBackoff,
		Jitter:        c.Sync.Jitter,
		RemoteTimeout: c.Remote.Timeout,
		Interval:      c.Sync.Interval,
	}
}

// CashierIdentity returns the configured cashier.
func (c Config) CashierIdentity() shift.Cashier {
	return shift.Cashier{ID: c.Cashier.ID, Name: c.Cashier.Name}
}
