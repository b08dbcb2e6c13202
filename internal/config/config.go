// Package config loads crudkit's config.yaml with viper and writes the
// default file with yaml.v3.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/crudkit/internal/paths"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Config keys.
const (
	KeyBackend    = "backend"
	KeyDataDir    = "data_dir"
	KeyDSN        = "dsn"
	KeyWorkers    = "workers"
	KeyListenAddr = "listen_addr"
	KeyLogLevel   = "log_level"
	KeyLogFormat  = "log_format"
	KeyRateLimit  = "rate_limit"
	KeyRateBurst  = "rate_burst"
	KeyEntities   = "entities"
)

// EnvPrefix prefixes environment overrides, e.g. CRUDKIT_LISTEN_ADDR.
const EnvPrefix = "CRUDKIT"

// Defaults.
const (
	DefaultListenAddr = ":8080"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
)

// Config is the contents of config.yaml.
type Config struct {
	types.Config `yaml:",inline" mapstructure:",squash"`

	ListenAddr string             `yaml:"listen_addr" mapstructure:"listen_addr"`
	LogLevel   string             `yaml:"log_level" mapstructure:"log_level"`
	LogFormat  string             `yaml:"log_format" mapstructure:"log_format"`
	RateLimit  float64            `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	RateBurst  int                `yaml:"rate_burst,omitempty" mapstructure:"rate_burst"`
	Entities   []schema.EntityDef `yaml:"entities" mapstructure:"entities"`
}

// Default returns the configuration written by WriteDefault: a SQLite store
// and one example entity type.
func Default() Config {
	return Config{
		Config:     types.Config{Backend: types.BackendSQLite},
		ListenAddr: DefaultListenAddr,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
		Entities: []schema.EntityDef{
			{
				Name: "notes",
				Fields: []schema.Field{
					{Name: "title", Kind: schema.KindText, Required: true},
					{Name: "body", Kind: schema.KindText},
					{Name: "done", Kind: schema.KindBoolean, Default: false},
					{Name: "created_at", Kind: schema.KindTime, Default: schema.DefaultNow},
				},
			},
		},
	}
}

// Load reads config.yaml from configDir. A missing file is not an error; the
// defaults apply. CRUDKIT_* environment variables override scalar keys.
func Load(configDir string) (Config, error) {
	v := viper.New()
	v.SetDefault(KeyBackend, types.BackendSQLite)
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyDSN, "")
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyListenAddr, DefaultListenAddr)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyRateLimit, 0)
	v.SetDefault(KeyRateBurst, 0)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(paths.ConfigFile(configDir))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// WriteDefault writes Default() to config.yaml in configDir unless the file
// already exists. It reports whether a file was written.
func WriteDefault(configDir string) (bool, error) {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := "# crudkit configuration. Environment variables CRUDKIT_<KEY> override scalar keys.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

// Registry builds a registry from the configured entity types.
func (c Config) Registry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if err := reg.RegisterAll(c.Entities); err != nil {
		return nil, fmt.Errorf("register entity types: %w", err)
	}
	return reg, nil
}
