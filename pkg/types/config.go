package types

import "errors"

// Config holds backend selection and parameters for store.Open.
type Config struct {
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	DSN     string `json:"dsn" yaml:"dsn,omitempty" mapstructure:"dsn"`
	Workers int    `json:"workers" yaml:"workers,omitempty" mapstructure:"workers"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultWorkers is the offload pool size used when Config.Workers is zero.
const DefaultWorkers = 8

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDSNEmpty       = errors.New("dsn must not be empty for postgres backend")
	ErrWorkersInvalid = errors.New("workers must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendPostgres && c.DSN == "" {
		return ErrDSNEmpty
	}
	if c.Workers < 0 {
		return ErrWorkersInvalid
	}
	return nil
}

// PoolSize returns the configured worker count, or DefaultWorkers when unset.
func (c Config) PoolSize() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return DefaultWorkers
}
