// Package store is the database/sql backend behind the CRUD engine. It
// supports SQLite (modernc.org/sqlite) and PostgreSQL (pgx), creates tables
// for registered entity types, and hands out per-caller sessions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Store owns the connection pool for one backend.
type Store struct {
	db      *sql.DB
	d       dialect
	backend string
	log     *zap.Logger
}

// Open validates cfg and connects to the configured backend. For sqlite the
// data directory is created if needed. A nil logger disables logging.
func Open(ctx context.Context, cfg types.Config, log *zap.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		d   dialect
		dsn string
	)
	switch cfg.Backend {
	case types.BackendSQLite:
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		d, dsn = sqliteDialect{}, sqliteDSN(dataDir)
	case types.BackendPostgres:
		d, dsn = postgresDialect{}, cfg.DSN
	}

	db, err := sql.Open(d.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Debug("store opened", zap.String("backend", cfg.Backend))
	return &Store{db: db, d: d, backend: cfg.Backend, log: log}, nil
}

// Backend returns the backend name the store was opened with.
func (s *Store) Backend() string { return s.backend }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool. Open sessions must be closed first.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	s.log.Debug("store closed", zap.String("backend", s.backend))
	return nil
}

// EnsureTables creates the backing table of every registered entity type
// that does not exist yet. Existing tables are not altered.
func (s *Store) EnsureTables(ctx context.Context, reg *schema.Registry) error {
	for _, et := range reg.Types() {
		ddl, err := createTableSQL(s.d, et)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", et.Table(), err)
		}
		s.log.Debug("table ready", zap.String("entity", et.Name()), zap.String("table", et.Table()))
	}
	return nil
}

// Session pins one connection for a caller. The caller must Close it.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return &Session{conn: conn, d: s.d}, nil
}

// InUse returns the number of connections currently checked out.
func (s *Store) InUse() int {
	return s.db.Stats().InUse
}
