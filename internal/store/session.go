package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudkit/internal/query"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Session is one caller's view of the store, backed by a single pinned
// connection. Work on a session is serialized.
type Session struct {
	mu   sync.Mutex
	conn *sql.Conn
	d    dialect
}

// execer is the part of *sql.Conn and *sql.Tx the statements below use.
type execer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// Select runs q and returns the matching instances in query order.
func (s *Session) Select(ctx context.Context, q *query.Query) ([]*schema.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectInstances(ctx, s.conn, s.d, q)
}

// Count returns the number of rows matching q's filters.
func (s *Session) Count(ctx context.Context, q *query.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, args, err := q.CountSQL(s.d)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.conn.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.EntityType().Table(), err)
	}
	return n, nil
}

// Get returns the instance of et with the given id.
// Returns ErrNotFound if there is none.
func (s *Session) Get(ctx context.Context, et *schema.EntityType, id uuid.UUID) (*schema.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getInstance(ctx, s.conn, s.d, et, id)
}

// Unit runs fn in a transaction on the session's connection. The transaction
// commits if fn returns nil and rolls back otherwise.
func (s *Session) Unit(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Tx{tx: sqlTx, d: s.d}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func selectInstances(ctx context.Context, db execer, d dialect, q *query.Query) ([]*schema.Instance, error) {
	et := q.EntityType()
	stmt, args, err := q.SelectSQL(d)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", et.Table(), err)
	}
	defer rows.Close()

	out := []*schema.Instance{}
	for rows.Next() {
		inst, err := scanInstance(rows, d, et)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", et.Table(), err)
	}
	return out, nil
}

func getInstance(ctx context.Context, db execer, d dialect, et *schema.EntityType, id uuid.UUID) (*schema.Instance, error) {
	q, err := query.Select(et).Filter([]types.Filter{types.Where(types.IDField, types.OpEq, id)})
	if err != nil {
		return nil, err
	}
	found, err := selectInstances(ctx, db, d, q)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s %s", types.ErrNotFound, et.Name(), id)
	}
	return found[0], nil
}

// scanInstance reads one row laid out as et.Columns().
func scanInstance(rows *sql.Rows, d dialect, et *schema.EntityType) (*schema.Instance, error) {
	cols := et.Columns()
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan %s: %w", et.Table(), err)
	}

	inst := et.New()
	idv, err := d.decode(schema.KindUUID, raw[0])
	if err != nil {
		return nil, fmt.Errorf("read %s.id: %w", et.Table(), err)
	}
	inst.ID = idv.(uuid.UUID)

	for i, f := range et.Fields() {
		v, err := d.decode(f.Kind, raw[i+1])
		if err != nil {
			return nil, fmt.Errorf("read %s.%s: %w", et.Table(), f.Name, err)
		}
		if err := inst.Set(f.Name, v); err != nil {
			return nil, fmt.Errorf("read %s.%s: %w", et.Table(), f.Name, err)
		}
	}
	return inst, nil
}
