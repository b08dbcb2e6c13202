// Package engine implements the generic CRUD operations over registered
// entity types. Every operation runs against a caller-owned session, and the
// store work of each operation is one unit on the offload pool.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudkit/internal/offload"
	"github.com/mesh-intelligence/crudkit/internal/query"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/internal/store"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Session is the store session an operation runs against.
type Session interface {
	Select(ctx context.Context, q *query.Query) ([]*schema.Instance, error)
	Count(ctx context.Context, q *query.Query) (int64, error)
	Get(ctx context.Context, et *schema.EntityType, id uuid.UUID) (*schema.Instance, error)
	Unit(ctx context.Context, fn func(tx *store.Tx) error) error
}

var _ Session = (*store.Session)(nil)

// ListOptions refine a List. The zero value lists everything in id order.
type ListOptions struct {
	Filters []types.Filter
	Sort    []types.SortClause
	Page    types.Page
}

// Engine runs CRUD operations. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	pool *offload.Pool
}

// New returns an engine that offloads store work to pool.
func New(pool *offload.Pool) *Engine {
	return &Engine{pool: pool}
}

// List returns the serialized instances of et matching opts, filtered, then
// sorted, then paginated. No match yields an empty, non-nil slice.
func (e *Engine) List(ctx context.Context, sess Session, et *schema.EntityType, opts ListOptions) ([]types.Record, error) {
	q, err := buildQuery(et, opts.Filters, opts.Sort)
	if err != nil {
		return nil, err
	}
	if q, err = q.Page(opts.Page); err != nil {
		return nil, err
	}

	found, err := offload.Run(ctx, e.pool, func(ctx context.Context) ([]*schema.Instance, error) {
		return sess.Select(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", et.Name(), err)
	}
	out := make([]types.Record, len(found))
	for i, inst := range found {
		out[i] = inst.Serialize()
	}
	return out, nil
}

// Count returns the number of instances of et matching filters. The sort
// specification is validated but does not affect the result.
func (e *Engine) Count(ctx context.Context, sess Session, et *schema.EntityType, filters []types.Filter, sort []types.SortClause) (int64, error) {
	q, err := buildQuery(et, filters, sort)
	if err != nil {
		return 0, err
	}
	n, err := offload.Run(ctx, e.pool, func(ctx context.Context) (int64, error) {
		return sess.Count(ctx, q)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", et.Name(), err)
	}
	return n, nil
}

// Create persists a new instance of et built from data and returns it as
// stored, including the generated id and column defaults. Store rejections
// such as constraint violations are returned wrapped.
func (e *Engine) Create(ctx context.Context, sess Session, et *schema.EntityType, data types.Record) (types.Record, error) {
	inst, err := et.Construct(data)
	if err != nil {
		return nil, err
	}
	return e.write(ctx, sess, et, "create", func(ctx context.Context, tx *store.Tx) (uuid.UUID, error) {
		if err := tx.Insert(ctx, inst); err != nil {
			return uuid.Nil, err
		}
		return inst.ID, nil
	})
}

// Retrieve returns the instance of et with the given id.
// Returns ErrNotFound if there is none.
func (e *Engine) Retrieve(ctx context.Context, sess Session, et *schema.EntityType, id uuid.UUID) (types.Record, error) {
	inst, err := offload.Run(ctx, e.pool, func(ctx context.Context) (*schema.Instance, error) {
		return sess.Get(ctx, et, id)
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", et.Name(), err)
	}
	return inst.Serialize(), nil
}

// Update replaces every field of the instance with the given id. Fields
// absent from data take their declared default, or null.
// Returns ErrNotFound, with nothing written, if there is no such instance.
func (e *Engine) Update(ctx context.Context, sess Session, et *schema.EntityType, id uuid.UUID, data types.Record) (types.Record, error) {
	return e.modify(ctx, sess, et, id, "update", func(inst *schema.Instance) error {
		return inst.Replace(data)
	})
}

// Patch assigns only the fields present in data on the instance with the
// given id. Returns ErrNotFound if there is no such instance.
func (e *Engine) Patch(ctx context.Context, sess Session, et *schema.EntityType, id uuid.UUID, data types.Record) (types.Record, error) {
	return e.modify(ctx, sess, et, id, "patch", func(inst *schema.Instance) error {
		return inst.Assign(data)
	})
}

// Delete removes the instance with the given id and returns its form from
// before the removal. Returns ErrNotFound if there is no such instance.
func (e *Engine) Delete(ctx context.Context, sess Session, et *schema.EntityType, id uuid.UUID) (types.Record, error) {
	rec, err := offload.Run(ctx, e.pool, func(ctx context.Context) (types.Record, error) {
		var captured types.Record
		err := sess.Unit(ctx, func(tx *store.Tx) error {
			inst, err := tx.Get(ctx, et, id)
			if err != nil {
				return err
			}
			captured = inst.Serialize()
			return tx.Delete(ctx, et, id)
		})
		return captured, err
	})
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", et.Name(), err)
	}
	return rec, nil
}

// modify looks up the instance, applies change to it, and writes it back.
// The change runs inside the unit so a failed coercion writes nothing.
func (e *Engine) modify(ctx context.Context, sess Session, et *schema.EntityType, id uuid.UUID, verb string, change func(*schema.Instance) error) (types.Record, error) {
	return e.write(ctx, sess, et, verb, func(ctx context.Context, tx *store.Tx) (uuid.UUID, error) {
		inst, err := tx.Get(ctx, et, id)
		if err != nil {
			return uuid.Nil, err
		}
		if err := change(inst); err != nil {
			return uuid.Nil, err
		}
		if err := tx.Update(ctx, inst); err != nil {
			return uuid.Nil, err
		}
		return inst.ID, nil
	})
}

// write runs fn in a unit of work, commits, and re-reads the written row so
// the result reflects what the store holds.
func (e *Engine) write(ctx context.Context, sess Session, et *schema.EntityType, verb string, fn func(ctx context.Context, tx *store.Tx) (uuid.UUID, error)) (types.Record, error) {
	inst, err := offload.Run(ctx, e.pool, func(ctx context.Context) (*schema.Instance, error) {
		var id uuid.UUID
		err := sess.Unit(ctx, func(tx *store.Tx) error {
			var err error
			id, err = fn(ctx, tx)
			return err
		})
		if err != nil {
			return nil, err
		}
		return sess.Get(ctx, et, id)
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", verb, et.Name(), err)
	}
	return inst.Serialize(), nil
}

func buildQuery(et *schema.EntityType, filters []types.Filter, sort []types.SortClause) (*query.Query, error) {
	q, err := query.Select(et).Filter(filters)
	if err != nil {
		return nil, err
	}
	return q.Sort(sort)
}
