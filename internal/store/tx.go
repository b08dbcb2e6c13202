package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudkit/internal/query"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Tx is a unit of work in progress on a session.
type Tx struct {
	tx *sql.Tx
	d  dialect
}

// Get returns the instance of et with the given id.
// Returns ErrNotFound if there is none.
func (t *Tx) Get(ctx context.Context, et *schema.EntityType, id uuid.UUID) (*schema.Instance, error) {
	return getInstance(ctx, t.tx, t.d, et, id)
}

// Insert writes inst with a new UUID v7 identifier, which is stored on inst.
// Only assigned fields are written; the others take their column defaults.
func (t *Tx) Insert(ctx context.Context, inst *schema.Instance) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	et := inst.Type()

	cols := []string{query.QuoteIdent(types.IDField)}
	phs := []string{t.d.Placeholder(1)}
	args := []any{id.String()}
	for _, name := range inst.Assigned() {
		f, _ := et.Field(name)
		v, _ := inst.Get(name)
		ev, err := t.d.Encode(f.Kind, v)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", et.Name(), name, err)
		}
		args = append(args, ev)
		cols = append(cols, query.QuoteIdent(name))
		phs = append(phs, t.d.Placeholder(len(args)))
	}

	stmt := "INSERT INTO " + query.QuoteIdent(et.Table()) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(phs, ", ") + ")"
	if _, err := t.tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert %s: %w", et.Name(), err)
	}
	inst.ID = id
	return nil
}

// Update writes the assigned fields of inst to the row with inst.ID.
// Returns ErrNotFound if no such row exists.
func (t *Tx) Update(ctx context.Context, inst *schema.Instance) error {
	et := inst.Type()
	assigned := inst.Assigned()
	if len(assigned) == 0 {
		_, err := t.Get(ctx, et, inst.ID)
		return err
	}

	sets := make([]string, 0, len(assigned))
	args := make([]any, 0, len(assigned)+1)
	for _, name := range assigned {
		f, _ := et.Field(name)
		v, _ := inst.Get(name)
		ev, err := t.d.Encode(f.Kind, v)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", et.Name(), name, err)
		}
		args = append(args, ev)
		sets = append(sets, query.QuoteIdent(name)+" = "+t.d.Placeholder(len(args)))
	}
	args = append(args, inst.ID.String())

	stmt := "UPDATE " + query.QuoteIdent(et.Table()) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + query.QuoteIdent(types.IDField) + " = " + t.d.Placeholder(len(args))
	res, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", et.Name(), err)
	}
	return requireRow(res, et, inst.ID)
}

// Delete removes the row of et with the given id.
// Returns ErrNotFound if no such row exists.
func (t *Tx) Delete(ctx context.Context, et *schema.EntityType, id uuid.UUID) error {
	stmt := "DELETE FROM " + query.QuoteIdent(et.Table()) +
		" WHERE " + query.QuoteIdent(types.IDField) + " = " + t.d.Placeholder(1)
	res, err := t.tx.ExecContext(ctx, stmt, id.String())
	if err != nil {
		return fmt.Errorf("delete %s: %w", et.Name(), err)
	}
	return requireRow(res, et, id)
}

func requireRow(res sql.Result, et *schema.EntityType, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", types.ErrNotFound, et.Name(), id)
	}
	return nil
}
