package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Query selects instances of one entity type.
type Query struct {
	et     *schema.EntityType
	where  []expr
	order  []orderBy
	limit  int
	offset int
}

// Select returns a query for all instances of et.
func Select(et *schema.EntityType) *Query {
	return &Query{et: et}
}

// EntityType returns the entity type the query selects.
func (q *Query) EntityType() *schema.EntityType { return q.et }

func (q *Query) clone() *Query {
	c := *q
	c.where = append([]expr(nil), q.where...)
	c.order = append([]orderBy(nil), q.order...)
	return &c
}

// Filter returns a query refined by every clause of spec (conjunction).
// Unknown fields and operators, and values that do not fit the field, are
// reported before anything is executed.
func (q *Query) Filter(spec []types.Filter) (*Query, error) {
	c := q.clone()
	for i, f := range spec {
		e, err := compileFilter(q.et, f)
		if err != nil {
			return nil, fmt.Errorf("filter clause %d: %w", i, err)
		}
		c.where = append(c.where, e)
	}
	return c, nil
}

// Sort returns a query ordered by spec. Earlier clauses take precedence.
func (q *Query) Sort(spec []types.SortClause) (*Query, error) {
	c := q.clone()
	for i, s := range spec {
		o, err := compileSort(q.et, s)
		if err != nil {
			return nil, fmt.Errorf("sort clause %d: %w", i, err)
		}
		c.order = append(c.order, o)
	}
	return c, nil
}

// Limit bounds the number of rows returned. Zero removes the bound.
func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.limit = n
	return c
}

// Offset skips the first n rows of the filtered and sorted result.
func (q *Query) Offset(n int) *Query {
	c := q.clone()
	c.offset = n
	return c
}

// Page applies p as a limit and an offset after validating it.
func (q *Query) Page(p types.Page) (*Query, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return q.Limit(p.Limit).Offset(p.Offset), nil
}

// SelectSQL renders the query. Rows are ordered by the sort clauses and then
// by id, so pages are stable. The window is always [offset, offset+limit)
// regardless of the order Limit and Offset were called in.
func (q *Query) SelectSQL(d Dialect) (string, []any, error) {
	b := &builder{d: d}
	cols := q.et.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(" FROM ")
	b.WriteString(QuoteIdent(q.et.Table()))
	if err := q.renderWhere(b); err != nil {
		return "", nil, err
	}

	b.WriteString(" ORDER BY ")
	for _, o := range q.order {
		o.render(b)
		b.WriteString(", ")
	}
	b.WriteString(QuoteIdent(types.IDField) + " ASC")

	switch {
	case q.limit > 0:
		b.WriteString(" LIMIT " + strconv.Itoa(q.limit))
		if q.offset > 0 {
			b.WriteString(" OFFSET " + strconv.Itoa(q.offset))
		}
	case q.offset > 0:
		b.WriteString(" LIMIT " + d.UnboundedLimit() + " OFFSET " + strconv.Itoa(q.offset))
	}
	return b.String(), b.args, nil
}

// CountSQL renders a count of the rows matching the filters. Ordering and
// pagination do not apply.
func (q *Query) CountSQL(d Dialect) (string, []any, error) {
	b := &builder{d: d}
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(QuoteIdent(q.et.Table()))
	if err := q.renderWhere(b); err != nil {
		return "", nil, err
	}
	return b.String(), b.args, nil
}

func (q *Query) renderWhere(b *builder) error {
	if len(q.where) == 0 {
		return nil
	}
	b.WriteString(" WHERE ")
	for i, e := range q.where {
		if i > 0 {
			b.WriteString(" AND ")
		}
		if err := e.render(b); err != nil {
			return err
		}
	}
	return nil
}

// builder accumulates SQL text and bind arguments.
type builder struct {
	strings.Builder
	d    Dialect
	args []any
}

// bind encodes v for kind and returns its placeholder.
func (b *builder) bind(kind schema.Kind, v any) (string, error) {
	ev, err := b.d.Encode(kind, v)
	if err != nil {
		return "", err
	}
	b.args = append(b.args, ev)
	return b.d.Placeholder(len(b.args)), nil
}
