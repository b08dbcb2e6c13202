package query

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// expr is a compiled filter clause.
type expr interface {
	render(b *builder) error
}

// comparison is a single field predicate with a coerced value.
type comparison struct {
	field  schema.Field
	op     types.Operator
	value  any
	values []any // in, not_in
}

// group joins member clauses with AND or OR, optionally negated.
type group struct {
	conj    string
	negate  bool
	members []expr
}

var comparisonSQL = map[types.Operator]string{
	types.OpEq: "=",
	types.OpNe: "<>",
	types.OpLt: "<",
	types.OpLe: "<=",
	types.OpGt: ">",
	types.OpGe: ">=",
}

func compileFilter(et *schema.EntityType, f types.Filter) (expr, error) {
	if f.IsGroup() {
		return compileGroup(et, f)
	}
	if f.Field == "" {
		return nil, fmt.Errorf("%w: clause has no field", types.ErrInvalidFilter)
	}
	field, ok := et.Field(f.Field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrUnknownField, et.Name(), f.Field)
	}
	op, err := types.ParseOperator(string(f.Op))
	if err != nil {
		return nil, err
	}

	c := &comparison{field: field, op: op}
	switch op {
	case types.OpIsNull, types.OpIsNotNull:
		return c, nil
	case types.OpEq, types.OpNe:
		if f.Value == nil {
			c.op = types.OpIsNull
			if op == types.OpNe {
				c.op = types.OpIsNotNull
			}
			return c, nil
		}
	case types.OpLike, types.OpILike, types.OpNotILike:
		if field.Kind != schema.KindText {
			return nil, fmt.Errorf("%w: %s applies to text fields, %s is %s", types.ErrInvalidFilter, op, field.Name, field.Kind)
		}
		s, ok := f.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a string pattern, got %T", types.ErrInvalidFilter, op, f.Value)
		}
		c.value = s
		return c, nil
	case types.OpIn, types.OpNotIn:
		items, ok := listValues(f.Value)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a list value, got %T", types.ErrInvalidFilter, op, f.Value)
		}
		for _, item := range items {
			v, err := field.Coerce(item)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrInvalidFilter, err)
			}
			c.values = append(c.values, v)
		}
		return c, nil
	}

	if f.Value == nil {
		return nil, fmt.Errorf("%w: %s needs a value", types.ErrInvalidFilter, op)
	}
	v, err := field.Coerce(f.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidFilter, err)
	}
	c.value = v
	return c, nil
}

func compileGroup(et *schema.EntityType, f types.Filter) (expr, error) {
	if f.Field != "" || f.Op != "" {
		return nil, fmt.Errorf("%w: group clause must not name a field or operator", types.ErrInvalidFilter)
	}
	set := 0
	g := &group{}
	var members []types.Filter
	if f.Or != nil {
		set++
		g.conj, members = "OR", f.Or
	}
	if f.And != nil {
		set++
		g.conj, members = "AND", f.And
	}
	if f.Not != nil {
		set++
		g.conj, g.negate, members = "AND", true, f.Not
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: group clause must use exactly one of or, and, not", types.ErrInvalidFilter)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: empty %s group", types.ErrInvalidFilter, strings.ToLower(g.conj))
	}
	for _, m := range members {
		e, err := compileFilter(et, m)
		if err != nil {
			return nil, err
		}
		g.members = append(g.members, e)
	}
	return g, nil
}

// listValues accepts the slice shapes that decoded JSON and Go callers use.
func listValues(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		return toAny(l), true
	case []int:
		return toAny(l), true
	case []int64:
		return toAny(l), true
	case []float64:
		return toAny(l), true
	case []bool:
		return toAny(l), true
	case []uuid.UUID:
		return toAny(l), true
	}
	return nil, false
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func (c *comparison) render(b *builder) error {
	col := QuoteIdent(c.field.Name)
	switch c.op {
	case types.OpIsNull:
		b.WriteString(col + " IS NULL")
	case types.OpIsNotNull:
		b.WriteString(col + " IS NOT NULL")
	case types.OpLike:
		ph, err := b.bind(schema.KindText, c.value)
		if err != nil {
			return err
		}
		b.WriteString(col + " LIKE " + ph)
	case types.OpILike, types.OpNotILike:
		ph, err := b.bind(schema.KindText, c.value)
		if err != nil {
			return err
		}
		if c.op == types.OpNotILike {
			b.WriteString("NOT ")
		}
		b.WriteString(b.d.ILike(col, ph))
	case types.OpIn, types.OpNotIn:
		if len(c.values) == 0 {
			// IN () is not valid SQL; an empty set matches nothing.
			if c.op == types.OpIn {
				b.WriteString("1 = 0")
			} else {
				b.WriteString("1 = 1")
			}
			return nil
		}
		phs := make([]string, len(c.values))
		for i, v := range c.values {
			ph, err := b.bind(c.field.Kind, v)
			if err != nil {
				return err
			}
			phs[i] = ph
		}
		kw := " IN ("
		if c.op == types.OpNotIn {
			kw = " NOT IN ("
		}
		b.WriteString(col + kw + strings.Join(phs, ", ") + ")")
	default:
		ph, err := b.bind(c.field.Kind, c.value)
		if err != nil {
			return err
		}
		b.WriteString(col + " " + comparisonSQL[c.op] + " " + ph)
	}
	return nil
}

func (g *group) render(b *builder) error {
	if g.negate {
		b.WriteString("NOT ")
	}
	b.WriteString("(")
	for i, m := range g.members {
		if i > 0 {
			b.WriteString(" " + g.conj + " ")
		}
		if err := m.render(b); err != nil {
			return err
		}
	}
	b.WriteString(")")
	return nil
}
