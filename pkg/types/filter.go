package types

import (
	"fmt"
	"strings"
)

// Operator names a comparison applied by a filter clause.
type Operator string

// Filter operators.
const (
	OpEq        Operator = "eq"
	OpNe        Operator = "ne"
	OpLt        Operator = "lt"
	OpLe        Operator = "le"
	OpGt        Operator = "gt"
	OpGe        Operator = "ge"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpLike      Operator = "like"
	OpILike     Operator = "ilike"
	OpNotILike  Operator = "not_ilike"
	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"
)

// operatorAliases maps every accepted spelling to its canonical operator.
var operatorAliases = map[string]Operator{
	"eq":          OpEq,
	"==":          OpEq,
	"=":           OpEq,
	"ne":          OpNe,
	"!=":          OpNe,
	"<>":          OpNe,
	"lt":          OpLt,
	"<":           OpLt,
	"le":          OpLe,
	"<=":          OpLe,
	"gt":          OpGt,
	">":           OpGt,
	"ge":          OpGe,
	">=":          OpGe,
	"in":          OpIn,
	"not_in":      OpNotIn,
	"like":        OpLike,
	"ilike":       OpILike,
	"not_ilike":   OpNotILike,
	"is_null":     OpIsNull,
	"is_not_null": OpIsNotNull,
}

// ParseOperator returns the canonical operator for s.
// Returns ErrUnknownOperator if s is not a recognized spelling.
func ParseOperator(s string) (Operator, error) {
	op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
	return op, nil
}

// Unary reports whether the operator ignores the clause value.
func (o Operator) Unary() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Filter is one clause of a filter specification. A clause is either a
// comparison (Field, Op, Value) or a boolean group: exactly one of Or, And,
// Not is set and its members are themselves clauses. Top-level clauses of a
// specification are combined with AND.
type Filter struct {
	Field string   `json:"field,omitempty"`
	Op    Operator `json:"op,omitempty"`
	Value any      `json:"value,omitempty"`

	Or  []Filter `json:"or,omitempty"`
	And []Filter `json:"and,omitempty"`
	Not []Filter `json:"not,omitempty"`
}

// Where is shorthand for a comparison clause.
func Where(field string, op Operator, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// IsGroup reports whether f is a boolean group rather than a comparison.
func (f Filter) IsGroup() bool {
	return f.Or != nil || f.And != nil || f.Not != nil
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Null placement for a sort clause.
const (
	NullsFirst = "first"
	NullsLast  = "last"
)

// SortClause orders results by one field. Clause order in a sort
// specification is precedence order: the first clause is the primary key.
type SortClause struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction,omitempty"`
	Nulls     string    `json:"nulls,omitempty"`
}

// Page selects a window of a result set: skip Offset rows, then take at most
// Limit rows. A zero Limit means unbounded.
type Page struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Validate returns ErrInvalidPage if either bound is negative.
func (p Page) Validate() error {
	if p.Offset < 0 {
		return fmt.Errorf("%w: offset %d is negative", ErrInvalidPage, p.Offset)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: limit %d is negative", ErrInvalidPage, p.Limit)
	}
	return nil
}
