package query

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// orderBy is a validated sort clause.
type orderBy struct {
	column string
	desc   bool
	nulls  string
}

func compileSort(et *schema.EntityType, s types.SortClause) (orderBy, error) {
	if _, ok := et.Field(s.Field); !ok {
		return orderBy{}, fmt.Errorf("%w: %s.%s", types.ErrUnknownField, et.Name(), s.Field)
	}
	o := orderBy{column: s.Field}
	switch types.Direction(strings.ToLower(string(s.Direction))) {
	case "", types.Asc:
	case types.Desc:
		o.desc = true
	default:
		return orderBy{}, fmt.Errorf("%w: direction %q", types.ErrInvalidSort, s.Direction)
	}
	switch strings.ToLower(s.Nulls) {
	case "":
	case types.NullsFirst:
		o.nulls = "FIRST"
	case types.NullsLast:
		o.nulls = "LAST"
	default:
		return orderBy{}, fmt.Errorf("%w: nulls %q", types.ErrInvalidSort, s.Nulls)
	}
	return o, nil
}

func (o orderBy) render(b *builder) {
	b.WriteString(QuoteIdent(o.column))
	if o.desc {
		b.WriteString(" DESC")
	} else {
		b.WriteString(" ASC")
	}
	if o.nulls != "" {
		b.WriteString(" NULLS " + o.nulls)
	}
}
