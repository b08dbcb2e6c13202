package query

import "github.com/mesh-intelligence/crudkit/internal/schema"

// Dialect is what the compiler needs from a SQL backend to render a Query.
type Dialect interface {
	// Placeholder returns the bind parameter marker for the n-th argument
	// (1-based).
	Placeholder(n int) string

	// Encode converts a canonical field value (see schema.Field.Coerce) to
	// the value bound for a column of the given kind.
	Encode(kind schema.Kind, v any) (any, error)

	// ILike renders a case-insensitive LIKE of column against placeholder.
	ILike(column, placeholder string) string

	// UnboundedLimit is the LIMIT operand meaning "no limit", used when an
	// offset is applied without a limit.
	UnboundedLimit() string
}

// QuoteIdent quotes a SQL identifier. Names reaching the compiler have
// already been validated by the registry.
func QuoteIdent(name string) string {
	return `"` + name + `"`
}
