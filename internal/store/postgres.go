package store

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mesh-intelligence/crudkit/internal/schema"
)

type postgresDialect struct{}

var _ dialect = postgresDialect{}

func (postgresDialect) driver() string { return "pgx" }

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) ILike(column, placeholder string) string {
	return column + " ILIKE " + placeholder
}

func (postgresDialect) UnboundedLimit() string { return "ALL" }

func (postgresDialect) columnType(kind schema.Kind) string {
	switch kind {
	case schema.KindInteger:
		return "BIGINT"
	case schema.KindReal:
		return "DOUBLE PRECISION"
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindTime:
		return "TIMESTAMPTZ"
	case schema.KindUUID:
		return "UUID"
	case schema.KindJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (postgresDialect) boolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (postgresDialect) nowDefault() string { return "now()" }

func (postgresDialect) Encode(kind schema.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case schema.KindUUID:
		if u, ok := v.(uuid.UUID); ok {
			return u.String(), nil
		}
	case schema.KindJSON:
		return encodeJSON(v)
	}
	return v, nil
}

func (postgresDialect) decode(kind schema.Kind, src any) (any, error) {
	if src == nil {
		return nil, nil
	}
	switch kind {
	case schema.KindText:
		return decodeText(src)
	case schema.KindInteger:
		return decodeInteger(src)
	case schema.KindReal:
		return decodeReal(src)
	case schema.KindBoolean:
		if b, ok := src.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("cannot read %T as boolean", src)
	case schema.KindTime:
		return decodeTime(src)
	case schema.KindUUID:
		return decodeUUID(src)
	case schema.KindJSON:
		return decodeJSON(src)
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}
