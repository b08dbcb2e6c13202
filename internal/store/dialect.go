package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudkit/internal/query"
	"github.com/mesh-intelligence/crudkit/internal/schema"
)

// dialect is everything the store needs to talk to one SQL backend.
type dialect interface {
	query.Dialect

	// driver is the database/sql driver name.
	driver() string

	// columnType returns the column type for a field kind.
	columnType(kind schema.Kind) string

	// boolLiteral renders a boolean constant.
	boolLiteral(b bool) string

	// nowDefault is the DEFAULT expression for the current timestamp.
	nowDefault() string

	// decode converts a scanned column value to the canonical value for kind.
	decode(kind schema.Kind, src any) (any, error)
}

// literal renders an encoded value as a SQL constant for DEFAULT clauses.
func literal(d dialect, kind schema.Kind, v any) (string, error) {
	ev, err := d.Encode(kind, v)
	if err != nil {
		return "", err
	}
	switch x := ev.(type) {
	case nil:
		return "NULL", nil
	case string:
		return quoteString(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		return d.boolLiteral(x), nil
	case time.Time:
		return quoteString(x.UTC().Format(time.RFC3339Nano)), nil
	}
	return "", fmt.Errorf("no literal form for %T", ev)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func encodeJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}

func decodeJSON(src any) (any, error) {
	var raw []byte
	switch x := src.(type) {
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	default:
		return src, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}

func decodeText(src any) (any, error) {
	switch x := src.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return nil, fmt.Errorf("cannot read %T as text", src)
}

func decodeUUID(src any) (any, error) {
	switch x := src.(type) {
	case string:
		return uuid.Parse(x)
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		return uuid.ParseBytes(x)
	case [16]byte:
		return uuid.UUID(x), nil
	}
	return nil, fmt.Errorf("cannot read %T as uuid", src)
}

func decodeTime(src any) (any, error) {
	switch x := src.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		return schema.ParseTime(x)
	case []byte:
		return schema.ParseTime(string(x))
	}
	return nil, fmt.Errorf("cannot read %T as time", src)
}

func decodeInteger(src any) (any, error) {
	switch x := src.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return nil, fmt.Errorf("cannot read %T as integer", src)
}

func decodeReal(src any) (any, error) {
	switch x := src.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return nil, fmt.Errorf("cannot read %T as real", src)
}
