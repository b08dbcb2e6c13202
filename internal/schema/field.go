package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Kind is the value type of a field.
type Kind string

// Field kinds.
const (
	KindText    Kind = "text"
	KindInteger Kind = "integer"
	KindReal    Kind = "real"
	KindBoolean Kind = "boolean"
	KindTime    Kind = "time"
	KindUUID    Kind = "uuid"
	KindJSON    Kind = "json"
)

// validKinds is the set of recognized field kinds.
var validKinds = map[Kind]bool{
	KindText:    true,
	KindInteger: true,
	KindReal:    true,
	KindBoolean: true,
	KindTime:    true,
	KindUUID:    true,
	KindJSON:    true,
}

// DefaultNow is the default literal that asks the store for the current
// timestamp. Only valid on time fields.
const DefaultNow = "now"

// Field describes one column of an entity type.
type Field struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name"`
	Kind     Kind   `json:"kind" yaml:"kind" mapstructure:"kind"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Unique   bool   `json:"unique,omitempty" yaml:"unique,omitempty" mapstructure:"unique"`
	Default  any    `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
}

// DefaultIsNow reports whether the field defaults to the store's current time.
func (f Field) DefaultIsNow() bool {
	s, ok := f.Default.(string)
	return ok && f.Kind == KindTime && strings.EqualFold(s, DefaultNow)
}

// HasDefault reports whether the field declares a default value.
func (f Field) HasDefault() bool {
	return f.Default != nil
}

// defaultValue returns the value an absent field takes on a full replace.
func (f Field) defaultValue() any {
	if f.DefaultIsNow() {
		return time.Now().UTC()
	}
	return f.Default
}

// Coerce converts v to the canonical Go representation for the field kind:
// string, int64, float64, bool, time.Time (UTC), uuid.UUID, or any JSON value.
// nil passes through. Values decoded from JSON are accepted.
func (f Field) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, err := coerce(f.Kind, v)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", types.ErrInvalidData, f.Name, err)
	}
	return out, nil
}

func coerce(kind Kind, v any) (any, error) {
	switch kind {
	case KindText:
		switch s := v.(type) {
		case string:
			return s, nil
		case uuid.UUID:
			return s.String(), nil
		}
	case KindInteger:
		return toInt64(v)
	case KindReal:
		return toFloat64(v)
	case KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			return ParseTime(t)
		}
	case KindUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u, nil
		case [16]byte:
			return uuid.UUID(u), nil
		case string:
			return uuid.Parse(u)
		}
	case KindJSON:
		if _, err := json.Marshal(v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, kind)
}

func toInt64(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float32:
		return toInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%v is not an integer", n)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return nil, fmt.Errorf("%v is out of the integer range", n)
		}
		return int64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		// Forms such as 1e3 or 10.0 are integral but not plain digits.
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s is not an integer", n)
		}
		return toInt64(f)
	}
	return nil, fmt.Errorf("cannot use %T as integer", v)
}

func toFloat64(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return nil, fmt.Errorf("cannot use %T as real", v)
}

// timeLayouts are tried in order by ParseTime. The second is what SQLite's
// CURRENT_TIMESTAMP produces.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// ParseTime parses s with the layouts the registry and the stores produce.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}
