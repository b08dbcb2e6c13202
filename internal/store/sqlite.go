package store

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/crudkit/internal/schema"
)

// sqliteTimeLayout is fixed width so that TEXT comparison orders values
// chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteDBFile is the database file created in the data directory.
const sqliteDBFile = "crudkit.db"

// sqlitePragmas apply to every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"case_sensitive_like(1)",
}

// sqliteDSN returns the modernc DSN for the database in dataDir.
func sqliteDSN(dataDir string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	// Units take the write lock at BEGIN.
	q.Set("_txlock", "immediate")
	return "file:" + filepath.Join(dataDir, sqliteDBFile) + "?" + q.Encode()
}

type sqliteDialect struct{}

var _ dialect = sqliteDialect{}

func (sqliteDialect) driver() string { return "sqlite" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) ILike(column, placeholder string) string {
	return "lower(" + column + ") LIKE lower(" + placeholder + ")"
}

func (sqliteDialect) UnboundedLimit() string { return "-1" }

func (sqliteDialect) columnType(kind schema.Kind) string {
	switch kind {
	case schema.KindInteger, schema.KindBoolean:
		return "INTEGER"
	case schema.KindReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) boolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (sqliteDialect) nowDefault() string {
	// %f is seconds with milliseconds; pad to the nanosecond layout.
	return "(strftime('%Y-%m-%dT%H:%M:%f000000Z', 'now'))"
}

func (sqliteDialect) Encode(kind schema.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case schema.KindBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case schema.KindTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(sqliteTimeLayout), nil
		}
	case schema.KindUUID:
		if u, ok := v.(uuid.UUID); ok {
			return u.String(), nil
		}
	case schema.KindJSON:
		return encodeJSON(v)
	}
	return v, nil
}

func (sqliteDialect) decode(kind schema.Kind, src any) (any, error) {
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
		switch x := src.(type) {
		case int64:
			return x != 0, nil
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(x)
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
