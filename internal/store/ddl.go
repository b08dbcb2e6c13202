package store

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/crudkit/internal/query"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// createTableSQL renders CREATE TABLE IF NOT EXISTS for et. Existing tables
// are left as they are.
func createTableSQL(d dialect, et *schema.EntityType) (string, error) {
	cols := []string{
		query.QuoteIdent(types.IDField) + " " + d.columnType(schema.KindUUID) + " PRIMARY KEY",
	}
	for _, f := range et.Fields() {
		col := query.QuoteIdent(f.Name) + " " + d.columnType(f.Kind)
		if f.Required {
			col += " NOT NULL"
		}
		if f.Unique {
			col += " UNIQUE"
		}
		switch {
		case f.DefaultIsNow():
			col += " DEFAULT " + d.nowDefault()
		case f.HasDefault():
			lit, err := literal(d, f.Kind, f.Default)
			if err != nil {
				return "", fmt.Errorf("default for %s.%s: %w", et.Name(), f.Name, err)
			}
			col += " DEFAULT " + lit
		}
		cols = append(cols, col)
	}
	return "CREATE TABLE IF NOT EXISTS " + query.QuoteIdent(et.Table()) +
		" (\n    " + strings.Join(cols, ",\n    ") + "\n)", nil
}
