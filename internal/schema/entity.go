package schema

import (
	"fmt"
	"regexp"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// identPattern restricts entity, table and field names to plain SQL
// identifiers so they can be interpolated into statements.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// EntityDef declares an entity type. Table defaults to Name.
type EntityDef struct {
	Name   string  `json:"name" yaml:"name" mapstructure:"name"`
	Table  string  `json:"table,omitempty" yaml:"table,omitempty" mapstructure:"table"`
	Fields []Field `json:"fields" yaml:"fields" mapstructure:"fields"`
}

// setter coerces an incoming value for one field.
type setter func(v any) (any, error)

// EntityType is a registered kind of persisted object. It is immutable after
// registration; every instance carries a UUID identifier in the id column.
type EntityType struct {
	name    string
	table   string
	fields  []Field
	index   map[string]int
	setters map[string]setter
}

// newEntityType validates def and builds the field index and setter table.
func newEntityType(def EntityDef) (*EntityType, error) {
	if !identPattern.MatchString(def.Name) {
		return nil, fmt.Errorf("%w: entity type %q", types.ErrInvalidName, def.Name)
	}
	table := def.Table
	if table == "" {
		table = def.Name
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: table %q", types.ErrInvalidName, table)
	}

	et := &EntityType{
		name:    def.Name,
		table:   table,
		fields:  make([]Field, 0, len(def.Fields)),
		index:   make(map[string]int, len(def.Fields)),
		setters: make(map[string]setter, len(def.Fields)),
	}
	for _, f := range def.Fields {
		if !identPattern.MatchString(f.Name) || f.Name == types.IDField {
			return nil, fmt.Errorf("%w: field %q of %s", types.ErrInvalidName, f.Name, def.Name)
		}
		if !validKinds[f.Kind] {
			return nil, fmt.Errorf("%w: %q for field %s.%s", types.ErrInvalidFieldKind, f.Kind, def.Name, f.Name)
		}
		if _, dup := et.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s.%s", types.ErrDuplicateField, def.Name, f.Name)
		}
		if f.Default != nil && !f.DefaultIsNow() {
			v, err := f.Coerce(f.Default)
			if err != nil {
				return nil, fmt.Errorf("default for %s.%s: %w", def.Name, f.Name, err)
			}
			f.Default = v
		}
		et.index[f.Name] = len(et.fields)
		et.fields = append(et.fields, f)
		et.setters[f.Name] = f.Coerce
	}
	return et, nil
}

// Name returns the stable entity type name.
func (et *EntityType) Name() string { return et.name }

// Table returns the backing table name.
func (et *EntityType) Table() string { return et.table }

// Fields returns a copy of the fields in declaration order, excluding id.
func (et *EntityType) Fields() []Field {
	out := make([]Field, len(et.fields))
	copy(out, et.fields)
	return out
}

// Field returns the named field. The id column is reported as a uuid field.
func (et *EntityType) Field(name string) (Field, bool) {
	if name == types.IDField {
		return Field{Name: types.IDField, Kind: KindUUID, Required: true, Unique: true}, true
	}
	i, ok := et.index[name]
	if !ok {
		return Field{}, false
	}
	return et.fields[i], true
}

// Columns returns id followed by every field name, in declaration order.
func (et *EntityType) Columns() []string {
	cols := make([]string, 0, len(et.fields)+1)
	cols = append(cols, types.IDField)
	for _, f := range et.fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// Def returns the definition the type was registered from.
func (et *EntityType) Def() EntityDef {
	return EntityDef{Name: et.name, Table: et.table, Fields: et.Fields()}
}
