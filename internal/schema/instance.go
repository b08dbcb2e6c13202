package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Instance is one record of an entity type held in memory. Values are kept
// in their canonical kind representation; a field missing from values has
// not been assigned.
type Instance struct {
	et     *EntityType
	ID     uuid.UUID
	values map[string]any
}

// New returns an empty instance of et with no id and no assigned fields.
func (et *EntityType) New() *Instance {
	return &Instance{et: et, values: make(map[string]any, len(et.fields))}
}

// Construct builds a new instance from data. Only fields present in data are
// assigned, so the store applies column defaults to the rest. The id key is
// ignored; identifiers are assigned by the store.
func (et *EntityType) Construct(data types.Record) (*Instance, error) {
	inst := et.New()
	if err := inst.Assign(data); err != nil {
		return nil, err
	}
	return inst, nil
}

// Type returns the instance's entity type.
func (inst *Instance) Type() *EntityType { return inst.et }

// Set assigns one field through the entity type's setter table.
// Returns ErrUnknownField for names the type does not declare.
func (inst *Instance) Set(name string, v any) error {
	set, ok := inst.et.setters[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", types.ErrUnknownField, inst.et.name, name)
	}
	cv, err := set(v)
	if err != nil {
		return err
	}
	inst.values[name] = cv
	return nil
}

// Get returns the value of a field and whether it has been assigned.
func (inst *Instance) Get(name string) (any, bool) {
	v, ok := inst.values[name]
	return v, ok
}

// Assign copies every field present in data onto the instance and leaves the
// rest untouched (partial update).
func (inst *Instance) Assign(data types.Record) error {
	for name, v := range data {
		if name == types.IDField {
			continue
		}
		if err := inst.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Replace overwrites every field of the instance (full update). Fields absent
// from data take their declared default, or nil when there is none.
func (inst *Instance) Replace(data types.Record) error {
	for name := range data {
		if name == types.IDField {
			continue
		}
		if _, ok := inst.et.setters[name]; !ok {
			return fmt.Errorf("%w: %s.%s", types.ErrUnknownField, inst.et.name, name)
		}
	}
	for _, f := range inst.et.fields {
		v, ok := data[f.Name]
		if !ok {
			v = f.defaultValue()
		}
		if err := inst.Set(f.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// Assigned returns the names of assigned fields in declaration order.
func (inst *Instance) Assigned() []string {
	out := make([]string, 0, len(inst.values))
	for _, f := range inst.et.fields {
		if _, ok := inst.values[f.Name]; ok {
			out = append(out, f.Name)
		}
	}
	return out
}

// Serialize returns the plain mapping for transport: id as a string and every
// declared field, unassigned ones as nil.
func (inst *Instance) Serialize() types.Record {
	rec := make(types.Record, len(inst.et.fields)+1)
	rec[types.IDField] = inst.ID.String()
	for _, f := range inst.et.fields {
		rec[f.Name] = serializeValue(inst.values[f.Name])
	}
	return rec
}

func serializeValue(v any) any {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String()
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}
