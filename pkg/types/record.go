package types

// IDField is the name of the identifier column every entity type carries.
const IDField = "id"

// Record is the serialized form of an entity instance: field name to value.
// The engine never interprets its contents.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
