package schema

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func mustPeople(t *testing.T) *EntityType {
	t.Helper()
	et, err := NewRegistry().Register(peopleDef())
	require.NoError(t, err)
	return et
}

func TestConstruct(t *testing.T) {
	et := mustPeople(t)

	inst, err := et.Construct(types.Record{"name": "Ada", "age": float64(36), "id": "ignored"})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age"}, inst.Assigned())
	age, ok := inst.Get("age")
	require.True(t, ok)
	assert.Equal(t, int64(36), age)
	assert.Equal(t, uuid.Nil, inst.ID)
}

func TestConstructErrors(t *testing.T) {
	et := mustPeople(t)

	tests := []struct {
		name    string
		data    types.Record
		wantErr error
	}{
		{"unknown field", types.Record{"height": 180}, types.ErrUnknownField},
		{"fractional integer", types.Record{"age": 3.5}, types.ErrInvalidData},
		{"string for boolean", types.Record{"active": "yes"}, types.ErrInvalidData},
		{"bad time", types.Record{"joined_at": "yesterday"}, types.ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := et.Construct(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReplaceFillsDefaults(t *testing.T) {
	et := mustPeople(t)
	inst := et.New()
	require.NoError(t, inst.Assign(types.Record{"name": "Ada", "age": 36, "active": false}))

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, inst.Replace(types.Record{"name": "Grace"}))

	name, _ := inst.Get("name")
	assert.Equal(t, "Grace", name)

	age, ok := inst.Get("age")
	assert.True(t, ok, "absent field without default is assigned nil")
	assert.Nil(t, age)

	active, _ := inst.Get("active")
	assert.Equal(t, true, active, "absent field takes its default")

	joined, _ := inst.Get("joined_at")
	ts, ok := joined.(time.Time)
	require.True(t, ok)
	assert.True(t, ts.After(before))
}

func TestReplaceRejectsUnknownField(t *testing.T) {
	et := mustPeople(t)
	inst := et.New()
	require.NoError(t, inst.Assign(types.Record{"name": "Ada"}))

	err := inst.Replace(types.Record{"name": "Grace", "height": 1})
	assert.ErrorIs(t, err, types.ErrUnknownField)

	name, _ := inst.Get("name")
	assert.Equal(t, "Ada", name, "failed replace leaves the instance untouched")
}

func TestSerialize(t *testing.T) {
	et := mustPeople(t)
	inst, err := et.Construct(types.Record{"name": "Ada", "joined_at": "2024-05-01T10:00:00+02:00"})
	require.NoError(t, err)
	inst.ID = uuid.MustParse("0190a6a4-2b8c-7c3e-9c1f-1d2e3f405060")

	rec := inst.Serialize()
	assert.Equal(t, "0190a6a4-2b8c-7c3e-9c1f-1d2e3f405060", rec["id"])
	assert.Equal(t, "Ada", rec["name"])
	assert.Nil(t, rec["age"])
	joined, ok := rec["joined_at"].(time.Time)
	require.True(t, ok)
	assert.True(t, joined.Equal(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))
	assert.Len(t, rec, 5)
}

func TestCoerce(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		kind Kind
		in   any
		want any
	}{
		{KindText, "x", "x"},
		{KindText, id, id.String()},
		{KindInteger, 7, int64(7)},
		{KindInteger, float64(7), int64(7)},
		{KindInteger, json.Number("12"), int64(12)},
		{KindInteger, json.Number("1e3"), int64(1000)},
		{KindInteger, json.Number("9007199254740993"), int64(9007199254740993)},
		{KindInteger, float64(math.MinInt64), int64(math.MinInt64)},
		{KindReal, 2, float64(2)},
		{KindReal, 2.5, 2.5},
		{KindBoolean, true, true},
		{KindUUID, id.String(), id},
		{KindTime, "2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{KindJSON, map[string]any{"a": []any{1.0}}, map[string]any{"a": []any{1.0}}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := Field{Name: "f", Kind: tt.kind}.Coerce(tt.in)
			require.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				assert.True(t, want.Equal(got.(time.Time)))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := Field{Name: "f", Kind: KindInteger}.Coerce(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCoerceRejects(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		in   any
	}{
		{"integer above range", KindInteger, 1e19},
		{"integer below range", KindInteger, -1e19},
		{"integer at 2^63", KindInteger, float64(math.MaxInt64)},
		{"integer fraction", KindInteger, 1.5},
		{"integer number above range", KindInteger, json.Number("1e19")},
		{"integer digits above range", KindInteger, json.Number("99999999999999999999")},
		{"integer from string", KindInteger, "7"},
		{"text from number", KindText, json.Number("42")},
		{"text from int", KindText, 42},
		{"text from time", KindText, time.Unix(0, 0)},
		{"boolean from string", KindBoolean, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Field{Name: "f", Kind: tt.kind}.Coerce(tt.in)
			assert.ErrorIs(t, err, types.ErrInvalidData)
		})
	}
}
