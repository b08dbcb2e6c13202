package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/internal/offload"
	"github.com/mesh-intelligence/crudkit/internal/query"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/internal/store"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

type fixture struct {
	eng    *Engine
	store  *store.Store
	sess   *store.Session
	people *schema.EntityType
}

// setupEngine opens a SQLite store in a temp dir with a people entity type.
func setupEngine(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	reg := schema.NewRegistry()
	people, err := reg.Register(schema.EntityDef{
		Name: "people",
		Fields: []schema.Field{
			{Name: "name", Kind: schema.KindText, Required: true},
			{Name: "age", Kind: schema.KindInteger},
			{Name: "email", Kind: schema.KindText, Unique: true},
			{Name: "active", Kind: schema.KindBoolean, Default: true},
			{Name: "joined_at", Kind: schema.KindTime, Default: schema.DefaultNow},
		},
	})
	require.NoError(t, err)

	s, err := store.Open(ctx, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}, nil)
	require.NoError(t, err)
	require.NoError(t, s.EnsureTables(ctx, reg))

	sess, err := s.Session(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		sess.Close()
		s.Close()
	})
	return &fixture{eng: New(offload.NewPool(4)), store: s, sess: sess, people: people}
}

func (f *fixture) create(t *testing.T, data types.Record) types.Record {
	t.Helper()
	rec, err := f.eng.Create(context.Background(), f.sess, f.people, data)
	require.NoError(t, err)
	return rec
}

func idOf(t *testing.T, rec types.Record) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(rec[types.IDField].(string))
	require.NoError(t, err)
	return id
}

func names(recs []types.Record) []any {
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = r["name"]
	}
	return out
}

func TestCreateThenRetrieve(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	created := f.create(t, types.Record{"name": "Ada", "age": 36})
	assert.NotEmpty(t, created[types.IDField])
	assert.Equal(t, "Ada", created["name"])
	assert.Equal(t, int64(36), created["age"])
	assert.Equal(t, true, created["active"], "default applied by the store")
	assert.NotNil(t, created["joined_at"], "default applied by the store")
	assert.Nil(t, created["email"])

	got, err := f.eng.Retrieve(ctx, f.sess, f.people, idOf(t, created))
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateIgnoresSuppliedID(t *testing.T) {
	f := setupEngine(t)
	supplied := uuid.New().String()
	created := f.create(t, types.Record{"id": supplied, "name": "Bo"})
	assert.NotEqual(t, supplied, created[types.IDField])
}

func TestCreateErrors(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	f.create(t, types.Record{"name": "Cy", "email": "cy@example.com"})

	_, err := f.eng.Create(ctx, f.sess, f.people, types.Record{"name": "Cy", "height": 180})
	assert.ErrorIs(t, err, types.ErrUnknownField)

	_, err = f.eng.Create(ctx, f.sess, f.people, types.Record{"name": "Cy", "age": "old"})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	_, err = f.eng.Create(ctx, f.sess, f.people, types.Record{"name": "Dup", "email": "cy@example.com"})
	require.Error(t, err)
	assert.True(t, store.IsConstraintViolation(err), "store rejection is passed through: %v", err)

	_, err = f.eng.Create(ctx, f.sess, f.people, types.Record{"age": 3})
	require.Error(t, err)
	assert.True(t, store.IsConstraintViolation(err), "missing required field: %v", err)

	n, err := f.eng.Count(ctx, f.sess, f.people, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "failed creates persist nothing")
}

func TestIntegerOutOfRange(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	f.create(t, types.Record{"name": "A", "age": 10})
	f.create(t, types.Record{"name": "B", "age": 20})

	filters, err := query.ParseFilters([]byte(`[{"field":"age","op":">","value":1e19}]`))
	require.NoError(t, err)
	_, err = f.eng.List(ctx, f.sess, f.people, ListOptions{Filters: filters})
	assert.ErrorIs(t, err, types.ErrInvalidFilter)

	_, err = f.eng.Create(ctx, f.sess, f.people, types.Record{"name": "C", "age": 1e19})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	n, err := f.eng.Count(ctx, f.sess, f.people, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRetrieveUnknownID(t *testing.T) {
	f := setupEngine(t)
	_, err := f.eng.Retrieve(context.Background(), f.sess, f.people, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteReturnsPriorForm(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	created := f.create(t, types.Record{"name": "Dee", "age": 41})
	id := idOf(t, created)

	deleted, err := f.eng.Delete(ctx, f.sess, f.people, id)
	require.NoError(t, err)
	assert.Equal(t, created, deleted)

	_, err = f.eng.Retrieve(ctx, f.sess, f.people, id)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.eng.Delete(ctx, f.sess, f.people, id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateReplacesAllFields(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	created := f.create(t, types.Record{"name": "Eve", "age": 29, "email": "eve@example.com", "active": false})
	id := idOf(t, created)

	updated, err := f.eng.Update(ctx, f.sess, f.people, id, types.Record{"name": "Eve", "age": 30})
	require.NoError(t, err)
	assert.Equal(t, created[types.IDField], updated[types.IDField])
	assert.Equal(t, int64(30), updated["age"])
	assert.Nil(t, updated["email"], "absent field without default becomes null")
	assert.Equal(t, true, updated["active"], "absent field takes its default")

	got, err := f.eng.Retrieve(ctx, f.sess, f.people, id)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestPatchKeepsAbsentFields(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	created := f.create(t, types.Record{"name": "Fay", "age": 50, "email": "fay@example.com"})

	patched, err := f.eng.Patch(ctx, f.sess, f.people, idOf(t, created), types.Record{"age": 51})
	require.NoError(t, err)
	assert.Equal(t, int64(51), patched["age"])
	assert.Equal(t, "fay@example.com", patched["email"])
	assert.Equal(t, created["joined_at"], patched["joined_at"])
}

func TestUpdateUnknownIDHasNoEffect(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, err := f.eng.Update(ctx, f.sess, f.people, uuid.New(), types.Record{"name": "Ghost"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.eng.Patch(ctx, f.sess, f.people, uuid.New(), types.Record{"name": "Ghost"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	all, err := f.eng.List(ctx, f.sess, f.people, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateInvalidDataWritesNothing(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	created := f.create(t, types.Record{"name": "Gus", "age": 7})
	id := idOf(t, created)

	_, err := f.eng.Update(ctx, f.sess, f.people, id, types.Record{"name": "Gus", "age": "seven"})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	got, err := f.eng.Retrieve(ctx, f.sess, f.people, id)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestListAgeExample(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	f.create(t, types.Record{"name": "A", "age": 10})
	f.create(t, types.Record{"name": "B", "age": 20})
	f.create(t, types.Record{"name": "C", "age": 30})

	filters := []types.Filter{types.Where("age", ">", 15)}
	got, err := f.eng.List(ctx, f.sess, f.people, ListOptions{
		Filters: filters,
		Sort:    []types.SortClause{{Field: "age", Direction: types.Desc}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"C", "B"}, names(got))

	n, err := f.eng.Count(ctx, f.sess, f.people, filters, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestListEmptyIsNotNil(t *testing.T) {
	f := setupEngine(t)
	got, err := f.eng.List(context.Background(), f.sess, f.people, ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListPageWindow(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	const total = 7
	for i := 0; i < total; i++ {
		f.create(t, types.Record{"name": string(rune('a' + i)), "age": i})
	}
	sortByAge := []types.SortClause{{Field: "age"}}

	full, err := f.eng.List(ctx, f.sess, f.people, ListOptions{Sort: sortByAge})
	require.NoError(t, err)
	require.Len(t, full, total)

	for offset := 0; offset <= total+1; offset++ {
		for limit := 1; limit <= total+1; limit++ {
			page, err := f.eng.List(ctx, f.sess, f.people, ListOptions{
				Sort: sortByAge,
				Page: types.Page{Offset: offset, Limit: limit},
			})
			require.NoError(t, err)

			lo, hi := min(offset, total), min(offset+limit, total)
			assert.Equal(t, full[lo:hi], page, "offset=%d limit=%d", offset, limit)
		}

		rest, err := f.eng.List(ctx, f.sess, f.people, ListOptions{
			Sort: sortByAge,
			Page: types.Page{Offset: offset},
		})
		require.NoError(t, err)
		assert.Equal(t, full[min(offset, total):], rest, "offset=%d without limit", offset)
	}
}

func TestCountMatchesList(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		f.create(t, types.Record{"name": string(rune('a' + i)), "age": i * 5, "active": i%3 == 0})
	}

	specs := [][]types.Filter{
		nil,
		{types.Where("age", types.OpGe, 20)},
		{types.Where("active", types.OpEq, true), types.Where("age", types.OpLt, 40)},
		{{Or: []types.Filter{types.Where("name", types.OpEq, "a"), types.Where("age", types.OpIn, []int{25, 30})}}},
		{types.Where("email", types.OpEq, nil)},
	}
	for _, spec := range specs {
		list, err := f.eng.List(ctx, f.sess, f.people, ListOptions{Filters: spec})
		require.NoError(t, err)
		n, err := f.eng.Count(ctx, f.sess, f.people, spec, []types.SortClause{{Field: "name", Direction: types.Desc}})
		require.NoError(t, err)
		assert.Equal(t, int64(len(list)), n, "filters %+v", spec)
	}
}

func TestListSpecErrors(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    ListOptions
		wantErr error
	}{
		{"unknown filter field", ListOptions{Filters: []types.Filter{types.Where("height", "=", 1)}}, types.ErrUnknownField},
		{"unknown operator", ListOptions{Filters: []types.Filter{types.Where("age", "~", 1)}}, types.ErrUnknownOperator},
		{"unknown sort field", ListOptions{Sort: []types.SortClause{{Field: "height"}}}, types.ErrUnknownField},
		{"bad direction", ListOptions{Sort: []types.SortClause{{Field: "age", Direction: "up"}}}, types.ErrInvalidSort},
		{"negative limit", ListOptions{Page: types.Page{Limit: -1}}, types.ErrInvalidPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.List(ctx, f.sess, f.people, tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConcurrentSessions(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := f.store.Session(ctx)
			if err != nil {
				errs <- err
				return
			}
			defer sess.Close()
			rec, err := f.eng.Create(ctx, sess, f.people, types.Record{"name": "worker", "age": i})
			if err != nil {
				errs <- err
				return
			}
			id, err := uuid.Parse(rec[types.IDField].(string))
			if err != nil {
				errs <- err
				return
			}
			if _, err := f.eng.Retrieve(ctx, sess, f.people, id); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	n, err := f.eng.Count(ctx, f.sess, f.people, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}

func TestCancelledCallerGetsContextError(t *testing.T) {
	f := setupEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.eng.Create(ctx, f.sess, f.people, types.Record{"name": "late"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
