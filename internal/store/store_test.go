package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudkit/internal/query"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

func widgetsDef() schema.EntityDef {
	return schema.EntityDef{
		Name: "widgets",
		Fields: []schema.Field{
			{Name: "name", Kind: schema.KindText, Required: true, Unique: true},
			{Name: "count", Kind: schema.KindInteger, Default: 0},
			{Name: "weight", Kind: schema.KindReal},
			{Name: "enabled", Kind: schema.KindBoolean, Default: true},
			{Name: "created_at", Kind: schema.KindTime, Default: schema.DefaultNow},
			{Name: "owner", Kind: schema.KindUUID},
			{Name: "attrs", Kind: schema.KindJSON},
		},
	}
}

// setupStore opens a store for cfg with the widgets type and one session.
func setupStore(t *testing.T, cfg types.Config) (*Store, *Session, *schema.EntityType) {
	t.Helper()
	ctx := context.Background()

	reg := schema.NewRegistry()
	et, err := reg.Register(widgetsDef())
	require.NoError(t, err)

	s, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.EnsureTables(ctx, reg))

	sess, err := s.Session(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		sess.Close()
		s.Close()
	})
	return s, sess, et
}

// backends returns the configurations the store tests run against. The
// PostgreSQL backend is included when CRUDKIT_TEST_POSTGRES_DSN is set; its
// tables are dropped afterwards.
func backends(t *testing.T) map[string]types.Config {
	t.Helper()
	cfgs := map[string]types.Config{
		types.BackendSQLite: {Backend: types.BackendSQLite, DataDir: t.TempDir()},
	}
	if dsn := os.Getenv("CRUDKIT_TEST_POSTGRES_DSN"); dsn != "" {
		cfgs[types.BackendPostgres] = types.Config{Backend: types.BackendPostgres, DSN: dsn}
	}
	return cfgs
}

func dropWidgets(t *testing.T, s *Store) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DROP TABLE IF EXISTS "widgets"`)
	})
}

func insertWidget(t *testing.T, sess *Session, et *schema.EntityType, data types.Record) uuid.UUID {
	t.Helper()
	inst, err := et.Construct(data)
	require.NoError(t, err)
	require.NoError(t, sess.Unit(context.Background(), func(tx *Tx) error {
		return tx.Insert(context.Background(), inst)
	}))
	return inst.ID
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), types.Config{}, nil)
	assert.ErrorIs(t, err, types.ErrBackendEmpty)

	_, err = Open(context.Background(), types.Config{Backend: types.BackendPostgres}, nil)
	assert.ErrorIs(t, err, types.ErrDSNEmpty)
}

func TestInsertGetRoundTrip(t *testing.T) {
	for name, cfg := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s, sess, et := setupStore(t, cfg)
			dropWidgets(t, s)
			ctx := context.Background()

			owner := uuid.New()
			id := insertWidget(t, sess, et, types.Record{
				"name":   "sprocket",
				"weight": 1.5,
				"owner":  owner.String(),
				"attrs":  map[string]any{"color": "red"},
			})
			assert.Equal(t, uuid.Version(7), id.Version())

			got, err := sess.Get(ctx, et, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.ID)

			v, _ := got.Get("name")
			assert.Equal(t, "sprocket", v)
			v, _ = got.Get("count")
			assert.Equal(t, int64(0), v, "column default applied")
			v, _ = got.Get("enabled")
			assert.Equal(t, true, v, "column default applied")
			v, _ = got.Get("weight")
			assert.Equal(t, 1.5, v)
			v, _ = got.Get("owner")
			assert.Equal(t, owner, v)
			v, _ = got.Get("attrs")
			assert.Equal(t, map[string]any{"color": "red"}, v)

			v, _ = got.Get("created_at")
			created, ok := v.(time.Time)
			require.True(t, ok, "created_at is %T", v)
			assert.WithinDuration(t, time.Now(), created, time.Minute)
		})
	}
}

func TestGetNotFound(t *testing.T) {
	_, sess, et := setupStore(t, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	_, err := sess.Get(context.Background(), et, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	_, sess, et := setupStore(t, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	id := insertWidget(t, sess, et, types.Record{"name": "gear", "count": 3})

	err := sess.Unit(ctx, func(tx *Tx) error {
		inst, err := tx.Get(ctx, et, id)
		if err != nil {
			return err
		}
		if err := inst.Set("count", 4); err != nil {
			return err
		}
		return tx.Update(ctx, inst)
	})
	require.NoError(t, err)

	got, err := sess.Get(ctx, et, id)
	require.NoError(t, err)
	v, _ := got.Get("count")
	assert.Equal(t, int64(4), v)

	require.NoError(t, sess.Unit(ctx, func(tx *Tx) error { return tx.Delete(ctx, et, id) }))
	_, err = sess.Get(ctx, et, id)
	assert.ErrorIs(t, err, types.ErrNotFound)

	err = sess.Unit(ctx, func(tx *Tx) error { return tx.Delete(ctx, et, id) })
	assert.ErrorIs(t, err, types.ErrNotFound)

	missing := et.New()
	missing.ID = uuid.New()
	require.NoError(t, missing.Set("count", 1))
	err = sess.Unit(ctx, func(tx *Tx) error { return tx.Update(ctx, missing) })
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUnitRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	_, sess, et := setupStore(t, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})

	var id uuid.UUID
	err := sess.Unit(ctx, func(tx *Tx) error {
		inst, err := et.Construct(types.Record{"name": "ghost"})
		if err != nil {
			return err
		}
		if err := tx.Insert(ctx, inst); err != nil {
			return err
		}
		id = inst.ID
		return types.ErrInvalidData
	})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	_, err = sess.Get(ctx, et, id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestConstraintViolation(t *testing.T) {
	ctx := context.Background()
	_, sess, et := setupStore(t, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	insertWidget(t, sess, et, types.Record{"name": "dup"})

	tests := []struct {
		name string
		data types.Record
	}{
		{"unique", types.Record{"name": "dup"}},
		{"not null", types.Record{"count": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := et.Construct(tt.data)
			require.NoError(t, err)
			err = sess.Unit(ctx, func(tx *Tx) error { return tx.Insert(ctx, inst) })
			require.Error(t, err)
			assert.True(t, IsConstraintViolation(err), "got %v", err)
		})
	}
	assert.False(t, IsConstraintViolation(types.ErrNotFound))
}

func TestSelectAndCount(t *testing.T) {
	for name, cfg := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s, sess, et := setupStore(t, cfg)
			dropWidgets(t, s)
			ctx := context.Background()

			for i, n := range []string{"Alpha", "beta", "Gamma", "delta"} {
				insertWidget(t, sess, et, types.Record{"name": n, "count": i, "enabled": i%2 == 0})
			}

			q, err := query.Select(et).Filter([]types.Filter{types.Where("enabled", types.OpEq, true)})
			require.NoError(t, err)
			q, err = q.Sort([]types.SortClause{{Field: "count", Direction: types.Desc}})
			require.NoError(t, err)

			got, err := sess.Select(ctx, q)
			require.NoError(t, err)
			require.Len(t, got, 2)
			n0, _ := got[0].Get("name")
			n1, _ := got[1].Get("name")
			assert.Equal(t, []any{"Gamma", "Alpha"}, []any{n0, n1})

			count, err := sess.Count(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			like, err := query.Select(et).Filter([]types.Filter{types.Where("name", types.OpLike, "a%")})
			require.NoError(t, err)
			got, err = sess.Select(ctx, like)
			require.NoError(t, err)
			assert.Empty(t, got, "like is case sensitive")

			ilike, err := query.Select(et).Filter([]types.Filter{types.Where("name", types.OpILike, "a%")})
			require.NoError(t, err)
			got, err = sess.Select(ctx, ilike)
			require.NoError(t, err)
			assert.Len(t, got, 1)

			offsetOnly, err := query.Select(et).Page(types.Page{Offset: 3})
			require.NoError(t, err)
			got, err = sess.Select(ctx, offsetOnly)
			require.NoError(t, err)
			assert.Len(t, got, 1)

			none, err := query.Select(et).Filter([]types.Filter{types.Where("count", types.OpGt, 100)})
			require.NoError(t, err)
			got, err = sess.Select(ctx, none)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestTimeFilter(t *testing.T) {
	ctx := context.Background()
	_, sess, et := setupStore(t, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})

	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 6, 1, 12, 30, 0, 500, time.UTC)
	insertWidget(t, sess, et, types.Record{"name": "old", "created_at": early})
	insertWidget(t, sess, et, types.Record{"name": "new", "created_at": late})

	q, err := query.Select(et).Filter([]types.Filter{
		types.Where("created_at", types.OpGt, "2024-03-01T00:00:00Z"),
	})
	require.NoError(t, err)
	got, err := sess.Select(ctx, q)
	require.NoError(t, err)
	require.Len(t, got, 1)
	v, _ := got[0].Get("created_at")
	assert.True(t, late.Equal(v.(time.Time)))
}

func TestEnsureTablesIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	reg := schema.NewRegistry()
	_, err := reg.Register(widgetsDef())
	require.NoError(t, err)
	assert.NoError(t, s.EnsureTables(ctx, reg))
}

func TestCreateTableSQL(t *testing.T) {
	reg := schema.NewRegistry()
	et, err := reg.Register(schema.EntityDef{
		Name:  "notes",
		Table: "note_rows",
		Fields: []schema.Field{
			{Name: "title", Kind: schema.KindText, Required: true, Default: "it's"},
			{Name: "done", Kind: schema.KindBoolean, Default: false},
		},
	})
	require.NoError(t, err)

	ddl, err := createTableSQL(sqliteDialect{}, et)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"note_rows\" (\n"+
		"    \"id\" TEXT PRIMARY KEY,\n"+
		"    \"title\" TEXT NOT NULL DEFAULT 'it''s',\n"+
		"    \"done\" INTEGER DEFAULT 0\n)", ddl)

	ddl, err = createTableSQL(postgresDialect{}, et)
	require.NoError(t, err)
	assert.Contains(t, ddl, `"id" UUID PRIMARY KEY`)
	assert.Contains(t, ddl, `"done" BOOLEAN DEFAULT FALSE`)
}
