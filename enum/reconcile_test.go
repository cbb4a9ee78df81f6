package enum

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerego/persistent-enum/logger"
)

// fakeStore wraps DummyStore with switchable failure modes
type fakeStore struct {
	*DummyStore
	tableMissing    bool
	noNameIndex     bool
	inTx            bool
	typeExistsCalls int
	typeExistsFlaky bool // fail every EnumTypeExists call after the first
}

func newFakeStore() *fakeStore {
	return &fakeStore{DummyStore: NewDummyStore()}
}

func (f *fakeStore) TableExists(ctx context.Context, table string) (bool, error) {
	if f.tableMissing {
		return false, nil
	}
	return f.DummyStore.TableExists(ctx, table)
}

func (f *fakeStore) UniqueIndexes(ctx context.Context, table string) ([][]string, error) {
	if f.noNameIndex {
		return nil, nil
	}
	return f.DummyStore.UniqueIndexes(ctx, table)
}

func (f *fakeStore) InTransaction() bool {
	return f.inTx
}

func (f *fakeStore) EnumTypeExists(ctx context.Context, typeName string) (bool, error) {
	f.typeExistsCalls++
	if f.typeExistsFlaky && f.typeExistsCalls > 1 {
		return false, errors.New("connection reset")
	}
	return f.DummyStore.EnumTypeExists(ctx, typeName)
}

// renameRow simulates an out-of-band rename done directly in the store
func (f *fakeStore) renameRow(table, oldName, newName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[table]
	row := t.rows[oldName]
	row[DefaultNameColumn] = String(newName)
	delete(t.rows, oldName)
	t.rows[newName] = row
	for i, key := range t.order {
		if key == oldName {
			t.order[i] = newName
		}
	}
}

func decls(names ...string) []Declaration {
	out := make([]Declaration, 0, len(names))
	for _, n := range names {
		out = append(out, Declaration{Name: n})
	}
	return out
}

func mustDef(t *testing.T, table string, opts ...Option) *Definition {
	t.Helper()
	def, err := NewDefinition(table, opts...)
	require.NoError(t, err)
	return def
}

func TestReconcile_InsertsRequiredMembers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	def := mustDef(t, "statuses", WithNames("A", "B"))

	rows, err := reconcile(ctx, def, store, decls("A", "B"), logger.Nop())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	names := []string{rows[0]["name"].String(), rows[1]["name"].String()}
	assert.ElementsMatch(t, []string{"A", "B"}, names)
	ord, ok := rows[0]["id"].Int64()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, ord, DummyOrdinalBase)
}

func TestReconcile_RetainsRetiredRows(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	def := mustDef(t, "statuses", WithNames("A"))

	// A previous generation declared OLD; it stays persisted even though
	// no longer required.
	_, err := reconcile(ctx, def, store, decls("OLD", "A"), logger.Nop())
	require.NoError(t, err)

	rows, err := reconcile(ctx, def, store, decls("A"), logger.Nop())
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestReconcile_MissingTable(t *testing.T) {
	store := newFakeStore()
	store.tableMissing = true
	def := mustDef(t, "statuses", WithNames("A"))

	_, err := reconcile(context.Background(), def, store, decls("A"), logger.Nop())
	assert.ErrorIs(t, err, ErrTableInvalid)
}

func TestReconcile_MissingNameIndex(t *testing.T) {
	store := newFakeStore()
	store.noNameIndex = true
	def := mustDef(t, "statuses", WithNames("A"))

	_, err := reconcile(context.Background(), def, store, decls("A"), logger.Nop())
	assert.ErrorIs(t, err, ErrTableInvalid)
}

func TestReconcile_InsideTransaction(t *testing.T) {
	store := newFakeStore()
	store.inTx = true
	def := mustDef(t, "statuses", WithNames("A"))

	_, err := reconcile(context.Background(), def, store, decls("A"), logger.Nop())
	assert.ErrorIs(t, err, ErrUnsafeInitialization)
	assert.NotErrorIs(t, err, ErrTableInvalid)
}

func TestReconcile_PrunesUnknownAttributes(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	def := mustDef(t, "statuses", WithMembers(
		Declaration{Name: "A", Attrs: map[string]Value{"color": String("red")}},
	))

	// Default table shape has only id and name; color must be dropped.
	declared := []Declaration{{Name: "A", Attrs: map[string]Value{"color": String("red")}}}
	rows, err := reconcile(ctx, def, store, declared, logger.Nop())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, ok := rows[0]["color"]
	assert.False(t, ok)
}

func TestReconcile_MissingRequiredAttribute(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.DefineTable("statuses", []Column{
		{Name: "id", HasDefault: true},
		{Name: "name"},
		{Name: "code"}, // not nullable, no default: required
	}, [][]string{{"name"}})

	def := mustDef(t, "statuses", WithNames("A"))
	_, err := reconcile(ctx, def, store, decls("A"), logger.Nop())
	assert.ErrorIs(t, err, ErrTableInvalid)

	withCode := []Declaration{{Name: "A", Attrs: map[string]Value{"code": Int(1)}}}
	_, err = reconcile(ctx, def, store, withCode, logger.Nop())
	assert.NoError(t, err)
}

func TestReconcile_RequiredColumnsOverride(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.DefineTable("statuses", []Column{
		{Name: "id", HasDefault: true},
		{Name: "name"},
		{Name: "code"},
	}, [][]string{{"name"}})

	// The override replaces the derived set; a member without code now
	// passes, and the unknown override column is dropped with a warning.
	def := mustDef(t, "statuses", WithNames("A"), WithRequiredColumns("no_such_column"))
	_, err := reconcile(ctx, def, store, decls("A"), logger.Nop())
	assert.NoError(t, err)
}

func TestReconcile_PreservesUndeclaredColumns(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.DefineTable("statuses", []Column{
		{Name: "id", HasDefault: true},
		{Name: "name"},
		{Name: "note", Nullable: true},
		{Name: "rank", Nullable: true},
	}, [][]string{{"name"}})

	seeded := []Declaration{{Name: "A", Attrs: map[string]Value{"note": String("keep me")}}}
	_, err := reconcile(ctx, mustDef(t, "statuses", WithNames("A")), store, seeded, logger.Nop())
	require.NoError(t, err)

	// Reconciling with a different attribute set must not clobber note.
	next := []Declaration{{Name: "A", Attrs: map[string]Value{"rank": Int(3)}}}
	rows, err := reconcile(ctx, mustDef(t, "statuses", WithNames("A")), store, next, logger.Nop())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, String("keep me"), rows[0]["note"])
	assert.Equal(t, Int(3), rows[0]["rank"])
}

func TestReconcile_NativeEnumType(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.DefineEnumType("status_t", "A")
	def := mustDef(t, "statuses", WithNames("A", "B"), WithNativeEnumType("status_t"))

	rows, err := reconcile(ctx, def, store, decls("A", "B"), logger.Nop())
	require.NoError(t, err)

	labels, err := store.EnumLabels(ctx, "status_t")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, labels)

	for _, row := range rows {
		assert.Equal(t, row["name"], row["id"], "native path stores the name as the id")
	}
}

func TestReconcile_NativeEnumTypeMissing(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	def := mustDef(t, "statuses", WithNames("A"), WithNativeEnumType("no_such_type"))

	// Missing type downgrades to default id generation, not failure.
	rows, err := reconcile(ctx, def, store, decls("A"), logger.Nop())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, isInt := rows[0]["id"].Int64()
	assert.True(t, isInt)
}

func TestReconcile_NativeDecisionMadeUnderLock(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.DefineEnumType("status_t")
	store.typeExistsFlaky = true
	def := mustDef(t, "statuses", WithNames("A"), WithNativeEnumType("status_t"))

	// The type's existence is established once, inside the locked
	// section; a later transient failure must not silently downgrade to
	// integer ids after labels were already added.
	rows, err := reconcile(ctx, def, store, decls("A"), logger.Nop())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, String("A"), rows[0]["id"])
	assert.Equal(t, 1, store.typeExistsCalls)
}

func TestGroupByColumns(t *testing.T) {
	rows := []Row{
		{"name": String("A"), "rank": Int(1)},
		{"name": String("B")},
		{"name": String("C"), "rank": Int(3)},
	}

	sets := groupByColumns(rows, "name")
	require.Len(t, sets, 2)
	assert.Len(t, sets[0].Rows, 2)
	assert.Equal(t, []string{"rank"}, sets[0].UpdateColumns)
	assert.Len(t, sets[1].Rows, 1)
	assert.Empty(t, sets[1].UpdateColumns)
}
