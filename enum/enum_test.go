package enum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnum(t *testing.T, store Store, opts ...InitOption) *Enum {
	t.Helper()
	def := mustDef(t, "statuses", WithNames("ACTIVE", "INACTIVE"))
	opts = append(opts, WithRegistry(NewRegistry()))
	e, err := New(context.Background(), def, store, opts...)
	require.NoError(t, err)
	return e
}

func TestEnum_RequiredMembersResolvable(t *testing.T) {
	e := newTestEnum(t, newFakeStore())

	for _, name := range []string{"ACTIVE", "INACTIVE"} {
		m := e.ByName(name)
		require.NotNil(t, m, name)
		ord, ok := m.Ordinal()
		require.True(t, ok)
		assert.Same(t, m, e.ByOrdinal(ord))
		assert.True(t, e.IsActive(m))
	}
	assert.Len(t, e.RequiredMembers(), 2)
	assert.False(t, e.Degraded())
}

func TestEnum_RetiredMemberVisibleButInactive(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	// First generation declares RETIRED as well.
	old := mustDef(t, "statuses", WithNames("ACTIVE", "INACTIVE", "RETIRED"))
	_, err := New(ctx, old, store, WithRegistry(NewRegistry()))
	require.NoError(t, err)

	e := newTestEnum(t, store)
	assert.Len(t, e.RequiredMembers(), 2)
	assert.Len(t, e.Members(), 3)

	retired := e.ByName("RETIRED")
	require.NotNil(t, retired)
	assert.False(t, e.IsActive(retired))
}

func TestEnum_ReinitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEnum(t, newFakeStore())

	before := e.ByName("ACTIVE")
	require.NoError(t, e.Reinitialize(ctx))
	require.NoError(t, e.Reinitialize(ctx))
	assert.Same(t, before, e.ByName("ACTIVE"), "unchanged member keeps its instance")
}

func TestEnum_ChangePropagation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.DefineTable("statuses", []Column{
		{Name: "id", HasDefault: true},
		{Name: "name"},
		{Name: "generation", Nullable: true},
	}, [][]string{{"name"}})

	generation := int64(0)
	def, err := NewDefinition("statuses", WithBuilder(func(b *Builder) {
		generation++
		b.Member("ACTIVE", map[string]Value{"generation": Int(generation)})
	}))
	require.NoError(t, err)

	e, err := New(ctx, def, store, WithRegistry(NewRegistry()))
	require.NoError(t, err)

	before := e.ByName("ACTIVE")
	v, _ := before.Attr("generation")
	assert.Equal(t, Int(1), v)

	require.NoError(t, e.Reinitialize(ctx))
	after := e.ByName("ACTIVE")
	v, _ = after.Attr("generation")
	assert.Equal(t, Int(2), v)

	// New attribute value, new instance; same name and ordinal slot.
	assert.NotSame(t, before, after)
	assert.Equal(t, before.Name(), after.Name())
	assert.Equal(t, before.Key(), after.Key())
}

func TestEnum_OutOfBandRenameYieldsFreshIdentity(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := newTestEnum(t, store)

	stale := e.ByName("ACTIVE")
	require.NotNil(t, stale)

	store.renameRow("statuses", "ACTIVE", "SOMETHING_ELSE")
	require.NoError(t, e.Reinitialize(ctx))

	fresh := e.ByName("ACTIVE")
	require.NotNil(t, fresh, "required member is re-created after the rename")
	assert.NotSame(t, stale, fresh)
	assert.NotEqual(t, stale.Key(), fresh.Key())

	// The renamed row survives as a retired member.
	renamed := e.ByName("SOMETHING_ELSE")
	require.NotNil(t, renamed)
	assert.False(t, e.IsActive(renamed))
}

func TestEnum_FallbackRequiresOptIn(t *testing.T) {
	store := newFakeStore()
	store.tableMissing = true

	def := mustDef(t, "statuses", WithNames("ACTIVE"))
	_, err := New(context.Background(), def, store, WithRegistry(NewRegistry()))
	assert.ErrorIs(t, err, ErrTableInvalid)
}

func TestEnum_FallbackBuildsDummySnapshot(t *testing.T) {
	store := newFakeStore()
	store.tableMissing = true

	def := mustDef(t, "statuses", WithMembers(
		Declaration{Name: "ACTIVE", Attrs: map[string]Value{"rank": Int(1)}},
		Declaration{Name: "INACTIVE"},
		Declaration{Name: "DELETED"},
	))
	e, err := New(context.Background(), def, store, WithFallback(), WithRegistry(NewRegistry()))
	require.NoError(t, err)

	assert.True(t, e.Degraded())
	require.Len(t, e.Members(), 3)
	assert.Equal(t, len(e.Members()), len(e.RequiredMembers()), "a dummy snapshot has no retired members")

	// Synthetic ordinals count up from the base in declaration order.
	for i, name := range []string{"ACTIVE", "INACTIVE", "DELETED"} {
		m := e.ByName(name)
		require.NotNil(t, m, name)
		assert.True(t, m.Dummy())
		ord, ok := m.Ordinal()
		require.True(t, ok)
		assert.Equal(t, DummyOrdinalBase+int64(i), ord)
	}

	// Declared attributes survive into the dummy members.
	v, ok := e.ByName("ACTIVE").Attr("rank")
	require.True(t, ok)
	assert.Equal(t, Int(1), v)
}

func TestEnum_FallbackOrdinalsFollowDeclarationOrder(t *testing.T) {
	store := newFakeStore()
	store.tableMissing = true

	// An attribute-bearing member in the middle of the list lands in a
	// different upsert batch; its ordinal must still come from its
	// declaration position.
	def := mustDef(t, "statuses", WithMembers(
		Declaration{Name: "FIRST"},
		Declaration{Name: "SECOND", Attrs: map[string]Value{"rank": Int(1)}},
		Declaration{Name: "THIRD"},
	))
	e, err := New(context.Background(), def, store, WithFallback(), WithRegistry(NewRegistry()))
	require.NoError(t, err)

	for i, name := range []string{"FIRST", "SECOND", "THIRD"} {
		m := e.ByName(name)
		require.NotNil(t, m, name)
		ord, ok := m.Ordinal()
		require.True(t, ok, name)
		assert.Equal(t, DummyOrdinalBase+int64(i), ord, name)
	}
}

func TestEnum_FallbackNeverMasksUnsafeInitialization(t *testing.T) {
	store := newFakeStore()
	store.inTx = true

	def := mustDef(t, "statuses", WithNames("ACTIVE"))
	_, err := New(context.Background(), def, store, WithFallback(), WithRegistry(NewRegistry()))
	assert.ErrorIs(t, err, ErrUnsafeInitialization)
}

func TestEnum_NilStoreDegrades(t *testing.T) {
	def := mustDef(t, "statuses", WithNames("ACTIVE"))
	e, err := New(context.Background(), def, nil, WithRegistry(NewRegistry()))
	require.NoError(t, err)

	assert.True(t, e.Degraded())
	m := e.ByName("ACTIVE")
	require.NotNil(t, m)
	ord, ok := m.Ordinal()
	require.True(t, ok)
	assert.Equal(t, DummyOrdinalBase, ord)
}

func TestEnum_NativeEnumFallbackUsesNamesAsKeys(t *testing.T) {
	store := newFakeStore()
	store.tableMissing = true

	def := mustDef(t, "statuses", WithNames("ACTIVE"), WithNativeEnumType("status_t"))
	e, err := New(context.Background(), def, store, WithFallback(), WithRegistry(NewRegistry()))
	require.NoError(t, err)

	m := e.ByName("ACTIVE")
	require.NotNil(t, m)
	assert.Equal(t, String("ACTIVE"), m.Key(), "native path keeps name-valued keys even in fallback")
	assert.Same(t, m, e.ByKey(String("ACTIVE")))
}

func TestEnum_EmptyRequiredSetKeepsPersistedRows(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	seed := mustDef(t, "statuses", WithNames("LEGACY"))
	_, err := New(ctx, seed, store, WithRegistry(NewRegistry()))
	require.NoError(t, err)

	def := mustDef(t, "statuses", WithNames())
	e, err := New(ctx, def, store, WithRegistry(NewRegistry()))
	require.NoError(t, err)

	assert.Empty(t, e.RequiredMembers())
	require.Len(t, e.Members(), 1)
	assert.Equal(t, "LEGACY", e.Members()[0].Name())
}

func TestEnum_RecoveryFromFallback(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.tableMissing = true

	def := mustDef(t, "statuses", WithNames("ACTIVE"))
	e, err := New(ctx, def, store, WithFallback(), WithRegistry(NewRegistry()))
	require.NoError(t, err)
	require.True(t, e.Degraded())
	dummy := e.ByName("ACTIVE")

	// The table appears; the next reinitialization adopts persisted rows
	// even where key and attributes happen to match.
	store.tableMissing = false
	require.NoError(t, e.Reinitialize(ctx))

	assert.False(t, e.Degraded())
	persisted := e.ByName("ACTIVE")
	require.NotNil(t, persisted)
	assert.NotSame(t, dummy, persisted)
	assert.False(t, persisted.Dummy())
}

func TestEnum_MustByName(t *testing.T) {
	e := newTestEnum(t, newFakeStore())
	assert.NotNil(t, e.MustByName("ACTIVE"))
	assert.Panics(t, func() { e.MustByName("NO_SUCH") })
}
