package enum

import "context"

// Column describes one backing-table column as seen by the reconciler:
// its name, whether it is nullable, and whether it carries a default.
type Column struct {
	Name       string
	Nullable   bool
	HasDefault bool
}

// Row is one backing-table row, keyed by column name
type Row map[string]Value

// UpsertSet is a batch of rows sharing one attribute-key set. Rows that
// need different update columns cannot share one upsert statement, so the
// reconciler groups them before handing them to the store.
type UpsertSet struct {
	Rows          []Row
	UpdateColumns []string
}

// Store is the backing-store adapter the reconciler runs against. The
// production implementation lives in package pgstore; DummyStore is the
// in-memory substitute.
type Store interface {
	// TableExists reports whether the backing table is present and
	// reachable
	TableExists(ctx context.Context, table string) (bool, error)

	// Columns returns the table's columns with nullability and default
	// information
	Columns(ctx context.Context, table string) ([]Column, error)

	// UniqueIndexes returns the column lists of the table's unique
	// indexes
	UniqueIndexes(ctx context.Context, table string) ([][]string, error)

	// InTransaction reports whether the store is operating inside an
	// already-open transaction
	InTransaction() bool

	// Upsert inserts or updates every row of every set inside a single
	// transaction, keyed on conflictColumn. Columns outside a set's
	// UpdateColumns are left untouched on conflict.
	Upsert(ctx context.Context, table, conflictColumn string, sets []UpsertSet) error

	// SelectAll returns every row of the table
	SelectAll(ctx context.Context, table string) ([]Row, error)
}

// NativeEnumStore is the optional extension a Store implements when the
// backing database has native enumerated types whose label sets can be
// extended in place.
type NativeEnumStore interface {
	// EnumTypeExists reports whether the named enumerated type exists
	EnumTypeExists(ctx context.Context, typeName string) (bool, error)

	// EnumLabels returns the type's current labels in sort order
	EnumLabels(ctx context.Context, typeName string) ([]string, error)

	// AddEnumLabel appends a label to the type's value set
	AddEnumLabel(ctx context.Context, typeName, label string) error

	// WithEnumLock runs fn while holding the cross-process advisory lock
	// guarding enumerated-type extension, releasing it on every exit path
	WithEnumLock(ctx context.Context, fn func(ctx context.Context) error) error
}
