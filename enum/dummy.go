package enum

import (
	"context"
	"sort"
	"sync"
)

// DummyOrdinalBase is the first synthetic ordinal handed out by a
// DummyStore. It sits far above any plausible real ordinal so a fallback
// member is never mistaken for a persisted one in joins or logs.
const DummyOrdinalBase int64 = 1_000_000_000

// DummyStore is the in-memory stand-in for a real backing store. It
// implements the full Store contract (plus NativeEnumStore) against
// process-local maps, allocating deterministic synthetic ordinals in
// insertion order. The fallback path runs the ordinary reconciler against
// it; tests use it directly.
type DummyStore struct {
	mu     sync.Mutex
	lockMu sync.Mutex
	tables map[string]*dummyTable
	types  map[string][]string
}

type dummyTable struct {
	columns []Column
	indexes [][]string
	order   []string
	rows    map[string]Row
	next    int64
}

// NewDummyStore creates an empty dummy store. Tables are created on first
// use with an id column (defaulted) and a uniquely-indexed name column;
// DefineTable overrides that shape.
func NewDummyStore() *DummyStore {
	return &DummyStore{
		tables: make(map[string]*dummyTable),
		types:  make(map[string][]string),
	}
}

// DefineTable fixes a table's columns and unique indexes, replacing the
// default shape
func (s *DummyStore) DefineTable(table string, columns []Column, uniqueIndexes [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = &dummyTable{
		columns: columns,
		indexes: uniqueIndexes,
		rows:    make(map[string]Row),
	}
}

// DefineEnumType registers a native enumerated type with the given labels
func (s *DummyStore) DefineEnumType(typeName string, labels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[typeName] = append([]string(nil), labels...)
}

func (s *DummyStore) table(name string) *dummyTable {
	t, ok := s.tables[name]
	if !ok {
		t = &dummyTable{
			columns: []Column{
				{Name: idColumn, HasDefault: true},
				{Name: DefaultNameColumn},
			},
			indexes: [][]string{{DefaultNameColumn}},
			rows:    make(map[string]Row),
		}
		s.tables[name] = t
	}
	return t
}

// TableExists always reports true: every table exists once touched
func (s *DummyStore) TableExists(ctx context.Context, table string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table(table)
	return true, nil
}

// Columns returns the table's declared columns
func (s *DummyStore) Columns(ctx context.Context, table string) ([]Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Column(nil), s.table(table).columns...), nil
}

// UniqueIndexes returns the table's declared unique indexes
func (s *DummyStore) UniqueIndexes(ctx context.Context, table string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(table)
	out := make([][]string, len(t.indexes))
	for i, idx := range t.indexes {
		out[i] = append([]string(nil), idx...)
	}
	return out, nil
}

// InTransaction always reports false: there is nothing to roll back
func (s *DummyStore) InTransaction() bool {
	return false
}

// Upsert inserts or updates rows keyed on conflictColumn. New rows without
// an explicit id receive DummyOrdinalBase plus an insertion counter.
func (s *DummyStore) Upsert(ctx context.Context, table, conflictColumn string, sets []UpsertSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(table)

	for _, set := range sets {
		for _, row := range set.Rows {
			key := row[conflictColumn].String()
			existing, ok := t.rows[key]
			if !ok {
				inserted := make(Row, len(row)+1)
				for k, v := range row {
					inserted[k] = v
				}
				if _, hasID := inserted[idColumn]; !hasID {
					inserted[idColumn] = Int(DummyOrdinalBase + t.next)
					t.next++
				}
				t.rows[key] = inserted
				t.order = append(t.order, key)
				continue
			}
			for _, col := range set.UpdateColumns {
				existing[col] = row[col]
			}
		}
	}
	return nil
}

// SelectAll returns every row in insertion order
func (s *DummyStore) SelectAll(ctx context.Context, table string) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(table)

	out := make([]Row, 0, len(t.order))
	for _, key := range t.order {
		row := t.rows[key]
		copied := make(Row, len(row))
		for k, v := range row {
			copied[k] = v
		}
		out = append(out, copied)
	}
	return out, nil
}

// EnumTypeExists reports whether the type was registered via DefineEnumType
func (s *DummyStore) EnumTypeExists(ctx context.Context, typeName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.types[typeName]
	return ok, nil
}

// EnumLabels returns the type's labels in registration order
func (s *DummyStore) EnumLabels(ctx context.Context, typeName string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.types[typeName]...), nil
}

// AddEnumLabel appends a label to a registered type
func (s *DummyStore) AddEnumLabel(ctx context.Context, typeName, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[typeName] = append(s.types[typeName], label)
	return nil
}

// WithEnumLock serializes native-type extension within the process
func (s *DummyStore) WithEnumLock(ctx context.Context, fn func(ctx context.Context) error) error {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	return fn(ctx)
}

// seed inserts a row with a fixed id, bypassing ordinal allocation
func (s *DummyStore) seed(table, conflictColumn string, row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(table)
	key := row[conflictColumn].String()
	t.rows[key] = row
	t.order = append(t.order, key)
}

// dummyStoreFor builds a DummyStore shaped after a definition and its
// current declarations, so the reconciler sees every declared attribute as
// a real nullable column and prunes nothing. Rows are pre-seeded with
// their synthetic ids so ordinals follow declaration order regardless of
// how the reconciler batches its upserts.
func dummyStoreFor(def *Definition, decls []Declaration) *DummyStore {
	attrNames := make(map[string]bool)
	for _, decl := range decls {
		for name := range decl.Attrs {
			attrNames[name] = true
		}
	}
	sorted := make([]string, 0, len(attrNames))
	for name := range attrNames {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	columns := []Column{
		{Name: idColumn, HasDefault: true},
		{Name: def.NameColumn()},
	}
	for _, name := range sorted {
		columns = append(columns, Column{Name: name, Nullable: true})
	}

	s := NewDummyStore()
	s.DefineTable(def.Table(), columns, [][]string{{def.NameColumn()}})
	if def.NativeEnumType() != "" {
		s.DefineEnumType(def.NativeEnumType())
	}

	for i, decl := range decls {
		id := Int(DummyOrdinalBase + int64(i))
		if def.NativeEnumType() != "" {
			id = String(decl.Name)
		}
		s.seed(def.Table(), def.NameColumn(), Row{
			idColumn:         id,
			def.NameColumn(): String(decl.Name),
		})
	}
	return s
}
