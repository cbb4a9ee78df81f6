package enum

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cerego/persistent-enum/logger"
)

// reconcile makes the backing table's required rows match the declarations,
// then returns the complete row set, retired rows included.
func reconcile(ctx context.Context, def *Definition, store Store, decls []Declaration, log *logger.Logger) ([]Row, error) {
	table := def.Table()
	nameCol := def.NameColumn()

	exists, err := store.TableExists(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTableInvalid, table, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: table %q does not exist", ErrTableInvalid, table)
	}

	// A unique index on the name column is what makes the upsert safe;
	// without it concurrent initializers can silently duplicate members.
	indexes, err := store.UniqueIndexes(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTableInvalid, table, err)
	}
	if !hasSingleColumnIndex(indexes, nameCol) {
		return nil, fmt.Errorf("%w: table %q has no unique index on %q", ErrTableInvalid, table, nameCol)
	}

	// Upserting inside a caller's transaction could roll back after the
	// snapshot is published.
	if store.InTransaction() {
		return nil, fmt.Errorf("%w: table %q", ErrUnsafeInitialization, table)
	}

	columns, err := store.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTableInvalid, table, err)
	}
	colSet := make(map[string]bool, len(columns))
	for _, col := range columns {
		colSet[col.Name] = true
	}
	required := requiredAttributeColumns(def, columns, log)

	native := def.NativeEnumType() != ""
	if native {
		native, err = ensureEnumLabels(ctx, def, store, decls, log)
		if err != nil {
			return nil, err
		}
	}

	rows, err := targetRows(def, decls, colSet, required, native, log)
	if err != nil {
		return nil, err
	}

	if err := store.Upsert(ctx, table, nameCol, groupByColumns(rows, nameCol)); err != nil {
		return nil, fmt.Errorf("failed to upsert enum rows for %q: %w", table, err)
	}

	all, err := store.SelectAll(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to load enum rows for %q: %w", table, err)
	}
	return all, nil
}

// requiredAttributeColumns derives the attribute columns every declaration
// must supply: the definition's explicit override, or every column that is
// neither nullable, defaulted, the id, nor the name. Overridden columns
// missing from the table are dropped with a warning.
func requiredAttributeColumns(def *Definition, columns []Column, log *logger.Logger) []string {
	colSet := make(map[string]bool, len(columns))
	for _, col := range columns {
		colSet[col.Name] = true
	}

	if def.requiredColumns != nil {
		kept := make([]string, 0, len(def.requiredColumns))
		for _, name := range def.requiredColumns {
			if !colSet[name] {
				log.Warn("required attribute is not a table column, dropping it",
					"enum", def.Table(), "attribute", name)
				continue
			}
			kept = append(kept, name)
		}
		return kept
	}

	var required []string
	for _, col := range columns {
		if col.Name == idColumn || col.Name == def.NameColumn() {
			continue
		}
		if col.Nullable || col.HasDefault {
			continue
		}
		required = append(required, col.Name)
	}
	return required
}

// ensureEnumLabels extends the native enumerated type with any missing
// member names, under the cross-process advisory lock, and reports whether
// native handling (name-valued ids) is in effect. A missing type is
// downgraded to a warning; the caller falls back to default id generation.
func ensureEnumLabels(ctx context.Context, def *Definition, store Store, decls []Declaration, log *logger.Logger) (bool, error) {
	nes, ok := store.(NativeEnumStore)
	if !ok {
		log.Warn("store does not support native enum types, using default id generation",
			"enum", def.Table(), "type", def.NativeEnumType())
		return false, nil
	}

	typeName := def.NativeEnumType()
	err := nes.WithEnumLock(ctx, func(ctx context.Context) error {
		exists, err := nes.EnumTypeExists(ctx, typeName)
		if err != nil {
			return fmt.Errorf("failed to inspect enum type %q: %w", typeName, err)
		}
		if !exists {
			return fmt.Errorf("%w: %q", ErrMissingEnumType, typeName)
		}

		labels, err := nes.EnumLabels(ctx, typeName)
		if err != nil {
			return fmt.Errorf("failed to read labels of enum type %q: %w", typeName, err)
		}
		have := make(map[string]bool, len(labels))
		for _, l := range labels {
			have[l] = true
		}

		for _, decl := range decls {
			if have[decl.Name] {
				continue
			}
			if err := nes.AddEnumLabel(ctx, typeName, decl.Name); err != nil {
				return fmt.Errorf("failed to add label %q to enum type %q: %w", decl.Name, typeName, err)
			}
		}
		return nil
	})

	if errors.Is(err, ErrMissingEnumType) {
		log.Warn("native enum type does not exist, using default id generation",
			"enum", def.Table(), "type", typeName)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// targetRows builds the row each declaration should persist as: declared
// attributes pruned to real columns, the name, and (on the native path)
// the id equal to the name.
func targetRows(def *Definition, decls []Declaration, colSet map[string]bool, required []string, native bool, log *logger.Logger) ([]Row, error) {
	rows := make([]Row, 0, len(decls))
	for _, decl := range decls {
		row := make(Row, len(decl.Attrs)+2)
		for attr, value := range decl.Attrs {
			if !colSet[attr] {
				log.Warn("declared attribute is not a table column, dropping it",
					"enum", def.Table(), "member", decl.Name, "attribute", attr)
				continue
			}
			row[attr] = value
		}
		row[def.NameColumn()] = String(decl.Name)
		if native {
			row[idColumn] = String(decl.Name)
		}

		for _, col := range required {
			if _, ok := row[col]; !ok {
				return nil, fmt.Errorf("%w: member %q of %q is missing required attribute %q",
					ErrTableInvalid, decl.Name, def.Table(), col)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// groupByColumns batches rows by identical column sets so each batch can
// share one upsert statement. Batch order follows first appearance.
func groupByColumns(rows []Row, conflictColumn string) []UpsertSet {
	var order []string
	groups := make(map[string]*UpsertSet)

	for _, row := range rows {
		cols := make([]string, 0, len(row))
		for col := range row {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		sig := strings.Join(cols, "\x00")

		set, ok := groups[sig]
		if !ok {
			var update []string
			for _, col := range cols {
				if col == conflictColumn || col == idColumn {
					continue
				}
				update = append(update, col)
			}
			set = &UpsertSet{UpdateColumns: update}
			groups[sig] = set
			order = append(order, sig)
		}
		set.Rows = append(set.Rows, row)
	}

	out := make([]UpsertSet, 0, len(order))
	for _, sig := range order {
		out = append(out, *groups[sig])
	}
	return out
}

// hasSingleColumnIndex reports whether one of the unique indexes covers
// exactly the given column.
func hasSingleColumnIndex(indexes [][]string, column string) bool {
	for _, idx := range indexes {
		if len(idx) == 1 && idx[0] == column {
			return true
		}
	}
	return false
}
