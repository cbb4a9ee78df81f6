package pgstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cerego/persistent-enum/enum"
	"github.com/cerego/persistent-enum/logger"
)

// conn is the subset of pgxpool.Pool and pgx.Tx the store needs, so the
// same code can run on a pool or inside a caller's transaction.
type conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements enum.Store and enum.NativeEnumStore on Postgres
type Store struct {
	db   conn
	pool *pgxpool.Pool // nil when running inside a caller's transaction
	tx   pgx.Tx
	log  *logger.Logger
}

// New creates a store backed by a connection pool
func New(pool *pgxpool.Pool, log *logger.Logger) *Store {
	return &Store{db: pool, pool: pool, log: log}
}

// NewTx creates a store bound to an open transaction. It exists so the
// initialization guard can reject exactly this: reconciling enum rows
// inside a transaction that may later roll back.
func NewTx(tx pgx.Tx, log *logger.Logger) *Store {
	return &Store{db: tx, tx: tx, log: log}
}

// Connect parses the URL, opens a pool, and verifies connectivity
func Connect(ctx context.Context, databaseURL string, log *logger.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("database connected")
	return pool, nil
}

// InTransaction reports whether this store was built from an open
// transaction
func (s *Store) InTransaction() bool {
	return s.pool == nil
}

// TableExists reports whether the table is visible in the current schema
// search path
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table %q: %w", table, err)
	}
	return exists, nil
}

// Columns returns the table's columns with nullability and defaults
func (s *Store) Columns(ctx context.Context, table string) ([]enum.Column, error) {
	query := `
		SELECT column_name, is_nullable = 'YES', column_default IS NOT NULL
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := s.db.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %q: %w", table, err)
	}
	defer rows.Close()

	var columns []enum.Column
	for rows.Next() {
		var col enum.Column
		if err := rows.Scan(&col.Name, &col.Nullable, &col.HasDefault); err != nil {
			return nil, fmt.Errorf("failed to scan column of %q: %w", table, err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %q: %w", table, err)
	}
	return columns, nil
}

// UniqueIndexes returns the column lists of the table's unique indexes.
// Partial indexes are excluded: they do not guarantee table-wide uniqueness.
func (s *Store) UniqueIndexes(ctx context.Context, table string) ([][]string, error) {
	query := `
		SELECT array_agg(a.attname::text ORDER BY k.ord)
		FROM pg_index i
		JOIN LATERAL unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
		WHERE i.indrelid = $1::regclass AND i.indisunique AND i.indpred IS NULL
		GROUP BY i.indexrelid
	`

	rows, err := s.db.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read indexes of %q: %w", table, err)
	}
	defer rows.Close()

	var indexes [][]string
	for rows.Next() {
		var cols []string
		if err := rows.Scan(&cols); err != nil {
			return nil, fmt.Errorf("failed to scan index of %q: %w", table, err)
		}
		indexes = append(indexes, cols)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes of %q: %w", table, err)
	}
	return indexes, nil
}

// Upsert inserts or updates every row of every set inside one transaction.
// Conflicting rows keep any column outside the set's UpdateColumns, so
// out-of-band data survives reconciliation.
func (s *Store) Upsert(ctx context.Context, table, conflictColumn string, sets []enum.UpsertSet) error {
	if len(sets) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, set := range sets {
			if len(set.Rows) == 0 {
				continue
			}
			query, args := upsertStatement(table, conflictColumn, set)
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to upsert into %q: %w", table, err)
			}
		}
		return nil
	})
}

// upsertStatement builds one multi-row INSERT ... ON CONFLICT statement for
// a set of rows sharing the same column set.
func upsertStatement(table, conflictColumn string, set enum.UpsertSet) (string, []any) {
	cols := make([]string, 0, len(set.Rows[0]))
	for col := range set.Rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(pgx.Identifier{table}.Sanitize())
	sb.WriteString(" (")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(pgx.Identifier{col}.Sanitize())
	}
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(set.Rows)*len(cols))
	for i, row := range set.Rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			args = append(args, row[col].Native())
			fmt.Fprintf(&sb, "$%d", len(args))
		}
		sb.WriteString(")")
	}

	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(pgx.Identifier{conflictColumn}.Sanitize())
	sb.WriteString(")")

	if len(set.UpdateColumns) == 0 {
		sb.WriteString(" DO NOTHING")
		return sb.String(), args
	}

	sb.WriteString(" DO UPDATE SET ")
	for i, col := range set.UpdateColumns {
		if i > 0 {
			sb.WriteString(", ")
		}
		quoted := pgx.Identifier{col}.Sanitize()
		sb.WriteString(quoted)
		sb.WriteString(" = EXCLUDED.")
		sb.WriteString(quoted)
	}
	return sb.String(), args
}

// SelectAll returns every row of the table, ordered by id for
// deterministic snapshots
func (s *Store) SelectAll(ctx context.Context, table string) ([]enum.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY 1", pgx.Identifier{table}.Sanitize())

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %q: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []enum.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row of %q: %w", table, err)
		}
		row := make(enum.Row, len(fields))
		for i, field := range fields {
			v, err := enum.ValueOf(values[i])
			if err != nil {
				return nil, fmt.Errorf("column %q of %q: %w", field.Name, table, err)
			}
			row[field.Name] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows of %q: %w", table, err)
	}
	return out, nil
}

// withTx runs fn inside a transaction: a fresh one on the pool, or a
// savepoint when already inside a caller's transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if s.pool != nil {
		return pgx.BeginFunc(ctx, s.pool, fn)
	}
	// Nested Begin on a pgx.Tx opens a savepoint.
	return pgx.BeginFunc(ctx, s.tx, fn)
}
