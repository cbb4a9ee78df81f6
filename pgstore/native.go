package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// enumTypeLockKey is the fixed advisory-lock key guarding native enum type
// extension across processes. ALTER TYPE ... ADD VALUE cannot run inside an
// ordinary transaction and racing concurrent additions is unsafe, so every
// writer takes this session lock first. Advisory only: it coordinates
// cooperating initializers, it is not a consensus mechanism.
const enumTypeLockKey int64 = 0x70656e756d // "penum"

// EnumTypeExists reports whether the named enumerated type exists
func (s *Store) EnumTypeExists(ctx context.Context, typeName string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = $1 AND typtype = 'e')`,
		typeName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check enum type %q: %w", typeName, err)
	}
	return exists, nil
}

// EnumLabels returns the type's labels in their declared sort order
func (s *Store) EnumLabels(ctx context.Context, typeName string) ([]string, error) {
	query := `
		SELECT e.enumlabel
		FROM pg_enum e
		JOIN pg_type t ON t.oid = e.enumtypid
		WHERE t.typname = $1
		ORDER BY e.enumsortorder
	`

	rows, err := s.db.Query(ctx, query, typeName)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels of enum type %q: %w", typeName, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label of enum type %q: %w", typeName, err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating labels of enum type %q: %w", typeName, err)
	}
	return labels, nil
}

// AddEnumLabel appends a label to the type's value set
func (s *Store) AddEnumLabel(ctx context.Context, typeName, label string) error {
	query := fmt.Sprintf("ALTER TYPE %s ADD VALUE IF NOT EXISTS %s",
		pgx.Identifier{typeName}.Sanitize(), quoteLiteral(label))

	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to add label %q to enum type %q: %w", label, typeName, err)
	}
	return nil
}

// WithEnumLock runs fn while holding the session-scoped advisory lock on a
// dedicated pooled connection. The unlock runs on every exit path, with
// cancellation stripped so a failed fn still releases the lock.
func (s *Store) WithEnumLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fmt.Errorf("enum type lock requires a connection pool, not an open transaction")
	}

	c, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for enum lock: %w", err)
	}
	defer c.Release()

	if _, err := c.Exec(ctx, `SELECT pg_advisory_lock($1)`, enumTypeLockKey); err != nil {
		return fmt.Errorf("failed to take enum type lock: %w", err)
	}
	defer func() {
		// The session lock outlives ctx cancellation; release it on a
		// detached context so the connection returns to the pool clean.
		unlockCtx := context.WithoutCancel(ctx)
		if _, err := c.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, enumTypeLockKey); err != nil {
			s.log.Warn("failed to release enum type lock", "error", err)
		}
	}()

	return fn(ctx)
}

// quoteLiteral quotes a string literal for statements that cannot take bind
// parameters (ALTER TYPE)
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
