package enum

import "errors"

// Sentinel errors returned by this package. Callers match them with
// errors.Is; concrete messages carry the enumeration and the cause.
var (
	// ErrConfiguration reports an ambiguous or incomplete Definition:
	// both a static member list and a builder, neither, or duplicate
	// member names. Never recovered from.
	ErrConfiguration = errors.New("invalid enum configuration")

	// ErrTableInvalid reports an unusable backing table: the table is
	// missing, it lacks a unique index on the name column, or a required
	// attribute column is absent from a member declaration. Recoverable
	// only through the explicit fallback path.
	ErrTableInvalid = errors.New("enum table invalid")

	// ErrMissingEnumType reports that a configured native enumerated type
	// does not exist in the database. Always downgraded to a warning by
	// the reconciler.
	ErrMissingEnumType = errors.New("native enum type missing")

	// ErrUnsafeInitialization reports an attempt to initialize inside an
	// open transaction. Never recovered from: a rollback would leave the
	// cache describing rows that were never committed.
	ErrUnsafeInitialization = errors.New("enum initialized inside open transaction")

	// ErrIdentityMismatch reports that an enumeration name was registered
	// twice with incompatible definitions.
	ErrIdentityMismatch = errors.New("enum identity mismatch")

	// ErrLookupUnavailable reports a case-insensitive lookup against a
	// snapshot whose names collide when case is ignored.
	ErrLookupUnavailable = errors.New("case-insensitive lookup unavailable")
)
