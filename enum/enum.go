package enum

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cerego/persistent-enum/logger"
)

// Enum is the published handle for one enumeration. It owns the current
// Snapshot behind an atomic pointer: lookups are pure reads against an
// immutable view, and Reinitialize swaps the whole view in one step, so
// readers always see either the old state or the new one, never a mix.
type Enum struct {
	def      *Definition
	store    Store
	log      *logger.Logger
	fallback bool
	snap     atomic.Pointer[Snapshot]
}

// InitOption configures initialization behavior
type InitOption func(*initConfig)

type initConfig struct {
	log      *logger.Logger
	registry *Registry
	fallback bool
}

// WithLogger sets the warning sink. Defaults to a discarding logger.
func WithLogger(log *logger.Logger) InitOption {
	return func(c *initConfig) {
		c.log = log
	}
}

// WithRegistry registers the enumeration in a specific registry instead of
// the package default
func WithRegistry(r *Registry) InitOption {
	return func(c *initConfig) {
		c.registry = r
	}
}

// WithFallback allows degrading to an ephemeral in-memory snapshot when the
// backing table is invalid. Intended for maintenance contexts (migrations,
// batch tasks) where the table may legitimately not exist yet; during
// normal operation a missing table should crash initialization, not be
// papered over.
func WithFallback() InitOption {
	return func(c *initConfig) {
		c.fallback = true
	}
}

// New initializes an enumeration: reconciles the backing store with the
// definition, builds the first Snapshot, and registers the handle for bulk
// re-synchronization. A nil store always degrades to an ephemeral dummy
// snapshot with a warning.
func New(ctx context.Context, def *Definition, store Store, opts ...InitOption) (*Enum, error) {
	cfg := initConfig{
		log:      logger.Nop(),
		registry: DefaultRegistry,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Enum{
		def:      def,
		store:    store,
		log:      cfg.log.WithEnum(def.Table()),
		fallback: cfg.fallback,
	}
	if err := e.Reinitialize(ctx); err != nil {
		return nil, err
	}
	if cfg.registry != nil {
		if err := cfg.registry.register(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Reinitialize re-runs reconciliation with the current definition and
// atomically publishes a fresh Snapshot. Members unchanged since the prior
// snapshot keep their instances, so cached references stay valid. Callers
// issuing concurrent Reinitialize calls get last-write-wins publication.
func (e *Enum) Reinitialize(ctx context.Context) error {
	decls, err := e.def.requiredMembers()
	if err != nil {
		return err
	}

	rows, dummy, err := e.load(ctx, decls)
	if err != nil {
		return err
	}

	snap, err := newSnapshot(e.def, rows, decls, e.snap.Load(), dummy)
	if err != nil {
		return err
	}
	e.snap.Store(snap)
	return nil
}

// load produces the full row set, degrading to a dummy store when allowed.
func (e *Enum) load(ctx context.Context, decls []Declaration) ([]Row, bool, error) {
	if e.store == nil {
		e.log.Warn("no backing store, building ephemeral enum members")
		return e.loadDummy(ctx, decls)
	}

	rows, err := reconcile(ctx, e.def, e.store, decls, e.log)
	if err == nil {
		return rows, false, nil
	}
	// Only table invalidity may degrade, and only when explicitly
	// allowed. Configuration and unsafe-initialization errors always
	// surface.
	if !e.fallback || !errors.Is(err, ErrTableInvalid) {
		return nil, false, err
	}

	e.log.Warn("backing table invalid, building ephemeral enum members", "error", err)
	return e.loadDummy(ctx, decls)
}

func (e *Enum) loadDummy(ctx context.Context, decls []Declaration) ([]Row, bool, error) {
	rows, err := reconcile(ctx, e.def, dummyStoreFor(e.def, decls), decls, e.log)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build dummy enum %q: %w", e.def.Table(), err)
	}
	return rows, true, nil
}

// Definition returns the enumeration's definition
func (e *Enum) Definition() *Definition {
	return e.def
}

// Name returns the enumeration's stable identity (its table name)
func (e *Enum) Name() string {
	return e.def.Table()
}

// Snapshot returns the currently-published snapshot
func (e *Enum) Snapshot() *Snapshot {
	return e.snap.Load()
}

// Degraded reports whether the current snapshot is built from ephemeral
// fallback records instead of persisted rows
func (e *Enum) Degraded() bool {
	return e.snap.Load().Dummy()
}

// ByOrdinal returns the member with the given integer ordinal, or nil
func (e *Enum) ByOrdinal(ordinal int64) *Member {
	return e.snap.Load().ByOrdinal(ordinal)
}

// ByKey returns the member with the given persisted key, or nil
func (e *Enum) ByKey(key Value) *Member {
	return e.snap.Load().ByKey(key)
}

// ByName returns the member with the given name, or nil
func (e *Enum) ByName(name string) *Member {
	return e.snap.Load().ByName(name)
}

// MustByName returns the named member or panics. For constant-style call
// sites where the member is declared as required and its absence is a
// programming error.
func (e *Enum) MustByName(name string) *Member {
	m := e.ByName(name)
	if m == nil {
		panic(fmt.Sprintf("enum %q has no member %q", e.def.Table(), name))
	}
	return m
}

// ByNameFold returns the member whose name matches ignoring case, or
// ErrLookupUnavailable when names collide under case folding
func (e *Enum) ByNameFold(name string) (*Member, error) {
	return e.snap.Load().ByNameFold(name)
}

// Members returns every member, retired ones included
func (e *Enum) Members() []*Member {
	return e.snap.Load().Members()
}

// RequiredMembers returns the currently-required members
func (e *Enum) RequiredMembers() []*Member {
	return e.snap.Load().RequiredMembers()
}

// IsActive reports whether the member is currently declared as required
func (e *Enum) IsActive(m *Member) bool {
	return e.snap.Load().IsActive(m)
}
