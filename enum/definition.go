package enum

import "fmt"

// DefaultNameColumn is the column holding the symbolic member name unless a
// definition overrides it.
const DefaultNameColumn = "name"

// idColumn is the fixed primary-key column of every backing table.
const idColumn = "id"

// Declaration is one required member: its name plus its declared attributes.
type Declaration struct {
	Name  string
	Attrs map[string]Value
}

// BuilderFunc declares required members into a Builder. It is re-evaluated
// on every initialization, so attribute values may be computed dynamically
// (e.g. from a captured counter) and change between runs.
type BuilderFunc func(b *Builder)

// Builder records member declarations in order. It replaces the
// method-call-as-declaration style of dynamic languages with explicit
// registration calls.
type Builder struct {
	decls []Declaration
	index map[string]int
}

// Member declares a required member. Declaring the same name twice replaces
// its attributes but keeps its original position.
func (b *Builder) Member(name string, attrs map[string]Value) {
	if b.index == nil {
		b.index = make(map[string]int)
	}
	decl := Declaration{Name: name, Attrs: attrs}
	if i, ok := b.index[name]; ok {
		b.decls[i] = decl
		return
	}
	b.index[name] = len(b.decls)
	b.decls = append(b.decls, decl)
}

// Definition describes what "required" means for one enumeration: the
// backing table (which doubles as the enumeration's identity), the required
// members, the name column, and an optional native enumerated type.
// Definitions are immutable once built.
type Definition struct {
	table           string
	nameColumn      string
	nativeEnumType  string
	requiredColumns []string
	static          []Declaration
	staticSet       bool
	build           BuilderFunc
}

// Option configures a Definition
type Option func(*Definition)

// WithNames declares required members by name with empty attribute bags.
// An empty list is a valid declaration of "no required members".
func WithNames(names ...string) Option {
	return func(d *Definition) {
		d.staticSet = true
		for _, n := range names {
			d.static = append(d.static, Declaration{Name: n})
		}
	}
}

// WithMembers declares required members with attributes, in order
func WithMembers(decls ...Declaration) Option {
	return func(d *Definition) {
		d.staticSet = true
		d.static = append(d.static, decls...)
	}
}

// WithBuilder supplies the required members through a builder function,
// re-evaluated on every initialization
func WithBuilder(fn BuilderFunc) Option {
	return func(d *Definition) {
		d.build = fn
	}
}

// WithNameColumn overrides the column holding the symbolic name
func WithNameColumn(column string) Option {
	return func(d *Definition) {
		d.nameColumn = column
	}
}

// WithNativeEnumType declares that the table's primary key is a native
// enumerated type whose label set must be extended in place
func WithNativeEnumType(typeName string) Option {
	return func(d *Definition) {
		d.nativeEnumType = typeName
	}
}

// WithRequiredColumns overrides the set of attribute columns every member
// declaration must supply. Without it the set is derived from the table:
// every column that is not nullable, has no default, and is not the id or
// name column.
func WithRequiredColumns(columns ...string) Option {
	return func(d *Definition) {
		d.requiredColumns = columns
	}
}

// NewDefinition builds a Definition for the named backing table. Exactly
// one of a static member list (WithNames/WithMembers) or a builder
// (WithBuilder) must be supplied.
func NewDefinition(table string, opts ...Option) (*Definition, error) {
	if table == "" {
		return nil, fmt.Errorf("%w: empty table name", ErrConfiguration)
	}

	d := &Definition{
		table:      table,
		nameColumn: DefaultNameColumn,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.staticSet && d.build != nil {
		return nil, fmt.Errorf("%w: %s: both static members and a builder supplied", ErrConfiguration, table)
	}
	if !d.staticSet && d.build == nil {
		return nil, fmt.Errorf("%w: %s: no members and no builder supplied", ErrConfiguration, table)
	}

	// Static declarations are validated once; builder output is validated
	// per evaluation.
	if d.staticSet {
		if _, err := validateDeclarations(table, d.static); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Table returns the backing table name, which is also the enumeration's
// stable identity
func (d *Definition) Table() string {
	return d.table
}

// NameColumn returns the column holding the symbolic member name
func (d *Definition) NameColumn() string {
	return d.nameColumn
}

// NativeEnumType returns the configured native enumerated type name, or ""
func (d *Definition) NativeEnumType() string {
	return d.nativeEnumType
}

// requiredMembers produces the current required member declarations,
// re-running the builder when one is configured.
func (d *Definition) requiredMembers() ([]Declaration, error) {
	if d.build != nil {
		b := &Builder{}
		d.build(b)
		return validateDeclarations(d.table, b.decls)
	}
	return validateDeclarations(d.table, d.static)
}

// compatibleWith reports whether two definitions describe the same
// enumeration shape. Used when a name is registered twice, e.g. after a
// code reload re-runs package initialization.
func (d *Definition) compatibleWith(other *Definition) bool {
	return d.table == other.table &&
		d.nameColumn == other.nameColumn &&
		d.nativeEnumType == other.nativeEnumType &&
		(d.build != nil) == (other.build != nil)
}

// validateDeclarations rejects duplicate and empty names and returns a
// defensive copy so later builder runs cannot alias earlier results.
func validateDeclarations(table string, decls []Declaration) ([]Declaration, error) {
	seen := make(map[string]bool, len(decls))
	out := make([]Declaration, 0, len(decls))
	for _, decl := range decls {
		if decl.Name == "" {
			return nil, fmt.Errorf("%w: %s: member with empty name", ErrConfiguration, table)
		}
		if seen[decl.Name] {
			return nil, fmt.Errorf("%w: %s: member %q declared twice", ErrConfiguration, table, decl.Name)
		}
		seen[decl.Name] = true
		out = append(out, decl)
	}
	return out, nil
}
