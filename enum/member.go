package enum

// Member is one enumeration member: its persisted key, its symbolic name,
// and its attribute bag. Members are immutable once constructed; a
// re-synchronization that changes a member produces a new instance rather
// than mutating the old one, so references held by callers stay coherent.
type Member struct {
	key   Value
	name  string
	attrs map[string]Value
	dummy bool
}

func newMember(key Value, name string, attrs map[string]Value, dummy bool) *Member {
	copied := make(map[string]Value, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &Member{
		key:   key,
		name:  name,
		attrs: copied,
		dummy: dummy,
	}
}

// Key returns the persisted primary key: an integer ordinal, or the name
// itself when the backing column is a native enumerated type
func (m *Member) Key() Value {
	return m.key
}

// Ordinal returns the integer form of the key. It returns 0 and false when
// the key is not an integer (native enumerated type storage).
func (m *Member) Ordinal() (int64, bool) {
	return m.key.Int64()
}

// Name returns the member's symbolic name
func (m *Member) Name() string {
	return m.name
}

// Attr returns the named attribute and whether it is present
func (m *Member) Attr(name string) (Value, bool) {
	v, ok := m.attrs[name]
	return v, ok
}

// Attrs returns a copy of the member's attribute bag
func (m *Member) Attrs() map[string]Value {
	copied := make(map[string]Value, len(m.attrs))
	for k, v := range m.attrs {
		copied[k] = v
	}
	return copied
}

// Dummy reports whether the member is an ephemeral fallback record that was
// never persisted
func (m *Member) Dummy() bool {
	return m.dummy
}

// sameAttrs reports whether the member's attribute bag equals attrs exactly
func (m *Member) sameAttrs(attrs map[string]Value) bool {
	if len(m.attrs) != len(attrs) {
		return false
	}
	for k, v := range attrs {
		if prev, ok := m.attrs[k]; !ok || prev != v {
			return false
		}
	}
	return true
}
