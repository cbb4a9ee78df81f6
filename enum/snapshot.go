package enum

import (
	"fmt"
	"strings"
)

// Snapshot is an immutable, fully-indexed, point-in-time view of an
// enumeration's members: every persisted row, retired ones included, plus
// the subset currently declared as required. A snapshot is never patched;
// re-synchronization builds a new one and swaps it in wholesale.
type Snapshot struct {
	byKey    map[Value]*Member
	byName   map[string]*Member
	byFold   map[string]*Member // nil when names collide case-insensitively
	required map[string]*Member
	members  []*Member
	dummy    bool
}

// newSnapshot indexes one full row set. When prev is non-nil, members whose
// key, name and attributes are unchanged keep their previous instance, so
// references cached by callers across a re-synchronization stay valid.
func newSnapshot(def *Definition, rows []Row, decls []Declaration, prev *Snapshot, dummy bool) (*Snapshot, error) {
	requiredNames := make(map[string]bool, len(decls))
	for _, decl := range decls {
		requiredNames[decl.Name] = true
	}

	s := &Snapshot{
		byKey:    make(map[Value]*Member, len(rows)),
		byName:   make(map[string]*Member, len(rows)),
		required: make(map[string]*Member, len(decls)),
		members:  make([]*Member, 0, len(rows)),
		dummy:    dummy,
	}

	nameCol := def.NameColumn()
	for _, row := range rows {
		nameVal, ok := row[nameCol]
		if !ok {
			return nil, fmt.Errorf("%w: table %q returned a row without column %q", ErrTableInvalid, def.Table(), nameCol)
		}
		name, ok := nameVal.Str()
		if !ok {
			return nil, fmt.Errorf("%w: table %q column %q is not a string", ErrTableInvalid, def.Table(), nameCol)
		}
		key, ok := row[idColumn]
		if !ok || key.IsNull() {
			return nil, fmt.Errorf("%w: table %q row %q has no id", ErrTableInvalid, def.Table(), name)
		}

		attrs := make(map[string]Value, len(row))
		for col, v := range row {
			if col == idColumn || col == nameCol {
				continue
			}
			attrs[col] = v
		}

		member := newMember(key, name, attrs, dummy)
		if prev != nil {
			if p, ok := prev.byName[name]; ok && !p.dummy && p.key == key && p.sameAttrs(attrs) {
				member = p
			}
		}

		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("%w: table %q holds two rows named %q", ErrTableInvalid, def.Table(), name)
		}
		if _, dup := s.byKey[key]; dup {
			return nil, fmt.Errorf("%w: table %q holds two rows with id %s", ErrTableInvalid, def.Table(), key)
		}

		s.byKey[key] = member
		s.byName[name] = member
		s.members = append(s.members, member)
		if requiredNames[name] {
			s.required[name] = member
		}
	}

	for _, decl := range decls {
		if _, ok := s.required[decl.Name]; !ok {
			return nil, fmt.Errorf("%w: required member %q of %q absent after reconciliation", ErrTableInvalid, decl.Name, def.Table())
		}
	}

	s.byFold = foldIndex(s.members)
	return s, nil
}

// foldIndex builds the case-insensitive name index, or returns nil when two
// names collide after lower-casing.
func foldIndex(members []*Member) map[string]*Member {
	idx := make(map[string]*Member, len(members))
	for _, m := range members {
		folded := strings.ToLower(m.name)
		if _, collision := idx[folded]; collision {
			return nil
		}
		idx[folded] = m
	}
	return idx
}

// ByKey returns the member with the given persisted key, or nil
func (s *Snapshot) ByKey(key Value) *Member {
	return s.byKey[key]
}

// ByOrdinal returns the member with the given integer ordinal, or nil
func (s *Snapshot) ByOrdinal(ordinal int64) *Member {
	return s.byKey[Int(ordinal)]
}

// ByName returns the member with the given name (case-sensitive), or nil
func (s *Snapshot) ByName(name string) *Member {
	return s.byName[name]
}

// ByNameFold returns the member whose name matches ignoring case. It
// returns ErrLookupUnavailable when the snapshot's names are not unique
// under case folding.
func (s *Snapshot) ByNameFold(name string) (*Member, error) {
	if s.byFold == nil {
		return nil, fmt.Errorf("%w: names collide when case is ignored", ErrLookupUnavailable)
	}
	return s.byFold[strings.ToLower(name)], nil
}

// Members returns every member, retired ones included, in row order
func (s *Snapshot) Members() []*Member {
	return append([]*Member(nil), s.members...)
}

// RequiredMembers returns the currently-required members in row order
func (s *Snapshot) RequiredMembers() []*Member {
	out := make([]*Member, 0, len(s.required))
	for _, m := range s.members {
		if s.required[m.name] == m {
			out = append(out, m)
		}
	}
	return out
}

// IsActive reports whether the member is currently declared as required
func (s *Snapshot) IsActive(m *Member) bool {
	return m != nil && s.required[m.name] == m
}

// Dummy reports whether this snapshot was built from fallback records
// rather than persisted rows
func (s *Snapshot) Dummy() bool {
	return s.dummy
}

// Len returns the number of members, retired ones included
func (s *Snapshot) Len() int {
	return len(s.members)
}
