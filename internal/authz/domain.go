package authz

import "strings"

// ItemType distinguishes roles from permissions.
type ItemType string

const (
	// TypeRole marks an item that may grant other items through children.
	TypeRole ItemType = "role"
	// TypePermission marks a terminal item with no children.
	TypePermission ItemType = "permission"
)

// AuthItem is a uniquely named role or permission. Children holds the names
// of items granted transitively and is only populated for roles.
type AuthItem struct {
	Name     string   `json:"name"`
	Type     ItemType `json:"type"`
	Children []string `json:"children,omitempty"`
}

// ItemNode is the adjacency view of an item used during resolution.
type ItemNode struct {
	Type     ItemType
	Children []string
}

// Snapshot is a stable name to node mapping taken from the item store.
// Resolution traverses a Snapshot so concurrent mutations cannot be
// observed mid-traversal.
type Snapshot map[string]ItemNode

// StringSet is a set of auth item names.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given names.
func NewStringSet(names ...string) StringSet {
	s := make(StringSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Contains reports whether name is in the set.
func (s StringSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Slice returns the set members in unspecified order.
func (s StringSet) Slice() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	return out
}

// Subject identifies the user an authorization question is about. It is
// either a bare identifier, resolved against the assignment store at the
// service boundary, or a record whose direct assignments were already
// loaded by the caller.
type Subject struct {
	id     string
	items  []string
	loaded bool
}

// UserID builds a Subject from an identifier.
func UserID(id string) Subject {
	return Subject{id: id}
}

// UserRecord builds a Subject from an identifier and its already-loaded
// direct assignment set.
func UserRecord(id string, items []string) Subject {
	return Subject{id: id, items: items, loaded: true}
}

// ID returns the subject identifier.
func (s Subject) ID() string { return s.id }

// normalizeNames trims each name and drops the ones that are blank.
func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}
