package authz

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store guarded by a single RWMutex. It backs
// the authoritative execution context and the test suites; mutations are
// serialized so concurrent same-name creates yield exactly one success.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*AuthItem
	users map[string]StringSet
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*AuthItem),
		users: make(map[string]StringSet),
	}
}

// SeedUser creates a user record with the given direct assignments,
// replacing any existing record. Intended for tests and bootstrap.
func (s *MemoryStore) SeedUser(userID string, items ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = NewStringSet(items...)
}

// Create inserts a new item under the write lock.
func (s *MemoryStore) Create(ctx context.Context, name string, typ ItemType) (AuthItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AuthItem{}, ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[name]; ok {
		return AuthItem{}, ErrDuplicateName
	}
	item := &AuthItem{Name: name, Type: typ}
	s.items[name] = item
	return copyItem(item), nil
}

// Delete removes an item. Child references held by other items are left in
// place; the resolver treats them as leaves.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[name]; !ok {
		return ErrNotFound
	}
	delete(s.items, name)
	return nil
}

// AddChild appends childName to the parent's child set if not present.
func (s *MemoryStore) AddChild(ctx context.Context, parentName, childName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.items[parentName]
	if !ok {
		return ErrNotFound
	}
	for _, c := range parent.Children {
		if c == childName {
			return nil
		}
	}
	parent.Children = append(parent.Children, childName)
	return nil
}

// GetAll returns all items ordered by name.
func (s *MemoryStore) GetAll(ctx context.Context) ([]AuthItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuthItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, copyItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindByName returns an item by name.
func (s *MemoryStore) FindByName(ctx context.Context, name string) (AuthItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[name]
	if !ok {
		return AuthItem{}, false, nil
	}
	return copyItem(item), true, nil
}

// Snapshot copies the adjacency structure so a traversal never observes a
// half-applied mutation.
func (s *MemoryStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.items))
	for name, item := range s.items {
		children := make([]string, len(item.Children))
		copy(children, item.Children)
		snap[name] = ItemNode{Type: item.Type, Children: children}
	}
	return snap, nil
}

// GetAssigned returns a user's direct assignment set.
func (s *MemoryStore) GetAssigned(ctx context.Context, userID string) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.users[userID]
	if !ok {
		return nil, false, nil
	}
	return set.Slice(), true, nil
}

// AddToRoles unions roleNames into each user's assignment set, creating the
// user record when absent. Each user is updated atomically under the lock.
func (s *MemoryStore) AddToRoles(ctx context.Context, userIDs, roleNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range userIDs {
		set, ok := s.users[id]
		if !ok {
			set = make(StringSet, len(roleNames))
			s.users[id] = set
		}
		for _, r := range roleNames {
			set[r] = struct{}{}
		}
	}
	return nil
}

// RemoveFromRoles removes roleNames from each user's assignment set.
// Absent users and already-absent memberships are no-ops.
func (s *MemoryStore) RemoveFromRoles(ctx context.Context, userIDs, roleNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range userIDs {
		set, ok := s.users[id]
		if !ok {
			continue
		}
		for _, r := range roleNames {
			delete(set, r)
		}
	}
	return nil
}

// GetUsersWithItem returns users whose direct set contains name, sorted for
// deterministic output.
func (s *MemoryStore) GetUsersWithItem(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, set := range s.users {
		if set.Contains(name) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func copyItem(item *AuthItem) AuthItem {
	out := AuthItem{Name: item.Name, Type: item.Type}
	if len(item.Children) > 0 {
		out.Children = make([]string, len(item.Children))
		copy(out.Children, item.Children)
	}
	return out
}

// AllUsers returns every known user id, sorted.
func (s *MemoryStore) AllUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
