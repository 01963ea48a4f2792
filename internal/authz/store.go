package authz

import "context"

// ItemStore persists the canonical set of auth items and their child edges.
type ItemStore interface {
	// Create inserts a new item with no children. Returns ErrInvalidName
	// for blank names and ErrDuplicateName on a name collision.
	Create(ctx context.Context, name string, typ ItemType) (AuthItem, error)
	// Delete removes an item by name. Returns ErrNotFound if absent.
	// Callers must verify the item is unreferenced before deleting.
	Delete(ctx context.Context, name string) error
	// AddChild inserts childName into the parent's child set. The insert
	// is idempotent and the child is not required to exist; the parent is.
	AddChild(ctx context.Context, parentName, childName string) error
	// GetAll returns every item ordered by name ascending.
	GetAll(ctx context.Context) ([]AuthItem, error)
	// FindByName returns the item and whether it exists.
	FindByName(ctx context.Context, name string) (AuthItem, bool, error)
	// Snapshot returns a stable adjacency view for resolution.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// AssignmentStore persists each user's direct assignment set.
type AssignmentStore interface {
	// GetAssigned returns a user's direct item names. The bool reports
	// whether the user record exists, distinguishing an unknown user from
	// one with zero items.
	GetAssigned(ctx context.Context, userID string) ([]string, bool, error)
	// AddToRoles unions roleNames into each user's assignment set.
	AddToRoles(ctx context.Context, userIDs, roleNames []string) error
	// RemoveFromRoles removes roleNames from each user's assignment set.
	RemoveFromRoles(ctx context.Context, userIDs, roleNames []string) error
	// GetUsersWithItem returns every user directly holding name.
	GetUsersWithItem(ctx context.Context, name string) ([]string, error)
	// AllUsers returns every known user id, used by warmup and sweep jobs.
	AllUsers(ctx context.Context) ([]string, error)
}

// Store combines both stores; the memory and Postgres implementations
// satisfy it so the service can run against either backend.
type Store interface {
	ItemStore
	AssignmentStore
}
