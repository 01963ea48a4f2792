package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// AuditRecorder receives a record of every mutation the service applies.
type AuditRecorder interface {
	Record(ctx context.Context, action, entity, entityID string, meta map[string]any) error
}

// Config controls service validation behavior.
type Config struct {
	// Strict upgrades the legacy silent no-ops (blank create, delete of a
	// missing item) to explicit errors.
	Strict bool
}

// Service is the public authorization API. Reads resolve a subject's direct
// assignments into the closure of reachable items; mutations validate and
// then write through to the store, keeping the caches coherent.
type Service struct {
	store  Store
	cache  *Cache
	shared *RedisCache
	audit  AuditRecorder
	logger *slog.Logger
	strict bool
}

// NewService constructs a Service over the given store. The local cache is
// always present and starts disabled. The shared cache and audit recorder
// are optional.
func NewService(store Store, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  NewCache(),
		logger: logger,
		strict: cfg.Strict,
	}
}

// WithSharedCache attaches a cross-process advisory cache.
func (s *Service) WithSharedCache(cache *RedisCache) *Service {
	s.shared = cache
	return s
}

// WithAudit attaches a mutation audit recorder.
func (s *Service) WithAudit(rec AuditRecorder) *Service {
	s.audit = rec
	return s
}

// LocalCache exposes the process cache for enable/disable control.
func (s *Service) LocalCache() *Cache { return s.cache }

// EffectiveItems returns the closure of every item name reachable from the
// subject's direct assignments. An unknown subject yields an empty set.
// Subjects carrying their own assignment record bypass the caches: their
// items may diverge from the store and must not be keyed under the user id.
func (s *Service) EffectiveItems(ctx context.Context, sub Subject) (StringSet, error) {
	assigned, ok, err := s.subjectItems(ctx, sub)
	if err != nil {
		return nil, err
	}
	if !ok {
		return StringSet{}, nil
	}
	resolve := func(ctx context.Context) (StringSet, error) {
		snap, err := s.store.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return Resolve(snap, assigned), nil
	}
	if sub.loaded {
		return resolve(ctx)
	}
	return s.cache.GetOrCompute(sub.ID(), func() (StringSet, error) {
		return s.shared.Fetch(ctx, sub.ID(), resolve)
	})
}

// CheckAccess reports whether itemName is in the subject's resolved closure.
// Unknown subjects are never granted access.
func (s *Service) CheckAccess(ctx context.Context, sub Subject, itemName string) (bool, error) {
	resolved, err := s.EffectiveItems(ctx, sub)
	if err != nil {
		return false, err
	}
	return resolved.Contains(itemName), nil
}

// UserIsInRole reports whether any of roles is in the subject's direct
// assignment set. The children hierarchy is deliberately not expanded; role
// membership is a direct-grant check.
func (s *Service) UserIsInRole(ctx context.Context, sub Subject, roles ...string) (bool, error) {
	return s.hasDirect(ctx, sub, roles)
}

// UserHasPermission reports whether any of permissions is directly assigned
// to the subject. Same direct-only semantics as UserIsInRole.
func (s *Service) UserHasPermission(ctx context.Context, sub Subject, permissions ...string) (bool, error) {
	return s.hasDirect(ctx, sub, permissions)
}

// GetRolesForUser returns a user's direct assignment set. The bool reports
// whether the user record exists.
func (s *Service) GetRolesForUser(ctx context.Context, userID string) ([]string, bool, error) {
	return s.store.GetAssigned(ctx, userID)
}

// GetAllRoles returns every auth item ordered by name.
func (s *Service) GetAllRoles(ctx context.Context) ([]AuthItem, error) {
	return s.store.GetAll(ctx)
}

// GetItem returns a single item by name.
func (s *Service) GetItem(ctx context.Context, name string) (AuthItem, bool, error) {
	return s.store.FindByName(ctx, name)
}

// GetUsersInRole returns every user whose direct set contains name.
func (s *Service) GetUsersInRole(ctx context.Context, name string) ([]string, error) {
	return s.store.GetUsersWithItem(ctx, name)
}

// CreateRole creates a role with the trimmed name. In lenient mode a blank
// name returns (nil, nil), matching the historical surface; strict mode
// returns ErrInvalidName. A name collision is always ErrDuplicateName.
func (s *Service) CreateRole(ctx context.Context, name string) (*AuthItem, error) {
	return s.createItem(ctx, name, TypeRole)
}

// CreatePermission creates a permission with the trimmed name. Validation
// follows CreateRole.
func (s *Service) CreatePermission(ctx context.Context, name string) (*AuthItem, error) {
	return s.createItem(ctx, name, TypePermission)
}

// DeleteAuthItem removes an item unless any user still directly holds it,
// in which case it fails with ErrItemInUse. References to the deleted name
// inside other items' children are left behind; the resolver treats them as
// leaves and the worker's integrity sweep reports them.
func (s *Service) DeleteAuthItem(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		if s.strict {
			return ErrInvalidName
		}
		return nil
	}

	holders, err := s.store.GetUsersWithItem(ctx, name)
	if err != nil {
		return err
	}
	if len(holders) > 0 {
		return fmt.Errorf("%w: %s has %d direct holder(s)", ErrItemInUse, name, len(holders))
	}

	if err := s.store.Delete(ctx, name); err != nil {
		if errors.Is(err, ErrNotFound) && !s.strict {
			return nil
		}
		return err
	}

	s.invalidateAll(ctx)
	s.record(ctx, "authz.item.delete", "auth_item", name, nil)
	return nil
}

// AddUsersToRoles grants roleNames to each user. Blank role names are
// dropped; role names with no existing item are first created as roles.
// Reapplying the same grant is a no-op.
func (s *Service) AddUsersToRoles(ctx context.Context, userIDs, roleNames []string) error {
	if len(userIDs) == 0 {
		return ErrMissingUsersParam
	}
	if len(roleNames) == 0 {
		return ErrMissingRolesParam
	}
	roleNames = normalizeNames(roleNames)
	if len(roleNames) == 0 {
		return nil
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, name := range roleNames {
		if _, ok := snap[name]; ok {
			continue
		}
		if _, err := s.store.Create(ctx, name, TypeRole); err != nil && !errors.Is(err, ErrDuplicateName) {
			return err
		}
	}

	if err := s.store.AddToRoles(ctx, userIDs, roleNames); err != nil {
		return err
	}

	s.invalidateUsers(ctx, userIDs)
	s.record(ctx, "authz.assign", "auth_user", strings.Join(userIDs, ","), map[string]any{"roles": roleNames})
	return nil
}

// RemoveUsersFromRoles revokes roleNames from each user. Absent names and
// memberships are no-ops.
func (s *Service) RemoveUsersFromRoles(ctx context.Context, userIDs, roleNames []string) error {
	if len(userIDs) == 0 {
		return ErrMissingUsersParam
	}
	if len(roleNames) == 0 {
		return ErrMissingRolesParam
	}

	if err := s.store.RemoveFromRoles(ctx, userIDs, roleNames); err != nil {
		return err
	}

	s.invalidateUsers(ctx, userIDs)
	s.record(ctx, "authz.revoke", "auth_user", strings.Join(userIDs, ","), map[string]any{"roles": roleNames})
	return nil
}

// AddItemChild adds childName to the parent's child set. The insert is
// idempotent; the parent must exist, the child is not validated.
func (s *Service) AddItemChild(ctx context.Context, parentName, childName string) error {
	if err := s.store.AddChild(ctx, parentName, childName); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	s.record(ctx, "authz.item.add_child", "auth_item", parentName, map[string]any{"child": childName})
	return nil
}

func (s *Service) createItem(ctx context.Context, name string, typ ItemType) (*AuthItem, error) {
	if strings.TrimSpace(name) == "" {
		if s.strict {
			return nil, ErrInvalidName
		}
		return nil, nil
	}
	item, err := s.store.Create(ctx, name, typ)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "authz.item.create", "auth_item", item.Name, map[string]any{"type": string(typ)})
	return &item, nil
}

func (s *Service) hasDirect(ctx context.Context, sub Subject, names []string) (bool, error) {
	assigned, ok, err := s.subjectItems(ctx, sub)
	if err != nil || !ok {
		return false, err
	}
	direct := NewStringSet(assigned...)
	for _, n := range names {
		if direct.Contains(n) {
			return true, nil
		}
	}
	return false, nil
}

// subjectItems resolves a Subject to its direct assignment set, hitting the
// assignment store only when the caller passed a bare identifier.
func (s *Service) subjectItems(ctx context.Context, sub Subject) ([]string, bool, error) {
	if sub.loaded {
		return sub.items, true, nil
	}
	if sub.id == "" {
		return nil, false, nil
	}
	return s.store.GetAssigned(ctx, sub.id)
}

func (s *Service) invalidateUsers(ctx context.Context, userIDs []string) {
	for _, id := range userIDs {
		s.cache.Invalidate(id)
	}
	if err := s.shared.Bump(ctx); err != nil {
		s.logger.Warn("bump shared cache", slog.Any("error", err))
	}
}

func (s *Service) invalidateAll(ctx context.Context) {
	s.cache.Reset()
	if err := s.shared.Bump(ctx); err != nil {
		s.logger.Warn("bump shared cache", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, action, entity, entityID, meta); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
