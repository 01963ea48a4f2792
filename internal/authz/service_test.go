package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, cfg Config) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store, nil, cfg), store
}

func TestCreateRoleNormalizesWhitespace(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	item, err := svc.CreateRole(ctx, "  admin  ")
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, "admin", item.Name)
	require.Equal(t, TypeRole, item.Type)
}

func TestCreateRoleBlankNameLenient(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	item, err := svc.CreateRole(ctx, "   ")
	require.NoError(t, err)
	require.Nil(t, item)

	items, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, items, "item count must be unchanged")
}

func TestCreateRoleBlankNameStrict(t *testing.T) {
	svc, _ := newTestService(t, Config{Strict: true})
	_, err := svc.CreateRole(context.Background(), "   ")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestCreateDuplicateFailsSecond(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	_, err = svc.CreatePermission(ctx, " admin ")
	require.ErrorIs(t, err, ErrDuplicateName)

	items, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestCheckAccessExpandsHierarchyDirectChecksDoNot(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	_, err = svc.CreatePermission(ctx, "editDoc")
	require.NoError(t, err)
	require.NoError(t, svc.AddItemChild(ctx, "admin", "editDoc"))
	store.SeedUser("u1", "admin")

	sub := UserID("u1")
	allowed, err := svc.CheckAccess(ctx, sub, "editDoc")
	require.NoError(t, err)
	require.True(t, allowed)

	inRole, err := svc.UserIsInRole(ctx, sub, "editDoc")
	require.NoError(t, err)
	require.False(t, inRole, "role membership is a direct-grant check")

	inRole, err = svc.UserIsInRole(ctx, sub, "admin")
	require.NoError(t, err)
	require.True(t, inRole)

	hasPerm, err := svc.UserHasPermission(ctx, sub, "editDoc")
	require.NoError(t, err)
	require.False(t, hasPerm, "permission check does not expand roles")
}

func TestCheckAccessUnknownUser(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	allowed, err := svc.CheckAccess(context.Background(), UserID("nobody"), "admin")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestCheckAccessLoadedRecordSkipsStore(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	require.NoError(t, svc.AddItemChild(ctx, "admin", "editDoc"))

	// No user record in the store; the caller supplies the assignments.
	allowed, err := svc.CheckAccess(ctx, UserRecord("external", []string{"admin"}), "editDoc")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestEffectiveItemsThreeLevelChain(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	for _, role := range []string{"admin", "management"} {
		_, err := svc.CreateRole(ctx, role)
		require.NoError(t, err)
	}
	_, err := svc.CreatePermission(ctx, "test")
	require.NoError(t, err)
	require.NoError(t, svc.AddItemChild(ctx, "admin", "management"))
	require.NoError(t, svc.AddItemChild(ctx, "management", "test"))
	store.SeedUser("u1", "admin")

	resolved, err := svc.EffectiveItems(ctx, UserID("u1"))
	require.NoError(t, err)
	require.Equal(t, NewStringSet("admin", "management", "test"), resolved)
}

func TestEffectiveItemsCyclicGraph(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	for _, role := range []string{"A", "B"} {
		_, err := svc.CreateRole(ctx, role)
		require.NoError(t, err)
	}
	require.NoError(t, svc.AddItemChild(ctx, "A", "B"))
	require.NoError(t, svc.AddItemChild(ctx, "B", "A"))
	store.SeedUser("u1", "A")

	resolved, err := svc.EffectiveItems(ctx, UserID("u1"))
	require.NoError(t, err)
	require.Equal(t, NewStringSet("A", "B"), resolved)
}

func TestDeleteAuthItemInUse(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	store.SeedUser("u1", "admin")

	err = svc.DeleteAuthItem(ctx, "admin")
	require.ErrorIs(t, err, ErrItemInUse)

	_, ok, err := store.FindByName(ctx, "admin")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDeleteAuthItemSucceedsWhenUnused(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAuthItem(ctx, "admin"))

	_, ok, err := store.FindByName(ctx, "admin")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteAuthItemMissingLenientVsStrict(t *testing.T) {
	lenient, _ := newTestService(t, Config{})
	require.NoError(t, lenient.DeleteAuthItem(context.Background(), "ghost"))

	strict, _ := newTestService(t, Config{Strict: true})
	require.ErrorIs(t, strict.DeleteAuthItem(context.Background(), "ghost"), ErrNotFound)
}

func TestDeleteLeavesDanglingChildReferences(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	_, err = svc.CreatePermission(ctx, "editDoc")
	require.NoError(t, err)
	require.NoError(t, svc.AddItemChild(ctx, "admin", "editDoc"))
	require.NoError(t, svc.DeleteAuthItem(ctx, "editDoc"))

	item, ok, err := svc.GetItem(ctx, "admin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"editDoc"}, item.Children)

	// The dangling name still resolves as a leaf.
	resolved, err := svc.EffectiveItems(ctx, UserRecord("u1", []string{"admin"}))
	require.NoError(t, err)
	require.True(t, resolved.Contains("editDoc"))
}

func TestAddUsersToRolesAutoCreatesAndIsIdempotent(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	require.NoError(t, svc.AddUsersToRoles(ctx, []string{"u1", "u2"}, []string{"admin", " editor "}))

	item, ok, err := store.FindByName(ctx, "admin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, TypeRole, item.Type)
	_, ok, err = store.FindByName(ctx, "editor")
	require.NoError(t, err)
	require.True(t, ok)

	first, _, err := store.GetAssigned(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.AddUsersToRoles(ctx, []string{"u1", "u2"}, []string{"admin", "editor"}))
	second, _, err := store.GetAssigned(ctx, "u1")
	require.NoError(t, err)
	require.ElementsMatch(t, first, second)
	require.Len(t, second, 2)
}

func TestAddUsersToRolesValidation(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	require.ErrorIs(t, svc.AddUsersToRoles(ctx, nil, []string{"admin"}), ErrMissingUsersParam)
	require.ErrorIs(t, svc.AddUsersToRoles(ctx, []string{"u1"}, nil), ErrMissingRolesParam)

	// All-blank role names reduce the call to a no-op.
	require.NoError(t, svc.AddUsersToRoles(ctx, []string{"u1"}, []string{"  ", ""}))
	_, ok, err := store.GetAssigned(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoveUsersFromRoles(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	require.NoError(t, svc.AddUsersToRoles(ctx, []string{"u1"}, []string{"admin", "editor"}))
	require.NoError(t, svc.RemoveUsersFromRoles(ctx, []string{"u1"}, []string{"admin"}))

	inRole, err := svc.UserIsInRole(ctx, UserID("u1"), "admin")
	require.NoError(t, err)
	require.False(t, inRole)

	inRole, err = svc.UserIsInRole(ctx, UserID("u1"), "editor")
	require.NoError(t, err)
	require.True(t, inRole, "unaffected roles remain")

	require.ErrorIs(t, svc.RemoveUsersFromRoles(ctx, nil, []string{"admin"}), ErrMissingUsersParam)
	require.ErrorIs(t, svc.RemoveUsersFromRoles(ctx, []string{"u1"}, nil), ErrMissingRolesParam)
}

func TestGetRolesForUserDistinguishesUnknown(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	_, ok, err := svc.GetRolesForUser(ctx, "ghost")
	require.NoError(t, err)
	require.False(t, ok)

	store.SeedUser("u1")
	items, ok, err := svc.GetRolesForUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, items)
}

func TestGetUsersInRoleDirectOnly(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	require.NoError(t, svc.AddItemChild(ctx, "admin", "editDoc"))
	store.SeedUser("u1", "admin")

	users, err := svc.GetUsersInRole(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, users)

	// u1 reaches editDoc transitively but does not hold it directly.
	users, err = svc.GetUsersInRole(ctx, "editDoc")
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestCacheDisabledAlwaysObservesMutations(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()
	store.SeedUser("u1", "admin")
	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)

	allowed, err := svc.CheckAccess(ctx, UserID("u1"), "editDoc")
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, svc.AddItemChild(ctx, "admin", "editDoc"))
	for i := 0; i < 2; i++ {
		allowed, err = svc.CheckAccess(ctx, UserID("u1"), "editDoc")
		require.NoError(t, err)
		require.True(t, allowed)
	}
}

func TestCacheEnabledMemoizesUntilInvalidation(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil, Config{})
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	store.SeedUser("u1", "admin")
	svc.LocalCache().Enable()

	resolved, err := svc.EffectiveItems(ctx, UserID("u1"))
	require.NoError(t, err)
	require.Equal(t, NewStringSet("admin"), resolved)

	// A store-level mutation behind the service's back is not observed
	// while the cached entry lives; this is the documented staleness
	// boundary, not a bug.
	require.NoError(t, store.AddChild(ctx, "admin", "editDoc"))
	resolved, err = svc.EffectiveItems(ctx, UserID("u1"))
	require.NoError(t, err)
	require.False(t, resolved.Contains("editDoc"))

	svc.LocalCache().Invalidate("u1")
	resolved, err = svc.EffectiveItems(ctx, UserID("u1"))
	require.NoError(t, err)
	require.True(t, resolved.Contains("editDoc"))
}

func TestServiceMutationsInvalidateLocalCache(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	store.SeedUser("u1", "admin")
	svc.LocalCache().Enable()

	allowed, err := svc.CheckAccess(ctx, UserID("u1"), "editDoc")
	require.NoError(t, err)
	require.False(t, allowed)

	// Going through the service keeps the cache coherent.
	require.NoError(t, svc.AddItemChild(ctx, "admin", "editDoc"))
	allowed, err = svc.CheckAccess(ctx, UserID("u1"), "editDoc")
	require.NoError(t, err)
	require.True(t, allowed)
}
