package authz

import "errors"

// Sentinel errors for the authorization domain.
var (
	// ErrInvalidName indicates a name that is empty after trimming.
	ErrInvalidName = errors.New("authz: invalid item name")
	// ErrDuplicateName indicates a create collision on an existing name.
	ErrDuplicateName = errors.New("authz: item already exists")
	// ErrNotFound indicates an operation on a missing item.
	ErrNotFound = errors.New("authz: item not found")
	// ErrItemInUse indicates a delete blocked by a live direct assignment.
	ErrItemInUse = errors.New("authz: item is in use")
	// ErrMissingUsersParam indicates a batch call without users.
	ErrMissingUsersParam = errors.New("authz: missing users param")
	// ErrMissingRolesParam indicates a batch call without roles.
	ErrMissingRolesParam = errors.New("authz: missing roles param")
)
