// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/authgraph/authgraph/internal/authz"
)

// RespondError maps authorization domain errors to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, authz.ErrDuplicateName):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, authz.ErrItemInUse):
		Problem(w, http.StatusConflict, "Item In Use", err.Error())
	case errors.Is(err, authz.ErrInvalidName),
		errors.Is(err, authz.ErrMissingUsersParam),
		errors.Is(err, authz.ErrMissingRolesParam):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
