package authzhttp

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/authgraph/authgraph/internal/authz"
)

// UserResolver extracts the caller identity from a request. The default
// trusts the X-Auth-User header, which is expected to be set by an
// authenticating proxy in front of this service.
type UserResolver func(r *http.Request) string

// HeaderUserResolver reads the identity from the named header.
func HeaderUserResolver(header string) UserResolver {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(header))
	}
}

// Middleware guards routes with authorization checks, the server-side
// counterpart of template-level convenience helpers: handlers behind these
// guards can assume the check already passed, but the checks themselves stay
// authoritative here.
type Middleware struct {
	Service *authz.Service
	Logger  *slog.Logger
	Resolve UserResolver
}

// RequireAccess ensures the caller's resolved closure contains item.
func (m Middleware) RequireAccess(item string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := m.currentUser(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			allowed, err := m.Service.CheckAccess(r.Context(), authz.UserID(userID), item)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("require access", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole ensures the caller directly holds at least one of roles.
func (m Middleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := m.currentUser(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			inRole, err := m.Service.UserIsInRole(r.Context(), authz.UserID(userID), roles...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("require any role", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !inRole {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUser(r *http.Request) (string, bool) {
	resolve := m.Resolve
	if resolve == nil {
		resolve = HeaderUserResolver("X-Auth-User")
	}
	id := resolve(r)
	return id, id != ""
}
