package authzhttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/authgraph/authgraph/internal/authz"
	"github.com/authgraph/authgraph/internal/platform/httpx"
)

// Handler exposes the authorization service as a JSON API.
type Handler struct {
	logger   *slog.Logger
	service  *authz.Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *authz.Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers all API routes without guards.
func (h *Handler) MountRoutes(r chi.Router) {
	h.MountReadRoutes(r)
	h.MountWriteRoutes(r)
}

// MountReadRoutes registers the query surface: item and assignment lookups
// plus the per-user check endpoints.
func (h *Handler) MountReadRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Get("/items/{name}", h.getItem)
	r.Get("/items/{name}/users", h.usersInRole)

	r.Get("/users/{id}/items", h.userItems)
	r.Get("/users/{id}/effective", h.userEffective)
	r.Get("/users/{id}/access", h.checkAccess)
	r.Get("/users/{id}/in-role", h.userInRole)
	r.Get("/users/{id}/has-permission", h.userHasPermission)
}

// MountWriteRoutes registers the mutation surface, typically wrapped in a
// Middleware guard by the router.
func (h *Handler) MountWriteRoutes(r chi.Router) {
	r.Post("/roles", h.createRole)
	r.Post("/permissions", h.createPermission)
	r.Delete("/items/{name}", h.deleteItem)
	r.Post("/items/{name}/children", h.addChild)

	r.Post("/assignments", h.assignRoles)
	r.Delete("/assignments", h.revokeRoles)
}

type createItemRequest struct {
	Name string `json:"name" validate:"required"`
}

type addChildRequest struct {
	Child string `json:"child" validate:"required"`
}

type assignmentRequest struct {
	Users []string `json:"users" validate:"required,min=1"`
	Roles []string `json:"roles" validate:"required,min=1"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetAllRoles(r.Context())
	if err != nil {
		h.fail(w, r, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	item, ok, err := h.service.GetItem(r.Context(), name)
	if err != nil {
		h.fail(w, r, "get item", err)
		return
	}
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no such item: "+name)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	h.createItem(w, r, h.service.CreateRole)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	h.createItem(w, r, h.service.CreatePermission)
}

// createItem handles both create endpoints. In lenient mode the service
// returns (nil, nil) for blank names; that surfaces as 204 rather than 201,
// mirroring the historical silent no-op.
func (h *Handler) createItem(w http.ResponseWriter, r *http.Request, create func(context.Context, string) (*authz.AuthItem, error)) {
	var req createItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := create(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, "create item", err)
		return
	}
	if item == nil {
		httpx.NoContent(w)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAuthItem(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.fail(w, r, "delete item", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) addChild(w http.ResponseWriter, r *http.Request) {
	var req addChildRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AddItemChild(r.Context(), chi.URLParam(r, "name"), req.Child); err != nil {
		h.fail(w, r, "add child", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) usersInRole(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetUsersInRole(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, "users in role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AddUsersToRoles(r.Context(), req.Users, req.Roles); err != nil {
		h.fail(w, r, "assign roles", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) revokeRoles(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.RemoveUsersFromRoles(r.Context(), req.Users, req.Roles); err != nil {
		h.fail(w, r, "revoke roles", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) userItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	items, ok, err := h.service.GetRolesForUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, "user items", err)
		return
	}
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no such user: "+id)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": id, "items": items})
}

func (h *Handler) userEffective(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resolved, err := h.service.EffectiveItems(r.Context(), authz.UserID(id))
	if err != nil {
		h.fail(w, r, "effective items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": id, "items": resolved.Slice()})
}

func (h *Handler) checkAccess(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item query parameter is required")
		return
	}
	allowed, err := h.service.CheckAccess(r.Context(), authz.UserID(chi.URLParam(r, "id")), item)
	if err != nil {
		h.fail(w, r, "check access", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item": item, "allowed": allowed})
}

func (h *Handler) userInRole(w http.ResponseWriter, r *http.Request) {
	roles := r.URL.Query()["role"]
	if len(roles) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "at least one role query parameter is required")
		return
	}
	ok, err := h.service.UserIsInRole(r.Context(), authz.UserID(chi.URLParam(r, "id")), roles...)
	if err != nil {
		h.fail(w, r, "user in role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"in_role": ok})
}

func (h *Handler) userHasPermission(w http.ResponseWriter, r *http.Request) {
	perms := r.URL.Query()["permission"]
	if len(perms) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "at least one permission query parameter is required")
		return
	}
	ok, err := h.service.UserHasPermission(r.Context(), authz.UserID(chi.URLParam(r, "id")), perms...)
	if err != nil {
		h.fail(w, r, "user has permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"has_permission": ok})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
