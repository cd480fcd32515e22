package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nimbusdrive/nimbusdrive/internal/authz"
	"github.com/nimbusdrive/nimbusdrive/internal/platform/httpx"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

// Handler wires HTTP endpoints for role management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers role routes with their permission guards.
func (h *Handler) MountRoutes(r chi.Router, guard authz.Guard) {
	r.With(guard.RequirePermission(authz.PermRoleView)).Get("/", h.list)
	r.With(guard.RequirePermission(authz.PermRoleAdd)).Post("/", h.create)
	r.With(guard.RequirePermission(authz.PermRoleView)).Get("/{id}", h.get)
	r.With(guard.RequirePermission(authz.PermRoleUpdate)).Put("/{id}", h.update)
	r.With(guard.RequirePermission(authz.PermRoleDelete)).Delete("/{id}", h.delete)
	r.With(guard.RequirePermission(authz.PermRoleView)).Get("/{id}/permission", h.getPermissions)
	r.With(guard.RequirePermission(authz.PermRoleUpdate)).Put("/{id}/permission", h.setPermissions)
}

type roleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func toRoleResponse(role *Role) roleResponse {
	return roleResponse{ID: role.ID, Name: role.Name, Description: role.Description}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondErr(w, err, "list roles")
		return
	}
	resp := make([]roleResponse, 0, len(roles))
	for i := range roles {
		resp = append(resp, toRoleResponse(&roles[i]))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, err, "get role")
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.respondErr(w, err, "create role")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": role.ID})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description); err != nil {
		h.respondErr(w, err, "update role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondErr(w, err, "delete role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.GetRolePermissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, err, "get role permissions")
		return
	}
	if perms == nil {
		perms = []authz.Permission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	var req setPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	perms := make([]authz.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, authz.Permission(p))
	}
	if err := h.service.SetRolePermissions(r.Context(), chi.URLParam(r, "id"), perms); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
