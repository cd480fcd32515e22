package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nimbusdrive/nimbusdrive/internal/authz"
	"github.com/nimbusdrive/nimbusdrive/internal/platform/httpx"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

const maxAvatarBytes = 3 << 20

// CodeSender issues email verification codes. Implemented by the
// verification service.
type CodeSender interface {
	SendEmailVerifyCode(ctx context.Context, email string) error
}

// RegisterGate controls whether self-service registration is open.
// Implemented by the settings service.
type RegisterGate interface {
	RegisterEnabled(ctx context.Context) (bool, error)
	SetRegisterEnabled(ctx context.Context, enabled bool) error
}

// Handler wires HTTP endpoints for user management and self-service.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	sender    CodeSender
	gate      RegisterGate
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sender CodeSender, gate RegisterGate) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		sender:    sender,
		gate:      gate,
		validator: validator.New(),
	}
}

// MountRoutes registers user routes. Guards are composed explicitly per
// route so the order of checks stays visible: authorization first, then the
// handler body.
func (h *Handler) MountRoutes(r chi.Router, guard authz.Guard, verifyCodeLimit func(http.Handler) http.Handler) {
	// Anonymous registration flow. Code issuance is the abuse-prone hot
	// path and sits behind the token-bucket guard.
	r.With(verifyCodeLimit).Post("/register/email", h.sendVerifyCode)
	r.Post("/register", h.register)

	// Self-service endpoints: authenticated, no specific permission.
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAuthenticated())
		r.Get("/info", h.selfInfo)
		r.Put("/info", h.updateSelfInfo)
		r.Get("/permission", h.selfPermissions)
		r.Get("/role", h.selfRoles)
		r.Post("/avatar", h.uploadAvatar)
		r.Get("/avatar", h.getAvatar)
	})

	// Management endpoints: role-gated.
	r.With(guard.RequirePermission(authz.PermUserUpdate)).Put("/register/status", h.setRegisterStatus)
	r.With(guard.RequirePermission(authz.PermUserView)).Get("/", h.list)
	r.With(guard.RequirePermission(authz.PermUserAdd)).Post("/", h.add)
	r.With(guard.RequirePermission(authz.PermUserView)).Get("/{id}", h.get)
	r.With(guard.RequirePermission(authz.PermUserUpdate)).Put("/{id}", h.updateInfo)
	r.With(guard.RequirePermission(authz.PermUserDelete)).Delete("/{id}", h.delete)
	r.With(guard.RequirePermission(authz.PermUserUpdate)).Put("/{id}/disable", h.disable)
	r.With(guard.RequirePermission(authz.PermUserUpdate)).Put("/{id}/password", h.resetPassword)
	r.With(guard.RequirePermission(authz.PermUserView)).Get("/{id}/role", h.getRoles)
	r.With(guard.RequirePermission(authz.PermRoleAssign)).Post("/{id}/role", h.addRoles)
	r.With(guard.RequirePermission(authz.PermRoleAssign)).Delete("/{id}/role", h.removeRoles)
}

type userInfoResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Disabled bool   `json:"disabled"`
}

func toUserInfo(user *User) userInfoResponse {
	return userInfoResponse{
		ID:       user.ID,
		Email:    user.Email,
		Nickname: user.Nickname,
		Disabled: user.Disabled,
	}
}

type pageResponse struct {
	shared.Pagination
	List []userInfoResponse `json:"list"`
}

type emailVerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// registerOpen reports whether registration is accepting callers, writing
// the refusal response itself when it is not.
func (h *Handler) registerOpen(w http.ResponseWriter, r *http.Request) bool {
	enabled, err := h.gate.RegisterEnabled(r.Context())
	if err != nil {
		h.logger.Error("read register flag", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return false
	}
	if !enabled {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "registration is closed")
		return false
	}
	return true
}

func (h *Handler) sendVerifyCode(w http.ResponseWriter, r *http.Request) {
	if !h.registerOpen(w, r) {
		return
	}
	var req emailVerifyCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.sender.SendEmailVerifyCode(r.Context(), strings.ToLower(req.Email)); err != nil {
		h.logger.Error("send verify code", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6"`
	Nickname string `json:"nickname" validate:"max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if !h.registerOpen(w, r) {
		return
	}
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	user, err := h.service.Register(r.Context(), req.Email, req.Code, req.Nickname, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrVerifyCodeMismatch):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "verification code mismatch")
		case errors.Is(err, shared.ErrEmailTaken):
			httpx.RespondError(w, httpx.ErrDuplicate)
		default:
			h.logger.Error("register", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": user.ID})
}

func (h *Handler) setRegisterStatus(w http.ResponseWriter, r *http.Request) {
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.gate.SetRegisterEnabled(r.Context(), enabled); err != nil {
		h.logger.Error("write register flag", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selfInfo(w http.ResponseWriter, r *http.Request) {
	identity := authz.IdentityFromContext(r.Context())
	user, err := h.service.GetUser(r.Context(), identity.UserID)
	if err != nil {
		h.respondErr(w, err, "self info")
		return
	}
	httpx.JSON(w, http.StatusOK, toUserInfo(user))
}

type updateInfoRequest struct {
	Nickname string `json:"nickname" validate:"required,max=64"`
}

func (h *Handler) updateSelfInfo(w http.ResponseWriter, r *http.Request) {
	identity := authz.IdentityFromContext(r.Context())
	var req updateInfoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.UpdateInfo(r.Context(), identity.UserID, req.Nickname); err != nil {
		h.respondErr(w, err, "update self info")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selfPermissions(w http.ResponseWriter, r *http.Request) {
	identity := authz.IdentityFromContext(r.Context())
	permissions := identity.Permissions
	if permissions == nil {
		permissions = []authz.Permission{}
	}
	httpx.JSON(w, http.StatusOK, permissions)
}

func (h *Handler) selfRoles(w http.ResponseWriter, r *http.Request) {
	identity := authz.IdentityFromContext(r.Context())
	roleIDs := identity.Roles
	if roleIDs == nil {
		roleIDs = []string{}
	}
	httpx.JSON(w, http.StatusOK, roleIDs)
}

func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	identity := authz.IdentityFromContext(r.Context())
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes))
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	avatar := Avatar{ContentType: header.Header.Get("Content-Type"), Content: content}
	if err := h.service.SaveAvatar(r.Context(), identity.UserID, avatar); err != nil {
		h.respondErr(w, err, "save avatar")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getAvatar(w http.ResponseWriter, r *http.Request) {
	identity := authz.IdentityFromContext(r.Context())
	avatar, err := h.service.GetAvatar(r.Context(), identity.UserID)
	if err != nil {
		h.respondErr(w, err, "get avatar")
		return
	}
	if avatar.ContentType != "" {
		w.Header().Set("Content-Type", avatar.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(avatar.Content)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, err, "get user")
		return
	}
	httpx.JSON(w, http.StatusOK, toUserInfo(user))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("index"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	filter := Filter{Expression: r.URL.Query().Get("expression")}

	list, pagination, err := h.service.ListUsers(r.Context(), filter, page, size)
	if err != nil {
		h.respondErr(w, err, "list users")
		return
	}
	resp := pageResponse{Pagination: pagination, List: make([]userInfoResponse, 0, len(list))}
	for i := range list {
		resp.List = append(resp.List, toUserInfo(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type addUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Nickname string `json:"nickname" validate:"max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	user, err := h.service.AddUser(r.Context(), req.Email, req.Nickname, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrEmailTaken) {
			httpx.RespondError(w, httpx.ErrDuplicate)
			return
		}
		h.respondErr(w, err, "add user")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": user.ID})
}

func (h *Handler) updateInfo(w http.ResponseWriter, r *http.Request) {
	var req updateInfoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.UpdateInfo(r.Context(), chi.URLParam(r, "id"), req.Nickname); err != nil {
		h.respondErr(w, err, "update user info")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondErr(w, err, "delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	disabled, err := strconv.ParseBool(r.URL.Query().Get("disabled"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.SetDisabled(r.Context(), chi.URLParam(r, "id"), disabled); err != nil {
		h.respondErr(w, err, "disable user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "id"), req.Password); err != nil {
		h.respondErr(w, err, "reset password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getRoles(w http.ResponseWriter, r *http.Request) {
	roleIDs, err := h.service.GetRoles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, err, "get user roles")
		return
	}
	if roleIDs == nil {
		roleIDs = []string{}
	}
	httpx.JSON(w, http.StatusOK, roleIDs)
}

type roleIDsRequest struct {
	RoleIDs []string `json:"role_ids" validate:"required,min=1"`
}

func (h *Handler) addRoles(w http.ResponseWriter, r *http.Request) {
	var req roleIDsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.AddRoles(r.Context(), chi.URLParam(r, "id"), req.RoleIDs); err != nil {
		h.respondErr(w, err, "add roles")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRoles(w http.ResponseWriter, r *http.Request) {
	var req roleIDsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.RemoveRoles(r.Context(), chi.URLParam(r, "id"), req.RoleIDs); err != nil {
		h.respondErr(w, err, "remove roles")
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
