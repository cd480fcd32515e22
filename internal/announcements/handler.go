package announcements

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nimbusdrive/nimbusdrive/internal/authz"
	"github.com/nimbusdrive/nimbusdrive/internal/platform/httpx"
	"github.com/nimbusdrive/nimbusdrive/internal/shared"
)

// Handler wires HTTP endpoints for announcements.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers announcement routes with their permission guards.
func (h *Handler) MountRoutes(r chi.Router, guard authz.Guard) {
	r.With(guard.RequirePermission(authz.PermAnnouncementAdd)).Post("/", h.add)
	r.With(guard.RequirePermission(authz.PermAnnouncementGetAll)).Get("/", h.list)
	r.With(guard.RequireAuthenticated()).Get("/index", h.displayList)
	r.With(guard.RequirePermission(authz.PermAnnouncementUpdate)).Put("/{id}", h.update)
	r.With(guard.RequirePermission(authz.PermAnnouncementUpdate)).Put("/{id}/status", h.setStatus)
	r.With(guard.RequirePermission(authz.PermAnnouncementDelete)).Delete("/{id}", h.delete)
}

type announcementRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"max=4096"`
}

type announcementResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"author_id"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(a *Announcement) announcementResponse {
	return announcementResponse{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		AuthorID:  a.AuthorID,
		Enabled:   a.Enabled,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type displayResponse struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type pageResponse struct {
	shared.Pagination
	List []announcementResponse `json:"list"`
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	// The guard already resolved the caller; reuse the snapshot as author.
	identity := authz.IdentityFromContext(r.Context())
	a, err := h.service.Add(r.Context(), identity.UserID, req.Title, req.Content)
	if err != nil {
		h.respondErr(w, err, "add announcement")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": a.ID})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("index"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	filter := Filter{Expression: r.URL.Query().Get("expression")}

	list, pagination, err := h.service.List(r.Context(), filter, page, size)
	if err != nil {
		h.respondErr(w, err, "list announcements")
		return
	}
	resp := pageResponse{Pagination: pagination, List: make([]announcementResponse, 0, len(list))}
	for i := range list {
		resp.List = append(resp.List, toResponse(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) displayList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.DisplayList(r.Context())
	if err != nil {
		h.respondErr(w, err, "display announcements")
		return
	}
	resp := make([]displayResponse, 0, len(list))
	for _, a := range list {
		resp = append(resp, displayResponse{Title: a.Title, Content: a.Content, CreatedAt: a.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.Title, req.Content); err != nil {
		h.respondErr(w, err, "update announcement")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("disabled")
	if raw == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	disabled, err := strconv.ParseBool(raw)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.SetEnabled(r.Context(), chi.URLParam(r, "id"), !disabled); err != nil {
		h.respondErr(w, err, "set announcement status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondErr(w, err, "delete announcement")
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
