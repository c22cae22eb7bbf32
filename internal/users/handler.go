package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/landhub/internal/platform/httpx"
	"github.com/odyssey-erp/landhub/internal/rbac"
	"github.com/odyssey-erp/landhub/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers user routes. Admins and super admins reach the handlers; the row-level
// decision is made per account.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin, rbac.RoleSuperAdmin))
		r.Get("/", h.listUsers)
		r.Post("/{id}/restrict", h.restrictUser)
	})
}

type userView struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         rbac.Role `json:"role"`
	IsRestricted bool      `json:"is_restricted"`
}

func toView(u User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, IsRestricted: u.IsRestricted}
}

type restrictRequest struct {
	Restricted *bool `json:"restricted" validate:"required"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	limit, offset, err := paging(r)
	if err != nil {
		httpx.FieldErrors(w, http.StatusBadRequest, httpx.MsgValidation, map[string]string{"page": "must be a positive integer"})
		return
	}
	list, err := h.service.ListVisible(r.Context(), p, limit, offset)
	if err != nil {
		if !errors.Is(err, shared.ErrForbidden) {
			h.logger.Error("list users failed", slog.Any("error", err))
		}
		h.rbac.Respond(w, r, p, err)
		return
	}
	views := make([]userView, 0, len(list))
	for _, u := range list {
		views = append(views, toView(u))
	}
	httpx.OK(w, http.StatusOK, "", views)
}

func (h *Handler) restrictUser(w http.ResponseWriter, r *http.Request) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	var req restrictRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || h.validator.Struct(req) != nil {
		httpx.FieldErrors(w, http.StatusBadRequest, httpx.MsgValidation, map[string]string{"restricted": "required"})
		return
	}
	user, err := h.service.SetRestriction(r.Context(), p, id, *req.Restricted, shared.ClientIP(r))
	if err != nil {
		if !errors.Is(err, shared.ErrForbidden) && !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("restrict user failed", slog.Int64("user_id", id), slog.Any("error", err))
		}
		h.rbac.Respond(w, r, p, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Account updated.", toView(*user))
}

const pageSize = 50

func paging(r *http.Request) (limit, offset int, err error) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page")
		}
	}
	return pageSize, (page - 1) * pageSize, nil
}
