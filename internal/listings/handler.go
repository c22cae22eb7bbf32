package listings

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

const msgNotPending = "The application has already been decided."

// Handler serves the land and application endpoints.
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

// MountLandRoutes registers /lands routes.
func (h *Handler) MountLandRoutes(r chi.Router) {
	r.Post("/", h.createLand)
	r.Delete("/{id}", h.deleteLand)
}

// MountApplicationRoutes registers /applications routes.
func (h *Handler) MountApplicationRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin, rbac.RoleSuperAdmin))
		r.Post("/{id}/approve", h.decide(true))
		r.Post("/{id}/reject", h.decide(false))
	})
}

func (h *Handler) createLand(w http.ResponseWriter, r *http.Request) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var input LandInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.MsgValidation)
		return
	}
	if err := h.validator.Struct(input); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = fieldErr.Tag()
			}
		}
		httpx.FieldErrors(w, http.StatusBadRequest, httpx.MsgValidation, fields)
		return
	}
	land, err := h.service.CreateLand(r.Context(), p, input, shared.ClientIP(r))
	if err != nil {
		h.fail(w, r, p, "create land", err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Listing created.", land)
}

func (h *Handler) deleteLand(w http.ResponseWriter, r *http.Request) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	if err := h.service.DeleteLand(r.Context(), p, id, shared.ClientIP(r)); err != nil {
		h.fail(w, r, p, "delete land", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Listing deleted.", nil)
}

func (h *Handler) decide(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := rbac.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		id, ok := pathID(r)
		if !ok {
			httpx.RespondError(w, shared.ErrNotFound)
			return
		}
		app, err := h.service.DecideApplication(r.Context(), p, id, approve, shared.ClientIP(r))
		if err != nil {
			if errors.Is(err, ErrNotPending) {
				httpx.Fail(w, http.StatusConflict, msgNotPending)
				return
			}
			h.fail(w, r, p, "decide application", err)
			return
		}
		httpx.OK(w, http.StatusOK, "Application updated.", app)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, p rbac.Principal, op string, err error) {
	if !errors.Is(err, shared.ErrForbidden) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op, slog.Int64("principal_id", p.ID), slog.Any("error", err))
	}
	h.rbac.Respond(w, r, p, err)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
