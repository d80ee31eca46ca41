package tenants

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
	"github.com/pantryplan/pantryplan/internal/rbac"
	"github.com/pantryplan/pantryplan/internal/shared"
)

// Handler manages tenant endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     rbac.Guard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers tenant routes. Creating, listing and leaving
// require only a session: they establish or end the caller's own
// membership. Reading and inviting are tenant-scoped and guarded.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createTenant)
	r.Get("/", h.listTenants)
	r.Delete("/{tenantID}/members/me", h.leaveTenant)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermTenantRead))
		r.Get("/{tenantID}", h.getTenant)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermTenantUpdate))
		r.Post("/{tenantID}/invite", h.inviteMember)
	})
}

type createTenantRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,max=100"`
}

type tenantJSON struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type memberJSON struct {
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	RoleID   *int64 `json:"roleId"`
	RoleName string `json:"roleName,omitempty"`
}

func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized))
		return
	}
	var req createTenantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: tenant name is required", httpx.ErrValidation))
		return
	}
	tenant, err := h.service.Create(r.Context(), req.Name, userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTenantJSON(tenant))
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized))
		return
	}
	tenants, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]tenantJSON, len(tenants))
	for i, t := range tenants {
		out[i] = toTenantJSON(t)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getTenant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	members := make([]memberJSON, len(detail.Members))
	for i, m := range detail.Members {
		members[i] = memberJSON{UserID: m.UserID, Email: m.Email, Name: m.Name, RoleID: m.RoleID, RoleName: m.RoleName}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":        detail.ID,
		"name":      detail.Name,
		"createdAt": detail.CreatedAt,
		"updatedAt": detail.UpdatedAt,
		"members":   members,
	})
}

func (h *Handler) inviteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req inviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: a valid email is required", httpx.ErrValidation))
		return
	}
	if err := h.service.Invite(r.Context(), id, req.Email, req.Role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) leaveTenant(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized))
		return
	}
	id, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Leave(r.Context(), id, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", httpx.ErrValidation, name)
	}
	return id, nil
}

func toTenantJSON(t Tenant) tenantJSON {
	return tenantJSON{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt}
}
