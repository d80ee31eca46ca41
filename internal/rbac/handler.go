package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pantryplan/pantryplan/internal/audit"
	"github.com/pantryplan/pantryplan/internal/platform/httpx"
	"github.com/pantryplan/pantryplan/internal/shared"
)

// Handler exposes the RBAC administrative API. Every route is itself gated
// by the guard with a role:* permission; the admin surface is not exempt
// from the engine it administers.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     Guard
	auditor   audit.Recorder
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Guard, auditor audit.Recorder) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		auditor:   auditor,
		validator: validator.New(),
	}
}

// MountRoutes registers the administrative routes. Tenant context for the
// collection routes comes from the tenantId query parameter or request
// body; the membership routes carry it in the path.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermRoleRead))
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
		r.Get("/permissions", h.listPermissions)
		r.Get("/user/{userID}/tenant/{tenantID}/permissions", h.userPermissions)
		r.Get("/user/{userID}/tenant/{tenantID}/check-permission", h.checkPermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermRoleCreate))
		r.Post("/", h.createRole)
		r.Post("/permissions", h.createPermission)
		r.Post("/initialize", h.initializeSystemRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermRoleUpdate))
		r.Put("/{roleID}", h.updateRole)
		r.Post("/user/{userID}/tenant/{tenantID}/role/{roleID}", h.assignRole)
		r.Delete("/user/{userID}/tenant/{tenantID}/role", h.removeRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermRoleDelete))
		r.Delete("/{roleID}", h.deleteRole)
		r.Delete("/permissions/{permissionID}", h.deletePermission)
	})
}

// MountSelfServiceRoutes registers the authenticated "check my permissions"
// endpoint. It requires a session but no permission: a member may always
// inspect their own effective set.
func (h *Handler) MountSelfServiceRoutes(r chi.Router) {
	r.Get("/me/permissions", h.myPermissions)
}

type permissionJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

type roleJSON struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	IsSystem        bool             `json:"isSystem"`
	Permissions     []permissionJSON `json:"permissions"`
	MembershipCount int64            `json:"membershipCount"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type membershipJSON struct {
	UserID      int64     `json:"userId"`
	TenantID    int64     `json:"tenantId"`
	RoleID      *int64    `json:"roleId"`
	Role        *roleJSON `json:"role,omitempty"`
	Permissions []string  `json:"permissions"`
}

type createRoleRequest struct {
	Name          string  `json:"name" validate:"required,max=100"`
	Description   string  `json:"description" validate:"max=500"`
	PermissionIDs []int64 `json:"permissionIds"`
	TenantID      int64   `json:"tenantId"`
}

type updateRoleRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
	PermissionIDs []int64 `json:"permissionIds"`
	TenantID      int64   `json:"tenantId"`
}

type createPermissionRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Resource    string `json:"resource" validate:"required,max=50"`
	Action      string `json:"action" validate:"required,max=50"`
	Description string `json:"description" validate:"max=500"`
	TenantID    int64  `json:"tenantId"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, validationDetail(err)))
		return
	}
	detail, err := h.service.CreateRole(r.Context(), req.Name, req.Description, req.PermissionIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.create", "role", strconv.FormatInt(detail.ID, 10))
	httpx.JSON(w, http.StatusCreated, toRoleJSON(detail))
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleJSON, len(details))
	for i, d := range details {
		out[i] = toRoleJSON(d)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleJSON(detail))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, validationDetail(err)))
		return
	}
	detail, err := h.service.UpdateRole(r.Context(), id, UpdateRoleInput{
		Name:          req.Name,
		Description:   req.Description,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.update", "role", strconv.FormatInt(id, 10))
	httpx.JSON(w, http.StatusOK, toRoleJSON(detail))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.delete", "role", strconv.FormatInt(id, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, validationDetail(err)))
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), req.Name, req.Resource, req.Action, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "permission.create", "permission", strconv.FormatInt(perm.ID, 10))
	httpx.JSON(w, http.StatusCreated, toPermissionJSON(perm))
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context(), r.URL.Query().Get("resource"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]permissionJSON, len(perms))
	for i, p := range perms {
		out[i] = toPermissionJSON(p)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "permissionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "permission.delete", "permission", strconv.FormatInt(id, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.AssignRoleToUser(r.Context(), userID, tenantID, roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.assign", "membership", fmt.Sprintf("%d:%d", userID, tenantID))
	httpx.JSON(w, http.StatusOK, toMembershipJSON(detail))
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveRoleFromUser(r.Context(), userID, tenantID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "role.remove", "membership", fmt.Sprintf("%d:%d", userID, tenantID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.service.GetUserPermissions(r.Context(), userID, tenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := pathID(r, "tenantID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resource := r.URL.Query().Get("resource")
	action := r.URL.Query().Get("action")
	if resource == "" || action == "" {
		httpx.RespondError(w, fmt.Errorf("%w: resource and action are required", httpx.ErrValidation))
		return
	}
	granted, err := h.service.HasPermission(r.Context(), userID, tenantID, resource, action)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"hasPermission": granted})
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized))
		return
	}
	tenantID, ok := parseTenantID(r.URL.Query().Get("tenantId"))
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: tenantId query parameter is required", httpx.ErrValidation))
		return
	}
	perms, err := h.service.GetUserPermissions(r.Context(), userID, tenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) initializeSystemRoles(w http.ResponseWriter, r *http.Request) {
	if err := h.service.InitializeSystemRoles(r.Context()); err != nil {
		h.logger.Error("initialize system roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.recordAudit(r, "rbac.bootstrap", "catalog", "system")
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "System roles and permissions initialized successfully"})
}

// recordAudit enqueues an audit event; failures are logged, never surfaced.
func (h *Handler) recordAudit(r *http.Request, action, entity, entityID string) {
	if h.auditor == nil {
		return
	}
	actorID, _ := currentUserID(r)
	tenantID, _ := tenantFromRequest(r)
	ev := audit.Event{
		ID:       uuid.NewString(),
		ActorID:  actorID,
		TenantID: tenantID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		At:       time.Now().UTC(),
	}
	if err := h.auditor.Record(r.Context(), ev); err != nil && h.logger != nil {
		h.logger.Warn("record audit event", slog.String("action", action), slog.Any("error", err))
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", httpx.ErrValidation, name)
	}
	return id, nil
}

func validationDetail(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "invalid request"
	}
	return errs[0].Error()
}

func toPermissionJSON(p Permission) permissionJSON {
	return permissionJSON{ID: p.ID, Name: p.Name, Resource: p.Resource, Action: p.Action, Description: p.Description}
}

func toRoleJSON(d RoleDetail) roleJSON {
	perms := make([]permissionJSON, len(d.Permissions))
	for i, p := range d.Permissions {
		perms[i] = toPermissionJSON(p)
	}
	return roleJSON{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		IsSystem:        d.IsSystem,
		Permissions:     perms,
		MembershipCount: d.MembershipCount,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func toMembershipJSON(d *MembershipDetail) membershipJSON {
	out := membershipJSON{
		UserID:   d.UserID,
		TenantID: d.TenantID,
		RoleID:   d.RoleID,
	}
	names := make([]string, len(d.Permissions))
	for i, p := range d.Permissions {
		names[i] = p.Name
	}
	out.Permissions = names
	if d.Role != nil {
		role := toRoleJSON(RoleDetail{Role: *d.Role, Permissions: d.Permissions})
		out.Role = &role
	}
	return out
}
