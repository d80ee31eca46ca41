package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pantryplan/pantryplan/internal/observability"
	"github.com/pantryplan/pantryplan/internal/platform/httpx"
	"github.com/pantryplan/pantryplan/internal/shared"
)

const maxGuardBodyPeek = 1 << 20

// Resolver answers permission queries for the guard.
type Resolver interface {
	HasPermission(ctx context.Context, userID, tenantID int64, resource, action string) (bool, error)
}

// Guard intercepts requests and enforces the permission declared at the
// route definition. Permission checks are opt-in: a route mounted without
// Require carries no requirement and is never denied here.
type Guard struct {
	Resolver Resolver
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Require returns middleware enforcing the given "resource:action"
// requirement. An empty requirement allows unconditionally.
func (g Guard) Require(permission string) func(http.Handler) http.Handler {
	permission = strings.TrimSpace(permission)
	resource, action, _ := strings.Cut(permission, ":")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if permission == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, userOK := currentUserID(r)
			tenantID, tenantOK := tenantFromRequest(r)
			if !userOK || !tenantOK {
				g.deny(w, "User ID and Tenant ID are required")
				return
			}
			granted, err := g.Resolver.HasPermission(r.Context(), userID, tenantID, resource, action)
			if err != nil {
				if g.Logger != nil {
					g.Logger.Error("rbac resolve permission", slog.String("permission", permission), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !granted {
				g.deny(w, "Insufficient permissions: "+permission)
				return
			}
			g.Metrics.RecordAuthzDecision("allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (g Guard) deny(w http.ResponseWriter, detail string) {
	g.Metrics.RecordAuthzDecision("deny")
	httpx.Problem(w, http.StatusForbidden, "Forbidden", detail)
}

func currentUserID(r *http.Request) (int64, bool) {
	return shared.UserID(r.Context())
}

// tenantFromRequest resolves the target tenant with an explicit precedence:
// URL path parameter, then JSON body, then query string.
func tenantFromRequest(r *http.Request) (int64, bool) {
	if raw := chi.URLParam(r, "tenantID"); raw != "" {
		return parseTenantID(raw)
	}
	if id, ok := tenantFromBody(r); ok {
		return id, true
	}
	if raw := r.URL.Query().Get("tenantId"); raw != "" {
		return parseTenantID(raw)
	}
	return 0, false
}

// tenantFromBody peeks at a JSON body for a tenantId field. The body is
// restored afterwards so downstream handlers can decode it again.
func tenantFromBody(r *http.Request) (int64, bool) {
	if r.Body == nil {
		return 0, false
	}
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return 0, false
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxGuardBodyPeek))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}
	var probe struct {
		TenantID json.Number `json:"tenantId"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, false
	}
	if probe.TenantID == "" {
		return 0, false
	}
	return parseTenantID(probe.TenantID.String())
}

func parseTenantID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
