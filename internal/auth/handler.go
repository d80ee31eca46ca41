package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
	"github.com/pantryplan/pantryplan/internal/shared"
	"github.com/pantryplan/pantryplan/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	users          *users.Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, userService *users.Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		users:          userService,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type userJSON struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid registration data", httpx.ErrValidation))
		return
	}
	user, err := h.users.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, userJSON{ID: user.ID, Email: user.Email, Name: user.Name})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid credentials format", httpx.ErrValidation))
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthorized))
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if sess.ID != "" {
		if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("register session", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, userJSON{ID: user.ID, Email: user.Email, Name: user.Name})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized))
		return
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized))
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, userJSON{ID: user.ID, Email: user.Email, Name: user.Name})
}

// RegisterForTest exposes the register handler for tests.
func (h *Handler) RegisterForTest(w http.ResponseWriter, r *http.Request) {
	h.handleRegister(w, r)
}

// LoginForTest exposes the login handler for tests.
func (h *Handler) LoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// LogoutForTest exposes the logout handler for tests.
func (h *Handler) LogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}

// MeForTest exposes the current-user handler for tests.
func (h *Handler) MeForTest(w http.ResponseWriter, r *http.Request) {
	h.handleMe(w, r)
}
