package auth_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pantryplan/pantryplan/internal/auth"
	"github.com/pantryplan/pantryplan/internal/shared"
	"github.com/pantryplan/pantryplan/internal/users"
	_ "github.com/pantryplan/pantryplan/testing"
)

type stubRepo struct {
	user            *auth.User
	sessionsCreated int
	sessionsDeleted int
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.sessionsCreated++
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.sessionsDeleted++
	return nil
}

type stubUserRepo struct {
	users  map[string]users.User
	nextID int64
}

func (s *stubUserRepo) Create(ctx context.Context, email, name, passwordHash string) (users.User, error) {
	if s.users == nil {
		s.users = make(map[string]users.User)
	}
	s.nextID++
	u := users.User{ID: s.nextID, Email: email, Name: name, PasswordHash: passwordHash, IsActive: true}
	s.users[email] = u
	return u, nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (users.User, error) {
	u, ok := s.users[email]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id int64) (users.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return users.User{}, shared.ErrNotFound
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	userService := users.NewService(&stubUserRepo{})
	handler := auth.NewHandler(slog.Default(), auth.NewService(repo), userService, sessionManager)
	return handler, sessionManager
}

func withSession(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestLoginSuccess(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{ID: 7, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}}
	handler, sessions := newAuthHandler(t, repo)

	body := `{"email": "user@test.local", "password": "correcthorse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, sess := withSession(t, sessions, req)

	rec := httptest.NewRecorder()
	handler.LoginForTest(rec, req)
	require.NoError(t, sessions.Commit(req.Context(), rec, req, sess))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "7", sess.User())
}

func TestLoginWrongPassword(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{ID: 7, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}}
	handler, sessions := newAuthHandler(t, repo)

	body := `{"email": "user@test.local", "password": "wrongpassword"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, sess := withSession(t, sessions, req)

	rec := httptest.NewRecorder()
	handler.LoginForTest(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, sess.User())
}

func TestLoginUnknownUser(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{})

	body := `{"email": "nobody@test.local", "password": "correcthorse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, _ = withSession(t, sessions, req)

	rec := httptest.NewRecorder()
	handler.LoginForTest(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{ID: 7, Email: "user@test.local", PasswordHash: string(hashed), IsActive: false}}
	handler, sessions := newAuthHandler(t, repo)

	body := `{"email": "user@test.local", "password": "correcthorse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, _ = withSession(t, sessions, req)

	rec := httptest.NewRecorder()
	handler.LoginForTest(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterThenMe(t *testing.T) {
	handler, sessions := newAuthHandler(t, &stubRepo{})

	body := `{"email": "New@Test.Local", "name": "New User", "password": "longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.RegisterForTest(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"email":"new@test.local"`)

	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq, sess := withSession(t, sessions, meReq)
	sess.SetUser("1")
	meRec := httptest.NewRecorder()
	handler.MeForTest(meRec, meReq)
	require.Equal(t, http.StatusOK, meRec.Code)
	require.Contains(t, meRec.Body.String(), `"name":"New User"`)
}

func TestMeRequiresSession(t *testing.T) {
	handler, _ := newAuthHandler(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.MeForTest(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{}
	handler, sessions := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req, sess := withSession(t, sessions, req)
	sess.SetUser("7")

	rec := httptest.NewRecorder()
	handler.LogoutForTest(rec, req)
	require.NoError(t, sessions.Commit(req.Context(), rec, req, sess))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 1, repo.sessionsDeleted)
}
