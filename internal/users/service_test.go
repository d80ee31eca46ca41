package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
	"github.com/pantryplan/pantryplan/internal/shared"
)

type memoryRepo struct {
	byEmail map[string]User
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byEmail: make(map[string]User)}
}

func (r *memoryRepo) Create(_ context.Context, email, name, passwordHash string) (User, error) {
	if _, exists := r.byEmail[email]; exists {
		return User{}, httpx.ErrConflict
	}
	r.nextID++
	u := User{ID: r.nextID, Email: email, Name: name, PasswordHash: passwordHash, IsActive: true}
	r.byEmail[email] = u
	return u, nil
}

func (r *memoryRepo) FindByEmail(_ context.Context, email string) (User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) FindByID(_ context.Context, id int64) (User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func TestRegisterNormalizesEmailAndHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	user, err := svc.Register(context.Background(), "  Jane@Example.COM ", "Jane", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", user.Email)
	require.NotEqual(t, "hunter2hunter2", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2hunter2")))
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Register(context.Background(), "jane@example.com", "Jane", "short")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRegisterRejectsEmptyEmail(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Register(context.Background(), "   ", "Jane", "hunter2hunter2")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, "jane@example.com", "Jane", "hunter2hunter2")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "JANE@example.com", "Jane", "hunter2hunter2")
	require.ErrorIs(t, err, httpx.ErrConflict)
}
