package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, email, name, passwordHash string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Register creates a new account with a bcrypt hashed password.
func (s *Service) Register(ctx context.Context, email, name, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email is required", httpx.ErrValidation)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, email, strings.TrimSpace(name), string(hash))
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}
