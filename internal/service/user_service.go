package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Behnamfe76/auth-service/internal/auth"
	"github.com/Behnamfe76/auth-service/internal/domain"
	"github.com/Behnamfe76/auth-service/internal/repository"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

// UserService creates accounts and checks credentials.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewUserService builds the service. A zero cost selects auth.DefaultBcryptCost.
func NewUserService(users repository.UserRepository, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = auth.DefaultBcryptCost
	}
	return &UserService{users: users, bcryptCost: bcryptCost}
}

// Create registers a new user with the default role.
//
// The email lookup only short-circuits the common case; the unique index on
// users.email is what rejects a concurrent registration of the same address.
func (s *UserService) Create(ctx context.Context, data domain.UserData) (*domain.User, error) {
	email := strings.TrimSpace(data.Email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewDuplicateCredential("User already exists!")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewStorageFailure(err)
	}

	hash, err := auth.HashPassword(data.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperrors.NewValidationError("validation failed", map[string]any{
				"password": "Password length should be at most 72 bytes!",
			})
		}
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		FirstName:    strings.TrimSpace(data.FirstName),
		LastName:     strings.TrimSpace(data.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.DefaultRole,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewDuplicateCredential("User already exists!")
		}
		return nil, apperrors.NewStorageFailure(err)
	}
	return user, nil
}

// Authenticate returns the user whose email and password match.
// Unknown emails and wrong passwords fail identically.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewLoginMismatch()
		}
		return nil, apperrors.NewStorageFailure(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewLoginMismatch()
	}
	return user, nil
}

// GetByID loads a user.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, apperrors.NewStorageFailure(err)
	}
	return user, nil
}
