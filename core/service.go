package core

import (
	"context"
	"errors"
	"fmt"
)

// RepositoryAuthService implements AuthService over a UserRepository,
// a PasswordHasher and a TokenService.
type RepositoryAuthService struct {
	users     UserRepository
	hasher    PasswordHasher
	tokens    TokenService
	validator *Validator
}

func NewRepositoryAuthService(users UserRepository, hasher PasswordHasher, tokens TokenService) *RepositoryAuthService {
	return &RepositoryAuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		validator: NewValidator(),
	}
}

// Register creates a new account. The lookup before insert gives the common
// case a clean error; the store's unique constraint settles races and is
// reported as the same ErrDuplicateEmail.
func (s *RepositoryAuthService) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, ErrDuplicateEmail
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.users.Create(ctx, req.Name, req.Email, hash)
}

// Login returns a signed token. Unknown email and wrong password both yield
// ErrInvalidCredentials.
func (s *RepositoryAuthService) Login(ctx context.Context, req LoginRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	ok, err := s.hasher.Compare(req.Password, u.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Sign(u.ID, u.Name, u.Email)
}

// Profile loads the public projection of the user with the given id.
func (s *RepositoryAuthService) Profile(ctx context.Context, id int64) (*UserProfile, error) {
	return s.users.FindByID(ctx, id)
}
