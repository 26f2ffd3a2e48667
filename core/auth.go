package core

import "context"

// AuthService defines the authentication use cases behind the HTTP handlers.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (string, error)
	Profile(ctx context.Context, id int64) (*UserProfile, error)
}
