package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// User is the stored account record. PasswordHash never leaves the core.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserProfile is the public projection of a user (no password hash).
type UserProfile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRepository defines persistence operations for users.
// Lookups return ErrUserNotFound when nothing matches; Create returns
// ErrDuplicateEmail when the email is taken.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*UserProfile, error)
	Create(ctx context.Context, name, email, passwordHash string) (*User, error)
	Ping(ctx context.Context) error
}

// pgQuerier is the subset of pgxpool.Pool used by PgUserRepository.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PgUserRepository implements UserRepository using pgx.
type PgUserRepository struct {
	db pgQuerier
}

func NewPgUserRepository(db pgQuerier) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func (r *PgUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const q = `SELECT id, name, email, password_hash, created_at FROM users WHERE email=$1`
	var u User
	if err := r.db.QueryRow(ctx, q, email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

// FindByID selects only profile columns; the hash is never read.
func (r *PgUserRepository) FindByID(ctx context.Context, id int64) (*UserProfile, error) {
	const q = `SELECT id, name, email, created_at FROM users WHERE id=$1`
	var p UserProfile
	if err := r.db.QueryRow(ctx, q, id).Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &p, nil
}

func (r *PgUserRepository) Create(ctx context.Context, name, email, passwordHash string) (*User, error) {
	const q = `INSERT INTO users (name, email, password_hash) VALUES ($1,$2,$3) RETURNING id, created_at`
	u := User{Name: name, Email: email, PasswordHash: passwordHash}
	if err := r.db.QueryRow(ctx, q, name, email, passwordHash).Scan(&u.ID, &u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (r *PgUserRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
