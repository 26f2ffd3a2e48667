package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout for the key-value user store.
const (
	redisUserSeqKey       = "authd:user:seq"
	redisUserKeyPrefix    = "authd:user:"
	redisEmailIndexPrefix = "authd:user:email:"
)

// createUserScript claims the email index and writes the user hash atomically.
// Returns 0 when the email is taken, otherwise the new id.
var createUserScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
local id = redis.call('INCR', KEYS[2])
redis.call('SET', KEYS[1], id)
redis.call('HSET', ARGV[1] .. id,
  'id', id,
  'name', ARGV[2],
  'email', ARGV[3],
  'password_hash', ARGV[4],
  'created_at', ARGV[5])
return id
`)

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// RedisUserRepository implements UserRepository on top of Redis hashes.
// Users live at authd:user:<id>; authd:user:email:<email> indexes them.
type RedisUserRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisUserRepository(client redis.UniversalClient) *RedisUserRepository {
	return &RedisUserRepository{client: client, now: time.Now}
}

func redisUserKey(id int64) string {
	return redisUserKeyPrefix + strconv.FormatInt(id, 10)
}

func redisEmailKey(email string) string {
	return redisEmailIndexPrefix + email
}

func (r *RedisUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	rawID, err := r.client.Get(ctx, redisEmailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt email index for %s: %w", email, err)
	}

	vals, err := r.client.HMGet(ctx, redisUserKey(id), "name", "email", "password_hash", "created_at").Result()
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if vals[0] == nil {
		return nil, ErrUserNotFound
	}
	createdAt, err := parseRedisTime(vals[3])
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           id,
		Name:         asString(vals[0]),
		Email:        asString(vals[1]),
		PasswordHash: asString(vals[2]),
		CreatedAt:    createdAt,
	}, nil
}

// FindByID reads only the profile fields of the hash.
func (r *RedisUserRepository) FindByID(ctx context.Context, id int64) (*UserProfile, error) {
	vals, err := r.client.HMGet(ctx, redisUserKey(id), "name", "email", "created_at").Result()
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if vals[0] == nil {
		return nil, ErrUserNotFound
	}
	createdAt, err := parseRedisTime(vals[2])
	if err != nil {
		return nil, err
	}
	return &UserProfile{
		ID:        id,
		Name:      asString(vals[0]),
		Email:     asString(vals[1]),
		CreatedAt: createdAt,
	}, nil
}

func (r *RedisUserRepository) Create(ctx context.Context, name, email, passwordHash string) (*User, error) {
	createdAt := r.now().UTC()
	res, err := createUserScript.Run(ctx, r.client,
		[]string{redisEmailKey(email), redisUserSeqKey},
		redisUserKeyPrefix, name, email, passwordHash, createdAt.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if res == 0 {
		return nil, ErrDuplicateEmail
	}
	return &User{
		ID:           res,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

func (r *RedisUserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func parseRedisTime(v interface{}) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, asString(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt created_at: %w", err)
	}
	return t, nil
}
