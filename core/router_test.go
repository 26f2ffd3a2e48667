package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-key"

type testServer struct {
	router *gin.Engine
	users  *RedisUserRepository
	tokens *JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := NewRedisUserRepository(client)
	tokens, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	cfg := Defaults()
	cfg.JWTSecret = testSecret
	cfg.StoreBackend = BackendRedis

	svc := NewRepositoryAuthService(users, NewBcryptHasher(DefaultBcryptCost), tokens)
	return &testServer{
		router: NewRouter(cfg, svc, NewBearerGuard(tokens), users),
		users:  users,
		tokens: tokens,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	}
	return w.Code, out
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/register", `{"name":"Ana","email":"ana@x.com","password":"Secret123"}`, nil)
	require.Equal(t, http.StatusCreated, code, body)
	user := body["user"].(map[string]any)
	assert.Equal(t, "ana@x.com", user["email"])
	assert.Equal(t, "Ana", user["name"])
	assert.NotContains(t, user, "password")
	assert.NotEmpty(t, body["message"])

	code, body = s.do(t, http.MethodPost, "/login", `{"email":"ana@x.com","password":"Secret123"}`, nil)
	require.Equal(t, http.StatusOK, code, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code, body = s.do(t, http.MethodGet, "/profile", "", bearer(token))
	require.Equal(t, http.StatusOK, code, body)
	profile := body["user"].(map[string]any)
	assert.Equal(t, "Ana", profile["name"])
	assert.Equal(t, "ana@x.com", profile["email"])
	assert.Equal(t, user["id"], profile["id"])
	assert.NotEmpty(t, profile["createdAt"])
	assert.NotContains(t, profile, "password")
	assert.NotContains(t, profile, "PasswordHash")
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/register", `{"name":"Ana","email":"ana@x.com","password":"Secret123"}`, nil)
	require.Equal(t, http.StatusCreated, code)

	u, err := s.users.FindByEmail(context.Background(), "ana@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", u.PasswordHash)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2a$10$"), u.PasswordHash)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"missing name", `{"email":"a@x.com","password":"Secret123"}`, []string{"name"}},
		{"empty name", `{"name":"","email":"a@x.com","password":"Secret123"}`, []string{"name"}},
		{"bad email", `{"name":"A","email":"not-an-email","password":"Secret123"}`, []string{"email"}},
		{"short password", `{"name":"A","email":"a@x.com","password":"Sec1"}`, []string{"password"}},
		{"no uppercase", `{"name":"A","email":"a@x.com","password":"secret123"}`, []string{"password"}},
		{"no digit", `{"name":"A","email":"a@x.com","password":"SecretPass"}`, []string{"password"}},
		{"empty body", ``, []string{"name", "email", "password", "password", "password"}},
		{"wrong type", `{"name":42,"email":"a@x.com","password":"Secret123"}`, []string{"body"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			code, body := s.do(t, http.MethodPost, "/register", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, code, body)
			assert.Equal(t, "VALIDATION_ERROR", body["code"])

			errs, ok := body["errors"].([]any)
			require.True(t, ok, body)
			var got []string
			for _, e := range errs {
				got = append(got, e.(map[string]any)["field"].(string))
			}
			assert.Equal(t, tt.fields, got)

			_, err := s.users.FindByEmail(context.Background(), "a@x.com")
			assert.ErrorIs(t, err, ErrUserNotFound)
		})
	}
}

func TestRegisterAcceptsWhitespaceName(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/register", `{"name":"   ","email":"a@x.com","password":"Secret123"}`, nil)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "   ", body["user"].(map[string]any)["name"])
}

func TestRegisterAndLoginWithLongPassword(t *testing.T) {
	s := newTestServer(t)
	password := "Secret123" + strings.Repeat("a", 80)
	payload, err := json.Marshal(map[string]string{"name": "Ana", "email": "ana@x.com", "password": password})
	require.NoError(t, err)

	code, body := s.do(t, http.MethodPost, "/register", string(payload), nil)
	require.Equal(t, http.StatusCreated, code, body)

	payload, err = json.Marshal(map[string]string{"email": "ana@x.com", "password": password})
	require.NoError(t, err)
	code, body = s.do(t, http.MethodPost, "/login", string(payload), nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.NotEmpty(t, body["token"])

	payload, err = json.Marshal(map[string]string{"email": "ana@x.com", "password": password[:72]})
	require.NoError(t, err)
	code, body = s.do(t, http.MethodPost, "/login", string(payload), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	payload := `{"name":"Ana","email":"ana@x.com","password":"Secret123"}`

	code, _ := s.do(t, http.MethodPost, "/register", payload, nil)
	require.Equal(t, http.StatusCreated, code)

	code, body := s.do(t, http.MethodPost, "/register", `{"name":"Other","email":"ana@x.com","password":"Another123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "DUPLICATE_EMAIL", body["code"])

	u, err := s.users.FindByEmail(context.Background(), "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, int64(1), u.ID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodPost, "/register", `{"name":"Ana","email":"ana@x.com","password":"Secret123"}`, nil)
	require.Equal(t, http.StatusCreated, code)

	unknownCode, unknownBody := s.do(t, http.MethodPost, "/login", `{"email":"nobody@x.com","password":"Secret123"}`, nil)
	wrongCode, wrongBody := s.do(t, http.MethodPost, "/login", `{"email":"ana@x.com","password":"Wrong1234"}`, nil)

	assert.Equal(t, http.StatusBadRequest, unknownCode)
	assert.Equal(t, unknownCode, wrongCode)
	assert.Equal(t, unknownBody, wrongBody)
	assert.Equal(t, "INVALID_CREDENTIALS", wrongBody["code"])
}

func TestLoginValidation(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/login", `{"email":"bad","password":""}`, nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Len(t, body["errors"], 2)

	// Login does not re-check password strength.
	code, body = s.do(t, http.MethodPost, "/login", `{"email":"ana@x.com","password":"weak"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])
}

func TestProfileRequiresToken(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		headers map[string]string
		code    string
	}{
		{"no header", nil, "AUTHORIZATION_REQUIRED"},
		{"empty bearer", map[string]string{"Authorization": "Bearer "}, "AUTHORIZATION_REQUIRED"},
		{"bare bearer", map[string]string{"Authorization": "Bearer"}, "AUTHORIZATION_REQUIRED"},
		{"garbage", bearer("garbage"), "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodGet, "/profile", "", tt.headers)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestProfileRejectsExpiredAndTamperedTokens(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodPost, "/register", `{"name":"Ana","email":"ana@x.com","password":"Secret123"}`, nil)
	require.Equal(t, http.StatusCreated, code)

	old, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)
	old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := old.Sign(1, "Ana", "ana@x.com")
	require.NoError(t, err)

	status, body := s.do(t, http.MethodGet, "/profile", "", bearer(expired))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", body["code"])

	valid, err := s.tokens.Sign(1, "Ana", "ana@x.com")
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"id":2,"name":"Eve","email":"eve@x.com","exp":4102444800}`))

	status, body = s.do(t, http.MethodGet, "/profile", "", bearer(strings.Join(parts, ".")))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", body["code"])
}

func TestProfileUserGone(t *testing.T) {
	s := newTestServer(t)

	token, err := s.tokens.Sign(42, "Ghost", "ghost@x.com")
	require.NoError(t, err)

	status, body := s.do(t, http.MethodGet, "/profile", "", bearer(token))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "USER_NOT_FOUND", body["code"])
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	store := body["store"].(map[string]any)
	assert.Equal(t, BackendRedis, store["backend"])
	assert.Equal(t, true, store["ok"])
}

func TestOriginNotAllowed(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/healthz", "", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])
}
