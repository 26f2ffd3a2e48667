package core

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	bearerPrefix = "Bearer "
	identityKey  = "identity"
)

// BearerGuard turns an Authorization header into verified claims.
type BearerGuard struct {
	tokens TokenService
}

func NewBearerGuard(tokens TokenService) *BearerGuard {
	return &BearerGuard{tokens: tokens}
}

// Authenticate is the guard stage itself: it returns the claims or one of
// ErrAuthorizationRequired / ErrInvalidToken and has no side effects.
func (g *BearerGuard) Authenticate(header string) (Claims, error) {
	header = strings.TrimSpace(header)
	if header == strings.TrimSpace(bearerPrefix) {
		return Claims{}, ErrAuthorizationRequired
	}
	token := strings.TrimSpace(strings.Replace(header, bearerPrefix, "", 1))
	if token == "" {
		return Claims{}, ErrAuthorizationRequired
	}
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// RequireBearer runs the guard and either aborts with 401 or stores the
// claims for IdentityFrom.
func RequireBearer(g *BearerGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := g.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			writeServiceError(c, err)
			c.Abort()
			return
		}
		c.Set(identityKey, claims)
		c.Next()
	}
}

// IdentityFrom returns the claims stored by RequireBearer.
func IdentityFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// RequestTimeout bounds the request context so store calls cannot hang.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OriginRefererMiddleware validates Origin/Referer against allowed list and sets CORS headers.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			// Non-browser clients and same-origin navigation send no Origin.
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		referer := c.GetHeader("Referer")
		if origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil && u.Host != "" {
				origin = u.Scheme + "://" + u.Host
			}
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}

		if origin != "" {
			setCORSHeaders(c, origin)
		}
		if c.Request.Method == http.MethodOptions && origin != "" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}
