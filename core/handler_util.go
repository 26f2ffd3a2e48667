package core

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError sends unified error payload {"code", "message"}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"code": code, "message": message})
}

// writeServiceError maps the error taxonomy onto HTTP responses. Unknown
// errors are logged and reported as a bare 500.
func writeServiceError(c *gin.Context, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "validation failed",
			"errors":  ve.Fields,
		})
	case errors.Is(err, ErrDuplicateEmail):
		respondError(c, http.StatusBadRequest, "DUPLICATE_EMAIL", "a user with that email is already registered")
	case errors.Is(err, ErrInvalidCredentials):
		respondError(c, http.StatusBadRequest, "INVALID_CREDENTIALS", "invalid credentials")
	case errors.Is(err, ErrAuthorizationRequired):
		respondError(c, http.StatusUnauthorized, "AUTHORIZATION_REQUIRED", "authorization required")
	case errors.Is(err, ErrInvalidToken):
		respondError(c, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token")
	case errors.Is(err, ErrUserNotFound):
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	default:
		log.Printf("[api] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal error")
	}
}
