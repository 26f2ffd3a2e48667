package core

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, authService AuthService, guard *BearerGuard, users UserRepository) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()

	r.Use(OriginRefererMiddleware(cfg))
	r.Use(RequestTimeout(cfg.RequestTimeout))

	r.GET("/healthz", func(c *gin.Context) {
		st := CollectSystemStatus(c.Request.Context(), cfg.StoreBackend, users, startedAt)
		status := http.StatusOK
		if st.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, st)
	})

	r.POST("/register", func(c *gin.Context) {
		var req RegisterRequest
		if !bindJSON(c, &req) {
			return
		}

		u, err := authService.Register(c.Request.Context(), req)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "user registered successfully",
			"user":    gin.H{"id": u.ID, "name": u.Name, "email": u.Email},
		})
	})

	r.POST("/login", func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, &req) {
			return
		}

		token, err := authService.Login(c.Request.Context(), req)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": token})
	})

	r.GET("/profile", RequireBearer(guard), func(c *gin.Context) {
		claims, ok := IdentityFrom(c)
		if !ok {
			writeServiceError(c, ErrAuthorizationRequired)
			return
		}

		profile, err := authService.Profile(c.Request.Context(), claims.ID)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "welcome to your profile", "user": profile})
	})

	return r
}

// bindJSON decodes the body into req. An empty body decodes to the zero
// value so that field rules report what is missing.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		writeServiceError(c, &ValidationError{Fields: []FieldError{{
			Field:   "body",
			Message: "body must be a JSON object with string fields",
		}}})
		return false
	}
	return true
}
