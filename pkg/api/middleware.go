package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/drewrad8/strategos/pkg/metrics"
)

// requestIDHeader is the header a caller can set to propagate its own
// correlation id; one is generated when absent.
const requestIDHeader = "X-Request-Id"

// RequestIDMiddleware stamps every request/response pair with a
// correlation id, logged alongside each handler's zerolog entries.
// Grounded on the teacher's pkg/api server.go using google/uuid for
// every resource it minted; this repo's worker/checkpoint ids are
// spec-mandated 8-hex-char values (types.ValidID) instead, so uuid's
// home here is request correlation rather than resource identity.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// CORSMiddleware builds the router's CORS policy from cfg.CORSOrigins.
// An empty origin list is the restrictive default named in spec.md §6's
// environment table: no cross-origin browser client is allowed until
// one is explicitly configured.
func CORSMiddleware(cfg Config) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

// AuthMiddleware requires a `Bearer <token>` header signed with
// cfg.APIKey as an HMAC secret (golang-jwt/jwt/v5), per spec.md §6's
// "optional API key for Bearer-token auth". Disabled entirely when
// cfg.APIKey is empty. Grounded on yungbote-neurobridge-backend's
// AuthMiddleware.RequireAuth bearer-extraction shape, generalized from
// a per-user session token to a single shared orchestrator secret
// since spec.md has no user/account model.
func AuthMiddleware(cfg Config) gin.HandlerFunc {
	if cfg.APIKey == "" {
		return func(c *gin.Context) { c.Next() }
	}
	secret := []byte(cfg.APIKey)

	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if !strings.HasPrefix(raw, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"kind":    "Unauthorized",
				"message": "missing bearer token",
			}})
			return
		}
		tokenString := strings.TrimPrefix(raw, "Bearer ")

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"kind":    "Unauthorized",
				"message": "invalid bearer token",
			}})
			return
		}
		c.Next()
	}
}

// MetricsMiddleware records every request's method, route, status, and
// latency into the package-level APIRequestsTotal/APIRequestDuration
// vectors (pkg/metrics).
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, route, http.StatusText(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
