package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

// AdminAuth guards the operator API with a shared bearer token. An empty
// ADMIN_API_TOKEN leaves the API open, which is only acceptable behind a
// private network.
type AdminAuth struct {
	log   *logger.Logger
	token string
}

func NewAdminAuth(baseLog *logger.Logger) *AdminAuth {
	token := strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN"))
	log := baseLog.With("middleware", "AdminAuth")
	if token == "" {
		log.Warn("ADMIN_API_TOKEN not set; admin API is unauthenticated")
	}
	return &AdminAuth{log: log, token: token}
}

func (am *AdminAuth) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.token == "" {
			c.Next()
			return
		}
		provided := extractToken(c)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(am.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		c.Next()
	}
}

// extractToken accepts the Authorization header or, for EventSource
// connections that cannot set headers, a token query parameter.
func extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
