package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const credentialKey = "credential"

// BearerAuth extracts the bearer credential; validation is left to the services
// so that a rejected credential never reaches the ledger.
func BearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		// Check if the Authorization header is present and in correct format
		if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: msgUnauthorized})
			return
		}

		c.Set(credentialKey, strings.TrimSpace(auth[7:]))
		c.Next()
	}
}

func credential(c *gin.Context) string {
	return c.GetString(credentialKey)
}

// RequestLogger logs every request once it completes
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
