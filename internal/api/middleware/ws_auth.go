package middleware

import (
	"net/http"

	"relay-service/internal/identity"
	"relay-service/internal/metrics"

	"github.com/gin-gonic/gin"
)

// WSAuth authenticates the socket handshake via a query-parameter
// token (browsers cannot set headers on WebSocket upgrades). A refused
// credential means the connection never reaches the hub.
func WSAuth(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			metrics.AuthRejections.Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
			return
		}

		userID, err := provider.Verify(tokenString)
		if err != nil {
			metrics.AuthRejections.Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
