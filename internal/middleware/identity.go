package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity pulls the authenticated user id the platform gateway forwards in
// the X-User-Id header. Authentication itself happens upstream; this service
// only trusts the forwarded identity.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
