package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nimbusdrive/nimbus-go/api/models"
)

const SessionKey = "session"

// RequireSession authenticates requests by the access_token cookie, the same
// way the production gateway does. Expired tokens fall out of the TTL cache
// and come back 401, which is exactly what the client's refresh path needs.
func RequireSession(store *models.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		sess, ok := store.LookupAccess(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		c.Set(SessionKey, sess)
		c.Next()
	}
}
