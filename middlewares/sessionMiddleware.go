package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/costing_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the tenant for the request. Every costing
// route is business-scoped, so a missing X-Business-Id is rejected before
// the handler runs.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Request.Header.Get("X-Business-Id")
		if businessId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Business-Id header is required"})
			c.Abort()
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		if userName := c.Request.Header.Get("X-User-Name"); userName != "" {
			ctx = utils.SetUserNameInContext(ctx, userName)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
