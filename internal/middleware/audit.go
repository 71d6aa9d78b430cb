package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/watch-api/internal/service"
)

// AuditContext copies the caller's address and user agent into the request
// context, where services pick them up when writing audit entries.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithRequestMeta(c.Request.Context(), service.RequestMeta{
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
