package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/response"
)

// CronSecretHeader carries the shared secret presented by the purge trigger.
const CronSecretHeader = "X-Cron-Secret"

// CronSecret admits only requests carrying the configured secret and runs them
// as the system actor. An empty secret disables the endpoint.
func CronSecret(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		presented := []byte(c.GetHeader(CronSecretHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(presented, expected) != 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid cron secret"))
			c.Abort()
			return
		}
		c.Set(ContextUserKey, models.SystemActor())
		c.Next()
	}
}
