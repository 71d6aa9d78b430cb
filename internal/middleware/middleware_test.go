package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/service"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	return v.claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	final := func(c *gin.Context) {
		claims, _ := c.Get(ContextUserKey)
		if typed, ok := claims.(*models.JWTClaims); ok {
			c.String(http.StatusOK, typed.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	}
	r.GET("/guarded", append(handlers, final)...)
	return r
}

func serve(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	r := newRouter(JWT(validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleCommittee}}))

	assert.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, map[string]string{"Authorization": "Basic abc"}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, map[string]string{"Authorization": "Bearer bad"}).Code)

	w := serve(r, map[string]string{"Authorization": "Bearer good"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestJWTRejectsSystemRoleTokens(t *testing.T) {
	r := newRouter(JWT(validatorStub{claims: models.SystemActor()}))
	assert.Equal(t, http.StatusForbidden, serve(r, map[string]string{"Authorization": "Bearer good"}).Code)
}

func TestRequireRoles(t *testing.T) {
	withClaims := func(claims *models.JWTClaims) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(ContextUserKey, claims)
			c.Next()
		}
	}

	r := newRouter(withClaims(&models.JWTClaims{UserID: "m1", Role: models.RoleCommittee}), RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(r, nil).Code)

	r = newRouter(withClaims(&models.JWTClaims{UserID: "o1", Role: models.RoleAdmin}), RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusOK, serve(r, nil).Code)

	r = newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
}

func TestCronSecret(t *testing.T) {
	r := newRouter(CronSecret("s3cret"))

	assert.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, map[string]string{CronSecretHeader: "guess"}).Code)

	w := serve(r, map[string]string{CronSecretHeader: "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SystemActorID, w.Body.String())

	disabled := newRouter(CronSecret(""))
	assert.Equal(t, http.StatusUnauthorized, serve(disabled, map[string]string{CronSecretHeader: ""}).Code)
}

func TestAuditContextCarriesCallerDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var got service.RequestMeta
	r.GET("/guarded", AuditContext(), func(c *gin.Context) {
		got, _ = service.RequestMetaFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("User-Agent", "cron/1.0")
	req.RemoteAddr = "192.0.2.10:5555"
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.10", got.IP)
	assert.Equal(t, "cron/1.0", got.UserAgent)
}

func TestMetricsRecordsRouteTemplate(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newRouter(Metrics(metrics))
	serve(r, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/guarded",status="200"} 1`)
}
