package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/middleware"
	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/service"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/middleware/requestid"
)

type scheduledPurgerMock struct {
	opts   service.PurgeOptions
	actor  *models.JWTClaims
	report *models.PurgeReport
	err    error
}

func (m *scheduledPurgerMock) PurgeExpired(ctx context.Context, opts service.PurgeOptions, actor *models.JWTClaims) (*models.PurgeReport, error) {
	m.opts = opts
	m.actor = actor
	return m.report, m.err
}

func TestCronHandlerReportsPartialFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	purger := &scheduledPurgerMock{report: &models.PurgeReport{
		Count:    4,
		Errors:   1,
		Failures: []models.PurgeFailure{{CaseID: "case-3", Code: "EXPORT_FAILURE", Reason: "backup export failed"}},
	}}
	handler := NewCronHandler(purger, nil)

	c, w := newGinContext(http.MethodGet, "/cron/purge-old-cases", nil)
	c.Set(middleware.ContextUserKey, models.SystemActor())
	handler.PurgeOldCases(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body dto.CronPurgeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, 4, body.Count)
	require.Equal(t, 1, body.Errors)
	require.Len(t, body.Failures, 1)
	require.Equal(t, "purged 4 cases, 1 failed", body.Message)
	require.Equal(t, models.RoleSystem, purger.actor.Role)
}

func TestCronHandlerDryRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	purger := &scheduledPurgerMock{report: &models.PurgeReport{DryRun: true, Count: 2}}
	handler := NewCronHandler(purger, nil)

	c, w := newGinContext(http.MethodGet, "/cron/purge-old-cases?dryRun=true", nil)
	handler.PurgeOldCases(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, purger.opts.DryRun)
	require.Equal(t, models.SystemActorID, purger.actor.UserID)
	require.Contains(t, w.Body.String(), `"dryRun":true`)
}

func TestCronHandlerSelectionFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCronHandler(&scheduledPurgerMock{err: appErrors.Clone(appErrors.ErrStoreFailure, "failed to select expired cases")}, nil)

	c, w := newGinContext(http.MethodGet, "/cron/purge-old-cases", nil)
	handler.PurgeOldCases(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body dto.CronPurgeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, "failed to select expired cases", body.Message)
}

func TestCronHandlerLogsWithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	purger := &scheduledPurgerMock{report: &models.PurgeReport{Count: 1, Errors: 1}}

	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/cron/purge-old-cases", NewCronHandler(purger, zap.New(core)).PurgeOldCases)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cron/purge-old-cases", nil))
	require.Equal(t, http.StatusOK, w.Code)

	warnings := logs.FilterMessage("scheduled purge finished with failures").All()
	require.Len(t, warnings, 1)
	require.NotEmpty(t, warnings[0].ContextMap()["request_id"])
	require.Equal(t, models.SystemActorID, warnings[0].ContextMap()["actor"])
}
