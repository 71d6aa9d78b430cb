package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/middleware"
)

// trigger calls the purge endpoint of the API with the shared cron secret.
type trigger struct {
	client *http.Client
	url    string
	secret string
	dryRun bool
	logger *zap.Logger
}

func newTrigger(url, secret string, timeout time.Duration, dryRun bool, logger *zap.Logger) *trigger {
	return &trigger{
		client: &http.Client{Timeout: timeout},
		url:    url,
		secret: secret,
		dryRun: dryRun,
		logger: logger,
	}
}

func (t *trigger) fire(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if t.dryRun {
		q := req.URL.Query()
		q.Set("dryRun", "true")
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set(middleware.CronSecretHeader, t.secret)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("call purge endpoint: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read purge response: %w", err)
	}
	var summary dto.CronPurgeResponse
	if err := json.Unmarshal(body, &summary); err != nil {
		return fmt.Errorf("purge endpoint returned %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK || !summary.Success {
		msg := summary.Message
		if msg == "" {
			msg = string(body)
		}
		return fmt.Errorf("purge endpoint returned %d: %s", resp.StatusCode, msg)
	}

	fields := []interface{}{"count", summary.Count, "errors", summary.Errors, "skipped", summary.Skipped, "dry_run", summary.DryRun}
	if summary.Errors > 0 {
		for _, f := range summary.Failures {
			t.logger.Sugar().Warnw("case purge failed", "case_id", f.CaseID, "code", f.Code, "reason", f.Reason)
		}
		t.logger.Sugar().Warnw(summary.Message, fields...)
		return nil
	}
	t.logger.Sugar().Infow(summary.Message, fields...)
	return nil
}
