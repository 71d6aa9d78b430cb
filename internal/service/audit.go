package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditTrail writes audit entries without ever failing the calling operation.
type auditTrail struct {
	repo   auditLogger
	logger *zap.Logger
	source string
}

func (a auditTrail) record(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID string, oldValues, newValues interface{}) {
	if a.repo == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: "system",
		UserAgent: a.source,
	}
	if actor != nil {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if resourceID != "" {
		id := resourceID
		entry.ResourceID = &id
	}
	if meta, ok := RequestMetaFrom(ctx); ok {
		entry.IPAddress = meta.IP
		entry.UserAgent = meta.UserAgent
	}
	entry.OldValues = marshalAudit(oldValues)
	entry.NewValues = marshalAudit(newValues)
	if err := a.repo.CreateAuditLog(ctx, entry); err != nil {
		a.logger.Warn("failed to create audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func marshalAudit(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

// RequestMeta carries caller details that end up in audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta attaches caller details to ctx for audit logging.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns caller details previously attached with WithRequestMeta.
func RequestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}

func requireActor(actor *models.JWTClaims) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	return nil
}

// requireOfficer allows only the discipline officer to change a case's lifecycle.
func requireOfficer(actor *models.JWTClaims) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only the discipline officer may change a case's lifecycle")
	}
	return nil
}
