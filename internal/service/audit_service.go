package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-access/internal/config"
	"github.com/spec-kit/crm-access/internal/events"
)

// AuditService records security-relevant domain events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuditConfig
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every event.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.SubscribeAll(a.handle)
}

func (a *AuditService) handle(ctx context.Context, event events.Event) error {
	a.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("subject_id", event.SubjectID),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload),
	)
	a.sendWebhookStub(ctx, event)
	return nil
}

func (a *AuditService) sendWebhookStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}
	a.logger.Debug("sendWebhookStub",
		zap.String("url", a.cfg.WebhookURL),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}
