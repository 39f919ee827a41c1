package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ssoworks/sso-service/internal/events"
)

// AuditService writes token lifecycle events to the audit log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTokenIssued, a.handleTokenIssued)
	a.dispatcher.Subscribe(events.EventTokenRevoked, a.handleTokenRevoked)
	a.dispatcher.Subscribe(events.EventUserTokensRevoked, a.handleUserTokensRevoked)
}

func (a *AuditService) handleTokenIssued(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TokenIssuedPayload)
	a.logger.Info("TokenIssued",
		zap.String("event_id", event.ID),
		zap.String("subject", event.Subject),
		zap.String("token_id", payload.TokenID),
		zap.String("client", string(payload.Client)),
		zap.Strings("scope", payload.Scope),
		zap.Int64("replaced", payload.Replaced))
	return nil
}

func (a *AuditService) handleTokenRevoked(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TokenRevokedPayload)
	a.logger.Info("TokenRevoked",
		zap.String("event_id", event.ID),
		zap.String("value_prefix", payload.ValuePrefix),
		zap.Bool("removed", payload.Removed))
	return nil
}

func (a *AuditService) handleUserTokensRevoked(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.UserTokensRevokedPayload)
	a.logger.Info("UserTokensRevoked",
		zap.String("event_id", event.ID),
		zap.String("subject", event.Subject),
		zap.Int64("affected", payload.Affected))
	return nil
}
