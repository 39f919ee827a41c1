package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ssoworks/sso-service/internal/config"
	"github.com/ssoworks/sso-service/internal/domain"
	"github.com/ssoworks/sso-service/internal/events"
	"github.com/ssoworks/sso-service/internal/observability"
	"github.com/ssoworks/sso-service/internal/repository"
	apperrors "github.com/ssoworks/sso-service/pkg/util"
)

// SessionTerminator ends the interactive session bound to a request.
type SessionTerminator interface {
	Terminate()
}

// TokenService coordinates the token lifecycle. It holds no token state of its own.
type TokenService struct {
	store      repository.TokenStore
	issuer     *TokenIssuer
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
	lookups    singleflight.Group
}

// TokenDependencies bundles collaborators for the token service.
type TokenDependencies struct {
	Store      repository.TokenStore
	Issuer     *TokenIssuer
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewTokenService builds the service.
func NewTokenService(cfg config.TokenConfig, deps TokenDependencies) *TokenService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	issuer := deps.Issuer
	if issuer == nil {
		issuer = NewTokenIssuer(deps.Store, cfg)
	}
	return &TokenService{
		store:      deps.Store,
		issuer:     issuer,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		timeout:    cfg.StoreTimeout(),
		now:        time.Now,
	}
}

// CurrentIdentity projects the caller's identity.
func (s *TokenService) CurrentIdentity(principal domain.Principal) IdentityView {
	return ProjectIdentity(principal)
}

// GetAPIToken returns a live api token for subject. Expired records found on the way are
// removed.
func (s *TokenService) GetAPIToken(ctx context.Context, subject string) (*domain.Token, error) {
	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	tokens, err := s.store.FindBySubjectAndClient(storeCtx, subject, domain.ClientAPI)
	if err != nil {
		return nil, storeError("find api tokens", err)
	}

	now := s.now()
	for i := range tokens {
		if tokens[i].Expired(now) {
			s.discardExpired(ctx, &tokens[i])
			continue
		}
		return &tokens[i], nil
	}
	return nil, apperrors.NewUserNotFound(subject)
}

// CreateAPIToken replaces the principal's api token: prior api tokens are revoked, then a
// fresh one is issued. The two steps are not one transaction; concurrent creates for the
// same subject may briefly leave more than one live api token.
func (s *TokenService) CreateAPIToken(ctx context.Context, principal domain.Principal) (*domain.Token, error) {
	subject := principal.Name()
	if strings.TrimSpace(subject) == "" {
		return nil, apperrors.NewValidationError("subject required", nil)
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	replaced, err := s.store.DeleteAllBySubjectAndClient(storeCtx, subject, domain.ClientAPI)
	cancel()
	if err != nil {
		return nil, storeError("revoke api tokens", err)
	}
	s.metrics.RecordTokensRevoked("replace_api_token", replaced)

	token, err := s.issuer.Issue(ctx, principal, domain.ClientAPI, principal.Authorities())
	if err != nil {
		return nil, err
	}
	s.issued(ctx, token, replaced)
	return token, nil
}

// IssueSessionToken issues an interactive session token for a principal authenticated
// upstream. Several sessions may be live at once.
func (s *TokenService) IssueSessionToken(ctx context.Context, principal domain.Principal) (*domain.Token, error) {
	if strings.TrimSpace(principal.Name()) == "" {
		return nil, apperrors.NewValidationError("subject required", nil)
	}
	token, err := s.issuer.Issue(ctx, principal, domain.ClientUI, principal.Authorities())
	if err != nil {
		return nil, err
	}
	s.issued(ctx, token, 0)
	return token, nil
}

// Authenticate resolves a presented bearer value into its principal. Concurrent lookups of
// the same value share one store round trip. The shared lookup is detached from any single
// caller's cancellation; each caller stops waiting when its own ctx ends.
func (s *TokenService) Authenticate(ctx context.Context, value string) (domain.Principal, *domain.Token, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.lookups.DoChan(value, func() (interface{}, error) {
		storeCtx, cancel := withStoreTimeout(detached, s.timeout)
		defer cancel()
		return s.store.FindByValue(storeCtx, value)
	})

	var (
		found interface{}
		err   error
	)
	select {
	case <-ctx.Done():
		return nil, nil, storeError("find token", ctx.Err())
	case res := <-ch:
		found, err = res.Val, res.Err
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewUnauthorized("invalid token")
		}
		return nil, nil, storeError("find token", err)
	}

	token := *found.(*domain.Token)
	if token.Expired(s.now()) {
		s.discardExpired(ctx, &token)
		return nil, nil, apperrors.NewUnauthorized("token expired")
	}
	return token.Principal(), &token, nil
}

// RevokeToken removes the token and ends the session bound to the request, if any.
// Revoking a value that no longer exists succeeds.
func (s *TokenService) RevokeToken(ctx context.Context, value string, session SessionTerminator) (domain.Confirmation, error) {
	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.store.DeleteByValue(storeCtx, value)
	if err != nil {
		return domain.Confirmation{}, storeError("revoke token", err)
	}
	if session != nil {
		session.Terminate()
	}

	var affected int64
	if removed {
		affected = 1
		s.metrics.RecordTokensRevoked("revoke_token", affected)
	}
	s.publish(ctx, events.Event{
		Type:    events.EventTokenRevoked,
		Payload: events.TokenRevokedPayload{ValuePrefix: valuePrefix(value), Removed: removed},
	})
	return domain.Confirmation{
		Message:  fmt.Sprintf("Token '%s' has been revoked", value),
		Affected: affected,
	}, nil
}

// RevokeAllUserTokens removes every token of subject across clients. Callers are trusted;
// a subject without tokens succeeds with zero affected.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, subject string) (domain.Confirmation, error) {
	if strings.TrimSpace(subject) == "" {
		return domain.Confirmation{}, apperrors.NewValidationError("subject required", nil)
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	affected, err := s.store.DeleteAllBySubject(storeCtx, subject)
	if err != nil {
		return domain.Confirmation{}, storeError("revoke user tokens", err)
	}
	s.metrics.RecordTokensRevoked("revoke_user_tokens", affected)
	s.publish(ctx, events.Event{
		Type:    events.EventUserTokensRevoked,
		Subject: subject,
		Payload: events.UserTokensRevokedPayload{Affected: affected},
	})
	return domain.Confirmation{
		Message:  fmt.Sprintf("Tokens of user '%s' have been revoked", subject),
		Affected: affected,
	}, nil
}

// PurgeExpired removes tokens whose TTL has elapsed.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.store.DeleteExpired(storeCtx, s.now())
	if err != nil {
		return 0, storeError("purge expired tokens", err)
	}
	s.metrics.RecordTokensRevoked("expire", removed)
	return removed, nil
}

func (s *TokenService) discardExpired(ctx context.Context, token *domain.Token) {
	storeCtx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.store.DeleteByValue(storeCtx, token.Value)
	if err != nil {
		s.logger.Warn("failed to remove expired token",
			zap.String("subject", token.Subject),
			zap.String("client", string(token.Client)),
			zap.Error(err))
		return
	}
	if removed {
		s.metrics.RecordTokensRevoked("expire", 1)
	}
}

func (s *TokenService) issued(ctx context.Context, token *domain.Token, replaced int64) {
	s.metrics.RecordTokenIssued(string(token.Client))
	s.publish(ctx, events.Event{
		Type:    events.EventTokenIssued,
		Subject: token.Subject,
		Payload: events.TokenIssuedPayload{
			TokenID:   token.ID,
			Client:    token.Client,
			Scope:     token.Scope,
			ExpiresAt: token.ExpiresAt,
			Replaced:  replaced,
		},
	})
}

func (s *TokenService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func valuePrefix(value string) string {
	const n = 6
	if len(value) <= n {
		return value
	}
	return value[:n]
}
