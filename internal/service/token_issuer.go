package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ssoworks/sso-service/internal/auth"
	"github.com/ssoworks/sso-service/internal/config"
	"github.com/ssoworks/sso-service/internal/domain"
	"github.com/ssoworks/sso-service/internal/repository"
	apperrors "github.com/ssoworks/sso-service/pkg/util"
)

// TokenIssuer generates token values and persists them with the per-client expiry policy.
type TokenIssuer struct {
	store      repository.TokenStore
	sessionTTL time.Duration
	apiTTL     time.Duration
	timeout    time.Duration
	entropy    io.Reader
	now        func() time.Time
}

// NewTokenIssuer builds an issuer reading entropy from crypto/rand.
func NewTokenIssuer(store repository.TokenStore, cfg config.TokenConfig) *TokenIssuer {
	return &TokenIssuer{
		store:      store,
		sessionTTL: cfg.SessionTokenTTL(),
		apiTTL:     cfg.APITokenTTL(),
		timeout:    cfg.StoreTimeout(),
		now:        time.Now,
	}
}

// Issue creates and stores a token for principal bound to client. Failures are not retried;
// a value that was already issued fails the call with a conflict.
func (i *TokenIssuer) Issue(ctx context.Context, principal domain.Principal, client domain.Client, scope []string) (*domain.Token, error) {
	if !client.Valid() {
		return nil, apperrors.NewValidationError("unknown client", map[string]any{"client": string(client)})
	}

	value, err := auth.GenerateTokenValue(i.entropy)
	if err != nil {
		return nil, apperrors.NewGenerationError(err)
	}

	now := i.now().UTC()
	token := &domain.Token{
		ID:             uuid.NewString(),
		Value:          value,
		Subject:        principal.Name(),
		Client:         client,
		Scope:          domain.NormalizeScope(scope),
		IssuedAt:       now,
		ExpiresAt:      i.expiry(client, now),
		Authentication: domain.AuthenticationOf(principal),
	}

	storeCtx, cancel := withStoreTimeout(ctx, i.timeout)
	defer cancel()
	if err := i.store.Save(storeCtx, token); err != nil {
		return nil, storeError("save token", err)
	}
	return token, nil
}

func (i *TokenIssuer) expiry(client domain.Client, now time.Time) *time.Time {
	ttl := i.apiTTL
	if client == domain.ClientUI {
		ttl = i.sessionTTL
	}
	if ttl <= 0 {
		return nil
	}
	exp := now.Add(ttl)
	return &exp
}
