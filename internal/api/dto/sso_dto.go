package dto

import (
	"time"

	"github.com/ssoworks/sso-service/internal/domain"
)

// IdentityResponse is the body of GET /sso/me. Projects is omitted only when nil, so a
// project-scoped principal with no memberships still reports an empty object.
type IdentityResponse struct {
	User        string                        `json:"user"`
	Authorities []string                      `json:"authorities"`
	Projects    map[string]domain.ProjectRole `json:"projects,omitzero"`
}

// TokenResponse mirrors the OAuth2 access token representation.
type TokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	Client      string     `json:"client"`
	Scope       []string   `json:"scope"`
	ExpiresIn   int64      `json:"expires_in,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// OperationCompletionResponse confirms a completed operation.
type OperationCompletionResponse struct {
	Message string `json:"message"`
}

// SessionTokenRequest is posted by the upstream login layer once it has authenticated a user.
type SessionTokenRequest struct {
	User        string            `json:"user"`
	Authorities []string          `json:"authorities"`
	Projects    map[string]string `json:"projects"`
}

// NewTokenResponse renders token as seen at now.
func NewTokenResponse(token *domain.Token, now time.Time) TokenResponse {
	return TokenResponse{
		AccessToken: token.Value,
		TokenType:   "bearer",
		Client:      string(token.Client),
		Scope:       token.Scope,
		ExpiresIn:   int64(token.ExpiresIn(now).Round(time.Second) / time.Second),
		ExpiresAt:   token.ExpiresAt,
	}
}
