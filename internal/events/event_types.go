package events

import (
	"time"

	"github.com/ssoworks/sso-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTokenIssued       EventType = "token_issued"
	EventTokenRevoked      EventType = "token_revoked"
	EventUserTokensRevoked EventType = "user_tokens_revoked"
)

// Event represents a token lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TokenIssuedPayload payload. Replaced counts api tokens revoked by the same create call.
type TokenIssuedPayload struct {
	TokenID   string        `json:"token_id"`
	Client    domain.Client `json:"client"`
	Scope     []string      `json:"scope"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Replaced  int64         `json:"replaced,omitempty"`
}

// TokenRevokedPayload payload. Only a prefix of the value is carried so events can be logged.
type TokenRevokedPayload struct {
	ValuePrefix string `json:"value_prefix"`
	Removed     bool   `json:"removed"`
}

// UserTokensRevokedPayload payload.
type UserTokensRevokedPayload struct {
	Affected int64 `json:"affected"`
}
