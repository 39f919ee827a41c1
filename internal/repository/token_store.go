package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ssoworks/sso-service/internal/domain"
)

var (
	// ErrNotFound is returned when no live token matches a lookup.
	ErrNotFound = errors.New("token not found")
	// ErrConflict is returned when a token value has already been issued.
	ErrConflict = errors.New("token value already issued")
)

// TokenStore defines persistence for issued tokens. Every call is individually atomic
// and durable before it returns.
type TokenStore interface {
	Save(ctx context.Context, token *domain.Token) error
	FindByValue(ctx context.Context, value string) (*domain.Token, error)
	FindBySubjectAndClient(ctx context.Context, subject string, client domain.Client) ([]domain.Token, error)
	FindBySubject(ctx context.Context, subject string) ([]domain.Token, error)
	DeleteByValue(ctx context.Context, value string) (bool, error)
	DeleteAllBySubjectAndClient(ctx context.Context, subject string, client domain.Client) (int64, error)
	DeleteAllBySubject(ctx context.Context, subject string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
