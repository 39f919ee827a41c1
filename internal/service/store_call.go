package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ssoworks/sso-service/internal/repository"
	apperrors "github.com/ssoworks/sso-service/pkg/util"
)

func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// storeError translates a store failure into the domain taxonomy. Conflicts are fatal to
// the single issuance attempt; everything else means the store is unavailable.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return apperrors.NewConflict("token value already issued", nil)
	}
	return apperrors.NewStoreUnavailable(fmt.Errorf("%s: %w", op, err))
}
