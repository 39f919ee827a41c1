package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ssoworks/sso-service/internal/domain"
)

func TestMemoryTokenStore(t *testing.T) {
	suite.Run(t, &tokenStoreSuite{newStore: func() TokenStore {
		return NewMemoryTokenStore()
	}})
}

func TestMemoryTokenStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	tok := &domain.Token{
		ID:       "1",
		Value:    "v1",
		Subject:  "alice",
		Client:   domain.ClientAPI,
		Scope:    []string{"read"},
		IssuedAt: time.Now(),
		Authentication: domain.Authentication{
			Name:         "alice",
			Authorities:  []string{"USER"},
			ProjectRoles: map[string]domain.ProjectRole{"p1": domain.ProjectRoleMember},
		},
	}
	require.NoError(t, store.Save(ctx, tok))

	tok.Scope[0] = "mutated"
	tok.Authentication.ProjectRoles["p1"] = domain.ProjectRoleOperator

	found, err := store.FindByValue(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, found.Scope)
	assert.Equal(t, domain.ProjectRoleMember, found.Authentication.ProjectRoles["p1"])

	found.Authentication.Authorities[0] = "ADMIN"
	again, err := store.FindByValue(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"USER"}, again.Authentication.Authorities)
}

func TestMemoryTokenStoreKeepsElapsedRecordsUntilSwept(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	exp := time.Now().Add(20 * time.Millisecond)
	require.NoError(t, store.Save(ctx, &domain.Token{
		ID: "1", Value: "short", Subject: "alice", Client: domain.ClientUI,
		IssuedAt: time.Now(), ExpiresAt: &exp,
	}))
	time.Sleep(50 * time.Millisecond)

	found, err := store.FindByValue(ctx, "short")
	require.NoError(t, err)
	assert.True(t, found.Expired(time.Now()))

	n, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.FindByValue(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}
