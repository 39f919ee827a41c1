package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ssoworks/sso-service/internal/config"
)

func TestRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb := NewRedis(config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()))

	mr.Close()
	assert.Error(t, rdb.Ping(context.Background()))
}

func TestUnconfiguredDependenciesFailPing(t *testing.T) {
	var rdb *Redis
	assert.Error(t, rdb.Ping(context.Background()))

	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, pg.Ping(context.Background()))
	assert.NoError(t, RunMigrations(context.Background(), pg.PoolHandle(), DefaultMigrationsDir, zap.NewNop()))
}
