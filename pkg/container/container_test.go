package container

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loviiin/soundgraph/pkg/config"
	"github.com/loviiin/soundgraph/pkg/soundcloud"
	"github.com/loviiin/soundgraph/pkg/store"
)

func testConfig(t *testing.T, redisAddr string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.URL = ""
	cfg.Meilisearch.Host = ""
	cfg.Nats.URL = ""
	cfg.Redis.Address = redisAddr
	cfg.API.ClientID = "abc"
	cfg.API.RPS = 5
	return cfg
}

func TestNewWithMemoryStoreAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), testConfig(t, mr.Addr()))
	require.NoError(t, err)
	defer c.Cleanup()

	_, isMemory := c.Store.(*store.Memory)
	assert.True(t, isMemory)
	require.NotNil(t, c.Claims)
	require.NotNil(t, c.Counter)
	require.NotNil(t, c.Limiter)
	assert.Nil(t, c.Queue)

	r := c.Runner(3, 7)
	assert.Equal(t, 3, r.Workers)
	assert.Equal(t, 7, r.BatchSize)
	assert.NotNil(t, r.Claims)
	assert.NotNil(t, r.Counter)

	api, err := r.NewFetcher()
	require.NoError(t, err)
	assert.Equal(t, soundcloud.DefaultBaseV2, api.Endpoints().V2)
}

func TestNewWithoutRedisDisablesClaims(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c, err := New(context.Background(), testConfig(t, addr))
	require.NoError(t, err)
	defer c.Cleanup()

	assert.Nil(t, c.Redis)
	r := c.Runner(1, 1)
	assert.Nil(t, r.Claims)
	assert.Nil(t, r.Counter)
}

func TestNewFetcherRequiresClientID(t *testing.T) {
	c := &Container{Config: &config.Config{}}
	_, err := c.NewFetcher()
	assert.ErrorIs(t, err, soundcloud.ErrCredential)
}
