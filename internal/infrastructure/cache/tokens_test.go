package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestMagicTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _ := newRedis(t)
	store := NewTokenStore(client, zap.NewNop())

	auctionID, teamID := uuid.New(), uuid.New()
	require.NoError(t, store.SaveMagicToken(ctx, "tok-1", auctionID, teamID, time.Minute))

	gotAuction, gotTeam, err := store.RedeemMagicToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, auctionID, gotAuction)
	assert.Equal(t, teamID, gotTeam)
}

func TestMagicTokenSingleUse(t *testing.T) {
	ctx := context.Background()
	client, _ := newRedis(t)
	store := NewTokenStore(client, zap.NewNop())

	require.NoError(t, store.SaveMagicToken(ctx, "tok-1", uuid.New(), uuid.New(), time.Minute))
	_, _, err := store.RedeemMagicToken(ctx, "tok-1")
	require.NoError(t, err)

	_, _, err = store.RedeemMagicToken(ctx, "tok-1")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHENTICATED", domainErrors.Code(err))
}

func TestMagicTokenExpires(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	store := NewTokenStore(client, zap.NewNop())

	require.NoError(t, store.SaveMagicToken(ctx, "tok-1", uuid.New(), uuid.New(), time.Second))
	mr.FastForward(2 * time.Second)

	_, _, err := store.RedeemMagicToken(ctx, "tok-1")
	assert.Equal(t, "UNAUTHENTICATED", domainErrors.Code(err))
}

func TestMagicTokenUnknown(t *testing.T) {
	ctx := context.Background()
	client, _ := newRedis(t)
	store := NewTokenStore(client, zap.NewNop())

	_, _, err := store.RedeemMagicToken(ctx, "never-issued")
	assert.Equal(t, "UNAUTHENTICATED", domainErrors.Code(err))
}

func TestSnapshotCache(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	cache := NewSnapshotCache(client, zap.NewNop())
	auctionID := uuid.New()

	assert.Nil(t, cache.Get(ctx, auctionID), "cold cache misses")

	cache.Put(ctx, auctionID, map[string]string{"status": "live"})
	data := cache.Get(ctx, auctionID)
	require.NotNil(t, data)
	assert.JSONEq(t, `{"status":"live"}`, string(data))

	t.Run("entries expire on their own", func(t *testing.T) {
		mr.FastForward(snapshotTTL + time.Second)
		assert.Nil(t, cache.Get(ctx, auctionID))
	})

	t.Run("invalidate drops the entry", func(t *testing.T) {
		cache.Put(ctx, auctionID, map[string]string{"status": "paused"})
		cache.Invalidate(ctx, auctionID)
		assert.Nil(t, cache.Get(ctx, auctionID))
	})
}
