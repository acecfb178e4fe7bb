package redis

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisCfg := &cfg.RedisCfg{Addr: mr.Addr(), ProductTTL: time.Hour}
	client := clients.NewRedisClient(redisCfg)
	t.Cleanup(func() { _ = client.Client.Close() })

	return NewCacheRepo(client, redisCfg, 5*time.Minute, logger.NewNopLogger()), mr
}

func TestProductsRoundTrip(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	products := []usecase.ProductInfo{
		{ID: "P1", Title: "Кеды", SalePrice: decimal.RequireFromString("1999.90"), Currency: "RUB"},
		{ID: "P2", Title: "Куртка"},
	}
	require.NoError(t, repo.SetProducts(ctx, products))

	got, err := repo.GetProducts(ctx, []string{"P1", "P2", "P3"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got["P1"].SalePrice.Equal(products[0].SalePrice))
	assert.Equal(t, "Куртка", got["P2"].Title)

	assert.Equal(t, time.Hour, mr.TTL("product:P1"))

	require.NoError(t, repo.DeleteProducts(ctx, []string{"P1"}))
	got, err = repo.GetProducts(ctx, []string{"P1", "P2"})
	require.NoError(t, err)
	assert.NotContains(t, got, "P1")
	assert.Contains(t, got, "P2")
}

func TestBrokenProductEntryIsDropped(t *testing.T) {
	repo, mr := newTestRepo(t)

	require.NoError(t, mr.Set("product:P1", `{"id":"P9","title":"чужой"}`))
	require.NoError(t, mr.Set("product:P2", `not json`))

	got, err := repo.GetProducts(context.Background(), []string{"P1", "P2"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, mr.Exists("product:P1"))
}

func TestSearchCache(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	miss, err := repo.GetSearch(ctx, "search:b1:abc:10:5")
	require.NoError(t, err)
	assert.Nil(t, miss)

	res := &usecase.CachedSearch{
		Hits:            []usecase.CachedHit{{ProductID: "P1", Score: 0.93}},
		RegionsDetected: 2,
		IndexVersion:    "b1",
	}
	require.NoError(t, repo.SetSearch(ctx, "search:b1:abc:10:5", res))
	assert.Equal(t, 5*time.Minute, mr.TTL("search:b1:abc:10:5"))

	hit, err := repo.GetSearch(ctx, "search:b1:abc:10:5")
	require.NoError(t, err)
	assert.Equal(t, res, hit)

	mr.FastForward(6 * time.Minute)
	expired, err := repo.GetSearch(ctx, "search:b1:abc:10:5")
	require.NoError(t, err)
	assert.Nil(t, expired)
}
