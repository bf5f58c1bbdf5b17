package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/pkg/logger"
)

func TestInventoryLookup_CacheHit(t *testing.T) {
	db, cache := newMockDBRepo(), newMockCacheRepo()
	cache.stock[1] = domain.StockSnapshot{ProductID: 1, StockQuantity: domain.IntPtr(7)}
	svc := NewInventoryService(db, cache, logger.Discard())

	levels, err := svc.Lookup(context.Background(), []int64{1, 1})
	require.NoError(t, err)

	stock, ok := levels.StockFor(1)
	assert.True(t, ok)
	assert.Equal(t, 7, stock)
	assert.Zero(t, db.stockHits)
}

func TestInventoryLookup_MissReadsThrough(t *testing.T) {
	db, cache := newMockDBRepo(), newMockCacheRepo()
	cache.stock[1] = domain.StockSnapshot{ProductID: 1, StockQuantity: domain.IntPtr(7)}
	db.inventory[2] = domain.Inventory{ProductID: 2, Quantity: 0}
	svc := NewInventoryService(db, cache, logger.Discard())

	levels, err := svc.Lookup(context.Background(), []int64{3, 2, 1})
	require.NoError(t, err)
	require.Len(t, levels, 3)

	stock, ok := levels.StockFor(2)
	assert.True(t, ok)
	assert.Equal(t, 0, stock)

	_, ok = levels.StockFor(3)
	assert.False(t, ok, "product without inventory has unknown stock")
	assert.Equal(t, 1, db.stockHits)
	assert.Equal(t, 1, cache.cachedWrites)

	// unknown stock is cached too
	_, err = svc.Lookup(context.Background(), []int64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 1, db.stockHits)
}

func TestInventoryLookup_CacheErrorFallsThrough(t *testing.T) {
	db, cache := newMockDBRepo(), newMockCacheRepo()
	cache.readErr = errors.New("redis down")
	db.inventory[1] = domain.Inventory{ProductID: 1, Quantity: 12}
	svc := NewInventoryService(db, cache, logger.Discard())

	levels, err := svc.Lookup(context.Background(), []int64{1})
	require.NoError(t, err)
	stock, ok := levels.StockFor(1)
	assert.True(t, ok)
	assert.Equal(t, 12, stock)
}

func TestInventoryLookup_Empty(t *testing.T) {
	db, cache := newMockDBRepo(), newMockCacheRepo()
	svc := NewInventoryService(db, cache, logger.Discard())

	levels, err := svc.Lookup(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, levels)
	assert.Zero(t, db.stockHits)
}

func TestInventoryLookup_Concurrent(t *testing.T) {
	db, cache := newMockDBRepo(), newMockCacheRepo()
	db.inventory[1] = domain.Inventory{ProductID: 1, Quantity: 5}
	svc := NewInventoryService(db, cache, logger.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			levels, err := svc.Lookup(context.Background(), []int64{1})
			assert.NoError(t, err)
			stock, _ := levels.StockFor(1)
			assert.Equal(t, 5, stock)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, db.stockHits, 20)
}
