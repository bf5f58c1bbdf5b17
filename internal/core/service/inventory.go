package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// InventoryService answers stock lookups from cache, falling back to the
// database for misses.
type InventoryService struct {
	db    port.DatabaseRepository
	cache port.CacheRepository
	sfg   singleflight.Group
	log   *slog.Logger
}

func NewInventoryService(db port.DatabaseRepository, cache port.CacheRepository, log *slog.Logger) *InventoryService {
	return &InventoryService{db: db, cache: cache, log: log}
}

func (s *InventoryService) Lookup(ctx context.Context, productIDs []int64) (domain.StockLevels, error) {
	ids := distinctSorted(productIDs)
	levels := make(domain.StockLevels, len(ids))
	if len(ids) == 0 {
		return levels, nil
	}

	cached, err := s.cache.CachedStock(ctx, ids)
	if err != nil {
		// cache is advisory, read through to the database
		s.log.Warn("stock cache read failed", slog.Any("err", err))
		cached = nil
	}

	var misses []int64
	for _, id := range ids {
		if snap, ok := cached[id]; ok {
			levels[id] = snap
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return levels, nil
	}

	v, err, _ := s.sfg.Do(signature(misses), func() (interface{}, error) {
		return s.load(ctx, misses)
	})
	if err != nil {
		return nil, err
	}
	for _, snap := range v.([]domain.StockSnapshot) {
		levels[snap.ProductID] = snap
	}
	return levels, nil
}

func (s *InventoryService) load(ctx context.Context, ids []int64) ([]domain.StockSnapshot, error) {
	rows, err := s.db.GetStock(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load stock: %w", err)
	}

	snaps := make([]domain.StockSnapshot, 0, len(ids))
	for _, id := range ids {
		snap := domain.StockSnapshot{ProductID: id}
		if inv, ok := rows[id]; ok {
			snap.StockQuantity = domain.IntPtr(inv.Quantity)
		}
		snaps = append(snaps, snap)
	}

	if err := s.cache.CacheStock(ctx, snaps); err != nil {
		s.log.Warn("stock cache write failed", slog.Any("err", err))
	}
	return snaps, nil
}
