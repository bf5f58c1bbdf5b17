package service

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const DefaultStockDebounce = 400 * time.Millisecond

// Debouncer runs the most recently triggered callback once no trigger has
// arrived for the quiet window.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop drops the pending callback, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// StockRefresher keeps stock snapshots for the products in a cart. Changes to
// the product set are coalesced, and only the newest lookup's result is kept.
type StockRefresher struct {
	lookup   port.InventoryLookup
	debounce *Debouncer
	timeout  time.Duration
	log      *slog.Logger

	mu        sync.RWMutex
	signature string
	seq       uint64
	levels    domain.StockLevels
	onUpdate  func(domain.StockLevels)
}

func NewStockRefresher(lookup port.InventoryLookup, delay time.Duration, log *slog.Logger) *StockRefresher {
	if delay <= 0 {
		delay = DefaultStockDebounce
	}
	return &StockRefresher{
		lookup:   lookup,
		debounce: NewDebouncer(delay),
		timeout:  5 * time.Second,
		log:      log,
		levels:   domain.StockLevels{},
	}
}

// OnUpdate registers a callback run after a lookup result is applied.
func (r *StockRefresher) OnUpdate(fn func(domain.StockLevels)) {
	r.mu.Lock()
	r.onUpdate = fn
	r.mu.Unlock()
}

// Observe schedules a refresh when the set of product IDs differs from the
// last observed set.
func (r *StockRefresher) Observe(productIDs []int64) {
	ids := distinctSorted(productIDs)
	sig := signature(ids)

	r.mu.Lock()
	if sig == r.signature {
		r.mu.Unlock()
		return
	}
	r.signature = sig
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	if len(ids) == 0 {
		r.debounce.Stop()
		r.apply(seq, domain.StockLevels{})
		return
	}

	r.debounce.Trigger(func() { r.fetch(seq, ids) })
}

func (r *StockRefresher) StockFor(productID int64) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.levels.StockFor(productID)
}

func (r *StockRefresher) Levels() domain.StockLevels {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(domain.StockLevels, len(r.levels))
	for k, v := range r.levels {
		out[k] = v
	}
	return out
}

func (r *StockRefresher) Stop() {
	r.debounce.Stop()
}

func (r *StockRefresher) fetch(seq uint64, ids []int64) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	levels, err := r.lookup.Lookup(ctx, ids)
	if err != nil {
		r.log.Warn("stock refresh failed", slog.Any("err", err), slog.Int("products", len(ids)))
		return
	}
	r.apply(seq, levels)
}

func (r *StockRefresher) apply(seq uint64, levels domain.StockLevels) {
	r.mu.Lock()
	if seq != r.seq {
		r.mu.Unlock()
		return
	}
	r.levels = levels
	cb := r.onUpdate
	r.mu.Unlock()

	if cb != nil {
		cb(levels)
	}
}

func distinctSorted(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func signature(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
