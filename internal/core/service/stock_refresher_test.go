package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/pkg/logger"
)

const testDebounce = 20 * time.Millisecond

func TestDebouncer_RunsLastTrigger(t *testing.T) {
	d := NewDebouncer(testDebounce)
	var ran atomic.Int32
	var last atomic.Int32

	for i := 1; i <= 5; i++ {
		i := i
		d.Trigger(func() {
			ran.Add(1)
			last.Store(int32(i))
		})
	}

	assert.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(1), ran.Load())
	assert.Equal(t, int32(5), last.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(testDebounce)
	var ran atomic.Bool
	d.Trigger(func() { ran.Store(true) })
	d.Stop()

	time.Sleep(3 * testDebounce)
	assert.False(t, ran.Load())
}

func TestStockRefresher_CoalescesChanges(t *testing.T) {
	lookup := &mockLookup{levels: domain.StockLevels{
		1: {ProductID: 1, StockQuantity: domain.IntPtr(4)},
	}}
	r := NewStockRefresher(lookup, testDebounce, logger.Discard())
	defer r.Stop()

	r.Observe([]int64{1})
	r.Observe([]int64{1, 2})
	r.Observe([]int64{2, 1, 1})

	require.Eventually(t, func() bool { return lookup.callCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, lookup.callCount())
	assert.Equal(t, []int64{1, 2}, lookup.calls[0])

	stock, ok := r.StockFor(1)
	assert.True(t, ok)
	assert.Equal(t, 4, stock)

	_, ok = r.StockFor(2)
	assert.False(t, ok, "unknown stock is not a cap")
}

func TestStockRefresher_SameSetIsNoop(t *testing.T) {
	lookup := &mockLookup{}
	r := NewStockRefresher(lookup, testDebounce, logger.Discard())
	defer r.Stop()

	r.Observe([]int64{3, 1})
	require.Eventually(t, func() bool { return lookup.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// quantity changes keep the product set, so no new lookup
	r.Observe([]int64{1, 3})
	r.Observe([]int64{1, 3, 3})
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, lookup.callCount())
}

func TestStockRefresher_EmptySetClears(t *testing.T) {
	lookup := &mockLookup{levels: domain.StockLevels{
		1: {ProductID: 1, StockQuantity: domain.IntPtr(2)},
	}}
	r := NewStockRefresher(lookup, testDebounce, logger.Discard())
	defer r.Stop()

	r.Observe([]int64{1})
	require.Eventually(t, func() bool { _, ok := r.StockFor(1); return ok }, time.Second, 5*time.Millisecond)

	r.Observe(nil)
	assert.Empty(t, r.Levels())
	assert.Equal(t, 1, lookup.callCount())
}

func TestStockRefresher_FeedsCart(t *testing.T) {
	lookup := &mockLookup{levels: domain.StockLevels{
		1: {ProductID: 1, StockQuantity: domain.IntPtr(3)},
	}}
	r := NewStockRefresher(lookup, testDebounce, logger.Discard())
	defer r.Stop()

	updated := make(chan domain.StockLevels, 1)
	r.OnUpdate(func(l domain.StockLevels) { updated <- l })

	cart := NewCart(domain.DefaultRules(), r)
	cart.Add(tshirt())
	r.Observe(cart.ProductIDs())

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("stock update not delivered")
	}

	_, err := cart.ChangeQuantity(1, strPtr("red-m"), 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

// gatedLookup blocks each lookup until its product set is released.
type gatedLookup struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	stock map[string]int
}

func (g *gatedLookup) gate(sig string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[sig]
	if !ok {
		ch = make(chan struct{})
		g.gates[sig] = ch
	}
	return ch
}

func (g *gatedLookup) Lookup(ctx context.Context, ids []int64) (domain.StockLevels, error) {
	sig := signature(ids)
	select {
	case <-g.gate(sig):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := domain.StockLevels{}
	for _, id := range ids {
		out[id] = domain.StockSnapshot{ProductID: id, StockQuantity: domain.IntPtr(g.stock[sig])}
	}
	return out, nil
}

func TestStockRefresher_LatestResultWins(t *testing.T) {
	lookup := &gatedLookup{
		gates: make(map[string]chan struct{}),
		stock: map[string]int{"1": 10, "1,2": 20},
	}
	r := NewStockRefresher(lookup, testDebounce, logger.Discard())
	defer r.Stop()

	var applied atomic.Int32
	r.OnUpdate(func(domain.StockLevels) { applied.Add(1) })

	r.Observe([]int64{1})
	time.Sleep(3 * testDebounce) // first lookup is now in flight
	r.Observe([]int64{1, 2})
	time.Sleep(3 * testDebounce)

	close(lookup.gate("1,2"))
	require.Eventually(t, func() bool { return applied.Load() == 1 }, time.Second, 5*time.Millisecond)

	close(lookup.gate("1"))
	time.Sleep(3 * testDebounce)

	assert.Equal(t, int32(1), applied.Load(), "stale result must be dropped")
	stock, ok := r.StockFor(1)
	require.True(t, ok)
	assert.Equal(t, 20, stock)
}
