package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/pkg/config"
	"github.com/rl1809/storefront/pkg/logger"
)

// Hammers one order reference with concurrent submissions against a payment
// gateway that always fails, and checks the retry cap held. A second run
// churns a cart's product set and checks stock lookups were coalesced.

const (
	totalRequests = 50
	cartChurn     = 210
)

type memoryOrders struct {
	mu         sync.Mutex
	orders     map[string]domain.Order
	stockReads atomic.Int32
}

func (m *memoryOrders) CreateOrder(_ context.Context, sub domain.OrderSubmission) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := domain.Order{
		ID:            uuid.NewString(),
		OrderNumber:   sub.OrderNumber,
		Reference:     sub.Reference,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   sub.TotalAmount,
		Currency:      sub.Currency,
	}
	m.orders[sub.Reference] = o
	return o, nil
}

func (m *memoryOrders) FindOrderByReference(_ context.Context, ref string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (m *memoryOrders) MarkPaidIfPending(context.Context, string) (bool, error) { return false, nil }

func (m *memoryOrders) GetStock(_ context.Context, ids []int64) (map[int64]domain.Inventory, error) {
	m.stockReads.Add(1)
	out := make(map[int64]domain.Inventory, len(ids))
	for _, id := range ids {
		out[id] = domain.Inventory{ProductID: id, Quantity: int(id % 7)}
	}
	return out, nil
}

// countingLookup counts lookups that reach the inventory service.
type countingLookup struct {
	port.InventoryLookup
	calls atomic.Int32
}

func (c *countingLookup) Lookup(ctx context.Context, ids []int64) (domain.StockLevels, error) {
	c.calls.Add(1)
	return c.InventoryLookup.Lookup(ctx, ids)
}

type downGateway struct{}

func (downGateway) CreatePaymentLink(context.Context, port.PaymentLinkRequest) (string, error) {
	time.Sleep(5 * time.Millisecond)
	return "", errors.New("gateway unavailable")
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	cache := storage.NewRedisAdapter(rdb)
	orders := &memoryOrders{orders: make(map[string]domain.Order)}

	capHeld := runRetryCap(ctx, cfg.Rules, orders, cache)
	coalesced := runStockChurn(cfg, orders, cache)

	if !capHeld || !coalesced {
		os.Exit(1)
	}
}

func runRetryCap(ctx context.Context, rules domain.Rules, orders *memoryOrders, cache *storage.RedisAdapter) bool {
	reference := "stress-" + uuid.NewString()
	svc := service.NewOrderService(orders, cache, downGateway{}, rules, "NGN", logger.Discard())

	var (
		failed, capped, duplicate atomic.Int32
		wg                        sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// each goroutine is a fresh page load for the same reference
			cart := service.NewCart(rules, nil)
			cart.Add(domain.CartLineItem{
				ProductID: 1,
				Name:      "Notebook",
				Variants:  []domain.VariantSelection{{Quantity: 2, UnitPrice: decimal.NewFromInt(2500)}},
			})
			co := service.NewCheckout(reference)
			_ = co.ChooseDelivery(domain.DeliveryPickup)
			co.SetBillingAddress(domain.AddressForm{FullName: "Ada", Phone: "0800", Email: "ada@example.com"})
			if err := co.AdvanceTo(domain.StepOrderReview); err != nil {
				log.Fatalf("advance: %v", err)
			}

			_, err := svc.Submit(ctx, co, cart, domain.SelectAll())
			switch {
			case errors.Is(err, domain.ErrExternalService):
				failed.Add(1)
			case errors.Is(err, domain.ErrRetryLimitReached):
				capped.Add(1)
			case errors.Is(err, domain.ErrDuplicateRequest):
				duplicate.Add(1)
			default:
				log.Printf("unexpected result: %v", err)
			}
		}()
	}
	wg.Wait()

	fmt.Println("\n========== RETRY CAP RESULTS ==========")
	fmt.Printf("Requests:            %d\n", totalRequests)
	fmt.Printf("Failed attempts:     %d (cap %d)\n", failed.Load(), rules.MaxSubmitAttempts)
	fmt.Printf("Refused at cap:      %d\n", capped.Load())
	fmt.Printf("Rejected in flight:  %d\n", duplicate.Load())
	fmt.Printf("Duration:            %v\n", time.Since(start))
	fmt.Println("=======================================")

	if int(failed.Load()) > rules.MaxSubmitAttempts {
		fmt.Println("FAIL: retry cap exceeded")
		return false
	}
	fmt.Println("PASS: retry cap held")
	return true
}

func runStockChurn(cfg config.Config, orders *memoryOrders, cache *storage.RedisAdapter) bool {
	lookup := &countingLookup{InventoryLookup: service.NewInventoryService(orders, cache, logger.Discard())}
	refresher := service.NewStockRefresher(lookup, cfg.StockDebounce, logger.Discard())
	defer refresher.Stop()

	applied := make(chan domain.StockLevels, 1)
	refresher.OnUpdate(func(l domain.StockLevels) {
		if len(l) == 0 {
			return
		}
		select {
		case applied <- l:
		default:
		}
	})

	cart := service.NewCart(cfg.Rules, refresher)
	base := time.Now().UnixNano() % 1_000_000 * 1000

	start := time.Now()
	for i := 0; i < cartChurn; i++ {
		id := base + int64(i%20)
		if _, ok := cart.Item(id); ok {
			_ = cart.RemoveItem(id)
		} else {
			cart.Add(domain.CartLineItem{
				ProductID: id,
				Name:      fmt.Sprintf("Product %d", id),
				Variants:  []domain.VariantSelection{{Quantity: 1, UnitPrice: decimal.NewFromInt(1500)}},
			})
		}
		refresher.Observe(cart.ProductIDs())
	}

	var levels domain.StockLevels
	select {
	case levels = <-applied:
	case <-time.After(cfg.StockDebounce + 5*time.Second):
		fmt.Println("FAIL: stock never refreshed")
		return false
	}

	fmt.Println("\n========== STOCK CHURN RESULTS ==========")
	fmt.Printf("Cart mutations:      %d\n", cartChurn)
	fmt.Printf("Lookups issued:      %d\n", lookup.calls.Load())
	fmt.Printf("Inventory reads:     %d\n", orders.stockReads.Load())
	fmt.Printf("Products tracked:    %d\n", len(levels))
	fmt.Printf("Duration:            %v\n", time.Since(start))
	fmt.Println("=========================================")

	if lookup.calls.Load() != 1 {
		fmt.Println("FAIL: stock lookups were not coalesced")
		return false
	}
	fmt.Println("PASS: stock lookups coalesced")
	return true
}
