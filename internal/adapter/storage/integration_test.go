package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/pkg/logger"
)

type testEnv struct {
	redis *redis.Client
	mysql *sql.DB
	cache *storage.RedisAdapter
	db    *storage.MySQLAdapter
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		rdb.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		rdb.Close()
		db.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	t.Cleanup(func() {
		rdb.Close()
		db.Close()
	})
	return &testEnv{
		redis: rdb,
		mysql: db,
		cache: storage.NewRedisAdapter(rdb),
		db:    storage.NewMySQLAdapter(db),
	}
}

// flakyGateway fails the first n calls.
type flakyGateway struct {
	fail  atomic.Int32
	calls atomic.Int32
}

func (g *flakyGateway) CreatePaymentLink(_ context.Context, req port.PaymentLinkRequest) (string, error) {
	g.calls.Add(1)
	if g.fail.Add(-1) >= 0 {
		return "", errors.New("gateway unavailable")
	}
	return "https://pay.example.com/" + req.Reference, nil
}

func reviewCheckout(t *testing.T, ref string) *service.Checkout {
	t.Helper()
	co := service.NewCheckout(ref)
	if err := co.ChooseDelivery(domain.DeliveryPickup); err != nil {
		t.Fatalf("choose delivery: %v", err)
	}
	co.SetBillingAddress(domain.AddressForm{FullName: "Ada Obi", Phone: "0801", Email: "ada@example.com"})
	if err := co.AdvanceTo(domain.StepOrderReview); err != nil {
		t.Fatalf("advance: %v", err)
	}
	return co
}

func notebookCart(stock service.StockSource) *service.Cart {
	cart := service.NewCart(domain.DefaultRules(), stock)
	cart.Add(domain.CartLineItem{
		ProductID: 910001,
		Name:      "Notebook",
		Variants:  []domain.VariantSelection{{Quantity: 2, UnitPrice: decimal.NewFromInt(2500)}},
	})
	return cart
}

func TestIntegration_StockLookupAndCap(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	// Setup
	env.redis.Del(ctx, "stock:910001", "stock:910002")
	_, err := env.mysql.ExecContext(ctx, `
		INSERT INTO inventory (product_id, stock, version) VALUES (910001, 3, 0)
		ON DUPLICATE KEY UPDATE stock = 3`)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	t.Cleanup(func() {
		env.mysql.ExecContext(context.Background(), `DELETE FROM inventory WHERE product_id = 910001`)
		env.redis.Del(context.Background(), "stock:910001", "stock:910002")
	})

	inventory := service.NewInventoryService(env.db, env.cache, logger.Discard())
	levels, err := inventory.Lookup(ctx, []int64{910001, 910002})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if n, ok := levels.StockFor(910001); !ok || n != 3 {
		t.Errorf("expected stock 3, got %d (known=%v)", n, ok)
	}
	if _, ok := levels.StockFor(910002); ok {
		t.Error("expected product without inventory to be unknown")
	}

	cached, _ := env.redis.Get(ctx, "stock:910001").Int()
	if cached != 3 {
		t.Errorf("expected cached stock 3, got %d", cached)
	}

	cart := notebookCart(levels)
	if _, err := cart.ChangeQuantity(910001, nil, 1); err != nil {
		t.Fatalf("expected increase to stock to succeed: %v", err)
	}
	if _, err := cart.ChangeQuantity(910001, nil, 1); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestIntegration_RetryCapSurvivesReload(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	ref := "it-" + uuid.NewString()
	t.Cleanup(func() {
		env.mysql.ExecContext(context.Background(), `DELETE oi FROM order_items oi JOIN orders o ON o.id = oi.order_id WHERE o.reference = ?`, ref)
		env.mysql.ExecContext(context.Background(), `DELETE FROM orders WHERE reference = ?`, ref)
		env.redis.Del(context.Background(), "checkout:attempts:"+ref)
	})

	gw := &flakyGateway{}
	gw.fail.Store(100)
	rules := domain.DefaultRules()

	for i := 0; i < rules.MaxSubmitAttempts; i++ {
		svc := service.NewOrderService(env.db, env.cache, gw, rules, "NGN", logger.Discard())
		_, err := svc.Submit(ctx, reviewCheckout(t, ref), notebookCart(nil), domain.SelectAll())
		if !errors.Is(err, domain.ErrExternalService) {
			t.Fatalf("attempt %d: expected ErrExternalService, got %v", i+1, err)
		}
	}

	// a fresh service and checkout stand in for a page reload
	svc := service.NewOrderService(env.db, env.cache, gw, rules, "NGN", logger.Discard())
	_, err := svc.Submit(ctx, reviewCheckout(t, ref), notebookCart(nil), domain.SelectAll())
	if !errors.Is(err, domain.ErrRetryLimitReached) {
		t.Fatalf("expected ErrRetryLimitReached, got %v", err)
	}
	if int(gw.calls.Load()) != rules.MaxSubmitAttempts {
		t.Errorf("expected %d gateway calls, got %d", rules.MaxSubmitAttempts, gw.calls.Load())
	}

	var orders int
	env.mysql.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE reference = ?`, ref).Scan(&orders)
	if orders != 1 {
		t.Errorf("expected 1 order for the reference, got %d", orders)
	}
}

func TestIntegration_ConcurrentSubmitCreatesOneOrder(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	ref := "it-" + uuid.NewString()
	t.Cleanup(func() {
		env.mysql.ExecContext(context.Background(), `DELETE oi FROM order_items oi JOIN orders o ON o.id = oi.order_id WHERE o.reference = ?`, ref)
		env.mysql.ExecContext(context.Background(), `DELETE FROM orders WHERE reference = ?`, ref)
		env.redis.Del(context.Background(), "checkout:attempts:"+ref, "checkout:lock:"+ref)
	})

	gw := &flakyGateway{}
	svc := service.NewOrderService(env.db, env.cache, gw, domain.DefaultRules(), "NGN", logger.Discard())

	var (
		wg         sync.WaitGroup
		successes  atomic.Int32
		duplicates atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, reviewCheckout(t, ref), notebookCart(nil), domain.SelectAll())
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrDuplicateRequest):
				duplicates.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() == 0 {
		t.Fatal("expected at least one successful submission")
	}

	var orders int
	env.mysql.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE reference = ?`, ref).Scan(&orders)
	if orders != 1 {
		t.Errorf("expected exactly 1 order, got %d", orders)
	}

	order, err := svc.HandlePaymentReturn(ctx, ref, "success")
	if err != nil {
		t.Fatalf("payment return failed: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected paid, got %s", order.PaymentStatus)
	}
}
