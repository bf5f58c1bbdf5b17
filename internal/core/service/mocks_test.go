package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	stock          domain.StockLevels
	idempotencySet map[string]string
	attempts       map[string]int
	cachedWrites   int
	readErr        error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		stock:          domain.StockLevels{},
		idempotencySet: make(map[string]string),
		attempts:       make(map[string]int),
	}
}

func (m *mockCacheRepo) CachedStock(ctx context.Context, ids []int64) (domain.StockLevels, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := domain.StockLevels{}
	for _, id := range ids {
		if s, ok := m.stock[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (m *mockCacheRepo) CacheStock(ctx context.Context, snaps []domain.StockSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cachedWrites++
	for _, s := range snaps {
		m.stock[s.ProductID] = s
	}
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.idempotencySet[key]; ok {
		return false, nil
	}
	m.idempotencySet[key] = token
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotencySet[key] == token {
		delete(m.idempotencySet, key)
	}
	return nil
}

func (m *mockCacheRepo) RecordFailedAttempt(ctx context.Context, ref string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[ref]++
	return m.attempts[ref], nil
}

func (m *mockCacheRepo) FailedAttempts(ctx context.Context, ref string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[ref], nil
}

// Mock DatabaseRepository
type mockDBRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	created   []domain.OrderSubmission
	inventory map[int64]domain.Inventory
	stockHits int
	createErr error
}

func newMockDBRepo() *mockDBRepo {
	return &mockDBRepo{
		orders:    make(map[string]domain.Order),
		inventory: make(map[int64]domain.Inventory),
	}
}

func (m *mockDBRepo) CreateOrder(ctx context.Context, sub domain.OrderSubmission) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return domain.Order{}, m.createErr
	}
	o := domain.Order{
		ID:            uuid.NewString(),
		OrderNumber:   sub.OrderNumber,
		Reference:     sub.Reference,
		CustomerName:  sub.Customer.Name,
		CustomerEmail: sub.Customer.Email,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   sub.TotalAmount,
		Currency:      sub.Currency,
	}
	m.orders[sub.Reference] = o
	m.created = append(m.created, sub)
	return o, nil
}

func (m *mockDBRepo) FindOrderByReference(ctx context.Context, ref string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (m *mockDBRepo) MarkPaidIfPending(ctx context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok || o.PaymentStatus != domain.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusPaid
	m.orders[ref] = o
	return true, nil
}

func (m *mockDBRepo) GetStock(ctx context.Context, ids []int64) (map[int64]domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stockHits++
	out := make(map[int64]domain.Inventory)
	for _, id := range ids {
		if inv, ok := m.inventory[id]; ok {
			out[id] = inv
		}
	}
	return out, nil
}

// Mock PaymentGateway
type mockGateway struct {
	mu       sync.Mutex
	calls    []port.PaymentLinkRequest
	failures int // fail this many calls before succeeding
	onCall   func()
}

func (m *mockGateway) CreatePaymentLink(ctx context.Context, req port.PaymentLinkRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.onCall != nil {
		m.onCall()
	}
	if m.failures > 0 {
		m.failures--
		return "", errors.New("gateway unavailable")
	}
	return "https://pay.example.com/" + req.Reference, nil
}

// Mock InventoryLookup
type mockLookup struct {
	mu     sync.Mutex
	calls  [][]int64
	levels domain.StockLevels
	err    error
}

func (m *mockLookup) Lookup(ctx context.Context, ids []int64) (domain.StockLevels, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ids)
	if m.err != nil {
		return nil, m.err
	}
	out := domain.StockLevels{}
	for _, id := range ids {
		if s, ok := m.levels[id]; ok {
			out[id] = s
		} else {
			out[id] = domain.StockSnapshot{ProductID: id}
		}
	}
	return out, nil
}

func (m *mockLookup) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
