package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nursace/storefront/internal/core/domain"
	"github.com/nursace/storefront/internal/port"
)

// fakeStore keeps a single order and a tiny cart in memory, mimicking the
// status CAS and restore-pass behavior of the real adapter.
type fakeStore struct {
	mu sync.Mutex

	checkoutResult *port.CheckoutResult
	checkoutErr    error

	order       *domain.Order
	restoreRuns int

	// Remaining transient failures before the transition succeeds.
	markPaidFailures int
	cancelFailures   int

	product *domain.ProductStock
	cart    map[int64]*domain.CartLine
	infos   []domain.OrderInfo
}

func newFakeStore() *fakeStore {
	return &fakeStore{cart: make(map[int64]*domain.CartLine)}
}

func (f *fakeStore) CheckoutCart(ctx context.Context, draft port.CheckoutDraft) (*port.CheckoutResult, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.checkoutResult, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil || f.order.ID != orderID {
		return nil, domain.ErrOrderNotFound
	}
	cp := *f.order
	return &cp, nil
}

func (f *fakeStore) ListOrders(ctx context.Context, owner domain.Owner, sort domain.OrderSort) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil {
		return nil, nil
	}
	return []domain.Order{*f.order}, nil
}

func (f *fakeStore) LastOrderInfo(ctx context.Context, userID uuid.UUID) (*domain.OrderInfo, error) {
	if len(f.infos) == 0 {
		return nil, domain.ErrOrderInfoNotFound
	}
	return &f.infos[len(f.infos)-1], nil
}

func (f *fakeStore) MarkPaid(ctx context.Context, orderID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markPaidFailures > 0 {
		f.markPaidFailures--
		return false, errors.New("driver: bad connection")
	}
	if f.order == nil || f.order.ID != orderID {
		return false, domain.ErrOrderNotFound
	}
	if f.order.Status != domain.OrderStatusNew {
		return false, nil
	}
	f.order.Status = domain.OrderStatusPaid
	return true, nil
}

func (f *fakeStore) CancelOrder(ctx context.Context, orderID int64) (domain.OrderStatus, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelFailures > 0 {
		f.cancelFailures--
		return "", false, errors.New("driver: bad connection")
	}
	if f.order == nil || f.order.ID != orderID {
		return "", false, domain.ErrOrderNotFound
	}
	if f.order.Status != domain.OrderStatusNew {
		return f.order.Status, false, nil
	}
	f.order.Status = domain.OrderStatusCancelled
	f.restoreRuns++
	return domain.OrderStatusCancelled, true, nil
}

func (f *fakeStore) UpsertCartLine(ctx context.Context, line domain.CartLine) (*domain.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.cart[line.ProductID]; ok {
		existing.Quantity += line.Quantity
		cp := *existing
		return &cp, nil
	}
	line.ID = int64(len(f.cart) + 1)
	f.cart[line.ProductID] = &line
	cp := line
	return &cp, nil
}

func (f *fakeStore) CartLines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lines []domain.CartLine
	for _, l := range f.cart {
		lines = append(lines, *l)
	}
	return lines, nil
}

func (f *fakeStore) CountCartLines(ctx context.Context, owner domain.Owner) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cart), nil
}

func (f *fakeStore) SetCartQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.cart[productID]
	if !ok {
		return domain.ErrCartLineNotFound
	}
	l.Quantity = quantity
	return nil
}

func (f *fakeStore) RemoveCartLine(ctx context.Context, owner domain.Owner, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cart[productID]; !ok {
		return domain.ErrCartLineNotFound
	}
	delete(f.cart, productID)
	return nil
}

func (f *fakeStore) ProductStock(ctx context.Context, productID int64) (*domain.ProductStock, error) {
	if f.product == nil || f.product.GoodID != productID {
		return nil, nil
	}
	cp := *f.product
	return &cp, nil
}

type fakeCache struct {
	mu      sync.Mutex
	markers map[string]bool
	err     error
}

func newFakeCache() *fakeCache {
	return &fakeCache{markers: make(map[string]bool)}
}

func (f *fakeCache) MarkOnce(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.markers[key] {
		return false, nil
	}
	f.markers[key] = true
	return true, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	url       string
	err       error
	initCalls int
	lastInit  port.PaymentInit
}

func (f *fakeGateway) InitPayment(ctx context.Context, req port.PaymentInit) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	f.lastInit = req
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeGateway) VerifyCallback(scriptName string, form url.Values) bool {
	return true
}

func testOrder(id int64, status domain.OrderStatus, total string) *domain.Order {
	t, err := decimal.NewFromString(total)
	if err != nil {
		panic(fmt.Sprintf("bad total %q: %v", total, err))
	}
	return &domain.Order{
		ID:         id,
		TotalPrice: t,
		Status:     status,
		Info: &domain.OrderInfo{
			FirstName:    "Aibek",
			LastName:     "Toktogulov",
			Email:        "aibek@example.com",
			Phone:        "+996700000000",
			AddressLine1: "Chuy 1",
			City:         "Bishkek",
			Region:       "Chuy",
			PostalCode:   "720000",
		},
		Items: []domain.OrderItem{
			{ProductID: 7, Quantity: 2, Price: decimal.RequireFromString("750.00"), ProductName: "Leather boots"},
		},
	}
}
