package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nursace/storefront/internal/core/domain"
)

// CheckoutDraft is everything the store needs to turn a cart into an order
// within a single transaction.
type CheckoutDraft struct {
	Owner    domain.Owner
	Info     domain.OrderInfo
	SaveInfo bool
}

// CheckoutResult reports the committed order.
type CheckoutResult struct {
	OrderID int64
	Total   decimal.Decimal
}

// Store is the relational persistence boundary. All multi-row operations run
// under one transaction; stock mutations never commit independently of the
// order rows they belong to.
type Store interface {
	// CheckoutCart reserves stock for every cart line of the owner, persists
	// OrderInfo, Order (status "new") and OrderItems, clears the cart and
	// commits. Any reservation failure aborts the whole transaction.
	CheckoutCart(ctx context.Context, draft CheckoutDraft) (*CheckoutResult, error)

	// GetOrder loads an order with its items, info and status name.
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)

	// ListOrders returns the owner's orders with the requested sorting.
	ListOrders(ctx context.Context, owner domain.Owner, sort domain.OrderSort) ([]domain.Order, error)

	// LastOrderInfo returns the most recent saved shipping snapshot of a user.
	LastOrderInfo(ctx context.Context, userID uuid.UUID) (*domain.OrderInfo, error)

	// MarkPaid transitions new -> paid with a compare-and-set on the current
	// status. Returns false when the order exists but was not in "new".
	MarkPaid(ctx context.Context, orderID int64) (bool, error)

	// CancelOrder transitions new -> cancelled and, in the same transaction,
	// restores the reserved stock of every order item. When the transition
	// loses, transitioned is false and status reports what won.
	CancelOrder(ctx context.Context, orderID int64) (status domain.OrderStatus, transitioned bool, err error)

	// UpsertCartLine inserts a cart line or merges the quantity into an
	// existing (owner, product) line.
	UpsertCartLine(ctx context.Context, line domain.CartLine) (*domain.CartLine, error)

	// CartLines returns the owner's cart joined with product stock data.
	CartLines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error)

	// CountCartLines returns the number of lines in the owner's cart.
	CountCartLines(ctx context.Context, owner domain.Owner) (int, error)

	// SetCartQuantity replaces the quantity of one cart line.
	SetCartQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) error

	// RemoveCartLine deletes one cart line.
	RemoveCartLine(ctx context.Context, owner domain.Owner, productID int64) error

	// ProductStock returns the stock view of a product, nil when unknown.
	ProductStock(ctx context.Context, productID int64) (*domain.ProductStock, error)
}
