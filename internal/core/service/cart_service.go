package service

import (
	"context"

	"github.com/nursace/storefront/internal/core/domain"
	"github.com/nursace/storefront/internal/port"
)

// CartService manages the mutable cart lines that feed checkout.
type CartService struct {
	store port.Store
}

func NewCartService(store port.Store) *CartService {
	return &CartService{store: store}
}

// Add merges quantity into the owner's line for the product, creating it if
// absent. Hidden or out-of-stock products are rejected up front.
func (s *CartService) Add(ctx context.Context, owner domain.Owner, productID int64, quantity int) (*domain.CartLine, error) {
	if !owner.Valid() {
		return nil, domain.ErrMissingOwner
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.store.ProductStock(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil || product.WarehouseQuantity == 0 || !product.Display {
		return nil, domain.ErrProductUnavailable
	}

	return s.store.UpsertCartLine(ctx, domain.CartLine{
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		ProductID: productID,
		Quantity:  quantity,
	})
}

func (s *CartService) Lines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	if !owner.Valid() {
		return nil, domain.ErrMissingOwner
	}
	return s.store.CartLines(ctx, owner)
}

func (s *CartService) Count(ctx context.Context, owner domain.Owner) (int, error) {
	if !owner.Valid() {
		return 0, domain.ErrMissingOwner
	}
	return s.store.CountCartLines(ctx, owner)
}

func (s *CartService) SetQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	if !owner.Valid() {
		return domain.ErrMissingOwner
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return s.store.SetCartQuantity(ctx, owner, productID, quantity)
}

func (s *CartService) Remove(ctx context.Context, owner domain.Owner, productID int64) error {
	if !owner.Valid() {
		return domain.ErrMissingOwner
	}
	return s.store.RemoveCartLine(ctx, owner, productID)
}
