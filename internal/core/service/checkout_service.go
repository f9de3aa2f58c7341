package service

import (
	"context"
	"fmt"

	"github.com/nursace/storefront/internal/core/domain"
	"github.com/nursace/storefront/internal/port"
)

type CheckoutRequest struct {
	Owner    domain.Owner
	Info     domain.OrderInfo
	SaveInfo bool
}

type CheckoutResponse struct {
	OrderID    int64
	PaymentURL string
}

// CheckoutService turns a cart into a priced, stock-reserved order and hands
// the customer a payment redirect.
type CheckoutService struct {
	store   port.Store
	gateway port.PaymentGateway
}

func NewCheckoutService(store port.Store, gateway port.PaymentGateway) *CheckoutService {
	return &CheckoutService{store: store, gateway: gateway}
}

// Checkout runs the pipeline: validate owner, reserve stock and persist the
// order in one transaction, then ask the gateway for a redirect URL. The
// order is the durable commit point; a gateway failure after commit surfaces
// as ErrPaymentLink with the order id still set in the response.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	if !req.Owner.Valid() {
		return nil, domain.ErrMissingOwner
	}

	result, err := s.store.CheckoutCart(ctx, port.CheckoutDraft{
		Owner:    req.Owner,
		Info:     req.Info,
		SaveInfo: req.SaveInfo,
	})
	if err != nil {
		return nil, err
	}

	url, err := s.gateway.InitPayment(ctx, port.PaymentInit{
		OrderID:     result.OrderID,
		Amount:      result.Total,
		Description: fmt.Sprintf("Order #%d", result.OrderID),
		UserPhone:   req.Info.Phone,
		UserEmail:   req.Info.Email,
	})
	if err != nil {
		return &CheckoutResponse{OrderID: result.OrderID},
			fmt.Errorf("order %d: %w: %v", result.OrderID, ErrPaymentLink, err)
	}

	return &CheckoutResponse{OrderID: result.OrderID, PaymentURL: url}, nil
}

// PaymentLink regenerates the redirect URL for an order that is still
// awaiting payment.
func (s *CheckoutService) PaymentLink(ctx context.Context, orderID int64) (string, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Status != domain.OrderStatusNew {
		return "", fmt.Errorf("order %d is %s: %w", orderID, order.Status, ErrNotPayable)
	}

	var phone, email string
	if order.Info != nil {
		phone = order.Info.Phone
		email = order.Info.Email
	}
	url, err := s.gateway.InitPayment(ctx, port.PaymentInit{
		OrderID:     order.ID,
		Amount:      order.TotalPrice,
		Description: fmt.Sprintf("Order #%d", order.ID),
		UserPhone:   phone,
		UserEmail:   email,
	})
	if err != nil {
		return "", fmt.Errorf("order %d: %w: %v", orderID, ErrPaymentLink, err)
	}
	return url, nil
}
