package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nursace/storefront/internal/core/domain"
	"github.com/nursace/storefront/internal/port"
)

// CallbackReply is the soft-error body of a gateway callback: transport-level
// success always, with the outcome carried in the payload.
type CallbackReply struct {
	OK          bool
	Description string
}

func replyOK() CallbackReply {
	return CallbackReply{OK: true}
}

func replyErr(desc string) CallbackReply {
	return CallbackReply{Description: desc}
}

// PaymentResult is the parsed result callback. The signature has already been
// verified by the transport layer before this reaches the service.
type PaymentResult struct {
	OrderID    int64
	PaymentID  string
	Amount     string
	ResultCode string
}

// OrderService drives the order status state machine and feeds the
// notification workers.
type OrderService struct {
	store        port.Store
	cache        port.Cache
	receiptQueue chan domain.Receipt
}

func NewOrderService(store port.Store, cache port.Cache, queueSize int) *OrderService {
	return &OrderService{
		store:        store,
		cache:        cache,
		receiptQueue: make(chan domain.Receipt, queueSize),
	}
}

// ReceiptQueue exposes the channel the notification workers drain.
func (s *OrderService) ReceiptQueue() <-chan domain.Receipt {
	return s.receiptQueue
}

func (s *OrderService) Close() {
	close(s.receiptQueue)
}

// CheckPayment is the gateway's pre-authorization probe. It never mutates
// state: it only confirms the order exists and the amount matches its frozen
// total to the cent.
func (s *OrderService) CheckPayment(ctx context.Context, orderID int64, amount string) CallbackReply {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return replyErr("Invalid amount")
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return replyErr("Order not found")
	}
	if err != nil {
		log.Printf("payment check: order %d: %v", orderID, err)
		return replyErr("Internal error")
	}

	if !order.TotalPrice.Equal(amt) {
		log.Printf("payment check: amount mismatch for order %d: stored %s, reported %s",
			orderID, order.TotalPrice.StringFixed(2), amt.StringFixed(2))
		return replyErr("Amount mismatch")
	}
	return replyOK()
}

// HandlePaymentResult applies the gateway's verdict. Success transitions
// new -> paid and schedules the notification exactly once; anything else
// transitions new -> cancelled and restores the reserved stock. Duplicate
// deliveries lose the status compare-and-set and are absorbed as no-ops,
// which also lets the gateway retry after a transient store failure: nothing
// short-circuits a redelivery before the transition has actually landed.
func (s *OrderService) HandlePaymentResult(ctx context.Context, res PaymentResult) CallbackReply {
	if res.PaymentID == "" {
		return replyErr("Missing payment_id")
	}
	amt, err := decimal.NewFromString(res.Amount)
	if err != nil {
		return replyErr("Invalid amount")
	}

	order, err := s.store.GetOrder(ctx, res.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return replyErr("Order not found")
	}
	if err != nil {
		log.Printf("payment result: order %d: %v", res.OrderID, err)
		return replyErr("Internal error")
	}

	if !order.TotalPrice.Equal(amt) {
		log.Printf("payment result: amount mismatch for order %d: stored %s, reported %s",
			res.OrderID, order.TotalPrice.StringFixed(2), amt.StringFixed(2))
		return replyErr("Amount mismatch")
	}

	if res.ResultCode == "1" {
		won, err := s.store.MarkPaid(ctx, res.OrderID)
		if err != nil {
			log.Printf("payment result: mark paid order %d: %v", res.OrderID, err)
			return replyErr("Internal error")
		}
		if won {
			s.scheduleReceipt(ctx, order)
		}
		return replyOK()
	}

	if _, transitioned, err := s.store.CancelOrder(ctx, res.OrderID); err != nil {
		log.Printf("payment result: cancel order %d: %v", res.OrderID, err)
		return replyErr("Internal error")
	} else if !transitioned {
		log.Printf("payment result: failure report for order %d ignored, status already settled", res.OrderID)
	}
	return replyOK()
}

// scheduleReceipt enqueues the order-paid notification without blocking the
// callback response. The once-only marker absorbs the rare duplicate that
// wins a second CAS window; a full queue drops the job with a log line, as
// the notification is best-effort by contract.
func (s *OrderService) scheduleReceipt(ctx context.Context, order *domain.Order) {
	notifyKey := fmt.Sprintf("notify:order:%d", order.ID)
	if fresh, err := s.cache.MarkOnce(ctx, notifyKey); err != nil {
		log.Printf("notify marker for order %d: %v", order.ID, err)
	} else if !fresh {
		return
	}

	select {
	case s.receiptQueue <- domain.ReceiptFromOrder(order):
	default:
		log.Printf("receipt queue full, dropping notification for order %d", order.ID)
	}
}

// Cancel is the manual cancellation path. Cancelling an already-cancelled
// order is a no-op; cancelling a paid order fails.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) error {
	status, transitioned, err := s.store.CancelOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !transitioned && status == domain.OrderStatusPaid {
		return domain.ErrAlreadyPaid
	}
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, owner domain.Owner, sort domain.OrderSort) ([]domain.Order, error) {
	if !owner.Valid() {
		return nil, domain.ErrMissingOwner
	}
	return s.store.ListOrders(ctx, owner, sort)
}

func (s *OrderService) LastOrderInfo(ctx context.Context, userID uuid.UUID) (*domain.OrderInfo, error) {
	return s.store.LastOrderInfo(ctx, userID)
}
