package port

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"
)

// PaymentInit describes the outbound init_payment request.
type PaymentInit struct {
	OrderID     int64
	Amount      decimal.Decimal
	Description string
	UserPhone   string
	UserEmail   string
}

// PaymentGateway builds signed redirect links and validates inbound signed
// callbacks from the external payment processor.
type PaymentGateway interface {
	// InitPayment registers the payment with the gateway and returns the
	// customer redirect URL.
	InitPayment(ctx context.Context, req PaymentInit) (string, error)

	// VerifyCallback checks the pg_sig of an inbound callback against the
	// shared secret.
	VerifyCallback(scriptName string, form url.Values) bool
}
