package port

import (
	"context"

	"github.com/nursace/storefront/internal/core/domain"
)

// Publisher pushes the order-completed message to the durable queue.
type Publisher interface {
	PublishOrderPaid(ctx context.Context, receipt domain.Receipt) error
}

// Mailer sends the formatted receipt email to the customer.
type Mailer interface {
	SendReceipt(ctx context.Context, receipt domain.Receipt) error
}
