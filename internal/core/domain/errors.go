package domain

import "errors"

var (
	ErrMissingOwner       = errors.New("exactly one of user_id or session_id is required")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrProductUnavailable = errors.New("product is not available for order")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrBelowMinimumOrder  = errors.New("quantity is below the minimum for order")
	ErrCartLineNotFound   = errors.New("cart line not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrAlreadyPaid        = errors.New("order is already paid")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrOrderInfoNotFound  = errors.New("no order info found")
)
