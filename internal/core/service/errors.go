package service

import "errors"

var (
	// ErrPaymentLink marks a gateway failure after the order has committed.
	// The order stands; the link can be regenerated.
	ErrPaymentLink = errors.New("payment link generation failed")

	ErrNotPayable      = errors.New("order is not payable")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)
