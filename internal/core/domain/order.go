package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

// Order is append-only except for its status reference. TotalPrice is frozen
// at checkout and never recomputed from the catalog.
type Order struct {
	ID         int64
	UserID     *uuid.UUID
	SessionID  *uuid.UUID
	InfoID     int64
	TotalPrice decimal.Decimal
	Status     OrderStatus
	CreatedAt  time.Time

	Info  *OrderInfo
	Items []OrderItem
}

// OrderItem freezes the unit price at the moment the order was created.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal

	ProductName string
}

// OrderInfo is the shipping/contact snapshot captured once at checkout.
// Owner ids are kept only when the customer opted to save the info.
type OrderInfo struct {
	ID           int64
	UserID       *uuid.UUID
	SessionID    *uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	AddressLine1 string
	City         string
	Region       string
	PostalCode   string
	Phone        string
	OrderNote    string
	CreatedAt    time.Time
}

// OrderSort selects the ordering of an order listing. Empty fields are ignored.
type OrderSort struct {
	ByID    string // "asc" | "desc"
	ByPrice string
	ByDate  string
}
