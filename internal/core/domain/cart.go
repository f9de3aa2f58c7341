package domain

import (
	"time"

	"github.com/google/uuid"
)

// Owner identifies a cart or order by either an authenticated user or an
// anonymous session. Exactly one of the two must be set.
type Owner struct {
	UserID    *uuid.UUID
	SessionID *uuid.UUID
}

func (o Owner) Valid() bool {
	return (o.UserID != nil) != (o.SessionID != nil)
}

// CartLine holds at most one row per (owner, product); adding the same
// product again merges quantities.
type CartLine struct {
	ID        int64
	UserID    *uuid.UUID
	SessionID *uuid.UUID
	ProductID int64
	Quantity  int
	AddedAt   time.Time

	Product *ProductStock
}
