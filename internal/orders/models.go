package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order money fields are fixed at creation; the lifecycle never reprices.
type Order struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	BusinessID int64           `json:"business_id"`
	Status     Status          `json:"status"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	Quantity   int             `json:"quantity"`
	IsDeleted  bool            `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Line is a (product, quantity) commitment belonging to one order. Immutable
// once the order is placed.
type Line struct {
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// ListFilter narrows ListOrders. Zero values mean "no filter"; the HTTP layer
// fills UserID/BusinessID from the actor's role so callers only ever see their
// own orders.
type ListFilter struct {
	ID         int64
	Status     Status
	UserID     int64
	BusinessID int64
}
