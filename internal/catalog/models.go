package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Business struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsDeleted bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product.Stock is the single inventory-on-hand counter. Catalog updates never
// touch it; only the inventory ledger mutates stock, under transaction control.
type Product struct {
	ID          int64           `json:"id"`
	BusinessID  int64           `json:"business_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsDeleted   bool            `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
