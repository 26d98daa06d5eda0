package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrProductNotFound = errors.New("product not found")

// InsufficientStockError carries the offending product so the caller can say
// which line sank the payment.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

// Ledger owns the per-product stock counter. All writes go through AdjustStock
// inside the caller's transaction so a multi-product batch is all-or-nothing.
type Ledger struct{}

func NewLedger() *Ledger { return &Ledger{} }

// AdjustStock applies delta to a product's stock. Negative delta consumes
// (payment), positive restocks (cancel/return). The row is locked for the rest
// of the transaction, so two concurrent consumptions cannot both pass the
// check against a stale value.
func (l *Ledger) AdjustStock(ctx context.Context, tx pgx.Tx, productID int64, delta int) (int, error) {
	var (
		name  string
		stock int
	)
	err := tx.QueryRow(ctx,
		`SELECT name, stock FROM products WHERE id=$1 AND is_deleted=FALSE FOR UPDATE`,
		productID).Scan(&name, &stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}

	next := stock + delta
	if next < 0 {
		return 0, &InsufficientStockError{
			ProductID: productID,
			Name:      name,
			Requested: -delta,
			Available: stock,
		}
	}

	ct, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
		productID, delta)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() != 1 {
		return 0, fmt.Errorf("stock update for product %d affected %d rows", productID, ct.RowsAffected())
	}
	return next, nil
}
