package orders

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// LineRepo resolves which products and quantities belong to an order. Reads
// run inside the caller's transaction so the snapshot matches the stock rows
// that get mutated right after.
type LineRepo struct{}

func NewLineRepo() *LineRepo { return &LineRepo{} }

// LinesOf returns the order's lines in insertion order. An order with no lines
// yields an empty slice, not an error; a missing order is the caller's concern.
func (lr *LineRepo) LinesOf(ctx context.Context, tx pgx.Tx, orderID int64) ([]Line, error) {
	rows, err := tx.Query(ctx,
		`SELECT order_id, product_id, quantity FROM order_lines WHERE order_id=$1 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
