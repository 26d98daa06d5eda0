package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OwnerFilter scopes an order lookup to its owning user and/or business. Zero
// fields are not filtered on. Loading with the actor's id in the filter is
// what enforces ownership: a foreign order simply is not found.
type OwnerFilter struct {
	UserID     int64
	BusinessID int64
}

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, business_id, status, subtotal::text, tax::text, total::text, quantity, is_deleted, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                   Order
		subtotal, tax, totl string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.BusinessID, &o.Status, &subtotal, &tax, &totl,
		&o.Quantity, &o.IsDeleted, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("parse subtotal: %w", err)
	}
	if o.Tax, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("parse tax: %w", err)
	}
	if o.Total, err = decimal.NewFromString(totl); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	return &o, nil
}

// GetForUpdate loads an order inside tx and locks its row until commit or
// rollback. Concurrent lifecycle calls on the same order serialize here.
func (r *Repo) GetForUpdate(ctx context.Context, tx pgx.Tx, orderID int64, owner OwnerFilter) (*Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1 AND is_deleted=FALSE`
	args := []any{orderID}
	if owner.UserID != 0 {
		args = append(args, owner.UserID)
		q += fmt.Sprintf(" AND user_id=$%d", len(args))
	}
	if owner.BusinessID != 0 {
		args = append(args, owner.BusinessID)
		q += fmt.Sprintf(" AND business_id=$%d", len(args))
	}
	q += " FOR UPDATE"

	o, err := scanOrder(tx.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// UpdateStatus flips the status only if the row still holds the expected one.
// Zero rows affected means somebody got there first.
func (r *Repo) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID int64, from, to Status) error {
	ct, err := tx.Exec(ctx,
		`UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2 AND is_deleted=FALSE`,
		orderID, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrInvalidState
	}
	return nil
}

// ForceStatus is the unconditional write behind the admin status patch.
func (r *Repo) ForceStatus(ctx context.Context, tx pgx.Tx, orderID int64, to Status) error {
	ct, err := tx.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 AND is_deleted=FALSE`,
		orderID, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}

// Create inserts the order and its lines as one transaction. The order starts
// in AWAITING_PAYMENT; pricing comes pre-computed from the caller and is never
// touched again.
func (r *Repo) Create(ctx context.Context, o *Order, lines []Line) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, business_id, status, subtotal, tax, total, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		o.UserID, o.BusinessID, StatusAwaitingPayment,
		o.Subtotal.String(), o.Tax.String(), o.Total.String(), o.Quantity,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}
	o.Status = StatusAwaitingPayment

	for _, l := range lines {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_lines(order_id, product_id, quantity) VALUES ($1, $2, $3)`,
			o.ID, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, orderID int64) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 AND is_deleted=FALSE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE is_deleted=FALSE`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(" AND %s=$%d", clause, len(args))
	}
	if f.ID != 0 {
		add("id", f.ID)
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.UserID != 0 {
		add("user_id", f.UserID)
	}
	if f.BusinessID != 0 {
		add("business_id", f.BusinessID)
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// SoftDelete flips is_deleted; the row stays for bookkeeping and the status is
// left alone.
func (r *Repo) SoftDelete(ctx context.Context, orderID, businessID int64) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE orders SET is_deleted=TRUE, updated_at=now() WHERE id=$1 AND business_id=$2 AND is_deleted=FALSE`,
		orderID, businessID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}
