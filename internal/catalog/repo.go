package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrNameTaken        = errors.New("business name already taken")
)

type Repo struct{ DB *pgxpool.Pool }

// --- businesses ---

func (r *Repo) CreateBusiness(ctx context.Context, b *Business) error {
	var exists bool
	if err := r.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM businesses WHERE name=$1 AND is_deleted=FALSE)`, b.Name).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrNameTaken
	}
	return r.DB.QueryRow(ctx, `
		INSERT INTO businesses(name, address) VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		b.Name, b.Address,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *Repo) GetBusiness(ctx context.Context, id int64) (*Business, error) {
	var b Business
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, address, is_deleted, created_at, updated_at
		FROM businesses WHERE id=$1 AND is_deleted=FALSE`, id,
	).Scan(&b.ID, &b.Name, &b.Address, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBusinessNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) ListBusinesses(ctx context.Context) ([]Business, error) {
	return r.queryBusinesses(ctx, `
		SELECT id, name, address, is_deleted, created_at, updated_at
		FROM businesses WHERE is_deleted=FALSE ORDER BY name`)
}

func (r *Repo) SearchBusinesses(ctx context.Context, q string) ([]Business, error) {
	return r.queryBusinesses(ctx, `
		SELECT id, name, address, is_deleted, created_at, updated_at
		FROM businesses WHERE is_deleted=FALSE AND name ILIKE '%'||$1||'%' ORDER BY name`, q)
}

func (r *Repo) queryBusinesses(ctx context.Context, q string, args ...any) ([]Business, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Business
	for rows.Next() {
		var b Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateBusiness(ctx context.Context, id int64, name, address string) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE businesses SET name=$2, address=$3, updated_at=now() WHERE id=$1 AND is_deleted=FALSE`,
		id, name, address)
	return expectOne(ct, err, ErrBusinessNotFound)
}

func (r *Repo) SoftDeleteBusiness(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE businesses SET is_deleted=TRUE, updated_at=now() WHERE id=$1 AND is_deleted=FALSE`,
		id)
	return expectOne(ct, err, ErrBusinessNotFound)
}

// --- products ---

const productColumns = `id, business_id, name, description, price::text, stock, is_deleted, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p     Product
		price string
	)
	err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Description, &price, &p.Stock,
		&p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	return &p, nil
}

func (r *Repo) CreateProduct(ctx context.Context, p *Product) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO products(business_id, name, description, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		p.BusinessID, p.Name, p.Description, p.Price.String(), p.Stock,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *Repo) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1 AND is_deleted=FALSE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

func (r *Repo) ListProducts(ctx context.Context, businessID int64) ([]Product, error) {
	return r.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE business_id=$1 AND is_deleted=FALSE ORDER BY name`,
		businessID)
}

func (r *Repo) SearchProducts(ctx context.Context, q string) ([]Product, error) {
	return r.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE is_deleted=FALSE AND name ILIKE '%'||$1||'%' ORDER BY name`,
		q)
}

func (r *Repo) queryProducts(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateProduct edits catalog fields only. Stock is off limits here; it moves
// exclusively through the inventory ledger.
func (r *Repo) UpdateProduct(ctx context.Context, id, businessID int64, name, description string, price decimal.Decimal) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name=$3, description=$4, price=$5, updated_at=now()
		WHERE id=$1 AND business_id=$2 AND is_deleted=FALSE`,
		id, businessID, name, description, price.String())
	return expectOne(ct, err, ErrProductNotFound)
}

func (r *Repo) SoftDeleteProduct(ctx context.Context, id, businessID int64) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE products SET is_deleted=TRUE, updated_at=now() WHERE id=$1 AND business_id=$2 AND is_deleted=FALSE`,
		id, businessID)
	return expectOne(ct, err, ErrProductNotFound)
}

func expectOne(ct pgconn.CommandTag, err error, notFound error) error {
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return notFound
	}
	return nil
}
