package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailTaken  = errors.New("email already registered")
	ErrBadPassword = errors.New("wrong email or password")
)

type Repo struct{ DB *pgxpool.Pool }

const userColumns = `id, name, email, password_hash, role, COALESCE(business_id, 0), is_verified, is_deleted, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.BusinessID,
		&u.IsVerified, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) Create(ctx context.Context, u *User) error {
	var exists bool
	if err := r.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email=$1 AND is_deleted=FALSE)`, u.Email).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrEmailTaken
	}
	var businessID any
	if u.BusinessID != 0 {
		businessID = u.BusinessID
	}
	return r.DB.QueryRow(ctx, `
		INSERT INTO users(name, email, password_hash, role, business_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash, u.Role, businessID,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.DB.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=$1 AND is_deleted=FALSE`, email))
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.DB.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1 AND is_deleted=FALSE`, id))
}

// Search matches name or email, case-insensitively.
func (r *Repo) Search(ctx context.Context, q string) ([]User, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE is_deleted=FALSE AND (name ILIKE '%'||$1||'%' OR email ILIKE '%'||$1||'%')
		 ORDER BY name`, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateName(ctx context.Context, id int64, name string) error {
	return r.expectOne(r.DB.Exec(ctx,
		`UPDATE users SET name=$2, updated_at=now() WHERE id=$1 AND is_deleted=FALSE`, id, name))
}

func (r *Repo) Activate(ctx context.Context, id int64) error {
	return r.expectOne(r.DB.Exec(ctx,
		`UPDATE users SET is_verified=TRUE, updated_at=now() WHERE id=$1 AND is_deleted=FALSE`, id))
}

func (r *Repo) SoftDelete(ctx context.Context, id int64) error {
	return r.expectOne(r.DB.Exec(ctx,
		`UPDATE users SET is_deleted=TRUE, updated_at=now() WHERE id=$1 AND is_deleted=FALSE`, id))
}

func (r *Repo) expectOne(ct pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
