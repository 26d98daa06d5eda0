package users

import (
	"time"

	"github.com/mercadito/marketplace/internal/auth"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	BusinessID   int64     `json:"business_id,omitempty"` // zero unless the user runs a business
	IsVerified   bool      `json:"is_verified"`
	IsDeleted    bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, BusinessID: u.BusinessID, Role: u.Role}
}
