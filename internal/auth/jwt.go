package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID     int64 `json:"uid"`
	BusinessID int64 `json:"bid,omitempty"`
	Role       Role  `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies the bearer tokens the API hands out on login.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewTokens(secret string, ttl time.Duration, issuer string) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, issuer: issuer}
}

func (t *Tokens) Issue(id Identity, now time.Time) (string, time.Time, error) {
	exp := now.Add(t.ttl)
	claims := Claims{
		UserID:     id.UserID,
		BusinessID: id.BusinessID,
		Role:       id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   fmt.Sprintf("%d", id.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses the token and returns the identity it carries plus the expiry,
// which the blacklist uses to bound revocation TTLs.
func (t *Tokens) Verify(token string) (Identity, time.Time, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, time.Time{}, ErrInvalidToken
	}
	if !claims.Role.Valid() || claims.UserID == 0 {
		return Identity{}, time.Time{}, ErrInvalidToken
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return Identity{UserID: claims.UserID, BusinessID: claims.BusinessID, Role: claims.Role}, exp, nil
}
