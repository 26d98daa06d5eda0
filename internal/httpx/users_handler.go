package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mercadito/marketplace/internal/auth"
	"github.com/mercadito/marketplace/internal/users"
)

type UsersHandler struct {
	Repo      *users.Repo
	Tokens    *auth.Tokens
	Blacklist *auth.Blacklist
	Log       *zap.Logger
}

func (h *UsersHandler) Register(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
		r.Post("/auth/logout", h.logout)
		r.Post("/activate/{id}", h.activate)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.With(auth.RequireRole(auth.RoleBusiness, auth.RoleCustomer, auth.RoleAdmin)).Get("/{id}", h.get)
			r.With(auth.RequireRole(auth.RoleBusiness, auth.RoleAdmin)).Get("/", h.search)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.delete)
		})
	})
}

type registerReq struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	Role       auth.Role `json:"role"`
	BusinessID int64     `json:"business_id"`
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" {
		fail(w, http.StatusBadRequest, "name and email are required")
		return
	}
	if msg := passwordPolicy(req.Password); msg != "" {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleCustomer
	}
	if !req.Role.Valid() || req.Role == auth.RoleAdmin {
		fail(w, http.StatusBadRequest, "invalid role")
		return
	}
	if req.Role == auth.RoleBusiness && req.BusinessID == 0 {
		fail(w, http.StatusBadRequest, "business accounts need a business_id")
		return
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	u := &users.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		BusinessID:   req.BusinessID,
	}
	if err := h.Repo.Create(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusCreated, u)
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, err := h.Repo.GetByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil || !users.CheckPassword(u.PasswordHash, req.Password) {
		// same answer for unknown email and wrong password
		writeError(w, users.ErrBadPassword)
		return
	}
	if !u.IsVerified {
		fail(w, http.StatusForbidden, "account not activated")
		return
	}

	token, exp, err := h.Tokens.Issue(u.Identity(), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
		"user":       u,
	})
}

// logout revokes the presented token until it would have expired anyway.
func (h *UsersHandler) logout(w http.ResponseWriter, r *http.Request) {
	raw := bearerFromHeader(r)
	if raw == "" {
		fail(w, http.StatusUnauthorized, "access token missing or invalid")
		return
	}
	_, exp, err := h.Tokens.Verify(raw)
	if err != nil {
		fail(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if err := h.Blacklist.Revoke(r.Context(), raw, exp); err != nil {
		h.Log.Error("revoke token", zap.Error(err))
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"logged_out": true})
}

func (h *UsersHandler) activate(w http.ResponseWriter, r *http.Request) {
	id := pathInt64(r, "id")
	if id == 0 {
		fail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.Repo.Activate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"activated": true})
}

func (h *UsersHandler) get(w http.ResponseWriter, r *http.Request) {
	id := pathInt64(r, "id")
	u, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, u)
}

func (h *UsersHandler) search(w http.ResponseWriter, r *http.Request) {
	out, err := h.Repo.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, out)
}

func (h *UsersHandler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	id := pathInt64(r, "id")
	if actor.Role != auth.RoleAdmin && actor.UserID != id {
		writeError(w, users.ErrNotFound) // do not leak other accounts
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		fail(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := h.Repo.UpdateName(r.Context(), id, req.Name); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *UsersHandler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	id := pathInt64(r, "id")
	if actor.Role != auth.RoleAdmin && actor.UserID != id {
		writeError(w, users.ErrNotFound)
		return
	}
	if err := h.Repo.SoftDelete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"deleted": true})
}

// passwordPolicy mirrors the registration rules: at least 8 characters with
// upper case, lower case and a digit.
func passwordPolicy(pw string) string {
	if len(pw) < 8 {
		return "password must be at least 8 characters"
	}
	var upper, lower, digit bool
	for _, c := range pw {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return "password needs upper case, lower case and a digit"
	}
	return ""
}

func bearerFromHeader(r *http.Request) string {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
