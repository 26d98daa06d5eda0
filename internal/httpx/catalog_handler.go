package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mercadito/marketplace/internal/auth"
	"github.com/mercadito/marketplace/internal/catalog"
)

type CatalogHandler struct {
	Repo *catalog.Repo
}

func (h *CatalogHandler) Register(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/businesses", func(r chi.Router) {
		r.Get("/", h.listBusinesses)
		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.With(auth.RequireRole(auth.RoleBusiness, auth.RoleCustomer)).Post("/", h.createBusiness)
			r.With(auth.RequireRole(auth.RoleBusiness, auth.RoleAdmin)).Get("/search", h.searchBusinesses)
			r.With(auth.RequireRole(auth.RoleBusiness, auth.RoleAdmin)).Get("/{id}", h.getBusiness)
			r.With(auth.RequireRole(auth.RoleBusiness)).Put("/{id}", h.updateBusiness)
			r.With(auth.RequireRole(auth.RoleBusiness)).Delete("/{id}", h.deleteBusiness)
		})
	})
	r.Route("/products", func(r chi.Router) {
		r.Use(authn)
		r.With(auth.RequireRole(auth.RoleBusiness)).Post("/", h.createProduct)
		r.Get("/", h.listProducts)
		r.Get("/search", h.searchProducts)
		r.Get("/{id}", h.getProduct)
		r.With(auth.RequireRole(auth.RoleBusiness)).Put("/{id}", h.updateProduct)
		r.With(auth.RequireRole(auth.RoleBusiness)).Delete("/{id}", h.deleteProduct)
	})
}

// --- businesses ---

func (h *CatalogHandler) createBusiness(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Address == "" {
		fail(w, http.StatusBadRequest, "name and address are required")
		return
	}
	b := &catalog.Business{Name: req.Name, Address: req.Address}
	if err := h.Repo.CreateBusiness(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusCreated, b)
}

func (h *CatalogHandler) listBusinesses(w http.ResponseWriter, r *http.Request) {
	out, err := h.Repo.ListBusinesses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, out)
}

func (h *CatalogHandler) searchBusinesses(w http.ResponseWriter, r *http.Request) {
	out, err := h.Repo.SearchBusinesses(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, out)
}

func (h *CatalogHandler) getBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.Repo.GetBusiness(r.Context(), pathInt64(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, b)
}

func (h *CatalogHandler) updateBusiness(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	id := pathInt64(r, "id")
	if actor.BusinessID != id {
		writeError(w, catalog.ErrBusinessNotFound)
		return
	}
	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Address == "" {
		fail(w, http.StatusBadRequest, "name and address are required")
		return
	}
	if err := h.Repo.UpdateBusiness(r.Context(), id, req.Name, req.Address); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *CatalogHandler) deleteBusiness(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	id := pathInt64(r, "id")
	if actor.BusinessID != id {
		writeError(w, catalog.ErrBusinessNotFound)
		return
	}
	if err := h.Repo.SoftDeleteBusiness(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"deleted": true})
}

// --- products ---

type productReq struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		fail(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Price.IsNegative() || req.Stock < 0 {
		fail(w, http.StatusBadRequest, "price and stock must not be negative")
		return
	}
	p := &catalog.Product{
		BusinessID:  actor.BusinessID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.Repo.CreateProduct(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusCreated, p)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	businessID := queryInt64(r, "business_id")
	if actor.Role == auth.RoleBusiness {
		businessID = actor.BusinessID
	}
	if businessID == 0 {
		fail(w, http.StatusBadRequest, "business_id is required")
		return
	}
	out, err := h.Repo.ListProducts(r.Context(), businessID)
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, out)
}

func (h *CatalogHandler) searchProducts(w http.ResponseWriter, r *http.Request) {
	out, err := h.Repo.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, out)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.GetProduct(r.Context(), pathInt64(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		fail(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Price.IsNegative() {
		fail(w, http.StatusBadRequest, "price must not be negative")
		return
	}
	err := h.Repo.UpdateProduct(r.Context(), pathInt64(r, "id"), actor.BusinessID,
		req.Name, req.Description, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *CatalogHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	if err := h.Repo.SoftDeleteProduct(r.Context(), pathInt64(r, "id"), actor.BusinessID); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"deleted": true})
}
