package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mercadito/marketplace/internal/catalog"
	"github.com/mercadito/marketplace/internal/inventory"
	"github.com/mercadito/marketplace/internal/orders"
	"github.com/mercadito/marketplace/internal/users"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, map[string]any{"success": true, "data": data})
}

func fail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "message": msg})
}

// writeError maps domain failures onto HTTP statuses: missing rows are 404,
// business-rule rejections 400, ownership violations 403, bad credentials 401,
// anything transient 500.
func writeError(w http.ResponseWriter, err error) {
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, users.ErrNotFound),
		errors.Is(err, catalog.ErrBusinessNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, inventory.ErrProductNotFound):
		fail(w, http.StatusNotFound, err.Error())
	case errors.As(err, &insufficient),
		errors.Is(err, orders.ErrInvalidState),
		errors.Is(err, users.ErrEmailTaken),
		errors.Is(err, catalog.ErrNameTaken):
		fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrForbidden):
		fail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, users.ErrBadPassword):
		fail(w, http.StatusUnauthorized, err.Error())
	default:
		fail(w, http.StatusInternalServerError, "internal error")
	}
}
