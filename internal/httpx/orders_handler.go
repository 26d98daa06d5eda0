package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mercadito/marketplace/internal/auth"
	"github.com/mercadito/marketplace/internal/orders"
	"github.com/mercadito/marketplace/internal/redisx"
)

// Lifecycle is what the order routes need from the engine; tests swap in a
// fake.
type Lifecycle interface {
	Pay(ctx context.Context, orderID, userID int64) (*orders.Order, error)
	Cancel(ctx context.Context, orderID int64, actor auth.Identity) (*orders.Order, error)
	Return(ctx context.Context, orderID, businessID int64) (*orders.Order, error)
	PatchStatus(ctx context.Context, orderID int64, actor auth.Identity, to orders.Status) (*orders.Order, error)
}

type OrdersHandler struct {
	Repo    *orders.Repo
	Engine  Lifecycle
	Events  orders.EventSink
	Redis   *redis.Client
	Service string
	Log     *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(authn)
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.With(auth.RequireRole(auth.RoleBusiness, auth.RoleCustomer, auth.RoleAdmin)).Get("/{id}", h.get)
		r.Get("/{id}/status", h.getStatus)
		r.With(auth.RequireRole(auth.RoleCustomer)).Put("/pay", h.pay)
		r.With(auth.RequireRole(auth.RoleBusiness, auth.RoleCustomer)).Put("/cancel", h.cancel)
		r.With(auth.RequireRole(auth.RoleBusiness)).Put("/return", h.returnOrder)
		r.Patch("/{id}/status", h.patchStatus)
		r.With(auth.RequireRole(auth.RoleBusiness)).Delete("/{id}", h.delete)
	})
}

type createOrderReq struct {
	BusinessID int64           `json:"business_id"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	Lines      []lineReq       `json:"lines"`
}

type lineReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

var roundingTolerance = decimal.NewFromFloat(0.01)

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.BusinessID == 0 || len(req.Lines) == 0 {
		fail(w, http.StatusBadRequest, "business_id and lines are required")
		return
	}
	if req.Subtotal.IsNegative() || req.Tax.IsNegative() || req.Total.IsNegative() {
		fail(w, http.StatusBadRequest, "amounts must not be negative")
		return
	}
	if req.Subtotal.Add(req.Tax).Sub(req.Total).Abs().GreaterThan(roundingTolerance) {
		fail(w, http.StatusBadRequest, "total must equal subtotal plus tax")
		return
	}

	quantity := 0
	lines := make([]orders.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.ProductID == 0 || l.Quantity <= 0 {
			fail(w, http.StatusBadRequest, "every line needs a product_id and a positive quantity")
			return
		}
		quantity += l.Quantity
		lines = append(lines, orders.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	o := &orders.Order{
		UserID:     id.UserID,
		BusinessID: req.BusinessID,
		Subtotal:   req.Subtotal,
		Tax:        req.Tax,
		Total:      req.Total,
		Quantity:   quantity,
	}
	if err := h.Repo.Create(r.Context(), o, lines); err != nil {
		h.Log.Error("create order", zap.Error(err))
		writeError(w, err)
		return
	}

	h.Events.Publish(r.Context(), orders.NewEnvelope(orders.EventOrderCreated, h.Service, o.ID, orders.OrderCreatedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		BusinessID: o.BusinessID,
		Total:      o.Total.String(),
		Quantity:   o.Quantity,
	}))
	ok(w, http.StatusCreated, o)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	f := orders.ListFilter{
		ID:     queryInt64(r, "id"),
		Status: orders.Status(r.URL.Query().Get("status")),
	}
	// Non-admins only ever see their own orders.
	switch id.Role {
	case auth.RoleAdmin:
		f.UserID = queryInt64(r, "user_id")
		f.BusinessID = queryInt64(r, "business_id")
	case auth.RoleBusiness:
		f.BusinessID = id.BusinessID
	default:
		f.UserID = id.UserID
	}

	out, err := h.Repo.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(out) == 0 {
		fail(w, http.StatusNotFound, "no orders found")
		return
	}
	ok(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	orderID := pathInt64(r, "id")
	if orderID == 0 {
		fail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.Repo.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, o)
}

// getStatus serves from the redis cache when it can; the notifier keeps it
// fresh from lifecycle events.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := pathInt64(r, "id")
	if orderID == 0 {
		fail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	o, err := h.Repo.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	body, _ := json.Marshal(map[string]any{"status": o.Status})
	_ = h.Redis.Set(r.Context(), key, body, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type lifecycleReq struct {
	OrderID int64 `json:"order_id"`
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(ctx context.Context, orderID int64, id auth.Identity) (*orders.Order, error) {
		return h.Engine.Pay(ctx, orderID, id.UserID)
	})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(ctx context.Context, orderID int64, id auth.Identity) (*orders.Order, error) {
		return h.Engine.Cancel(ctx, orderID, id)
	})
}

func (h *OrdersHandler) returnOrder(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(ctx context.Context, orderID int64, id auth.Identity) (*orders.Order, error) {
		return h.Engine.Return(ctx, orderID, id.BusinessID)
	})
}

func (h *OrdersHandler) lifecycle(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, orderID int64, id auth.Identity) (*orders.Order, error)) {

	id, _ := auth.FromContext(r.Context())

	var req lifecycleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == 0 {
		fail(w, http.StatusBadRequest, "order_id is required")
		return
	}

	o, err := op(r.Context(), req.OrderID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidateStatus(r.Context(), o.ID)
	ok(w, http.StatusOK, o)
}

func (h *OrdersHandler) patchStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	orderID := pathInt64(r, "id")
	if orderID == 0 {
		fail(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Status orders.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		fail(w, http.StatusBadRequest, "status is required")
		return
	}

	o, err := h.Engine.PatchStatus(r.Context(), orderID, id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidateStatus(r.Context(), o.ID)
	ok(w, http.StatusOK, o)
}

func (h *OrdersHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	orderID := pathInt64(r, "id")
	if orderID == 0 {
		fail(w, http.StatusBadRequest, "invalid order id")
		return
	}
	if err := h.Repo.SoftDelete(r.Context(), orderID, id.BusinessID); err != nil {
		writeError(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *OrdersHandler) invalidateStatus(ctx context.Context, orderID int64) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if err := h.Redis.Del(ctx, key).Err(); err != nil {
		h.Log.Warn("status cache invalidate", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

func pathInt64(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return n
}

func queryInt64(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return n
}
