package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mercadito/marketplace/internal/auth"
	"github.com/mercadito/marketplace/internal/inventory"
)

// Beginner opens transactions; *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, orderID int64, owner OwnerFilter) (*Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, orderID int64, from, to Status) error
	ForceStatus(ctx context.Context, tx pgx.Tx, orderID int64, to Status) error
}

type LineSource interface {
	LinesOf(ctx context.Context, tx pgx.Tx, orderID int64) ([]Line, error)
}

type StockLedger interface {
	AdjustStock(ctx context.Context, tx pgx.Tx, productID int64, delta int) (int, error)
}

// Engine runs the order state machine. Each operation is one transaction:
// load the order under a row lock, verify the source state, adjust stock per
// line, flip the status, commit. Any failure rolls the whole thing back and
// leaves orders and products exactly as before the call.
type Engine struct {
	db      Beginner
	store   Store
	lines   LineSource
	ledger  StockLedger
	events  EventSink
	log     *zap.Logger
	service string
}

func NewEngine(db Beginner, store Store, lines LineSource, ledger StockLedger, events EventSink, log *zap.Logger, service string) *Engine {
	return &Engine{db: db, store: store, lines: lines, ledger: ledger, events: events, log: log, service: service}
}

// Pay moves AWAITING_PAYMENT -> PAID and consumes stock for every line. The
// actor must be the order's owning user; the ownership filter makes a foreign
// order indistinguishable from a missing one.
func (e *Engine) Pay(ctx context.Context, orderID, userID int64) (*Order, error) {
	return e.apply(ctx, ActionPay, orderID, OwnerFilter{UserID: userID}, EventOrderPaid)
}

// Cancel moves AWAITING_PAYMENT -> CANCELLED and returns stock to the pool.
// Either the owning user or the owning business may cancel.
func (e *Engine) Cancel(ctx context.Context, orderID int64, actor auth.Identity) (*Order, error) {
	owner := OwnerFilter{UserID: actor.UserID}
	if actor.Role == auth.RoleBusiness {
		owner = OwnerFilter{BusinessID: actor.BusinessID}
	}
	return e.apply(ctx, ActionCancel, orderID, owner, EventOrderCancelled)
}

// Return moves PAID -> AWAITING_PAYMENT and restores stock. Only the owning
// business may accept a return.
func (e *Engine) Return(ctx context.Context, orderID, businessID int64) (*Order, error) {
	return e.apply(ctx, ActionReturn, orderID, OwnerFilter{BusinessID: businessID}, EventOrderReturned)
}

func (e *Engine) apply(ctx context.Context, action Action, orderID int64, owner OwnerFilter, eventType string) (*Order, error) {
	tr := transitions[action]

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, transient("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := e.store.GetForUpdate(ctx, tx, orderID, owner)
	if err != nil {
		return nil, classify("load order", err)
	}
	if o.Status != tr.From {
		return nil, invalidState(action, o.Status)
	}

	lines, err := e.lines.LinesOf(ctx, tx, orderID)
	if err != nil {
		return nil, classify("load lines", err)
	}
	for _, l := range lines {
		if l.Quantity == 0 {
			continue
		}
		delta := -l.Quantity
		if tr.Restock {
			delta = l.Quantity
		}
		if _, err := e.ledger.AdjustStock(ctx, tx, l.ProductID, delta); err != nil {
			return nil, classify("adjust stock", err)
		}
	}

	if err := e.store.UpdateStatus(ctx, tx, o.ID, tr.From, tr.To); err != nil {
		return nil, classify("update status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, transient("commit", err)
	}

	o.Status = tr.To
	e.log.Info("order transition",
		zap.Int64("order_id", o.ID),
		zap.String("action", string(action)),
		zap.String("status", string(o.Status)))
	e.events.Publish(ctx, NewEnvelope(eventType, e.service, o.ID, StatusChangedPayload{
		OrderID: o.ID, From: tr.From, To: tr.To,
	}))
	return o, nil
}

// PatchStatus sets an arbitrary status with no inventory effect. Ownership is
// still enforced per role; only admins may touch orders they do not own.
func (e *Engine) PatchStatus(ctx context.Context, orderID int64, actor auth.Identity, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidState, to)
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, transient("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := e.store.GetForUpdate(ctx, tx, orderID, OwnerFilter{})
	if err != nil {
		return nil, classify("load order", err)
	}
	switch actor.Role {
	case auth.RoleAdmin:
	case auth.RoleBusiness:
		if o.BusinessID != actor.BusinessID {
			return nil, ErrForbidden
		}
	default:
		if o.UserID != actor.UserID {
			return nil, ErrForbidden
		}
	}

	from := o.Status
	if err := e.store.ForceStatus(ctx, tx, o.ID, to); err != nil {
		return nil, classify("force status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, transient("commit", err)
	}

	o.Status = to
	e.log.Info("order status patched",
		zap.Int64("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	e.events.Publish(ctx, NewEnvelope(EventOrderStatusPatched, e.service, o.ID, StatusChangedPayload{
		OrderID: o.ID, From: from, To: to,
	}))
	return o, nil
}

// classify keeps business-rule failures typed and wraps everything else as
// transient storage trouble.
func classify(op string, err error) error {
	if errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, inventory.ErrProductNotFound) {
		return err
	}
	var insufficient *inventory.InsufficientStockError
	if errors.As(err, &insufficient) {
		return err
	}
	return transient(op, err)
}
