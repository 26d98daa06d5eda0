package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mercadito/marketplace/internal/auth"
	"github.com/mercadito/marketplace/internal/inventory"
)

// memDB emulates the storage layer: a transaction stages its writes and takes
// a lock on first row access, exactly like the row locks the real repos rely
// on. Commit applies the staged state; rollback discards it.
type memDB struct {
	mu     sync.Mutex
	orders map[int64]*Order
	lines  map[int64][]Line
	stock  map[int64]int
	names  map[int64]string
}

func newMemDB() *memDB {
	return &memDB{
		orders: map[int64]*Order{},
		lines:  map[int64][]Line{},
		stock:  map[int64]int{},
		names:  map[int64]string{},
	}
}

func (d *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{
		db:           d,
		stagedStatus: map[int64]Status{},
		stagedStock:  map[int64]int{},
	}, nil
}

type memTx struct {
	pgx.Tx // unused methods panic, which is fine here

	db           *memDB
	locked       bool
	committed    bool
	stagedStatus map[int64]Status
	stagedStock  map[int64]int
}

func (t *memTx) acquire() {
	if !t.locked {
		t.db.mu.Lock()
		t.locked = true
	}
}

func (t *memTx) release() {
	if t.locked {
		t.locked = false
		t.db.mu.Unlock()
	}
}

func (t *memTx) Commit(ctx context.Context) error {
	for id, s := range t.stagedStatus {
		t.db.orders[id].Status = s
	}
	for id, s := range t.stagedStock {
		t.db.stock[id] = s
	}
	t.committed = true
	t.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.release()
	return nil
}

func (t *memTx) status(id int64) (Status, bool) {
	if s, ok := t.stagedStatus[id]; ok {
		return s, true
	}
	o, ok := t.db.orders[id]
	if !ok {
		return "", false
	}
	return o.Status, true
}

func (t *memTx) stockOf(id int64) (int, bool) {
	if s, ok := t.stagedStock[id]; ok {
		return s, true
	}
	s, ok := t.db.stock[id]
	return s, ok
}

type memStore struct{}

func (memStore) GetForUpdate(ctx context.Context, tx pgx.Tx, orderID int64, owner OwnerFilter) (*Order, error) {
	mt := tx.(*memTx)
	mt.acquire()
	o, ok := mt.db.orders[orderID]
	if !ok || o.IsDeleted ||
		(owner.UserID != 0 && o.UserID != owner.UserID) ||
		(owner.BusinessID != 0 && o.BusinessID != owner.BusinessID) {
		return nil, ErrOrderNotFound
	}
	cp := *o
	if s, ok := mt.stagedStatus[orderID]; ok {
		cp.Status = s
	}
	return &cp, nil
}

func (memStore) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID int64, from, to Status) error {
	mt := tx.(*memTx)
	cur, ok := mt.status(orderID)
	if !ok || cur != from {
		return ErrInvalidState
	}
	mt.stagedStatus[orderID] = to
	return nil
}

func (memStore) ForceStatus(ctx context.Context, tx pgx.Tx, orderID int64, to Status) error {
	mt := tx.(*memTx)
	if _, ok := mt.status(orderID); !ok {
		return ErrOrderNotFound
	}
	mt.stagedStatus[orderID] = to
	return nil
}

type memLines struct{}

func (memLines) LinesOf(ctx context.Context, tx pgx.Tx, orderID int64) ([]Line, error) {
	return tx.(*memTx).db.lines[orderID], nil
}

type memLedger struct{}

func (memLedger) AdjustStock(ctx context.Context, tx pgx.Tx, productID int64, delta int) (int, error) {
	mt := tx.(*memTx)
	mt.acquire()
	cur, ok := mt.stockOf(productID)
	if !ok {
		return 0, inventory.ErrProductNotFound
	}
	next := cur + delta
	if next < 0 {
		return 0, &inventory.InsufficientStockError{
			ProductID: productID,
			Name:      mt.db.names[productID],
			Requested: -delta,
			Available: cur,
		}
	}
	mt.stagedStock[productID] = next
	return next, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Envelope
}

func (s *recordingSink) Publish(_ context.Context, ev Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

func newTestEngine(db *memDB) (*Engine, *recordingSink) {
	sink := &recordingSink{}
	return NewEngine(db, memStore{}, memLines{}, memLedger{}, sink, zap.NewNop(), "test"), sink
}

const (
	ownerUser     = int64(10)
	ownerBusiness = int64(20)
)

func seedOrder(db *memDB, id int64, status Status, lines ...Line) {
	db.orders[id] = &Order{ID: id, UserID: ownerUser, BusinessID: ownerBusiness, Status: status}
	db.lines[id] = lines
}

func seedProduct(db *memDB, id int64, name string, stock int) {
	db.stock[id] = stock
	db.names[id] = name
}

func TestPayDecrementsStockAndFlipsStatus(t *testing.T) {
	db := newMemDB()
	seedProduct(db, 1, "coffee", 5)
	seedOrder(db, 1, StatusAwaitingPayment, Line{OrderID: 1, ProductID: 1, Quantity: 2})
	e, sink := newTestEngine(db)

	o, err := e.Pay(context.Background(), 1, ownerUser)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, StatusPaid, db.orders[1].Status)
	assert.Equal(t, 3, db.stock[1])
	assert.Equal(t, []string{EventOrderPaid}, sink.types())
}

func TestPayRollsBackWholeBatchOnInsufficientStock(t *testing.T) {
	db := newMemDB()
	seedProduct(db, 1, "coffee", 10)
	seedProduct(db, 2, "beans", 1)
	seedOrder(db, 1, StatusAwaitingPayment,
		Line{OrderID: 1, ProductID: 1, Quantity: 4},
		Line{OrderID: 1, ProductID: 2, Quantity: 3},
	)
	e, sink := newTestEngine(db)

	_, err := e.Pay(context.Background(), 1, ownerUser)

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "beans", insufficient.Name)
	assert.Equal(t, 3, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)

	// first line's decrement must not have stuck
	assert.Equal(t, 10, db.stock[1])
	assert.Equal(t, 1, db.stock[2])
	assert.Equal(t, StatusAwaitingPayment, db.orders[1].Status)
	assert.Empty(t, sink.types())
}

func TestPayRejectsWrongStatusWithoutTouchingStock(t *testing.T) {
	db := newMemDB()
	seedProduct(db, 1, "coffee", 5)
	seedOrder(db, 1, StatusPaid, Line{OrderID: 1, ProductID: 1, Quantity: 2})
	e, sink := newTestEngine(db)

	_, err := e.Pay(context.Background(), 1, ownerUser)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 5, db.stock[1])
	assert.Empty(t, sink.types())
}

func TestPayByNonOwnerLooksLikeMissingOrder(t *testing.T) {
	db := newMemDB()
	seedProduct(db, 1, "coffee", 5)
	seedOrder(db, 1, StatusAwaitingPayment, Line{OrderID: 1, ProductID: 1, Quantity: 2})
	e, _ := newTestEngine(db)

	_, err := e.Pay(context.Background(), 1, ownerUser+1)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 5, db.stock[1])
}

func TestZeroQuantityLineIsANoop(t *testing.T) {
	db := newMemDB()
	seedProduct(db, 1, "coffee", 5)
	seedOrder(db, 1, StatusAwaitingPayment, Line{OrderID: 1, ProductID: 1, Quantity: 0})
	e, _ := newTestEngine(db)

	o, err := e.Pay(context.Background(), 1, ownerUser)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, 5, db.stock[1])
}

func TestCancelRestocksForUserAndBusiness(t *testing.T) {
	for _, actor := range []auth.Identity{
		{UserID: ownerUser, Role: auth.RoleCustomer},
		{UserID: 99, BusinessID: ownerBusiness, Role: auth.RoleBusiness},
	} {
		db := newMemDB()
		seedProduct(db, 1, "coffee", 5)
		seedOrder(db, 1, StatusAwaitingPayment, Line{OrderID: 1, ProductID: 1, Quantity: 2})
		e, _ := newTestEngine(db)

		o, err := e.Cancel(context.Background(), 1, actor)
		require.NoError(t, err, "actor %+v", actor)
		assert.Equal(t, StatusCancelled, o.Status)
		assert.Equal(t, 7, db.stock[1])
	}
}

func TestReturnOnlyLegalFromPaid(t *testing.T) {
	db := newMemDB()
	seedProduct(db, 1, "coffee", 3)
	seedOrder(db, 1, StatusAwaitingPayment, Line{OrderID: 1, ProductID: 1, Quantity: 2})
	e, _ := newTestEngine(db)

	_, err := e.Return(context.Background(), 1, ownerBusiness)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 3, db.stock[1])
}

func TestPayReturnPayRoundTrip(t *testing.T) {
	db := newMemDB()
	seedProduct(db, 1, "coffee", 5)
	seedOrder(db, 1, StatusAwaitingPayment, Line{OrderID: 1, ProductID: 1, Quantity: 2})
	e, _ := newTestEngine(db)
	ctx := context.Background()

	_, err := e.Pay(ctx, 1, ownerUser)
	require.NoError(t, err)
	assert.Equal(t, 3, db.stock[1])

	_, err = e.Return(ctx, 1, ownerBusiness)
	require.NoError(t, err)
	assert.Equal(t, 5, db.stock[1])
	assert.Equal(t, StatusAwaitingPayment, db.orders[1].Status)

	o, err := e.Pay(ctx, 1, ownerUser)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	// nets out to a single deduction
	assert.Equal(t, 3, db.stock[1])
}

func TestScenarioPayReturnThenStarvedPay(t *testing.T) {
	db := newMemDB()
	seedProduct(db, 1, "product-a", 5)
	seedOrder(db, 1, StatusAwaitingPayment, Line{OrderID: 1, ProductID: 1, Quantity: 2})
	e, _ := newTestEngine(db)
	ctx := context.Background()

	o, err := e.Pay(ctx, 1, ownerUser)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, 3, db.stock[1])

	o, err = e.Return(ctx, 1, ownerBusiness)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingPayment, o.Status)
	assert.Equal(t, 5, db.stock[1])

	db.stock[1] = 1
	_, err = e.Pay(ctx, 1, ownerUser)
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, StatusAwaitingPayment, db.orders[1].Status)
	assert.Equal(t, 1, db.stock[1])
}

func TestConcurrentPaysExactlyOneWins(t *testing.T) {
	db := newMemDB()
	seedProduct(db, 1, "coffee", 3)
	seedOrder(db, 1, StatusAwaitingPayment, Line{OrderID: 1, ProductID: 1, Quantity: 3})
	e, _ := newTestEngine(db)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Pay(context.Background(), 1, ownerUser)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		losses++
		var insufficient *inventory.InsufficientStockError
		if !errors.Is(err, ErrInvalidState) && !errors.As(err, &insufficient) {
			t.Fatalf("loser got unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, StatusPaid, db.orders[1].Status)
	assert.Equal(t, 0, db.stock[1])
}

func TestPatchStatusOwnership(t *testing.T) {
	tests := []struct {
		name    string
		actor   auth.Identity
		wantErr error
	}{
		{"owning customer", auth.Identity{UserID: ownerUser, Role: auth.RoleCustomer}, nil},
		{"other customer", auth.Identity{UserID: 77, Role: auth.RoleCustomer}, ErrForbidden},
		{"owning business", auth.Identity{UserID: 77, BusinessID: ownerBusiness, Role: auth.RoleBusiness}, nil},
		{"other business", auth.Identity{UserID: 77, BusinessID: 99, Role: auth.RoleBusiness}, ErrForbidden},
		{"admin", auth.Identity{UserID: 77, Role: auth.RoleAdmin}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			seedOrder(db, 1, StatusAwaitingPayment)
			e, _ := newTestEngine(db)

			o, err := e.PatchStatus(context.Background(), 1, tt.actor, StatusReturned)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, StatusAwaitingPayment, db.orders[1].Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusReturned, o.Status)
			assert.Equal(t, StatusReturned, db.orders[1].Status)
		})
	}
}

func TestPatchStatusRejectsUnknownStatus(t *testing.T) {
	db := newMemDB()
	seedOrder(db, 1, StatusAwaitingPayment)
	e, _ := newTestEngine(db)

	_, err := e.PatchStatus(context.Background(), 1,
		auth.Identity{UserID: ownerUser, Role: auth.RoleCustomer}, Status("SHIPPED"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

type failingBeginner struct{ err error }

func (f failingBeginner) Begin(ctx context.Context) (pgx.Tx, error) { return nil, f.err }

func TestStorageFailureSurfacesAsTransient(t *testing.T) {
	e := NewEngine(failingBeginner{err: errors.New("connection refused")},
		memStore{}, memLines{}, memLedger{}, &recordingSink{}, zap.NewNop(), "test")

	_, err := e.Pay(context.Background(), 1, ownerUser)
	var transientErr *TransientError
	require.ErrorAs(t, err, &transientErr)
	assert.Equal(t, "begin", transientErr.Op)
}
