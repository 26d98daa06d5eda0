package orders

type Status string

const (
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusPaid            Status = "PAID"
	StatusReturned        Status = "RETURNED"
	StatusCancelled       Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingPayment, StatusPaid, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

// Action is one of the externally triggered lifecycle transitions.
type Action string

const (
	ActionPay    Action = "pay"
	ActionCancel Action = "cancel"
	ActionReturn Action = "return"
)

type transition struct {
	From Status
	To   Status
	// Restock true means line quantities go back into product stock;
	// false means they are consumed from it.
	Restock bool
}

var transitions = map[Action]transition{
	ActionPay:    {From: StatusAwaitingPayment, To: StatusPaid, Restock: false},
	ActionCancel: {From: StatusAwaitingPayment, To: StatusCancelled, Restock: true},
	ActionReturn: {From: StatusPaid, To: StatusAwaitingPayment, Restock: true},
}

// CanApply reports whether the action is legal from the given status.
func CanApply(a Action, from Status) bool {
	tr, ok := transitions[a]
	return ok && tr.From == from
}
