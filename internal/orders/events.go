package orders

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/mercadito/marketplace/internal/kafka"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderPaid          = "OrderPaid"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderReturned      = "OrderReturned"
	EventOrderStatusPatched = "OrderStatusPatched"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    int64  `json:"order_id"`
	UserID     int64  `json:"user_id"`
	BusinessID int64  `json:"business_id"`
	Total      string `json:"total"`
	Quantity   int    `json:"quantity"`
}

type StatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

func NewEnvelope(eventType, producer string, orderID int64, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       kafkax.MustMarshal(payload),
	}
}

// EventSink receives lifecycle events after the transaction committed.
type EventSink interface {
	Publish(ctx context.Context, ev Envelope)
}

// KafkaSink publishes envelopes keyed by order id so every event of one order
// lands on the same partition, in order.
type KafkaSink struct {
	Producer *kafkax.Producer
}

func (s *KafkaSink) Publish(_ context.Context, ev Envelope) {
	s.Producer.Publish([]byte(ev.CorrelationID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(ev.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
	)
}
