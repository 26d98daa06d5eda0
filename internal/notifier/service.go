package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/mercadito/marketplace/internal/kafka"
	"github.com/mercadito/marketplace/internal/orders"
	"github.com/mercadito/marketplace/internal/redisx"
)

// Service consumes order lifecycle events and keeps the redis status cache
// warm so reads never hit the database for hot orders. The API invalidates on
// write; this fills back in off the request path.
type Service struct {
	Redis *redis.Client
	Log   *zap.Logger
	Name  string // dedup namespace
}

func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("bad envelope, skipping", zap.Error(err))
		return nil // poison message, do not redeliver forever
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.Name, env.EventID)
	seen, err := redisx.Exists(ctx, s.Redis, dkey)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	orderID, status, relevant, err := statusFor(env)
	if err != nil {
		return err
	}
	if !relevant {
		return nil
	}

	skey := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": status})
	if err := s.Redis.Set(ctx, skey, body, redisx.TTLStatusCache).Err(); err != nil {
		return err
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	s.Log.Debug("status cache refreshed",
		zap.Int64("order_id", orderID), zap.String("status", string(status)))
	return nil
}

// statusFor maps an event onto the cache entry it implies. relevant is false
// for event types the notifier does not track.
func statusFor(env orders.Envelope) (orderID int64, status orders.Status, relevant bool, err error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return 0, "", false, err
		}
		return p.OrderID, orders.StatusAwaitingPayment, true, nil
	case orders.EventOrderPaid, orders.EventOrderCancelled, orders.EventOrderReturned, orders.EventOrderStatusPatched:
		p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
		if err != nil {
			return 0, "", false, err
		}
		return p.OrderID, p.To, true, nil
	}
	return 0, "", false, nil
}
