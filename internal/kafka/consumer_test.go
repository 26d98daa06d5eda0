package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestConsumerStopsCleanlyOnContextCancel(t *testing.T) {
	c := NewConsumer([]string{"127.0.0.1:1"}, "notifier", "order.events", 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Start(ctx, func(context.Context, kafka.Message) error { return nil })
	assert.NoError(t, err)
}
