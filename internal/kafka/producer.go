package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	w       *kafka.Writer
	log     *zap.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
	mu      sync.RWMutex
	closed  bool
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start launches the delivery goroutine. The loop runs until Close, not until
// some context cancels: requests still draining through a graceful shutdown
// keep publishing, and everything queued is flushed before WaitClosed returns.
func (p *Producer) Start() {
	go func() {
		for m := range p.inbox {
			p.write(m)
		}
		_ = p.w.Close()
		close(p.closeCh)
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka write", zap.String("topic", p.w.Topic), zap.Error(err))
	}
}

// Publish enqueues a message for delivery. After Close the message is dropped
// with a warning; a caller racing the shutdown loses the event, not the
// request.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("publish after close, dropping", zap.String("topic", p.w.Topic))
		return
	}
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close stops intake; the delivery loop flushes what is queued and exits.
// Safe to call more than once.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

func (p *Producer) WaitClosed() { <-p.closeCh }
