package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/core/ports/events"
	skafka "github.com/segmentio/kafka-go"
)

// Writer defines the subset of segmentio kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// DefaultPublishTimeout bounds how long a committed write waits for the broker.
const DefaultPublishTimeout = 2 * time.Second

// DebtEventProducer publishes debt events keyed by customer id, so events for
// one customer land on the same partition in commit order.
type DebtEventProducer struct {
	writer  Writer
	timeout time.Duration
}

var _ events.Publisher = (*DebtEventProducer)(nil)

// ProducerOption configures a DebtEventProducer.
type ProducerOption func(*DebtEventProducer)

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(timeout time.Duration) ProducerOption {
	return func(p *DebtEventProducer) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func newProducer(w Writer, opts []ProducerOption) *DebtEventProducer {
	p := &DebtEventProducer{writer: w, timeout: DefaultPublishTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDebtEventProducer creates a producer writing to topic on the comma separated brokers.
func NewDebtEventProducer(brokers, topic string, opts ...ProducerOption) *DebtEventProducer {
	addrs := make([]string, 0)
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	w := &skafka.Writer{
		Addr:         skafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		MaxAttempts:  3,
		WriteTimeout: DefaultPublishTimeout,
	}
	return newProducer(w, opts)
}

// NewDebtEventProducerWithWriter allows injecting a test writer.
func NewDebtEventProducerWithWriter(w Writer, opts ...ProducerOption) *DebtEventProducer {
	return newProducer(w, opts)
}

// Publish marshals the event to JSON and writes it with the event type as a header.
// The write is bounded by the publish timeout and outlives cancellation of ctx, since
// the change it describes has already been committed.
func (p *DebtEventProducer) Publish(ctx context.Context, event events.DebtEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal debt event: %w", err)
	}
	msg := skafka.Message{
		Key:   []byte(event.CustomerID),
		Value: b,
		Headers: []skafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("failed to write debt event %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *DebtEventProducer) Close() error {
	return p.writer.Close()
}
