package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/core/ports/events"
	skafka "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter records messages written.
type fakeWriter struct {
	msgs   []skafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewDebtEventProducerWithWriter(fw)

	event := events.DebtEvent{
		Type:         events.PaymentRecorded,
		CustomerID:   "c1",
		Amount:       decimal.NewFromInt(-50000),
		BalanceAfter: decimal.NewFromInt(650000),
		ActorID:      "admin",
		OccurredAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "c1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "PAYMENT_RECORDED", string(msg.Headers[0].Value))

	var decoded events.DebtEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, events.PaymentRecorded, decoded.Type)
	assert.True(t, decoded.Amount.Equal(decimal.NewFromInt(-50000)))

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestPublish_WriterError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	p := NewDebtEventProducerWithWriter(fw)

	err := p.Publish(context.Background(), events.DebtEvent{Type: events.CreditReserved, CustomerID: "c1"})
	assert.ErrorContains(t, err, "broker down")
}

// stalledWriter blocks until the write context ends, like a writer facing an unreachable broker.
type stalledWriter struct{}

func (stalledWriter) WriteMessages(ctx context.Context, _ ...skafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledWriter) Close() error { return nil }

func TestPublish_BoundedByTimeout(t *testing.T) {
	p := NewDebtEventProducerWithWriter(stalledWriter{}, WithPublishTimeout(20*time.Millisecond))

	start := time.Now()
	err := p.Publish(context.Background(), events.DebtEvent{Type: events.CreditReserved, CustomerID: "c1"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPublish_IgnoresCallerCancellation(t *testing.T) {
	fw := &fakeWriter{}
	p := NewDebtEventProducerWithWriter(fw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Publish(ctx, events.DebtEvent{Type: events.PaymentRecorded, CustomerID: "c1"}))
	assert.Len(t, fw.msgs, 1)
}
