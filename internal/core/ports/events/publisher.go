package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DebtEventType names a state change that downstream consumers can react to.
type DebtEventType string

const (
	CreditReserved     DebtEventType = "CREDIT_RESERVED"
	PaymentRecorded    DebtEventType = "PAYMENT_RECORDED"
	TransactionPosted  DebtEventType = "TRANSACTION_POSTED"
	CreditLimitChanged DebtEventType = "CREDIT_LIMIT_CHANGED"
	DebtReconciled     DebtEventType = "DEBT_RECONCILED"
	BlockStatusChanged DebtEventType = "BLOCK_STATUS_CHANGED"
)

// DebtEvent is published after the unit of work that produced it has committed.
type DebtEvent struct {
	Type          DebtEventType   `json:"type"`
	CustomerID    string          `json:"customerID"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	TransactionID string          `json:"transactionID,omitempty"`
	OrderID       string          `json:"orderID,omitempty"`
	ActorID       string          `json:"actorID"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Publisher delivers debt events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event DebtEvent) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DebtEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }

var _ Publisher = NopPublisher{}
