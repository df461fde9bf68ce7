package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentPattern is a heuristic classification of a customer's payment reliability.
type PaymentPattern string

const (
	PaymentPatternGood    PaymentPattern = "GOOD"
	PaymentPatternAverage PaymentPattern = "AVERAGE"
	PaymentPatternPoor    PaymentPattern = "POOR"
)

var (
	ErrNegativeCreditLimit = errors.New("credit limit cannot be negative")
	ErrActorRequired       = errors.New("actor is required")
)

// CreditAccount is the per-customer credit record. CurrentDebt is a cached
// running balance; the ledger sum is the source of truth.
type CreditAccount struct {
	CustomerID      string          `json:"customerID"`
	CreditLimit     decimal.Decimal `json:"creditLimit"`
	CurrentDebt     decimal.Decimal `json:"currentDebt"`
	OverdueAmount   decimal.Decimal `json:"overdueAmount"`
	PaymentPattern  PaymentPattern  `json:"paymentPattern"`
	IsBlocked       bool            `json:"isBlocked"`
	BlockReason     string          `json:"blockReason"`
	LastPaymentDate *time.Time      `json:"lastPaymentDate,omitempty"`
	AuditFields
}

// CreditLimitChange is one entry of a credit account's limit audit history.
type CreditLimitChange struct {
	ChangeID      string          `json:"changeID"`
	CustomerID    string          `json:"customerID"`
	PreviousLimit decimal.Decimal `json:"previousLimit"`
	NewLimit      decimal.Decimal `json:"newLimit"`
	ChangedBy     string          `json:"changedBy"`
	Reason        string          `json:"reason"`
	ChangedAt     time.Time       `json:"changedAt"`
}

// NewCreditAccount returns the record used when an account is created lazily.
func NewCreditAccount(customerID string, defaultLimit decimal.Decimal, now time.Time) CreditAccount {
	return CreditAccount{
		CustomerID:     customerID,
		CreditLimit:    defaultLimit,
		CurrentDebt:    decimal.Zero,
		OverdueAmount:  decimal.Zero,
		PaymentPattern: PaymentPatternGood,
		AuditFields: AuditFields{
			CreatedAt:     now,
			CreatedBy:     SystemActor,
			LastUpdatedAt: now,
			LastUpdatedBy: SystemActor,
			Version:       1,
		},
	}
}

// AvailableCredit is the remaining headroom, never negative.
func (a CreditAccount) AvailableCredit() decimal.Decimal {
	available := a.CreditLimit.Sub(a.CurrentDebt)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// AddDebt moves the cached balance by amount. Negative amounts reduce debt.
func (a *CreditAccount) AddDebt(amount decimal.Decimal, actor string, now time.Time) {
	a.CurrentDebt = a.CurrentDebt.Add(amount)
	a.touch(actor, now)
}

// RecordPayment reduces the cached balance and stamps the last payment date.
func (a *CreditAccount) RecordPayment(amount decimal.Decimal, actor string, now time.Time) {
	a.CurrentDebt = a.CurrentDebt.Sub(amount.Abs())
	paidAt := now
	a.LastPaymentDate = &paidAt
	a.touch(actor, now)
}

// ChangeCreditLimit applies newLimit and returns the audit record describing the change.
func (a *CreditAccount) ChangeCreditLimit(newLimit decimal.Decimal, changedBy, reason string, now time.Time) (CreditLimitChange, error) {
	if newLimit.IsNegative() {
		return CreditLimitChange{}, fmt.Errorf("%w: %s", ErrNegativeCreditLimit, newLimit.String())
	}
	if changedBy == "" {
		return CreditLimitChange{}, ErrActorRequired
	}

	change := CreditLimitChange{
		ChangeID:      uuid.NewString(),
		CustomerID:    a.CustomerID,
		PreviousLimit: a.CreditLimit,
		NewLimit:      newLimit,
		ChangedBy:     changedBy,
		Reason:        reason,
		ChangedAt:     now,
	}
	a.CreditLimit = newLimit
	a.touch(changedBy, now)
	return change, nil
}

// Block prevents further credit extension until Unblock is called.
func (a *CreditAccount) Block(reason, actor string, now time.Time) {
	a.IsBlocked = true
	a.BlockReason = reason
	a.touch(actor, now)
}

// Unblock clears a manual block.
func (a *CreditAccount) Unblock(actor string, now time.Time) {
	a.IsBlocked = false
	a.BlockReason = ""
	a.touch(actor, now)
}

func (a *CreditAccount) touch(actor string, now time.Time) {
	a.LastUpdatedAt = now
	a.LastUpdatedBy = actor
	a.Version++
}
