package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTransactionType classifies a debt ledger row.
type LedgerTransactionType string

const (
	LedgerOrder      LedgerTransactionType = "ORDER"   // increases debt
	LedgerPayment    LedgerTransactionType = "PAYMENT" // decreases debt
	LedgerAdjustment LedgerTransactionType = "ADJUSTMENT"
	LedgerRefund     LedgerTransactionType = "REFUND"
	LedgerWriteOff   LedgerTransactionType = "WRITE_OFF"
)

// IsValid reports whether t is a known transaction type.
func (t LedgerTransactionType) IsValid() bool {
	switch t {
	case LedgerOrder, LedgerPayment, LedgerAdjustment, LedgerRefund, LedgerWriteOff:
		return true
	}
	return false
}

// LedgerTransaction is an immutable, signed entry in a customer's debt ledger.
// Positive amounts increase debt; payments are negative.
type LedgerTransaction struct {
	TransactionID   string                `json:"transactionID"`
	CustomerID      string                `json:"customerID"`
	TransactionType LedgerTransactionType `json:"transactionType"`
	Amount          decimal.Decimal       `json:"amount"`
	BalanceBefore   decimal.Decimal       `json:"balanceBefore"`
	BalanceAfter    decimal.Decimal       `json:"balanceAfter"`
	OrderID         *string               `json:"orderID,omitempty"`
	DueDate         *time.Time            `json:"dueDate,omitempty"`
	PaidDate        *time.Time            `json:"paidDate,omitempty"`
	Notes           string                `json:"notes"`
	CreatedBy       string                `json:"createdBy"`
	CreatedAt       time.Time             `json:"createdAt"`
}

// IsOverdue reports whether the entry is past its due date and still unpaid at now.
func (t LedgerTransaction) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.PaidDate == nil
}

// SumAmounts adds up the signed amounts of txns.
func SumAmounts(txns []LedgerTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		total = total.Add(t.Amount)
	}
	return total
}
