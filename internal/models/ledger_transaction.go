package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTransactionType mirrors the transaction_type CHECK constraint.
type LedgerTransactionType string

// LedgerTransaction is a row of ledger_transactions. Rows are never updated.
type LedgerTransaction struct {
	TransactionID   string                `json:"transactionID"` // Primary Key
	CustomerID      string                `json:"customerID"`    // FK -> credit_accounts
	TransactionType LedgerTransactionType `json:"transactionType"`
	Amount          decimal.Decimal       `json:"amount"` // Signed
	BalanceBefore   decimal.Decimal       `json:"balanceBefore"`
	BalanceAfter    decimal.Decimal       `json:"balanceAfter"`
	OrderID         *string               `json:"orderID"`  // Nullable
	DueDate         *time.Time            `json:"dueDate"`  // Nullable
	PaidDate        *time.Time            `json:"paidDate"` // Nullable, set for PAYMENT
	Notes           string                `json:"notes"`
	CreatedBy       string                `json:"createdBy"`
	CreatedAt       time.Time             `json:"createdAt"`
}
