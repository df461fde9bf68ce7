package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebtSummary is the reconciled view of a customer's credit position.
type DebtSummary struct {
	CustomerID      string          `json:"customerID"`
	CurrentDebt     decimal.Decimal `json:"currentDebt"`
	CreditLimit     decimal.Decimal `json:"creditLimit"`
	AvailableCredit decimal.Decimal `json:"availableCredit"`
	OverdueAmount   decimal.Decimal `json:"overdueAmount"`
	LastPaymentDate *time.Time      `json:"lastPaymentDate,omitempty"`
	PaymentPattern  PaymentPattern  `json:"paymentPattern"`
	IsBlocked       bool            `json:"isBlocked"`
	BlockReason     string          `json:"blockReason,omitempty"`
}

// CreditCheckResult is the outcome of a credit check. A rejection is a normal
// result, not an error.
type CreditCheckResult struct {
	Allowed     bool             `json:"allowed"`
	CurrentDebt decimal.Decimal  `json:"currentDebt"`
	CreditLimit decimal.Decimal  `json:"creditLimit"`
	OrderAmount decimal.Decimal  `json:"orderAmount"`
	Shortfall   *decimal.Decimal `json:"shortfall,omitempty"`
	Message     string           `json:"message"`
}

// CreditCheckOptions controls whether a passing credit check also reserves the amount.
// DueDate sets the payment terms of the reserved ORDER row.
type CreditCheckOptions struct {
	ReserveCredit bool
	OrderID       string
	UserID        string
	DueDate       *time.Time
}

// Payment describes a customer payment to be recorded against their debt.
type Payment struct {
	Amount     decimal.Decimal
	Notes      string
	RecordedBy string
}

// TransactionOptions carries the optional fields of a ledger append.
// BalanceBefore overrides the snapshot taken from the cached account balance;
// callers that have already mutated the balance in the same unit of work pass
// the value they observed before the mutation.
type TransactionOptions struct {
	OrderID       *string
	DueDate       *time.Time
	Notes         string
	BalanceBefore *decimal.Decimal
}

// HistoryFilter narrows and pages a customer's ledger history.
type HistoryFilter struct {
	Limit           int
	NextToken       *string
	From            *time.Time
	To              *time.Time
	TransactionType *LedgerTransactionType
}
