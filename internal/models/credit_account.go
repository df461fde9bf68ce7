package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditAccount is a row of credit_accounts. Overdue amount and payment pattern are
// derived on read and have no columns.
type CreditAccount struct {
	CustomerID      string          `json:"customerID"`  // Primary Key
	CreditLimit     decimal.Decimal `json:"creditLimit"` // CHECK >= 0
	CurrentDebt     decimal.Decimal `json:"currentDebt"` // Cached running balance
	IsBlocked       bool            `json:"isBlocked"`
	BlockReason     string          `json:"blockReason"`     // '' when not blocked
	LastPaymentDate *time.Time      `json:"lastPaymentDate"` // Nullable
	AuditFields
}

// CreditLimitChange is a row of credit_limit_changes.
type CreditLimitChange struct {
	ChangeID      string          `json:"changeID"`   // Primary Key
	CustomerID    string          `json:"customerID"` // FK -> credit_accounts
	PreviousLimit decimal.Decimal `json:"previousLimit"`
	NewLimit      decimal.Decimal `json:"newLimit"`
	ChangedBy     string          `json:"changedBy"`
	Reason        string          `json:"reason"`
	ChangedAt     time.Time       `json:"changedAt"`
}
