package dto

import (
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreditCheckRequest asks whether an order fits in the customer's remaining credit.
type CreditCheckRequest struct {
	OrderAmount   decimal.Decimal `json:"orderAmount" binding:"required,decimal_gt0,money_scale" swaggertype:"string" example:"200000"`
	ReserveCredit bool            `json:"reserveCredit"`
	OrderID       string          `json:"orderID" binding:"omitempty,uuid"` // Optional, recorded on the ORDER row
	DueDate       *time.Time      `json:"dueDate"`                          // Payment terms of the reserved ORDER row
}

// RecordPaymentRequest records a customer payment.
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,decimal_gt0,money_scale" swaggertype:"string" example:"300000"`
	Notes  string          `json:"notes" binding:"max=500"`
}

// AddTransactionRequest posts a ledger entry other than a payment. ADJUSTMENT amounts
// keep their sign; the other types are applied in their own direction.
type AddTransactionRequest struct {
	Type    string           `json:"type" binding:"required,oneof=ORDER ADJUSTMENT REFUND WRITE_OFF"`
	Amount  *decimal.Decimal `json:"amount" binding:"required,money_scale" swaggertype:"string" example:"150000"`
	OrderID string           `json:"orderID" binding:"omitempty,uuid"`
	DueDate *time.Time       `json:"dueDate"`
	Notes   string           `json:"notes" binding:"max=500"`
}

// ToTransactionOptions converts the optional fields to domain options.
func (r AddTransactionRequest) ToTransactionOptions() domain.TransactionOptions {
	opts := domain.TransactionOptions{
		DueDate: r.DueDate,
		Notes:   r.Notes,
	}
	if r.OrderID != "" {
		orderID := r.OrderID
		opts.OrderID = &orderID
	}
	return opts
}

// UpdateCreditLimitRequest changes a customer's credit limit.
type UpdateCreditLimitRequest struct {
	NewLimit *decimal.Decimal `json:"newLimit" binding:"required,decimal_gte0,money_scale" swaggertype:"string" example:"1000000"`
	Reason   string           `json:"reason" binding:"max=500"`
}

// SetBlockStatusRequest blocks or unblocks a customer.
type SetBlockStatusRequest struct {
	Blocked *bool  `json:"blocked" binding:"required"`
	Reason  string `json:"reason" binding:"max=500"`
}

// ListDebtHistoryParams are the query parameters of the history endpoint.
type ListDebtHistoryParams struct {
	Limit     int        `form:"limit" binding:"omitempty,min=1,max=100"`
	NextToken string     `form:"nextToken"`
	From      *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To        *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Type      string     `form:"type" binding:"omitempty,oneof=ORDER PAYMENT ADJUSTMENT REFUND WRITE_OFF"`
}

// ToHistoryFilter converts the query parameters to a domain filter.
func (p ListDebtHistoryParams) ToHistoryFilter() domain.HistoryFilter {
	filter := domain.HistoryFilter{
		Limit: p.Limit,
		From:  p.From,
		To:    p.To,
	}
	if p.NextToken != "" {
		token := p.NextToken
		filter.NextToken = &token
	}
	if p.Type != "" {
		t := domain.LedgerTransactionType(p.Type)
		filter.TransactionType = &t
	}
	return filter
}

// CreditAccountResponse is the stored credit account.
type CreditAccountResponse struct {
	CustomerID      string          `json:"customerID"`
	CreditLimit     decimal.Decimal `json:"creditLimit" swaggertype:"string"`
	CurrentDebt     decimal.Decimal `json:"currentDebt" swaggertype:"string"`
	IsBlocked       bool            `json:"isBlocked"`
	BlockReason     string          `json:"blockReason,omitempty"`
	LastPaymentDate *time.Time      `json:"lastPaymentDate,omitempty"`
	LastUpdatedAt   time.Time       `json:"lastUpdatedAt"`
	LastUpdatedBy   string          `json:"lastUpdatedBy"`
	Version         int64           `json:"version"`
}

// ToCreditAccountResponse converts a domain.CreditAccount to its response DTO.
func ToCreditAccountResponse(a *domain.CreditAccount) CreditAccountResponse {
	return CreditAccountResponse{
		CustomerID:      a.CustomerID,
		CreditLimit:     a.CreditLimit,
		CurrentDebt:     a.CurrentDebt,
		IsBlocked:       a.IsBlocked,
		BlockReason:     a.BlockReason,
		LastPaymentDate: a.LastPaymentDate,
		LastUpdatedAt:   a.LastUpdatedAt,
		LastUpdatedBy:   a.LastUpdatedBy,
		Version:         a.Version,
	}
}

// ListDebtTransactionsResponse is one page of ledger history.
type ListDebtTransactionsResponse struct {
	Transactions []domain.LedgerTransaction `json:"transactions"`
	NextToken    *string                    `json:"nextToken,omitempty"`
}

// ListOverdueResponse lists overdue ledger rows across customers.
type ListOverdueResponse struct {
	Transactions []domain.LedgerTransaction `json:"transactions"`
	Count        int                        `json:"count"`
}

// ListCreditLimitChangesResponse is the audit trail of limit changes.
type ListCreditLimitChangesResponse struct {
	Changes []domain.CreditLimitChange `json:"changes"`
}
