package mapping

import (
	"github.com/shopspring/decimal"

	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	"github.com/SscSPs/credit_ledger_service/internal/models"
)

// ToModelCreditAccount converts a domain CreditAccount to a model CreditAccount
func ToModelCreditAccount(d domain.CreditAccount) models.CreditAccount {
	return models.CreditAccount{
		CustomerID:      d.CustomerID,
		CreditLimit:     d.CreditLimit,
		CurrentDebt:     d.CurrentDebt,
		IsBlocked:       d.IsBlocked,
		BlockReason:     d.BlockReason,
		LastPaymentDate: d.LastPaymentDate,
		AuditFields:     ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainCreditAccount converts a model CreditAccount to a domain CreditAccount.
// Derived fields start from their neutral values.
func ToDomainCreditAccount(m models.CreditAccount) domain.CreditAccount {
	return domain.CreditAccount{
		CustomerID:      m.CustomerID,
		CreditLimit:     m.CreditLimit,
		CurrentDebt:     m.CurrentDebt,
		OverdueAmount:   decimal.Zero,
		PaymentPattern:  domain.PaymentPatternAverage,
		IsBlocked:       m.IsBlocked,
		BlockReason:     m.BlockReason,
		LastPaymentDate: m.LastPaymentDate,
		AuditFields:     ToDomainAuditFields(m.AuditFields),
	}
}

// ToModelCreditLimitChange converts a domain CreditLimitChange to its model
func ToModelCreditLimitChange(d domain.CreditLimitChange) models.CreditLimitChange {
	return models.CreditLimitChange(d)
}

// ToDomainCreditLimitChange converts a model CreditLimitChange to its domain type
func ToDomainCreditLimitChange(m models.CreditLimitChange) domain.CreditLimitChange {
	return domain.CreditLimitChange(m)
}

// ToDomainCreditLimitChanges converts a slice of model changes
func ToDomainCreditLimitChanges(ms []models.CreditLimitChange) []domain.CreditLimitChange {
	out := make([]domain.CreditLimitChange, len(ms))
	for i, m := range ms {
		out[i] = ToDomainCreditLimitChange(m)
	}
	return out
}

// ToModelLedgerTransaction converts a domain LedgerTransaction to a model LedgerTransaction
func ToModelLedgerTransaction(d domain.LedgerTransaction) models.LedgerTransaction {
	return models.LedgerTransaction{
		TransactionID:   d.TransactionID,
		CustomerID:      d.CustomerID,
		TransactionType: models.LedgerTransactionType(d.TransactionType),
		Amount:          d.Amount,
		BalanceBefore:   d.BalanceBefore,
		BalanceAfter:    d.BalanceAfter,
		OrderID:         d.OrderID,
		DueDate:         d.DueDate,
		PaidDate:        d.PaidDate,
		Notes:           d.Notes,
		CreatedBy:       d.CreatedBy,
		CreatedAt:       d.CreatedAt,
	}
}

// ToDomainLedgerTransaction converts a model LedgerTransaction to a domain LedgerTransaction
func ToDomainLedgerTransaction(m models.LedgerTransaction) domain.LedgerTransaction {
	return domain.LedgerTransaction{
		TransactionID:   m.TransactionID,
		CustomerID:      m.CustomerID,
		TransactionType: domain.LedgerTransactionType(m.TransactionType),
		Amount:          m.Amount,
		BalanceBefore:   m.BalanceBefore,
		BalanceAfter:    m.BalanceAfter,
		OrderID:         m.OrderID,
		DueDate:         m.DueDate,
		PaidDate:        m.PaidDate,
		Notes:           m.Notes,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
	}
}

// ToDomainLedgerTransactions converts a slice of model ledger rows
func ToDomainLedgerTransactions(ms []models.LedgerTransaction) []domain.LedgerTransaction {
	out := make([]domain.LedgerTransaction, len(ms))
	for i, m := range ms {
		out[i] = ToDomainLedgerTransaction(m)
	}
	return out
}
