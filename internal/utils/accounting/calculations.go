package accounting

import (
	"fmt"

	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DefaultReconciliationEpsilon is the largest drift tolerated between a cached
// balance and the ledger sum before the cache is repaired.
var DefaultReconciliationEpsilon = decimal.RequireFromString("0.01")

// MoneyScale is the number of decimal places money columns store.
const MoneyScale = 2

// HasMoneyScale reports whether v is representable with MoneyScale decimal places
// without rounding. "1.50" and "1.500" pass, "0.001" does not.
func HasMoneyScale(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(MoneyScale))
}

// CalculateSignedAmount applies the ledger sign convention to an unsigned amount:
// debt-increasing types are positive, debt-decreasing types negative.
// ADJUSTMENT keeps the sign the caller supplied.
func CalculateSignedAmount(txnType domain.LedgerTransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	switch txnType {
	case domain.LedgerOrder:
		return amount.Abs(), nil
	case domain.LedgerPayment, domain.LedgerRefund, domain.LedgerWriteOff:
		return amount.Abs().Neg(), nil
	case domain.LedgerAdjustment:
		return amount, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown ledger transaction type '%s'", txnType)
	}
}

// ClampNonNegative returns v, or zero when v is negative. Debt is never reported below zero.
func ClampNonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// Diverges reports whether cached and ledger differ by more than epsilon.
func Diverges(cached, ledger, epsilon decimal.Decimal) bool {
	return cached.Sub(ledger).Abs().GreaterThan(epsilon)
}
