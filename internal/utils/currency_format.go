package utils

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var vndPrinter = message.NewPrinter(language.Vietnamese)

// FormatVND renders a VND amount with Vietnamese digit grouping and the đ suffix.
// Example: 1200000 returns "1.200.000đ". VND has no minor unit, so amounts are rounded.
func FormatVND(amount decimal.Decimal) string {
	return vndPrinter.Sprintf("%d", amount.Round(0).IntPart()) + "đ"
}
