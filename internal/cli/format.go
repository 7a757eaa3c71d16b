package cli

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.Indonesian)

// formatMoney renders whole rupiah the way receipts show them: Rp 1.250.000.
func formatMoney(amount int64) string {
	if amount < 0 {
		return "-" + formatMoney(-amount)
	}
	return moneyPrinter.Sprintf("Rp %d", amount)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
