package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Standing labels a balance the way the kiosk shows it.
type Standing string

const (
	StandingOwed    Standing = "owed to them"
	StandingOwes    Standing = "they owe"
	StandingSettled Standing = "settled"
)

func StandingOf(balance int64) Standing {
	switch {
	case balance > 0:
		return StandingOwed
	case balance < 0:
		return StandingOwes
	default:
		return StandingSettled
	}
}

// FormatAmount renders an amount of minor units, e.g. 2575 with 2 decimals
// and "MXN" becomes "25.75 MXN".
func FormatAmount(amount int64, decimals int32, currency string) string {
	formatted := decimal.New(amount, -decimals).StringFixed(decimals)
	if currency = strings.TrimSpace(currency); currency != "" {
		formatted += " " + currency
	}
	return formatted
}
