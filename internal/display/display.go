// Package display formats values for landlord and tenant views the way the
// en-US browser UI shows them.
package display

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"golang.org/x/text/unicode/norm"
)

// DateLayout is the short US date used throughout the views.
const DateLayout = "Jan 2, 2006"

// Placeholder is shown for missing values.
const Placeholder = "-"

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatDate renders t as "Jan 2, 2006". The zero time renders as Placeholder.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Format(DateLayout)
}

// FormatDateString parses an RFC 3339 timestamp and renders it with FormatDate.
// Unparseable input is returned unchanged.
func FormatDateString(s string) string {
	if s == "" {
		return Placeholder
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return FormatDate(t)
}

// FormatNumber renders d with thousands separators and at most two fraction digits.
func FormatNumber(d decimal.Decimal) string {
	return printer.Sprintf("%v", number.Decimal(d.Round(2).InexactFloat64(), number.MaxFractionDigits(2)))
}

// FormatMoney renders d as a dollar amount, e.g. "$1,234.5".
func FormatMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + FormatNumber(d.Neg())
	}
	return "$" + FormatNumber(d)
}

// Fold normalizes s for case-insensitive matching.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
