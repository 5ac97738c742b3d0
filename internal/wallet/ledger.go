// Package wallet reconciles the per-property budget ledger reported by the API.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/proco/internal/api"
)

var (
	// ErrEmptyAmount is returned for an empty or whitespace-only amount field.
	ErrEmptyAmount = errors.New("amount is empty")

	// ErrInvalidAmount is returned when an amount field is not a finite number.
	ErrInvalidAmount = errors.New("amount is not a number")
)

// Totals sums the ledger across all properties.
type Totals struct {
	Balance   decimal.Decimal `json:"balance"`
	Used      decimal.Decimal `json:"used"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Ledger is an immutable, property-keyed view of the wallet list.
type Ledger struct {
	order  []string
	byProp map[string]api.Wallet
}

// NewLedger indexes wallets by property. The first record for a property wins.
func NewLedger(wallets []api.Wallet) *Ledger {
	l := &Ledger{
		order:  make([]string, 0, len(wallets)),
		byProp: make(map[string]api.Wallet, len(wallets)),
	}
	for _, w := range wallets {
		if _, dup := l.byProp[w.PropertyID]; dup {
			continue
		}
		l.order = append(l.order, w.PropertyID)
		l.byProp[w.PropertyID] = w
	}
	return l
}

// Remaining returns the authoritative remaining funds, zero when the property has no wallet.
func (l *Ledger) Remaining(propertyID string) decimal.Decimal {
	if l == nil {
		return decimal.Zero
	}
	if w, ok := l.byProp[propertyID]; ok {
		return w.Remaining
	}
	return decimal.Zero
}

// Get returns the wallet of a property.
func (l *Ledger) Get(propertyID string) (api.Wallet, bool) {
	if l == nil {
		return api.Wallet{}, false
	}
	w, ok := l.byProp[propertyID]
	return w, ok
}

// Wallets returns the deduplicated wallets in their original order.
func (l *Ledger) Wallets() []api.Wallet {
	if l == nil {
		return []api.Wallet{}
	}
	out := make([]api.Wallet, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byProp[id])
	}
	return out
}

// Len returns the number of distinct properties.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// Totals sums balance, used and remaining.
func (l *Ledger) Totals() Totals {
	t := Totals{Balance: decimal.Zero, Used: decimal.Zero, Remaining: decimal.Zero}
	if l == nil {
		return t
	}
	for _, id := range l.order {
		w := l.byProp[id]
		t.Balance = t.Balance.Add(w.Balance)
		t.Used = t.Used.Add(w.Used)
		t.Remaining = t.Remaining.Add(w.Remaining)
	}
	return t
}

// Drift returns remaining - (balance - used). Zero means the record is self-consistent.
func Drift(w api.Wallet) decimal.Decimal {
	return w.Remaining.Sub(w.Balance.Sub(w.Used))
}

// ParseAmount parses a numeric form field.
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}
