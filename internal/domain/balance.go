package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the ephemeral value exposed to callers: a currency code plus
// an amount in minor units, derived from an account's entries.
type Balance struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// Decimal renders the amount in major units (two decimal places).
func (b Balance) Decimal() decimal.Decimal {
	return decimal.NewFromInt(b.Amount).Shift(-2)
}

func (b Balance) String() string {
	return fmt.Sprintf("%s %s", b.Currency, b.Decimal().StringFixed(2))
}

// AccountBalance is the stored running total for an account, maintained
// in the same atomic unit that appends entries. Version guards against
// concurrent lost updates.
type AccountBalance struct {
	AccountID   int64     `json:"account_id"`
	Balance     int64     `json:"balance"`
	LastEntryID *int64    `json:"last_entry_id,omitempty"`
	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BalanceUpdate represents one entry's effect on an account balance.
type BalanceUpdate struct {
	AccountID int64
	Amount    int64
	DrCr      DrCr
	EntryID   int64
}
