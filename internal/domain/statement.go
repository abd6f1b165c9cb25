package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementLine is one posting on an account statement, with the running
// balance after it was applied.
type StatementLine struct {
	EntryID       int64     `json:"entry_id"`
	TransactionID int64     `json:"transaction_id"`
	Reference     string    `json:"reference"`
	Amount        int64     `json:"amount"`
	DrCr          DrCr      `json:"dr_cr"`
	Running       int64     `json:"running"`
	CreatedAt     time.Time `json:"created_at"`
}

// AccountStatement lists an account's postings over a period, bracketed
// by the opening and closing balances.
type AccountStatement struct {
	AccountID int64            `json:"account_id"`
	Currency  string           `json:"currency"`
	From      time.Time        `json:"from"`
	To        time.Time        `json:"to"`
	Opening   int64            `json:"opening"`
	Closing   int64            `json:"closing"`
	Lines     []*StatementLine `json:"lines"`
}

// OpeningDecimal renders the opening balance in major units.
func (s *AccountStatement) OpeningDecimal() decimal.Decimal {
	return decimal.NewFromInt(s.Opening).Shift(-2)
}

// ClosingDecimal renders the closing balance in major units.
func (s *AccountStatement) ClosingDecimal() decimal.Decimal {
	return decimal.NewFromInt(s.Closing).Shift(-2)
}
