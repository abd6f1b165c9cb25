package domain

import "time"

// DrCr tags an entry as a debit or a credit.
type DrCr string

const (
	DrCrDebit  DrCr = "DR"
	DrCrCredit DrCr = "CR"
)

// Entry represents a single immutable ledger line item. Amount is always
// positive; the sign convention lives in Signed().
type Entry struct {
	ID            int64     `json:"id"`
	TransactionID int64     `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	Amount        int64     `json:"amount"`
	DrCr          DrCr      `json:"dr_cr"`
	CreatedAt     time.Time `json:"created_at"`
}

// EntryCreate represents data needed to append a new entry.
type EntryCreate struct {
	TransactionID int64
	AccountID     int64
	Amount        int64
	DrCr          DrCr
}

// Signed returns the entry amount under the signed convention: credits
// are positive, debits negative. An account's balance is the signed sum
// of its entries.
func (e *Entry) Signed() int64 {
	if e.DrCr == DrCrCredit {
		return e.Amount
	}
	return -e.Amount
}

// SumSigned folds entries into a signed balance.
func SumSigned(entries []*Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Signed()
	}
	return total
}

// BalancedPair reports whether two entries satisfy the double-entry
// invariant: opposite tags, signed amounts summing to zero.
func BalancedPair(debit, credit *Entry) bool {
	if debit == nil || credit == nil {
		return false
	}
	if debit.DrCr != DrCrDebit || credit.DrCr != DrCrCredit {
		return false
	}
	return debit.Signed()+credit.Signed() == 0
}
