package domain

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"settlement-service/internal/xerrors"

	"github.com/oklog/ulid/v2"
)

// TransactionStatus represents the lifecycle state of a transfer
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Destination is a tagged variant: a transfer is addressed either to a
// resolved account or to an identifier (email) that has no account yet.
// Constructors enforce that exactly one side is set.
type Destination struct {
	accountID  *int64
	identifier *string
}

// ResolvedDestination addresses a transfer to an existing account.
func ResolvedDestination(accountID int64) Destination {
	return Destination{accountID: &accountID}
}

// UnresolvedDestination addresses a transfer to a recipient identifier,
// typically an email the recipient has not registered yet.
func UnresolvedDestination(identifier string) Destination {
	return Destination{identifier: &identifier}
}

// AccountID returns the destination account id when resolved.
func (d Destination) AccountID() (int64, bool) {
	if d.accountID == nil {
		return 0, false
	}
	return *d.accountID, true
}

// Identifier returns the unresolved identifier when present. Resolution
// keeps the identifier for audit, so both sides can report ok.
func (d Destination) Identifier() (string, bool) {
	if d.identifier == nil {
		return "", false
	}
	return *d.identifier, true
}

// Resolved reports whether a destination account is bound.
func (d Destination) Resolved() bool {
	return d.accountID != nil
}

// Valid reports whether the destination is addressed at all.
func (d Destination) Valid() bool {
	return d.accountID != nil || d.identifier != nil
}

func (d Destination) MarshalJSON() ([]byte, error) {
	out := struct {
		AccountID  *int64  `json:"account_id,omitempty"`
		Identifier *string `json:"identifier,omitempty"`
	}{d.accountID, d.identifier}
	return json.Marshal(out)
}

// DestinationFromColumns rebuilds a destination from its two storage
// columns. A settled row keeps its original identifier next to the bound
// account id.
func DestinationFromColumns(accountID *int64, identifier *string) Destination {
	return Destination{accountID: accountID, identifier: identifier}
}

// Transaction represents a single-currency transfer with a
// pending -> completed lifecycle. Reference is the public handle,
// AcceptToken the invite-link token sent to unregistered recipients.
type Transaction struct {
	ID              int64             `json:"id"`
	Reference       string            `json:"reference"`
	AcceptToken     string            `json:"-"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	SourceAccountID int64             `json:"source_account_id"`
	Destination     Destination       `json:"destination"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// NewPendingTransfer builds a new pending transaction addressed to dest.
func NewPendingTransfer(sourceAccountID, amount int64, currency string, dest Destination) (*Transaction, error) {
	if amount <= 0 {
		return nil, xerrors.ErrInvalidRequest
	}
	if !dest.Valid() {
		return nil, xerrors.ErrInvalidRequest
	}
	return &Transaction{
		Reference:       generateID("txn"),
		AcceptToken:     generateID("tok"),
		Amount:          amount,
		Currency:        currency,
		SourceAccountID: sourceAccountID,
		Destination:     dest,
		Status:          TransactionStatusPending,
		CreatedAt:       time.Now(),
	}, nil
}

// Pending reports whether the transaction still awaits settlement.
func (t *Transaction) Pending() bool {
	return t.Status == TransactionStatusPending
}

// Completed reports whether the transaction has been settled.
func (t *Transaction) Completed() bool {
	return t.Status == TransactionStatusCompleted
}

// ResolveDestination binds the destination account. Binding is permanent:
// re-binding to the same account is a no-op, to a different one an error.
func (t *Transaction) ResolveDestination(accountID int64) error {
	if bound, ok := t.Destination.AccountID(); ok {
		if bound == accountID {
			return nil
		}
		return xerrors.ErrDestinationResolved
	}
	t.Destination.accountID = &accountID
	return nil
}

// Complete flips the transaction to completed exactly once. Returns false
// when the transaction was already completed, which callers treat as a
// skip, not an error.
func (t *Transaction) Complete(at time.Time) bool {
	if t.Completed() {
		return false
	}
	t.Status = TransactionStatusCompleted
	t.CompletedAt = &at
	return true
}

// Settlement is the outcome of settling one pending transaction: the
// updated transaction plus its two balancing entries.
type Settlement struct {
	Transaction *Transaction
	Debit       *Entry
	Credit      *Entry
}

// Balanced verifies the double-entry invariant on the settled pair.
func (s *Settlement) Balanced() bool {
	return BalancedPair(s.Debit, s.Credit)
}

func generateID(prefix string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return prefix + "_" + id.String()
}
