package domain

import (
	"time"
)

// SystemAssetsName is the well-known name of the singleton system account.
// It funds or absorbs the counter-leg of every user-facing transfer and is
// created once at bootstrap.
const SystemAssetsName = "system assets"

// Account represents an owned pool of ledger entries. The system assets
// account has no owner; user accounts carry the owner's id and email.
type Account struct {
	ID         int64      `json:"id"`
	OwnerID    *string    `json:"owner_id,omitempty"`
	OwnerEmail *string    `json:"owner_email,omitempty"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"-"`
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	OwnerID    *string
	OwnerEmail *string
	Name       *string
}

// IsSystem reports whether this is the unowned system assets account.
func (a *Account) IsSystem() bool {
	return a.OwnerID == nil && a.Name == SystemAssetsName
}

// Settleable reports whether pending inbound transfers can be matched to
// this account. Matching is by the owner's email, so an account without
// one can never be a settlement destination.
func (a *Account) Settleable() bool {
	return a.OwnerID != nil && a.OwnerEmail != nil && *a.OwnerEmail != ""
}

// NewWalletAccount builds the default account created for a new owner.
func NewWalletAccount(ownerID, ownerEmail string) *Account {
	return &Account{
		OwnerID:    &ownerID,
		OwnerEmail: &ownerEmail,
		Name:       "Wallet",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

// NewSystemAssetsAccount builds the singleton system account.
func NewSystemAssetsAccount() *Account {
	return &Account{
		Name:      SystemAssetsName,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}
