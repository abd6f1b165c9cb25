package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrNotFound       = errors.New("not found")
)

// Accounts
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountNoOwnerEmail  = errors.New("account has no owner email")
	ErrSystemAccountMissing = errors.New("system assets account missing")
)

// Transactions / settlement
var (
	ErrAlreadySettled        = errors.New("transaction already settled")
	ErrDestinationResolved   = errors.New("transaction destination already resolved")
	ErrDestinationUnresolved = errors.New("transaction destination not resolved")
	ErrUnbalancedEntries     = errors.New("ledger entries do not balance")
	ErrDuplicateReference    = errors.New("duplicate transaction reference")
	ErrVersionMismatch       = errors.New("balance version mismatch")
)

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// IsUniqueViolation reports whether err is a postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == "23505"
}
