package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-service/internal/domain"
	"settlement-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
)

type BalanceRepository interface {
	GetByAccountID(ctx context.Context, accountID int64) (*domain.AccountBalance, error)
	GetByAccountIDWithLock(ctx context.Context, tx pgx.Tx, accountID int64) (*domain.AccountBalance, error)

	// UpdateBalance applies one entry's effect to the running total.
	// Must run inside the same atomic unit that created the entry.
	UpdateBalance(ctx context.Context, tx pgx.Tx, update *domain.BalanceUpdate) error

	EnsureExists(ctx context.Context, tx pgx.Tx, accountID int64) error
}

type balanceRepo struct {
	db DB
}

func NewBalanceRepo(db DB) BalanceRepository {
	return &balanceRepo{db: db}
}

// GetByAccountID fetches the running balance for an account (no lock)
func (r *balanceRepo) GetByAccountID(ctx context.Context, accountID int64) (*domain.AccountBalance, error) {
	row := r.db.QueryRow(ctx, `
		SELECT account_id, balance, last_entry_id, version, updated_at
		FROM balances
		WHERE account_id=$1
	`, accountID)

	return scanBalance(row)
}

// GetByAccountIDWithLock fetches the balance with SELECT FOR UPDATE.
// Use inside an atomic unit to serialize concurrent appenders.
func (r *balanceRepo) GetByAccountIDWithLock(ctx context.Context, tx pgx.Tx, accountID int64) (*domain.AccountBalance, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil for locked query")
	}

	row := tx.QueryRow(ctx, `
		SELECT account_id, balance, last_entry_id, version, updated_at
		FROM balances
		WHERE account_id=$1
		FOR UPDATE
	`, accountID)

	return scanBalance(row)
}

func (r *balanceRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, update *domain.BalanceUpdate) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	delta := update.Amount
	if update.DrCr == domain.DrCrDebit {
		delta = -delta
	}

	ct, err := tx.Exec(ctx, `
		UPDATE balances
		SET balance = balance + $2,
		    last_entry_id = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE account_id = $1
	`, update.AccountID, delta, update.EntryID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// EnsureExists creates a zero balance row for accounts that predate the
// balances table or were created elsewhere.
func (r *balanceRepo) EnsureExists(ctx context.Context, tx pgx.Tx, accountID int64) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO balances (account_id, balance, version, updated_at)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID, time.Now())
	return err
}

func scanBalance(row pgx.Row) (*domain.AccountBalance, error) {
	var b domain.AccountBalance
	err := row.Scan(&b.AccountID, &b.Balance, &b.LastEntryID, &b.Version, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &b, nil
}
