package repository

import (
	"context"
	"errors"
	"time"

	"settlement-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type EntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, c *domain.EntryCreate) (*domain.Entry, error)
	ListByTransaction(ctx context.Context, transactionID int64) ([]*domain.Entry, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*domain.Entry, error)
	SumByAccount(ctx context.Context, accountID int64) (int64, error)
}

type entryRepo struct {
	db DB
}

func NewEntryRepo(db DB) EntryRepository {
	return &entryRepo{db: db}
}

// Create appends an immutable entry inside a transaction. Entries are
// never created outside an atomic unit.
func (r *entryRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.EntryCreate) (*domain.Entry, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil")
	}

	e := &domain.Entry{
		TransactionID: c.TransactionID,
		AccountID:     c.AccountID,
		Amount:        c.Amount,
		DrCr:          c.DrCr,
		CreatedAt:     time.Now(),
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO entries (transaction_id, account_id, amount, dr_cr, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, e.TransactionID, e.AccountID, e.Amount, e.DrCr, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// ListByTransaction fetches both entries of a transaction
func (r *entryRepo) ListByTransaction(ctx context.Context, transactionID int64) ([]*domain.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, transaction_id, account_id, amount, dr_cr, created_at
		FROM entries
		WHERE transaction_id=$1
		ORDER BY id ASC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListByAccount fetches all entries attached to an account
func (r *entryRepo) ListByAccount(ctx context.Context, accountID int64) ([]*domain.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, transaction_id, account_id, amount, dr_cr, created_at
		FROM entries
		WHERE account_id=$1
		ORDER BY id ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SumByAccount recomputes the signed balance from entries. Source of
// truth behind the maintained balances row.
func (r *entryRepo) SumByAccount(ctx context.Context, accountID int64) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN dr_cr='CR' THEN amount ELSE -amount END), 0)
		FROM entries
		WHERE account_id=$1
	`, accountID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func scanEntries(rows pgx.Rows) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Amount, &e.DrCr, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
