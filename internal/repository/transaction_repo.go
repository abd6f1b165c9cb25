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

// settleTimeout bounds one atomic settlement unit. A stuck unit times out,
// rolls back and the task is redelivered.
const settleTimeout = 10 * time.Second

type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	GetByAcceptToken(ctx context.Context, token string) (*domain.Transaction, error)

	// FindPendingByDestinationIdentifier returns all pending transactions
	// addressed to an identifier that has no bound account yet.
	FindPendingByDestinationIdentifier(ctx context.Context, identifier string) ([]*domain.Transaction, error)

	// Settle runs one atomic settlement unit: re-check pending, append the
	// two balancing entries, bind the destination and complete the
	// transaction. Returns xerrors.ErrAlreadySettled when another worker
	// got there first.
	Settle(ctx context.Context, txn *domain.Transaction, dest, system *domain.Account) (*domain.Settlement, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)
}

type transactionRepo struct {
	db       DB
	entries  EntryRepository
	balances BalanceRepository
}

func NewTransactionRepo(db DB, entries EntryRepository, balances BalanceRepository) TransactionRepository {
	return &transactionRepo{
		db:       db,
		entries:  entries,
		balances: balances,
	}
}

func (r *transactionRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Create inserts a new pending transaction
func (r *transactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	destAccountID, _ := destAccountPtr(t.Destination)
	destIdentifier, _ := destIdentifierPtr(t.Destination)

	err := r.db.QueryRow(ctx, `
		INSERT INTO transactions
			(reference, accept_token, amount, currency, source_account_id,
			 destination_account_id, destination_identifier, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, t.Reference, t.AcceptToken, t.Amount, t.Currency, t.SourceAccountID,
		destAccountID, destIdentifier, t.Status, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return xerrors.ErrDuplicateReference
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, selectTransaction+` WHERE id=$1`, id)
	return scanTransaction(row)
}

func (r *transactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, selectTransaction+` WHERE reference=$1`, reference)
	return scanTransaction(row)
}

func (r *transactionRepo) GetByAcceptToken(ctx context.Context, token string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, selectTransaction+` WHERE accept_token=$1`, token)
	return scanTransaction(row)
}

func (r *transactionRepo) FindPendingByDestinationIdentifier(ctx context.Context, identifier string) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, selectTransaction+`
		WHERE destination_account_id IS NULL
		  AND destination_identifier = $1
		  AND status = 'pending'
		ORDER BY created_at ASC
	`, identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *transactionRepo) Settle(ctx context.Context, txn *domain.Transaction, dest, system *domain.Account) (*domain.Settlement, error) {
	if system == nil || !system.IsSystem() {
		return nil, xerrors.ErrSystemAccountMissing
	}

	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Row-level guard: lock the transaction row and re-check its status.
	// Exactly one concurrent worker observes 'pending' here.
	var status domain.TransactionStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM transactions WHERE id=$1 FOR UPDATE
	`, txn.ID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock transaction %d: %w", txn.ID, err)
	}
	if status != domain.TransactionStatusPending {
		return nil, xerrors.ErrAlreadySettled
	}

	// Lock balances in ascending account id order to avoid deadlocks on
	// the hot system account.
	first, second := system.ID, dest.ID
	if second < first {
		first, second = second, first
	}
	for _, id := range []int64{first, second} {
		if err := r.balances.EnsureExists(ctx, tx, id); err != nil {
			return nil, fmt.Errorf("failed to ensure balance row for account %d: %w", id, err)
		}
		if _, err := r.balances.GetByAccountIDWithLock(ctx, tx, id); err != nil {
			return nil, fmt.Errorf("failed to lock balance for account %d: %w", id, err)
		}
	}

	debit, err := r.entries.Create(ctx, tx, &domain.EntryCreate{
		TransactionID: txn.ID,
		AccountID:     system.ID,
		Amount:        txn.Amount,
		DrCr:          domain.DrCrDebit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create debit entry: %w", err)
	}

	credit, err := r.entries.Create(ctx, tx, &domain.EntryCreate{
		TransactionID: txn.ID,
		AccountID:     dest.ID,
		Amount:        txn.Amount,
		DrCr:          domain.DrCrCredit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credit entry: %w", err)
	}

	for _, u := range []*domain.BalanceUpdate{
		{AccountID: system.ID, Amount: txn.Amount, DrCr: domain.DrCrDebit, EntryID: debit.ID},
		{AccountID: dest.ID, Amount: txn.Amount, DrCr: domain.DrCrCredit, EntryID: credit.ID},
	} {
		if err := r.balances.UpdateBalance(ctx, tx, u); err != nil {
			return nil, fmt.Errorf("failed to update balance for account %d: %w", u.AccountID, err)
		}
	}

	completedAt := time.Now()
	ct, err := tx.Exec(ctx, `
		UPDATE transactions
		SET destination_account_id = $2,
		    status = 'completed',
		    completed_at = $3
		WHERE id = $1 AND status = 'pending'
	`, txn.ID, dest.ID, completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to complete transaction %d: %w", txn.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return nil, xerrors.ErrAlreadySettled
	}

	// Bind the in-memory copy before committing: a refused binding rolls
	// the unit back instead of reporting failure for a committed row.
	if err := txn.ResolveDestination(dest.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	txn.Complete(completedAt)

	return &domain.Settlement{Transaction: txn, Debit: debit, Credit: credit}, nil
}

const selectTransaction = `
	SELECT id, reference, accept_token, amount, currency, source_account_id,
	       destination_account_id, destination_identifier, status, created_at, completed_at
	FROM transactions
`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t              domain.Transaction
		destAccountID  *int64
		destIdentifier *string
	)
	err := row.Scan(
		&t.ID, &t.Reference, &t.AcceptToken, &t.Amount, &t.Currency, &t.SourceAccountID,
		&destAccountID, &destIdentifier, &t.Status, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	t.Destination = domain.DestinationFromColumns(destAccountID, destIdentifier)
	return &t, nil
}

func destAccountPtr(d domain.Destination) (*int64, bool) {
	if id, ok := d.AccountID(); ok {
		return &id, true
	}
	return nil, false
}

func destIdentifierPtr(d domain.Destination) (*string, bool) {
	if ident, ok := d.Identifier(); ok {
		return &ident, true
	}
	return nil, false
}
