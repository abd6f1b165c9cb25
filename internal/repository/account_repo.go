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

type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account, tx pgx.Tx) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByFilter(ctx context.Context, filter *domain.AccountFilter) ([]*domain.Account, error)
	GetSystemAccount(ctx context.Context) (*domain.Account, error)

	// EnsureSystemAccount creates the system assets account if it does not
	// exist yet and returns it. Safe to call concurrently.
	EnsureSystemAccount(ctx context.Context) (*domain.Account, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)
}

type accountRepo struct {
	db DB
}

func NewAccountRepo(db DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Create inserts a new account inside a transaction and seeds its
// balances row in the same unit.
func (r *accountRepo) Create(ctx context.Context, a *domain.Account, tx pgx.Tx) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO accounts (owner_id, owner_email, name, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, a.OwnerID, a.OwnerEmail, a.Name, a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO balances (account_id, balance, version, updated_at)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (account_id) DO NOTHING
	`, a.ID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to seed balance row: %w", err)
	}

	return nil
}

// GetByID fetches an account by its ID
func (r *accountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, owner_id, owner_email, name, created_at, updated_at
		FROM accounts
		WHERE id=$1
	`, id)

	return scanAccount(row)
}

// GetByFilter fetches accounts matching the given filter
func (r *accountRepo) GetByFilter(ctx context.Context, filter *domain.AccountFilter) ([]*domain.Account, error) {
	query := `
		SELECT id, owner_id, owner_email, name, created_at, updated_at
		FROM accounts
		WHERE 1=1
	`
	args := []any{}
	i := 1

	if filter.OwnerID != nil {
		query += fmt.Sprintf(" AND owner_id=$%d", i)
		args = append(args, *filter.OwnerID)
		i++
	}
	if filter.OwnerEmail != nil {
		query += fmt.Sprintf(" AND owner_email=$%d", i)
		args = append(args, *filter.OwnerEmail)
		i++
	}
	if filter.Name != nil {
		query += fmt.Sprintf(" AND name=$%d", i)
		args = append(args, *filter.Name)
		i++
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}

	if len(accounts) == 0 {
		return nil, xerrors.ErrNotFound
	}
	return accounts, nil
}

// GetSystemAccount fetches the singleton system assets account.
func (r *accountRepo) GetSystemAccount(ctx context.Context) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, owner_id, owner_email, name, created_at, updated_at
		FROM accounts
		WHERE name=$1 AND owner_id IS NULL
	`, domain.SystemAssetsName)

	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrSystemAccountMissing
		}
		return nil, err
	}
	return a, nil
}

func (r *accountRepo) EnsureSystemAccount(ctx context.Context) (*domain.Account, error) {
	account, err := r.GetSystemAccount(ctx)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, xerrors.ErrSystemAccountMissing) {
		return nil, err
	}

	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	account = domain.NewSystemAssetsAccount()
	if err := r.Create(ctx, account, tx); err != nil {
		// A concurrent boot may have won the race; the partial unique
		// index on (name) for unowned accounts rejects the duplicate.
		if xerrors.IsUniqueViolation(err) {
			return r.GetSystemAccount(ctx)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.OwnerEmail, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
