package repository

import (
	"context"
	"time"

	"settlement-service/internal/domain"
)

type StatementRepository interface {
	// AccountStatement builds the statement for [from, to): the opening
	// balance from entries before the period, then each posting with its
	// running balance.
	AccountStatement(ctx context.Context, accountID int64, from, to time.Time) (*domain.AccountStatement, error)
}

type statementRepo struct {
	db       DB
	currency string
}

func NewStatementRepo(db DB, currency string) StatementRepository {
	return &statementRepo{db: db, currency: currency}
}

func (r *statementRepo) AccountStatement(ctx context.Context, accountID int64, from, to time.Time) (*domain.AccountStatement, error) {
	var opening int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN dr_cr='CR' THEN amount ELSE -amount END), 0)
		FROM entries
		WHERE account_id=$1 AND created_at < $2
	`, accountID, from).Scan(&opening)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT e.id, e.transaction_id, t.reference, e.amount, e.dr_cr, e.created_at
		FROM entries e
		JOIN transactions t ON t.id = e.transaction_id
		WHERE e.account_id=$1 AND e.created_at >= $2 AND e.created_at < $3
		ORDER BY e.created_at ASC, e.id ASC
	`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statement := &domain.AccountStatement{
		AccountID: accountID,
		Currency:  r.currency,
		From:      from,
		To:        to,
		Opening:   opening,
	}

	running := opening
	for rows.Next() {
		var line domain.StatementLine
		if err := rows.Scan(&line.EntryID, &line.TransactionID, &line.Reference,
			&line.Amount, &line.DrCr, &line.CreatedAt); err != nil {
			return nil, err
		}
		running += (&domain.Entry{Amount: line.Amount, DrCr: line.DrCr}).Signed()
		line.Running = running
		statement.Lines = append(statement.Lines, &line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statement.Closing = running
	return statement, nil
}
