package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DB is the subset of *pgxpool.Pool the repositories use. Narrowing to an
// interface lets the atomic settlement unit be exercised without a live
// database.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
