package usecase

import (
	"context"
	"errors"

	"settlement-service/internal/domain"
	"settlement-service/internal/repository"
	"settlement-service/internal/xerrors"

	"go.uber.org/zap"
)

// TransferNotifier informs both parties that a transfer completed.
// Best-effort: implementations log failures and never propagate them.
type TransferNotifier interface {
	TransferCompleted(ctx context.Context, s *domain.Settlement)
}

// SettlementReport summarizes one settlement run for an account.
type SettlementReport struct {
	AccountID int64 `json:"account_id"`
	Matched   int   `json:"matched"`
	Settled   int   `json:"settled"`
	Skipped   int   `json:"skipped"`
	Failed    int   `json:"failed"`
}

// SettlementUsecase settles pending inbound transfers for accounts whose
// owner has become usable. The system assets account is resolved once at
// bootstrap and injected here; its absence is a configuration error, not
// a retryable one.
type SettlementUsecase struct {
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
	notifier     TransferNotifier
	system       *domain.Account
	log          *zap.Logger
}

func NewSettlementUsecase(
	accounts repository.AccountRepository,
	transactions repository.TransactionRepository,
	notifier TransferNotifier,
	system *domain.Account,
	log *zap.Logger,
) (*SettlementUsecase, error) {
	if system == nil || !system.IsSystem() {
		return nil, xerrors.ErrSystemAccountMissing
	}
	return &SettlementUsecase{
		accounts:     accounts,
		transactions: transactions,
		notifier:     notifier,
		system:       system,
		log:          log,
	}, nil
}

// SettlePending finds every pending transaction addressed to the
// account owner's email and settles each one in its own atomic unit.
// Safe to call repeatedly or concurrently for the same account: a
// transaction already settled by another run is skipped, and a failed
// unit never blocks its siblings.
func (uc *SettlementUsecase) SettlePending(ctx context.Context, accountID int64) (*SettlementReport, error) {
	account, err := uc.accounts.GetByID(ctx, accountID)
	if err != nil {
		uc.log.Error("settlement: failed to resolve account",
			zap.Int64("account_id", accountID), zap.Error(err))
		return nil, err
	}
	if !account.Settleable() {
		uc.log.Error("settlement: account has no owner email",
			zap.Int64("account_id", accountID))
		return nil, xerrors.ErrAccountNoOwnerEmail
	}

	pending, err := uc.transactions.FindPendingByDestinationIdentifier(ctx, *account.OwnerEmail)
	if err != nil {
		return nil, err
	}

	report := &SettlementReport{AccountID: accountID, Matched: len(pending)}

	for _, txn := range pending {
		s, err := uc.transactions.Settle(ctx, txn, account, uc.system)
		switch {
		case errors.Is(err, xerrors.ErrAlreadySettled):
			// A concurrent worker or an earlier delivery won the race.
			report.Skipped++
			uc.log.Debug("settlement: transaction already settled",
				zap.String("reference", txn.Reference))
			continue
		case errors.Is(err, xerrors.ErrSystemAccountMissing):
			// Configuration fatal: nothing else in this run can settle.
			uc.log.Error("settlement: system assets account missing")
			return report, err
		case err != nil:
			report.Failed++
			uc.log.Error("settlement: unit failed, transaction left pending",
				zap.String("reference", txn.Reference), zap.Error(err))
			continue
		}

		report.Settled++
		uc.notifier.TransferCompleted(ctx, s)
	}

	uc.log.Info("settlement run finished",
		zap.Int64("account_id", accountID),
		zap.Int("matched", report.Matched),
		zap.Int("settled", report.Settled),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	return report, nil
}
