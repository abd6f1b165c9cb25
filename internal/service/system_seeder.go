package service

import (
	"context"
	"fmt"

	"settlement-service/internal/domain"
	"settlement-service/internal/repository"

	"go.uber.org/zap"
)

// SystemSeeder handles initial setup of the system assets account. It
// runs before the settlement worker starts: no settlement can execute
// without the counter-party account.
type SystemSeeder struct {
	accounts repository.AccountRepository
	log      *zap.Logger
}

func NewSystemSeeder(accounts repository.AccountRepository, log *zap.Logger) *SystemSeeder {
	return &SystemSeeder{accounts: accounts, log: log}
}

// SeedSystem creates the system assets account if missing and returns
// it. Concurrent boots are safe; exactly one insert wins.
func (s *SystemSeeder) SeedSystem(ctx context.Context) (*domain.Account, error) {
	s.log.Info("seeding system accounts")

	account, err := s.accounts.EnsureSystemAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure system assets account: %w", err)
	}

	s.log.Info("system assets account ready", zap.Int64("account_id", account.ID))
	return account, nil
}
