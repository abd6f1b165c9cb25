package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"settlement-service/internal/domain"
	"settlement-service/internal/repository"
	"settlement-service/internal/xerrors"

	"github.com/redis/go-redis/v9"
)

const systemAccountCacheKey = "accounts:system-assets"

type AccountUsecase struct {
	accounts    repository.AccountRepository
	balances    repository.BalanceRepository
	entries     repository.EntryRepository
	redisClient *redis.Client
	currency    string
}

// NewAccountUsecase initializes a new AccountUsecase
func NewAccountUsecase(
	accounts repository.AccountRepository,
	balances repository.BalanceRepository,
	entries repository.EntryRepository,
	redisClient *redis.Client,
	currency string,
) *AccountUsecase {
	return &AccountUsecase{
		accounts:    accounts,
		balances:    balances,
		entries:     entries,
		redisClient: redisClient,
		currency:    currency,
	}
}

// GetByID fetches an account by its ID
func (uc *AccountUsecase) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return uc.accounts.GetByID(ctx, id)
}

// List fetches accounts matching the filter
func (uc *AccountUsecase) List(ctx context.Context, filter *domain.AccountFilter) ([]*domain.Account, error) {
	return uc.accounts.GetByFilter(ctx, filter)
}

// GetSystemAccount fetches the system assets account (cached via Redis).
// The account never changes after bootstrap, so a short TTL is plenty.
func (uc *AccountUsecase) GetSystemAccount(ctx context.Context) (*domain.Account, error) {
	if val, err := uc.redisClient.Get(ctx, systemAccountCacheKey).Result(); err == nil {
		var account domain.Account
		if jsonErr := json.Unmarshal([]byte(val), &account); jsonErr == nil {
			return &account, nil
		}
	}

	account, err := uc.accounts.GetSystemAccount(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(account); err == nil {
		_ = uc.redisClient.Set(ctx, systemAccountCacheKey, data, 5*time.Minute).Err()
	}

	return account, nil
}

// Balance returns the account's balance as a value object. The running
// total is authoritative; accounts without a balances row fall back to
// the signed sum of their entries.
func (uc *AccountUsecase) Balance(ctx context.Context, accountID int64) (*domain.Balance, error) {
	if _, err := uc.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	record, err := uc.balances.GetByAccountID(ctx, accountID)
	if err == nil {
		return &domain.Balance{Currency: uc.currency, Amount: record.Balance}, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	sum, err := uc.entries.SumByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &domain.Balance{Currency: uc.currency, Amount: sum}, nil
}

// BalanceAudit compares the maintained running total against the signed
// entry sum for one account.
type BalanceAudit struct {
	AccountID  int64 `json:"account_id"`
	Running    int64 `json:"running"`
	EntrySum   int64 `json:"entry_sum"`
	Consistent bool  `json:"consistent"`
}

// VerifyBalance recomputes an account's balance from its entries and
// reports whether the running total agrees.
func (uc *AccountUsecase) VerifyBalance(ctx context.Context, accountID int64) (*BalanceAudit, error) {
	sum, err := uc.entries.SumByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	audit := &BalanceAudit{AccountID: accountID, EntrySum: sum}

	record, err := uc.balances.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			audit.Consistent = sum == 0
			return audit, nil
		}
		return nil, err
	}

	audit.Running = record.Balance
	audit.Consistent = record.Balance == sum
	return audit, nil
}
