package hrest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"settlement-service/internal/domain"
	"settlement-service/internal/queue"
	"settlement-service/internal/usecase"
	"settlement-service/internal/xerrors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// AccountReader is the account surface the REST layer needs.
type AccountReader interface {
	Balance(ctx context.Context, accountID int64) (*domain.Balance, error)
	VerifyBalance(ctx context.Context, accountID int64) (*usecase.BalanceAudit, error)
	GetSystemAccount(ctx context.Context) (*domain.Account, error)
	List(ctx context.Context, filter *domain.AccountFilter) ([]*domain.Account, error)
}

// TransferReader exposes transfer lookups: pending transfers for ops
// visibility, and the accept-token lookup backing invite links.
type TransferReader interface {
	FindPendingByDestinationIdentifier(ctx context.Context, identifier string) ([]*domain.Transaction, error)
	GetByAcceptToken(ctx context.Context, token string) (*domain.Transaction, error)
}

// StatementReader builds account statements over a period.
type StatementReader interface {
	AccountStatement(ctx context.Context, accountID int64, from, to time.Time) (*domain.AccountStatement, error)
}

type SettlementRestHandler struct {
	dispatcher queue.TaskDispatcher
	accounts   AccountReader
	transfers  TransferReader
	statements StatementReader
	log        *zap.Logger
}

func NewSettlementRestHandler(
	dispatcher queue.TaskDispatcher,
	accounts AccountReader,
	transfers TransferReader,
	statements StatementReader,
	log *zap.Logger,
) *SettlementRestHandler {
	return &SettlementRestHandler{
		dispatcher: dispatcher,
		accounts:   accounts,
		transfers:  transfers,
		statements: statements,
		log:        log,
	}
}

func (h *SettlementRestHandler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/internal/settlements", h.ScheduleSettlement)
	r.Get("/accounts", h.ListAccounts)
	r.Get("/accounts/system", h.GetSystemAccount)
	r.Get("/accounts/{id}/balance", h.GetBalance)
	r.Get("/accounts/{id}/balance/audit", h.AuditBalance)
	r.Get("/accounts/{id}/statement", h.GetStatement)
	r.Get("/transfers/pending", h.ListPendingTransfers)
	r.Get("/transfers/{token}", h.GetTransferByToken)

	return r
}

type scheduleSettlementJSON struct {
	AccountID int64 `json:"account_id"`
}

// ScheduleSettlement enqueues a settlement task for an account whose
// owner just became usable. The response never reflects enqueue
// failures; those go to the operational log only.
func (h *SettlementRestHandler) ScheduleSettlement(w http.ResponseWriter, r *http.Request) {
	var in scheduleSettlementJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.AccountID <= 0 {
		writeError(w, http.StatusBadRequest, "account_id required")
		return
	}

	if err := h.dispatcher.EnqueueSettlement(r.Context(), in.AccountID); err != nil {
		h.log.Error("settlement enqueue failed",
			zap.Int64("account_id", in.AccountID), zap.Error(err))
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "scheduled",
		"account_id": in.AccountID,
	})
}

// GetSystemAccount exposes the settlement counter-party account (served
// through the cache; it never changes after bootstrap).
func (h *SettlementRestHandler) GetSystemAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetSystemAccount(r.Context())
	if err != nil {
		if errors.Is(err, xerrors.ErrSystemAccountMissing) {
			writeError(w, http.StatusNotFound, "system assets account missing")
			return
		}
		h.log.Error("failed to read system account", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// ListAccounts looks accounts up by owner id, owner email or name.
func (h *SettlementRestHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	filter := &domain.AccountFilter{}
	q := r.URL.Query()
	if v := q.Get("owner_id"); v != "" {
		filter.OwnerID = &v
	}
	if v := q.Get("owner_email"); v != "" {
		filter.OwnerEmail = &v
	}
	if v := q.Get("name"); v != "" {
		filter.Name = &v
	}
	if filter.OwnerID == nil && filter.OwnerEmail == nil && filter.Name == nil {
		writeError(w, http.StatusBadRequest, "at least one of owner_id, owner_email, name required")
		return
	}

	accounts, err := h.accounts.List(r.Context(), filter)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		h.log.Error("account lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(accounts),
		"accounts": accounts,
	})
}

func (h *SettlementRestHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	balance, err := h.accounts.Balance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		h.log.Error("failed to read balance", zap.Int64("account_id", accountID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"currency":   balance.Currency,
		"amount":     balance.Amount,
		"display":    balance.String(),
	})
}

func (h *SettlementRestHandler) AuditBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	audit, err := h.accounts.VerifyBalance(r.Context(), accountID)
	if err != nil {
		h.log.Error("balance audit failed", zap.Int64("account_id", accountID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, audit)
}

// GetStatement returns the account's postings for a period with running
// balances. Defaults to the trailing 30 days.
func (h *SettlementRestHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from must precede to")
		return
	}

	statement, err := h.statements.AccountStatement(r.Context(), accountID, from, to)
	if err != nil {
		h.log.Error("statement build failed", zap.Int64("account_id", accountID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, statement)
}

// ListPendingTransfers reports unsettled transfers addressed to an
// identifier. A stuck pending transfer is an operational concern, so
// this surface exists for ops, not end users.
func (h *SettlementRestHandler) ListPendingTransfers(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier required")
		return
	}

	transfers, err := h.transfers.FindPendingByDestinationIdentifier(r.Context(), identifier)
	if err != nil {
		h.log.Error("pending transfer lookup failed", zap.String("identifier", identifier), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"identifier": identifier,
		"count":      len(transfers),
		"transfers":  transfers,
	})
}

// GetTransferByToken resolves an invite-link accept token to its
// transfer. The emailed link carries the token; the landing page uses
// this to show the recipient what is waiting for them.
func (h *SettlementRestHandler) GetTransferByToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	txn, err := h.transfers.GetByAcceptToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transfer not found")
			return
		}
		h.log.Error("accept-token lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, txn)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
