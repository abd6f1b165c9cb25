package hrest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"settlement-service/internal/domain"
	"settlement-service/internal/usecase"
	"settlement-service/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDispatcher struct {
	enqueued []int64
	err      error
}

func (d *stubDispatcher) EnqueueSettlement(ctx context.Context, accountID int64) error {
	d.enqueued = append(d.enqueued, accountID)
	return d.err
}

func (d *stubDispatcher) Close() error { return nil }

type stubAccountReader struct {
	balance *domain.Balance
	audit   *usecase.BalanceAudit
	system  *domain.Account
	listed  []*domain.Account
	filters []*domain.AccountFilter
	err     error
}

func (s *stubAccountReader) Balance(ctx context.Context, accountID int64) (*domain.Balance, error) {
	return s.balance, s.err
}

func (s *stubAccountReader) VerifyBalance(ctx context.Context, accountID int64) (*usecase.BalanceAudit, error) {
	return s.audit, s.err
}

func (s *stubAccountReader) GetSystemAccount(ctx context.Context) (*domain.Account, error) {
	return s.system, s.err
}

func (s *stubAccountReader) List(ctx context.Context, filter *domain.AccountFilter) ([]*domain.Account, error) {
	s.filters = append(s.filters, filter)
	return s.listed, s.err
}

type stubTransferReader struct {
	transfers []*domain.Transaction
	byToken   *domain.Transaction
	err       error
}

func (s *stubTransferReader) FindPendingByDestinationIdentifier(ctx context.Context, identifier string) ([]*domain.Transaction, error) {
	return s.transfers, s.err
}

func (s *stubTransferReader) GetByAcceptToken(ctx context.Context, token string) (*domain.Transaction, error) {
	if s.byToken == nil {
		return nil, xerrors.ErrNotFound
	}
	return s.byToken, s.err
}

type stubStatementReader struct {
	statement *domain.AccountStatement
	err       error
}

func (s *stubStatementReader) AccountStatement(ctx context.Context, accountID int64, from, to time.Time) (*domain.AccountStatement, error) {
	return s.statement, s.err
}

func newTestHandler(dispatcher *stubDispatcher, accounts *stubAccountReader, transfers *stubTransferReader) http.Handler {
	return NewSettlementRestHandler(dispatcher, accounts, transfers, &stubStatementReader{}, zap.NewNop()).Router()
}

func TestScheduleSettlement(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := newTestHandler(dispatcher, &stubAccountReader{}, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodPost, "/internal/settlements", strings.NewReader(`{"account_id":42}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []int64{42}, dispatcher.enqueued)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "scheduled", body["status"])
}

func TestScheduleSettlementAcceptsDespiteEnqueueFailure(t *testing.T) {
	// The caller's signup flow must not fail because the broker is down;
	// the task is lost to the log, not surfaced to the client.
	dispatcher := &stubDispatcher{err: errors.New("broker unreachable")}
	h := newTestHandler(dispatcher, &stubAccountReader{}, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodPost, "/internal/settlements", strings.NewReader(`{"account_id":42}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestScheduleSettlementRejectsBadInput(t *testing.T) {
	dispatcher := &stubDispatcher{}
	h := newTestHandler(dispatcher, &stubAccountReader{}, &stubTransferReader{})

	for _, body := range []string{`not json`, `{}`, `{"account_id":0}`, `{"account_id":-4}`} {
		req := httptest.NewRequest(http.MethodPost, "/internal/settlements", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
	assert.Empty(t, dispatcher.enqueued)
}

func TestGetBalance(t *testing.T) {
	accounts := &stubAccountReader{balance: &domain.Balance{Currency: "NGN", Amount: 123450}}
	h := newTestHandler(&stubDispatcher{}, accounts, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/accounts/7/balance", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(7), body["account_id"])
	assert.Equal(t, float64(123450), body["amount"])
	assert.Equal(t, "NGN 1234.50", body["display"])
}

func TestGetBalanceNotFound(t *testing.T) {
	accounts := &stubAccountReader{err: xerrors.ErrNotFound}
	h := newTestHandler(&stubDispatcher{}, accounts, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/accounts/999/balance", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBalanceInvalidID(t *testing.T) {
	h := newTestHandler(&stubDispatcher{}, &stubAccountReader{}, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/accounts/abc/balance", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditBalance(t *testing.T) {
	accounts := &stubAccountReader{audit: &usecase.BalanceAudit{AccountID: 7, Running: 100, EntrySum: 100, Consistent: true}}
	h := newTestHandler(&stubDispatcher{}, accounts, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/accounts/7/balance/audit", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var audit usecase.BalanceAudit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	assert.True(t, audit.Consistent)
}

func TestListPendingTransfers(t *testing.T) {
	txn, err := domain.NewPendingTransfer(1, 500, "NGN", domain.UnresolvedDestination("a@x.com"))
	require.NoError(t, err)

	transfers := &stubTransferReader{transfers: []*domain.Transaction{txn}}
	h := newTestHandler(&stubDispatcher{}, &stubAccountReader{}, transfers)

	req := httptest.NewRequest(http.MethodGet, "/transfers/pending?identifier=a%40x.com", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])
}

func TestGetSystemAccount(t *testing.T) {
	system := domain.NewSystemAssetsAccount()
	system.ID = 1
	h := newTestHandler(&stubDispatcher{}, &stubAccountReader{system: system}, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/accounts/system", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body domain.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.SystemAssetsName, body.Name)
	assert.Nil(t, body.OwnerID)
}

func TestGetSystemAccountMissing(t *testing.T) {
	accounts := &stubAccountReader{err: xerrors.ErrSystemAccountMissing}
	h := newTestHandler(&stubDispatcher{}, accounts, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/accounts/system", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAccounts(t *testing.T) {
	accounts := &stubAccountReader{listed: []*domain.Account{domain.NewWalletAccount("usr_1", "a@x.com")}}
	h := newTestHandler(&stubDispatcher{}, accounts, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/accounts?owner_email=a%40x.com", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])

	require.Len(t, accounts.filters, 1)
	require.NotNil(t, accounts.filters[0].OwnerEmail)
	assert.Equal(t, "a@x.com", *accounts.filters[0].OwnerEmail)
}

func TestListAccountsEmptyResult(t *testing.T) {
	accounts := &stubAccountReader{err: xerrors.ErrNotFound}
	h := newTestHandler(&stubDispatcher{}, accounts, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/accounts?name=Wallet", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["count"])
}

func TestListAccountsRequiresFilter(t *testing.T) {
	h := newTestHandler(&stubDispatcher{}, &stubAccountReader{}, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTransferByToken(t *testing.T) {
	txn, err := domain.NewPendingTransfer(1, 500, "NGN", domain.UnresolvedDestination("a@x.com"))
	require.NoError(t, err)

	transfers := &stubTransferReader{byToken: txn}
	h := newTestHandler(&stubDispatcher{}, &stubAccountReader{}, transfers)

	req := httptest.NewRequest(http.MethodGet, "/transfers/"+txn.AcceptToken, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, txn.Reference, body["reference"])
	assert.Equal(t, "pending", body["status"])
	// The token itself never round-trips in the response body.
	assert.NotContains(t, rec.Body.String(), txn.AcceptToken)
}

func TestGetTransferByTokenNotFound(t *testing.T) {
	h := newTestHandler(&stubDispatcher{}, &stubAccountReader{}, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/transfers/tok_unknown", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStatement(t *testing.T) {
	now := time.Now()
	statements := &stubStatementReader{statement: &domain.AccountStatement{
		AccountID: 7,
		Currency:  "NGN",
		From:      now.AddDate(0, 0, -30),
		To:        now,
		Opening:   0,
		Closing:   1500,
		Lines: []*domain.StatementLine{
			{EntryID: 1, TransactionID: 9, Reference: "txn_x", Amount: 1500, DrCr: domain.DrCrCredit, Running: 1500, CreatedAt: now},
		},
	}}
	h := NewSettlementRestHandler(&stubDispatcher{}, &stubAccountReader{}, &stubTransferReader{}, statements, zap.NewNop()).Router()

	req := httptest.NewRequest(http.MethodGet, "/accounts/7/statement", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body domain.AccountStatement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1500), body.Closing)
	require.Len(t, body.Lines, 1)
	assert.Equal(t, int64(1500), body.Lines[0].Running)
}

func TestGetStatementRejectsBadPeriod(t *testing.T) {
	h := newTestHandler(&stubDispatcher{}, &stubAccountReader{}, &stubTransferReader{})

	for _, target := range []string{
		"/accounts/7/statement?from=yesterday",
		"/accounts/7/statement?to=later",
		"/accounts/7/statement?from=2026-08-01T00:00:00Z&to=2026-07-01T00:00:00Z",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "target %s", target)
	}
}

func TestListPendingTransfersRequiresIdentifier(t *testing.T) {
	h := newTestHandler(&stubDispatcher{}, &stubAccountReader{}, &stubTransferReader{})

	req := httptest.NewRequest(http.MethodGet, "/transfers/pending", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
