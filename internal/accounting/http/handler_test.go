package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridianledger/meridian/internal/accounting/accounts"
	"github.com/meridianledger/meridian/internal/accounting/balances"
	"github.com/meridianledger/meridian/internal/accounting/journals"
	"github.com/meridianledger/meridian/internal/accounting/periods"
	"github.com/meridianledger/meridian/internal/accounting/sequence"
	"github.com/meridianledger/meridian/internal/accounting/shared"
)

type fakeJournalRepo struct {
	entries  map[int64]journals.JournalEntry
	lines    map[int64][]journals.JournalLine
	byKey    map[string]int64
	accounts map[int64]accounts.Account
	nextID   int64
	seq      int64
}

func newFakeJournalRepo() *fakeJournalRepo {
	return &fakeJournalRepo{
		entries: make(map[int64]journals.JournalEntry),
		lines:   make(map[int64][]journals.JournalLine),
		byKey:   make(map[string]int64),
		accounts: map[int64]accounts.Account{
			1: {ID: 1, Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, IsActive: true},
			2: {ID: 2, Code: "4000", Name: "Revenue", Type: accounts.AccountTypeIncome, IsActive: true},
		},
	}
}

func (r *fakeJournalRepo) GetEntry(ctx context.Context, id int64) (journals.JournalEntry, error) {
	entry, ok := r.entries[id]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	entry.Lines = append([]journals.JournalLine(nil), r.lines[id]...)
	return entry, nil
}

func (r *fakeJournalRepo) GetEntryByIdempotencyKey(ctx context.Context, key string) (journals.JournalEntry, bool, error) {
	id, ok := r.byKey[key]
	if !ok {
		return journals.JournalEntry{}, false, nil
	}
	entry, err := r.GetEntry(ctx, id)
	return entry, err == nil, err
}

func (r *fakeJournalRepo) List(ctx context.Context) ([]journals.JournalEntry, error) {
	out := make([]journals.JournalEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeJournalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return fn(ctx, &fakeJournalTx{repo: r})
}

type fakeJournalTx struct {
	repo *fakeJournalRepo
}

func (tx *fakeJournalTx) FindByIdempotencyKey(ctx context.Context, key string) (journals.JournalEntry, bool, error) {
	return tx.repo.GetEntryByIdempotencyKey(ctx, key)
}

func (tx *fakeJournalTx) ResolveAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	found := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if acct, ok := tx.repo.accounts[id]; ok {
			found[id] = acct
		}
	}
	return found, nil
}

func (tx *fakeJournalTx) NextSequence(ctx context.Context, prefix string) (string, error) {
	tx.repo.seq++
	return sequence.Format(prefix, tx.repo.seq, 5), nil
}

func (tx *fakeJournalTx) InsertEntry(ctx context.Context, e journals.JournalEntry) (journals.JournalEntry, error) {
	tx.repo.nextID++
	e.ID = tx.repo.nextID
	tx.repo.entries[e.ID] = e
	if e.IdempotencyKey != nil {
		tx.repo.byKey[*e.IdempotencyKey] = e.ID
	}
	return e, nil
}

func (tx *fakeJournalTx) InsertLines(ctx context.Context, entryID int64, lines []journals.JournalLine) ([]journals.JournalLine, error) {
	for i := range lines {
		lines[i].EntryID = entryID
	}
	tx.repo.lines[entryID] = append([]journals.JournalLine(nil), lines...)
	return lines, nil
}

func (tx *fakeJournalTx) GetEntryForUpdate(ctx context.Context, id int64) (journals.JournalEntry, error) {
	entry, ok := tx.repo.entries[id]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return entry, nil
}

func (tx *fakeJournalTx) GetEntryWithLinesForUpdate(ctx context.Context, id int64) (journals.JournalEntry, error) {
	entry, err := tx.GetEntryForUpdate(ctx, id)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	entry.Lines = append([]journals.JournalLine(nil), tx.repo.lines[id]...)
	return entry, nil
}

func (tx *fakeJournalTx) UpdateEntry(ctx context.Context, e journals.JournalEntry) error {
	if _, ok := tx.repo.entries[e.ID]; !ok {
		return shared.ErrJournalNotFound
	}
	e.Lines = nil
	tx.repo.entries[e.ID] = e
	return nil
}

type fakePeriodRepo struct {
	periods map[int64]periods.AccountingPeriod
	years   map[int64]periods.FiscalYear
	nextID  int64
}

func newFakePeriodRepo() *fakePeriodRepo {
	return &fakePeriodRepo{
		periods: make(map[int64]periods.AccountingPeriod),
		years:   make(map[int64]periods.FiscalYear),
	}
}

func (r *fakePeriodRepo) FindForDate(ctx context.Context, date time.Time) (periods.AccountingPeriod, error) {
	for _, p := range r.periods {
		if p.Contains(date) {
			return p, nil
		}
	}
	return periods.AccountingPeriod{}, shared.ErrPeriodNotFound
}

func (r *fakePeriodRepo) CountPeriods(ctx context.Context) (int64, error) {
	return int64(len(r.periods)), nil
}

func (r *fakePeriodRepo) GetPeriod(ctx context.Context, id int64) (periods.AccountingPeriod, error) {
	p, ok := r.periods[id]
	if !ok {
		return periods.AccountingPeriod{}, shared.ErrPeriodNotFound
	}
	return p, nil
}

func (r *fakePeriodRepo) GetPeriodForUpdate(ctx context.Context, tx pgx.Tx, id int64) (periods.AccountingPeriod, error) {
	return r.GetPeriod(ctx, id)
}

func (r *fakePeriodRepo) UpdatePeriodStatus(ctx context.Context, tx pgx.Tx, p periods.AccountingPeriod) error {
	r.periods[p.ID] = p
	return nil
}

func (r *fakePeriodRepo) InsertFiscalYear(ctx context.Context, tx pgx.Tx, in periods.CreateFiscalYearInput) (periods.FiscalYear, error) {
	r.nextID++
	fy := periods.FiscalYear{
		ID: r.nextID, Name: in.Name, StartDate: in.StartDate, EndDate: in.EndDate,
		Status: periods.FiscalYearStatusOpen, CreatedBy: in.CreatedBy,
	}
	r.years[fy.ID] = fy
	return fy, nil
}

func (r *fakePeriodRepo) InsertPeriods(ctx context.Context, tx pgx.Tx, fiscalYearID int64, ps []periods.AccountingPeriod) ([]periods.AccountingPeriod, error) {
	out := make([]periods.AccountingPeriod, 0, len(ps))
	for _, p := range ps {
		r.nextID++
		p.ID = r.nextID
		p.FiscalYearID = fiscalYearID
		r.periods[p.ID] = p
		out = append(out, p)
	}
	return out, nil
}

func (r *fakePeriodRepo) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

type fakeAccountRepo struct {
	accounts []accounts.Account
}

func (r *fakeAccountRepo) List(ctx context.Context) ([]accounts.Account, error) {
	return r.accounts, nil
}

func (r *fakeAccountRepo) GetByCode(ctx context.Context, code string) (accounts.Account, error) {
	for _, a := range r.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return accounts.Account{}, shared.ErrAccountNotFound
}

type fakeBalanceRepo struct {
	account balances.AccountBalance
}

func (r *fakeBalanceRepo) AccountBalance(ctx context.Context, accountID int64, f balances.Filter) (balances.AccountBalance, error) {
	return r.account, nil
}

func (r *fakeBalanceRepo) AllAccountBalances(ctx context.Context, f balances.Filter) ([]balances.AccountBalance, error) {
	return []balances.AccountBalance{r.account}, nil
}

func (r *fakeBalanceRepo) SubledgerBalances(ctx context.Context, entityType journals.EntityType, f balances.Filter) ([]balances.SubledgerBalance, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (chi.Router, *fakeJournalRepo, *fakePeriodRepo) {
	t.Helper()
	journalRepo := newFakeJournalRepo()
	periodRepo := newFakePeriodRepo()

	periodService := periods.NewService(periodRepo, nil, false)
	balanceService := balances.NewService(&fakeBalanceRepo{
		account: balances.AccountBalance{AccountID: 1, Code: "1000", Type: accounts.AccountTypeAsset},
	}, nil)
	journalService := journals.NewService(journalRepo, periodService, nil, balanceService)
	accountService := accounts.NewService(&fakeAccountRepo{accounts: []accounts.Account{
		{ID: 1, Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, IsActive: true},
		{ID: 2, Code: "4000", Name: "Revenue", Type: accounts.AccountTypeIncome, IsActive: true},
	}})

	handler := NewHandler(slog.Default(), accountService, journalService, balanceService, periodService)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, journalRepo, periodRepo
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func createPayload(by string) map[string]any {
	return map[string]any{
		"date":        "2025-03-10",
		"description": "Consulting invoice",
		"created_by":  by,
		"lines": []map[string]any{
			{"account_id": 1, "debit": "150.00"},
			{"account_id": 2, "credit": "150.00"},
		},
	}
}

func TestEntryLifecycleOverHTTP(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/journal-entries", createPayload("alice"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "DRAFT", created.Status)
	require.Equal(t, "JE-00001", created.Number)
	require.Len(t, created.Lines, 2)

	base := fmt.Sprintf("/journal-entries/%d", created.ID)

	// Maker-checker: the creator cannot approve their own entry.
	rec = doJSON(t, r, http.MethodPost, base+"/approve", map[string]any{"by": "alice"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodPost, base+"/approve", map[string]any{"by": "bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, r, http.MethodPost, base+"/post", map[string]any{"by": "carol"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var posted entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posted))
	require.Equal(t, "POSTED", posted.Status)

	rec = doJSON(t, r, http.MethodPost, base+"/reverse", map[string]any{"by": "dana", "reason": "duplicate"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Original entryResponse `json:"original"`
		Reversal entryResponse `json:"reversal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "REVERSED", result.Original.Status)
	require.Equal(t, "POSTED", result.Reversal.Status)
	require.Equal(t, "REVERSAL", result.Reversal.SourceDocument)

	// A second reversal conflicts.
	rec = doJSON(t, r, http.MethodPost, base+"/reverse", map[string]any{"by": "dana"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateEntryValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)

	payload := createPayload("alice")
	payload["lines"] = []map[string]any{{"account_id": 1, "debit": "150.00"}}
	rec := doJSON(t, r, http.MethodPost, "/journal-entries", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload = createPayload("alice")
	payload["date"] = "10/03/2025"
	rec = doJSON(t, r, http.MethodPost, "/journal-entries", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload = createPayload("alice")
	payload["lines"].([]map[string]any)[1]["credit"] = "120.00"
	rec = doJSON(t, r, http.MethodPost, "/journal-entries", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEntryNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/journal-entries/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBlockedByClosedPeriod(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/fiscal-years", map[string]any{
		"name":       "FY2025",
		"start_date": "2025-01-01",
		"end_date":   "2025-12-31",
		"created_by": "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var fy fiscalYearResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fy))
	require.Len(t, fy.Periods, 12)

	// Close March, then posting into March conflicts.
	march := fy.Periods[2]
	rec = doJSON(t, r, http.MethodPost, fmt.Sprintf("/periods/%d/close", march.ID), map[string]any{"by": "controller"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, r, http.MethodPost, "/journal-entries", createPayload("alice"))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	// Reopen restores posting.
	rec = doJSON(t, r, http.MethodPost, fmt.Sprintf("/periods/%d/reopen", march.ID), map[string]any{"by": "controller"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/journal-entries", createPayload("alice"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Locking is terminal: reopen after lock conflicts.
	rec = doJSON(t, r, http.MethodPost, fmt.Sprintf("/periods/%d/lock", march.ID), map[string]any{"by": "cfo"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, r, http.MethodPost, fmt.Sprintf("/periods/%d/reopen", march.ID), map[string]any{"by": "controller"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestTrialBalanceEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/balances/trial-balance?from=2025-01-01&to=2025-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tb balances.TrialBalance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tb))
	require.Len(t, tb.Groups, 1)
}

func TestListAccountsEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var accs []accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accs))
	require.Len(t, accs, 2)
	require.Equal(t, "1000", accs[0].Code)
	require.Equal(t, "DEBIT", accs[0].NormalSide)
	require.Equal(t, "CREDIT", accs[1].NormalSide)
}

func TestSubledgerEndpointRejectsUnknownType(t *testing.T) {
	r, _, _ := newTestRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/balances/subledger/EMPLOYEE", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
