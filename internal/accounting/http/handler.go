package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridianledger/meridian/internal/accounting/accounts"
	"github.com/meridianledger/meridian/internal/accounting/balances"
	"github.com/meridianledger/meridian/internal/accounting/journals"
	"github.com/meridianledger/meridian/internal/accounting/periods"
	"github.com/meridianledger/meridian/internal/accounting/shared"
	"github.com/meridianledger/meridian/internal/platform/httpx"
)

// Handler exposes the ledger engine over JSON. It is a thin boundary: all
// business rules live in the services.
type Handler struct {
	logger   *slog.Logger
	accounts *accounts.Service
	journals *journals.Service
	balances *balances.Service
	periods  *periods.Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, as *accounts.Service, js *journals.Service, bs *balances.Service, ps *periods.Service) *Handler {
	return &Handler{
		logger:   logger,
		accounts: as,
		journals: js,
		balances: bs,
		periods:  ps,
		validate: validator.New(),
	}
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accs, err := h.accounts.List(r.Context())
	if err != nil {
		h.respondError(w, "list accounts", err)
		return
	}
	out := make([]accountResponse, 0, len(accs))
	for _, a := range accs {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.journals.Create(r.Context(), req.toInput())
	if err != nil {
		h.respondError(w, "create journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, err := h.journals.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journals.List(r.Context())
	if err != nil {
		h.respondError(w, "list journal entries", err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) ApproveEntry(w http.ResponseWriter, r *http.Request) {
	h.entryTransition(w, r, "approve journal entry", h.journals.Approve)
}

func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	h.entryTransition(w, r, "post journal entry", h.journals.Post)
}

func (h *Handler) entryTransition(w http.ResponseWriter, r *http.Request, what string, op func(context.Context, int64, string) (journals.JournalEntry, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := op(r.Context(), id, req.By)
	if err != nil {
		h.respondError(w, what, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	var req reverseEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := journals.ReverseInput{Reason: req.Reason, ReversedBy: req.By}
	if req.Date != nil {
		date, _ := time.Parse(dateLayout, *req.Date)
		in.ReversalDate = &date
	}
	original, reversal, err := h.journals.Reverse(r.Context(), id, in)
	if err != nil {
		h.respondError(w, "reverse journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"original": toEntryResponse(original),
		"reversal": toEntryResponse(reversal),
	})
}

func (h *Handler) HandleRounding(w http.ResponseWriter, r *http.Request) {
	var req roundingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, _ := time.Parse(dateLayout, req.Date)
	entry, err := h.journals.HandleRoundingDifference(r.Context(), journals.RoundingInput{
		Amount:         req.Amount,
		Date:           date,
		Description:    req.Description,
		SourceDocument: journals.SourceDocument(req.SourceDocument),
		SourceID:       req.SourceID,
		CreatedBy:      req.CreatedBy,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.respondError(w, "handle rounding difference", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	balance, err := h.balances.AccountBalance(r.Context(), id, parseFilter(r))
	if err != nil {
		h.respondError(w, "account balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.balances.TrialBalance(r.Context(), parseFilter(r))
	if err != nil {
		h.respondError(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) SubledgerBalances(w http.ResponseWriter, r *http.Request) {
	entityType := journals.EntityType(chi.URLParam(r, "entityType"))
	if !entityType.Valid() || entityType == journals.EntityNone {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown entity type")
		return
	}
	rows, err := h.balances.SubledgerBalances(r.Context(), entityType, parseFilter(r))
	if err != nil {
		h.respondError(w, "subledger balances", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) CreateFiscalYear(w http.ResponseWriter, r *http.Request) {
	var req createFiscalYearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)
	fy, err := h.periods.CreateFiscalYear(r.Context(), periods.CreateFiscalYearInput{
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.respondError(w, "create fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toFiscalYearResponse(fy))
}

func (h *Handler) LockPeriod(w http.ResponseWriter, r *http.Request) {
	h.periodTransition(w, r, "lock period", h.periods.Lock)
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	h.periodTransition(w, r, "close period", h.periods.Close)
}

func (h *Handler) ReopenPeriod(w http.ResponseWriter, r *http.Request) {
	h.periodTransition(w, r, "reopen period", h.periods.Reopen)
}

func (h *Handler) periodTransition(w http.ResponseWriter, r *http.Request, what string, op func(context.Context, int64, string) (periods.AccountingPeriod, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid period id")
		return
	}
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	period, err := op(r.Context(), id, req.By)
	if err != nil {
		h.respondError(w, what, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) respondError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidEntry),
		errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrAccountNotFound),
		errors.Is(err, shared.ErrThresholdExceeded):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, shared.ErrJournalNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrWrongState),
		errors.Is(err, shared.ErrSelfApproval),
		errors.Is(err, shared.ErrAlreadyReversed),
		errors.Is(err, shared.ErrPeriodNotFound),
		errors.Is(err, shared.ErrPeriodClosed),
		errors.Is(err, shared.ErrPeriodLocked),
		errors.Is(err, shared.ErrAlreadyOpen):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(what, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func parseFilter(r *http.Request) balances.Filter {
	var f balances.Filter
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if date, err := time.Parse(dateLayout, v); err == nil {
			f.From = &date
		}
	}
	if v := q.Get("to"); v != "" {
		if date, err := time.Parse(dateLayout, v); err == nil {
			f.To = &date
		}
	}
	if v := q.Get("cost_center_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.CostCenterID = &id
		}
	}
	if v := q.Get("project_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.ProjectID = &id
		}
	}
	return f
}
