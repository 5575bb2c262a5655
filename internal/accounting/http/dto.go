package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianledger/meridian/internal/accounting/accounts"
	"github.com/meridianledger/meridian/internal/accounting/journals"
	"github.com/meridianledger/meridian/internal/accounting/periods"
)

const dateLayout = "2006-01-02"

type lineRequest struct {
	AccountID    int64            `json:"account_id" validate:"required"`
	Description  string           `json:"description"`
	Debit        decimal.Decimal  `json:"debit"`
	Credit       decimal.Decimal  `json:"credit"`
	CostCenterID *int64           `json:"cost_center_id"`
	ProjectID    *int64           `json:"project_id"`
	TaxCode      *string          `json:"tax_code"`
	TaxAmount    *decimal.Decimal `json:"tax_amount"`
	EntityType   string           `json:"entity_type" validate:"omitempty,oneof=CUSTOMER VENDOR"`
	EntityID     *string          `json:"entity_id"`
}

type createEntryRequest struct {
	Date           string        `json:"date" validate:"required,datetime=2006-01-02"`
	Description    string        `json:"description"`
	SourceDocument string        `json:"source_document" validate:"omitempty,oneof=MANUAL INVOICE BILL PAYMENT CREDIT_NOTE"`
	SourceID       *string       `json:"source_id"`
	AutoPost       bool          `json:"auto_post"`
	CreatedBy      string        `json:"created_by" validate:"required"`
	IdempotencyKey *string       `json:"idempotency_key"`
	Lines          []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (r createEntryRequest) toInput() journals.CreateInput {
	date, _ := time.Parse(dateLayout, r.Date)
	in := journals.CreateInput{
		Date:           date,
		Description:    r.Description,
		SourceDocument: journals.SourceDocument(r.SourceDocument),
		SourceID:       r.SourceID,
		AutoPost:       r.AutoPost,
		CreatedBy:      r.CreatedBy,
		IdempotencyKey: r.IdempotencyKey,
	}
	for _, line := range r.Lines {
		in.Lines = append(in.Lines, journals.LineInput{
			AccountID:    line.AccountID,
			Description:  line.Description,
			Debit:        line.Debit,
			Credit:       line.Credit,
			CostCenterID: line.CostCenterID,
			ProjectID:    line.ProjectID,
			TaxCode:      line.TaxCode,
			TaxAmount:    line.TaxAmount,
			EntityType:   journals.EntityType(line.EntityType),
			EntityID:     line.EntityID,
		})
	}
	return in
}

type actorRequest struct {
	By string `json:"by" validate:"required"`
}

type reverseEntryRequest struct {
	Date   *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Reason string  `json:"reason"`
	By     string  `json:"by" validate:"required"`
}

type roundingRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Date           string          `json:"date" validate:"required,datetime=2006-01-02"`
	Description    string          `json:"description"`
	SourceDocument string          `json:"source_document" validate:"omitempty,oneof=MANUAL INVOICE BILL PAYMENT CREDIT_NOTE"`
	SourceID       *string         `json:"source_id"`
	CreatedBy      string          `json:"created_by" validate:"required"`
	IdempotencyKey *string         `json:"idempotency_key"`
}

type createFiscalYearRequest struct {
	Name      string `json:"name" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	CreatedBy string `json:"created_by" validate:"required"`
}

type lineResponse struct {
	LineNo       int              `json:"line_no"`
	AccountID    int64            `json:"account_id"`
	Description  string           `json:"description,omitempty"`
	Debit        decimal.Decimal  `json:"debit"`
	Credit       decimal.Decimal  `json:"credit"`
	CostCenterID *int64           `json:"cost_center_id,omitempty"`
	ProjectID    *int64           `json:"project_id,omitempty"`
	TaxCode      *string          `json:"tax_code,omitempty"`
	TaxAmount    *decimal.Decimal `json:"tax_amount,omitempty"`
	EntityType   string           `json:"entity_type,omitempty"`
	EntityID     *string          `json:"entity_id,omitempty"`
}

type entryResponse struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	Date           string          `json:"date"`
	Description    string          `json:"description,omitempty"`
	Status         string          `json:"status"`
	SourceDocument string          `json:"source_document"`
	SourceID       *string         `json:"source_id,omitempty"`
	PeriodID       *int64          `json:"period_id,omitempty"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
	AutoGenerated  bool            `json:"auto_generated"`
	CreatedBy      string          `json:"created_by"`
	ApprovedBy     *string         `json:"approved_by,omitempty"`
	PostedBy       *string         `json:"posted_by,omitempty"`
	ReversedBy     *int64          `json:"reversed_by_entry_id,omitempty"`
	ReversalReason *string         `json:"reversal_reason,omitempty"`
	Lines          []lineResponse  `json:"lines,omitempty"`
}

func toEntryResponse(e journals.JournalEntry) entryResponse {
	out := entryResponse{
		ID:             e.ID,
		Number:         e.Number,
		Date:           e.Date.Format(dateLayout),
		Description:    e.Description,
		Status:         string(e.Status),
		SourceDocument: string(e.SourceDocument),
		SourceID:       e.SourceID,
		PeriodID:       e.PeriodID,
		TotalDebit:     e.TotalDebit,
		TotalCredit:    e.TotalCredit,
		AutoGenerated:  e.AutoGenerated,
		CreatedBy:      e.CreatedBy,
		ApprovedBy:     e.ApprovedBy,
		PostedBy:       e.PostedBy,
		ReversedBy:     e.ReversedByEntryID,
		ReversalReason: e.ReversalReason,
	}
	for _, line := range e.Lines {
		out.Lines = append(out.Lines, lineResponse{
			LineNo:       line.LineNo,
			AccountID:    line.AccountID,
			Description:  line.Description,
			Debit:        line.Debit,
			Credit:       line.Credit,
			CostCenterID: line.CostCenterID,
			ProjectID:    line.ProjectID,
			TaxCode:      line.TaxCode,
			TaxAmount:    line.TaxAmount,
			EntityType:   string(line.EntityType),
			EntityID:     line.EntityID,
		})
	}
	return out
}

type accountResponse struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	NormalSide string `json:"normal_side"`
	IsActive   bool   `json:"is_active"`
}

func toAccountResponse(a accounts.Account) accountResponse {
	return accountResponse{
		ID:         a.ID,
		Code:       a.Code,
		Name:       a.Name,
		Type:       string(a.Type),
		NormalSide: string(a.Type.NormalSide()),
		IsActive:   a.IsActive,
	}
}

type periodResponse struct {
	ID           int64  `json:"id"`
	FiscalYearID int64  `json:"fiscal_year_id"`
	Name         string `json:"name"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Status       string `json:"status"`
}

func toPeriodResponse(p periods.AccountingPeriod) periodResponse {
	return periodResponse{
		ID:           p.ID,
		FiscalYearID: p.FiscalYearID,
		Name:         p.Name,
		StartDate:    p.StartDate.Format(dateLayout),
		EndDate:      p.EndDate.Format(dateLayout),
		Status:       string(p.Status),
	}
}

type fiscalYearResponse struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Status    string           `json:"status"`
	Periods   []periodResponse `json:"periods"`
}

func toFiscalYearResponse(fy periods.FiscalYear) fiscalYearResponse {
	out := fiscalYearResponse{
		ID:        fy.ID,
		Name:      fy.Name,
		StartDate: fy.StartDate.Format(dateLayout),
		EndDate:   fy.EndDate.Format(dateLayout),
		Status:    string(fy.Status),
	}
	for _, p := range fy.Periods {
		out.Periods = append(out.Periods, toPeriodResponse(p))
	}
	return out
}
