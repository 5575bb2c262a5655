package journals

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus enumerates the journal entry lifecycle.
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "DRAFT"
	EntryStatusApproved EntryStatus = "APPROVED"
	EntryStatusPosted   EntryStatus = "POSTED"
	EntryStatusReversed EntryStatus = "REVERSED"
)

// SourceDocument identifies the document type that produced an entry.
type SourceDocument string

const (
	SourceManual     SourceDocument = "MANUAL"
	SourceInvoice    SourceDocument = "INVOICE"
	SourceBill       SourceDocument = "BILL"
	SourcePayment    SourceDocument = "PAYMENT"
	SourceCreditNote SourceDocument = "CREDIT_NOTE"
	SourceReversal   SourceDocument = "REVERSAL"
)

// EntityType is the closed counterparty variant carried on subledger lines.
type EntityType string

const (
	EntityNone     EntityType = ""
	EntityCustomer EntityType = "CUSTOMER"
	EntityVendor   EntityType = "VENDOR"
)

// Valid reports whether the entity type is one of the known variants.
func (t EntityType) Valid() bool {
	switch t {
	case EntityNone, EntityCustomer, EntityVendor:
		return true
	}
	return false
}

// JournalEntry is the atomic unit of the ledger. Once POSTED its monetary
// fields and lines never change; only reversal linkage may be attached.
type JournalEntry struct {
	ID             int64
	Number         string
	Date           time.Time
	Description    string
	Status         EntryStatus
	SourceDocument SourceDocument
	SourceID       *string
	PeriodID       *int64
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
	AutoGenerated  bool
	CreatedBy      string
	CreatedAt      time.Time
	ApprovedBy     *string
	ApprovedAt     *time.Time
	PostedBy       *string
	PostedAt       *time.Time
	IdempotencyKey *string

	ReversedByEntryID *int64
	ReversalReason    *string
	ReversalDate      *time.Time

	UpdatedAt time.Time
	Lines     []JournalLine
}

// JournalLine is one debit-or-credit leg of an entry.
type JournalLine struct {
	ID           int64
	EntryID      int64
	LineNo       int
	AccountID    int64
	Description  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	CostCenterID *int64
	ProjectID    *int64
	TaxCode      *string
	TaxAmount    *decimal.Decimal
	EntityType   EntityType
	EntityID     *string
	CreatedAt    time.Time
}
