package journals

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianledger/meridian/internal/accounting/periods"
	"github.com/meridianledger/meridian/internal/accounting/sequence"
	"github.com/meridianledger/meridian/internal/accounting/shared"
	internalshared "github.com/meridianledger/meridian/internal/shared"
)

// idempotencyConstraint is the unique index backing the idempotency key.
const idempotencyConstraint = "uq_journal_entries_idempotency_key"

// PeriodGuard re-validates the transaction date against the period registry.
// It runs at create time and again at post time because a period may have
// been closed or locked in the interim.
type PeriodGuard interface {
	ValidateDate(ctx context.Context, date time.Time) (*periods.AccountingPeriod, error)
}

// BalanceInvalidator is notified after every successfully posted entry so
// cached balance reads never outlive the data they were derived from.
type BalanceInvalidator interface {
	Bump(ctx context.Context) error
}

// Service owns the journal entry lifecycle and the balance invariant.
type Service struct {
	repo  Repository
	guard PeriodGuard
	audit internalshared.AuditPort
	cache BalanceInvalidator
	now   func() time.Time

	coa          AccountDirectory
	roundingCode string
	suspenseCode string
}

func NewService(repo Repository, guard PeriodGuard, audit internalshared.AuditPort, cache BalanceInvalidator) *Service {
	return &Service{repo: repo, guard: guard, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get loads an entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// List returns entry headers, newest first.
func (s *Service) List(ctx context.Context) ([]JournalEntry, error) {
	return s.repo.List(ctx)
}

// Create validates and persists a new journal entry. When in.IdempotencyKey
// matches an existing entry the stored entry is returned unchanged, whatever
// the rest of the payload says; that is the retry contract for document
// approval flows.
func (s *Service) Create(ctx context.Context, in CreateInput) (JournalEntry, error) {
	if in.SourceDocument == "" {
		in.SourceDocument = SourceManual
	}
	if key := derefKey(in.IdempotencyKey); key != "" {
		existing, ok, err := s.repo.GetEntryByIdempotencyKey(ctx, key)
		if err != nil {
			return JournalEntry{}, err
		}
		if ok {
			return existing, nil
		}
	}
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if !in.Balanced() {
		debit, credit := in.Totals()
		return JournalEntry{}, fmt.Errorf("%w: debits %s vs credits %s", shared.ErrUnbalanced, debit, credit)
	}

	entry, err := s.createTx(ctx, in)
	if err != nil {
		// Two concurrent retries can both miss the lookup and race on the
		// unique index; the loser returns the winner's entry.
		if key := derefKey(in.IdempotencyKey); key != "" && IsUniqueViolation(err, idempotencyConstraint) {
			existing, ok, lookupErr := s.repo.GetEntryByIdempotencyKey(ctx, key)
			if lookupErr == nil && ok {
				return existing, nil
			}
		}
		return JournalEntry{}, err
	}

	action := internalshared.AuditActionCreate
	if entry.Status == EntryStatusPosted {
		action = internalshared.AuditActionPost
	}
	s.record(ctx, internalshared.AuditLog{
		ActorID:  in.CreatedBy,
		Action:   action,
		Entity:   "journal_entries",
		EntityID: fmt.Sprintf("%d", entry.ID),
		After: map[string]any{
			"number":       entry.Number,
			"status":       entry.Status,
			"total_debit":  entry.TotalDebit.StringFixed(2),
			"total_credit": entry.TotalCredit.StringFixed(2),
		},
		Description: fmt.Sprintf("journal entry %s created as %s", entry.Number, entry.Status),
		At:          s.now(),
	})
	if entry.Status == EntryStatusPosted {
		s.bump(ctx)
	}
	return entry, nil
}

func (s *Service) createTx(ctx context.Context, in CreateInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if key := derefKey(in.IdempotencyKey); key != "" {
			existing, ok, err := tx.FindByIdempotencyKey(ctx, key)
			if err != nil {
				return err
			}
			if ok {
				entry = existing
				return nil
			}
		}

		ids := uniqueAccountIDs(in.Lines)
		resolved, err := tx.ResolveAccounts(ctx, ids)
		if err != nil {
			return err
		}
		var bad []int64
		for _, id := range ids {
			acct, ok := resolved[id]
			if !ok || !acct.IsActive {
				bad = append(bad, id)
			}
		}
		if len(bad) > 0 {
			return fmt.Errorf("%w: %v", shared.ErrAccountNotFound, bad)
		}

		period, err := s.guard.ValidateDate(ctx, in.Date)
		if err != nil {
			return err
		}

		number, err := tx.NextSequence(ctx, sequence.PrefixJournalEntry)
		if err != nil {
			return err
		}

		debit, credit := in.Totals()
		e := JournalEntry{
			Number:         number,
			Date:           in.Date,
			Description:    in.Description,
			Status:         EntryStatusDraft,
			SourceDocument: in.SourceDocument,
			SourceID:       in.SourceID,
			TotalDebit:     debit,
			TotalCredit:    credit,
			AutoGenerated:  in.AutoPost,
			CreatedBy:      in.CreatedBy,
			IdempotencyKey: in.IdempotencyKey,
		}
		if period != nil {
			e.PeriodID = &period.ID
		}
		if in.AutoPost {
			// System-generated entries skip the human approval step; the
			// creator is stamped as approver and poster.
			now := s.now()
			by := in.CreatedBy
			e.Status = EntryStatusPosted
			e.ApprovedBy, e.ApprovedAt = &by, &now
			e.PostedBy, e.PostedAt = &by, &now
		}

		inserted, err := tx.InsertEntry(ctx, e)
		if err != nil {
			return err
		}
		saved, err := tx.InsertLines(ctx, inserted.ID, buildLines(in.Lines))
		if err != nil {
			return err
		}
		inserted.Lines = saved
		entry = inserted
		return nil
	})
	return entry, err
}

// Approve moves a draft entry to Approved. The approver must differ from the
// creator (maker-checker).
func (s *Service) Approve(ctx context.Context, id int64, approvedBy string) (JournalEntry, error) {
	var before, entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before = current
		if current.Status != EntryStatusDraft {
			return shared.ErrWrongState
		}
		if current.CreatedBy == approvedBy {
			return shared.ErrSelfApproval
		}
		now := s.now()
		current.Status = EntryStatusApproved
		current.ApprovedBy = &approvedBy
		current.ApprovedAt = &now
		if err := tx.UpdateEntry(ctx, current); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordTransition(ctx, approvedBy, internalshared.AuditActionApprove, before, entry,
		fmt.Sprintf("journal entry %s approved", entry.Number))
	return entry, nil
}

// Post moves an approved entry to Posted, making it visible to balance
// queries and immutable.
func (s *Service) Post(ctx context.Context, id int64, postedBy string) (JournalEntry, error) {
	var before, entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before = current
		if current.Status != EntryStatusApproved {
			return shared.ErrWrongState
		}
		if _, err := s.guard.ValidateDate(ctx, current.Date); err != nil {
			return err
		}
		now := s.now()
		current.Status = EntryStatusPosted
		current.PostedBy = &postedBy
		current.PostedAt = &now
		if err := tx.UpdateEntry(ctx, current); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordTransition(ctx, postedBy, internalshared.AuditActionPost, before, entry,
		fmt.Sprintf("journal entry %s posted", entry.Number))
	s.bump(ctx)
	return entry, nil
}

// Reverse creates a new posted entry mirroring the original with debit and
// credit swapped, and marks the original Reversed. Both entries remain
// permanently; nothing is deleted.
func (s *Service) Reverse(ctx context.Context, id int64, in ReverseInput) (JournalEntry, JournalEntry, error) {
	reversalDate := s.now()
	if in.ReversalDate != nil {
		reversalDate = *in.ReversalDate
	}
	var original, reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryWithLinesForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.ReversedByEntryID != nil {
			return shared.ErrAlreadyReversed
		}
		if current.Status != EntryStatusPosted {
			return shared.ErrWrongState
		}
		period, err := s.guard.ValidateDate(ctx, reversalDate)
		if err != nil {
			return err
		}
		number, err := tx.NextSequence(ctx, sequence.PrefixJournalEntry)
		if err != nil {
			return err
		}

		now := s.now()
		by := in.ReversedBy
		srcID := fmt.Sprintf("%d", current.ID)
		rev := JournalEntry{
			Number:         number,
			Date:           reversalDate,
			Description:    reversalDescription(in.Reason, current.Number),
			Status:         EntryStatusPosted,
			SourceDocument: SourceReversal,
			SourceID:       &srcID,
			TotalDebit:     current.TotalCredit,
			TotalCredit:    current.TotalDebit,
			AutoGenerated:  true,
			CreatedBy:      by,
			ApprovedBy:     &by,
			ApprovedAt:     &now,
			PostedBy:       &by,
			PostedAt:       &now,
		}
		if period != nil {
			rev.PeriodID = &period.ID
		}
		inserted, err := tx.InsertEntry(ctx, rev)
		if err != nil {
			return err
		}
		savedLines, err := tx.InsertLines(ctx, inserted.ID, reverseLines(current.Lines))
		if err != nil {
			return err
		}
		inserted.Lines = savedLines

		current.Status = EntryStatusReversed
		current.ReversedByEntryID = &inserted.ID
		current.ReversalDate = &reversalDate
		if in.Reason != "" {
			reason := in.Reason
			current.ReversalReason = &reason
		}
		if err := tx.UpdateEntry(ctx, current); err != nil {
			return err
		}
		original, reversal = current, inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, JournalEntry{}, err
	}
	s.record(ctx, internalshared.AuditLog{
		ActorID:  in.ReversedBy,
		Action:   internalshared.AuditActionReverse,
		Entity:   "journal_entries",
		EntityID: fmt.Sprintf("%d", original.ID),
		Before:   map[string]any{"status": EntryStatusPosted},
		After: map[string]any{
			"status":          original.Status,
			"reversal_entry":  reversal.ID,
			"reversal_number": reversal.Number,
		},
		Description: fmt.Sprintf("journal entry %s reversed by %s", original.Number, reversal.Number),
		At:          s.now(),
	})
	s.bump(ctx)
	return original, reversal, nil
}

func buildLines(inputs []LineInput) []JournalLine {
	out := make([]JournalLine, 0, len(inputs))
	for idx, in := range inputs {
		out = append(out, JournalLine{
			LineNo:       idx + 1,
			AccountID:    in.AccountID,
			Description:  in.Description,
			Debit:        in.Debit,
			Credit:       in.Credit,
			CostCenterID: in.CostCenterID,
			ProjectID:    in.ProjectID,
			TaxCode:      in.TaxCode,
			TaxAmount:    in.TaxAmount,
			EntityType:   in.EntityType,
			EntityID:     in.EntityID,
		})
	}
	return out
}

func reverseLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		rev := JournalLine{
			LineNo:       line.LineNo,
			AccountID:    line.AccountID,
			Description:  line.Description,
			Debit:        line.Credit,
			Credit:       line.Debit,
			CostCenterID: line.CostCenterID,
			ProjectID:    line.ProjectID,
			TaxCode:      line.TaxCode,
			EntityType:   line.EntityType,
			EntityID:     line.EntityID,
		}
		if line.TaxAmount != nil {
			negated := line.TaxAmount.Neg()
			rev.TaxAmount = &negated
		}
		out = append(out, rev)
	}
	return out
}

func uniqueAccountIDs(lines []LineInput) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	var ids []int64
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}

func reversalDescription(reason, number string) string {
	if reason != "" {
		return fmt.Sprintf("Reversal of %s: %s", number, reason)
	}
	return fmt.Sprintf("Reversal of %s", number)
}

func derefKey(key *string) string {
	if key == nil {
		return ""
	}
	return *key
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Bump(ctx)
}

func (s *Service) record(ctx context.Context, log internalshared.AuditLog) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, log)
}

func (s *Service) recordTransition(ctx context.Context, actor, action string, before, after JournalEntry, description string) {
	s.record(ctx, internalshared.AuditLog{
		ActorID:     actor,
		Action:      action,
		Entity:      "journal_entries",
		EntityID:    fmt.Sprintf("%d", after.ID),
		Before:      map[string]any{"status": before.Status},
		After:       map[string]any{"status": after.Status},
		Description: description,
		At:          s.now(),
	})
}
