package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridianledger/meridian/internal/accounting/shared"
	internalshared "github.com/meridianledger/meridian/internal/shared"
)

var (
	errFiscalYearName  = errors.New("periods: fiscal year name required")
	errFiscalYearDates = errors.New("periods: start and end date required")
	errFiscalYearRange = errors.New("periods: start date cannot be after end date")
)

// Service is both the period registry consulted by the journal engine and the
// fiscal-year administrator.
type Service struct {
	repo          Repository
	audit         internalshared.AuditPort
	allowUnmapped bool
	now           func() time.Time
}

func NewService(repo Repository, audit internalshared.AuditPort, allowUnmapped bool) *Service {
	return &Service{repo: repo, audit: audit, allowUnmapped: allowUnmapped, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// FindForDate returns the period containing date, regardless of status.
func (s *Service) FindForDate(ctx context.Context, date time.Time) (AccountingPeriod, error) {
	return s.repo.FindForDate(ctx, date)
}

// ValidateDate enforces the period write gate for a transaction date. A nil
// period with nil error means posting is allowed without a period: either no
// periods exist anywhere yet, or unmapped dates are explicitly allowed.
func (s *Service) ValidateDate(ctx context.Context, date time.Time) (*AccountingPeriod, error) {
	period, err := s.repo.FindForDate(ctx, date)
	if err != nil {
		if !errors.Is(err, shared.ErrPeriodNotFound) {
			return nil, err
		}
		if s.allowUnmapped {
			return nil, nil
		}
		count, err := s.repo.CountPeriods(ctx)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, nil
		}
		return nil, shared.ErrPeriodNotFound
	}
	switch period.Status {
	case PeriodStatusOpen:
		return &period, nil
	case PeriodStatusClosed:
		return nil, shared.ErrPeriodClosed
	case PeriodStatusLocked:
		return nil, shared.ErrPeriodLocked
	default:
		return nil, fmt.Errorf("periods: unknown status %q", period.Status)
	}
}

// GetPeriod loads a single period.
func (s *Service) GetPeriod(ctx context.Context, id int64) (AccountingPeriod, error) {
	return s.repo.GetPeriod(ctx, id)
}

// CreateFiscalYear creates the year and its monthly periods atomically.
func (s *Service) CreateFiscalYear(ctx context.Context, in CreateFiscalYearInput) (FiscalYear, error) {
	if err := in.Validate(); err != nil {
		return FiscalYear{}, err
	}
	var fy FiscalYear
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		inserted, err := s.repo.InsertFiscalYear(ctx, tx, in)
		if err != nil {
			return err
		}
		periods, err := s.repo.InsertPeriods(ctx, tx, inserted.ID, MonthlyPeriods(in.StartDate, in.EndDate))
		if err != nil {
			return err
		}
		inserted.Periods = periods
		fy = inserted
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, internalshared.AuditLog{
		ActorID:     in.CreatedBy,
		Action:      internalshared.AuditActionCreate,
		Entity:      "fiscal_year",
		EntityID:    fmt.Sprintf("%d", fy.ID),
		After:       map[string]any{"name": fy.Name, "periods": len(fy.Periods)},
		Description: "fiscal year created with monthly periods",
		At:          s.now(),
	})
	return fy, nil
}

// Lock irreversibly locks the period against further postings.
func (s *Service) Lock(ctx context.Context, periodID int64, by string) (AccountingPeriod, error) {
	return s.transition(ctx, periodID, by, internalshared.AuditActionLock, func(p *AccountingPeriod, at time.Time) error {
		if p.Status == PeriodStatusLocked {
			return shared.ErrPeriodLocked
		}
		p.Status = PeriodStatusLocked
		p.LockedBy = &by
		p.LockedAt = &at
		return nil
	})
}

// Close soft-closes the period from any prior state.
func (s *Service) Close(ctx context.Context, periodID int64, by string) (AccountingPeriod, error) {
	return s.transition(ctx, periodID, by, internalshared.AuditActionUpdate, func(p *AccountingPeriod, at time.Time) error {
		p.Status = PeriodStatusClosed
		p.ClosedBy = &by
		p.ClosedAt = &at
		return nil
	})
}

// Reopen reopens a closed period. Locked periods never reopen.
func (s *Service) Reopen(ctx context.Context, periodID int64, by string) (AccountingPeriod, error) {
	return s.transition(ctx, periodID, by, internalshared.AuditActionUpdate, func(p *AccountingPeriod, at time.Time) error {
		switch p.Status {
		case PeriodStatusLocked:
			return shared.ErrPeriodLocked
		case PeriodStatusOpen:
			return shared.ErrAlreadyOpen
		}
		p.Status = PeriodStatusOpen
		p.ClosedBy = nil
		p.ClosedAt = nil
		return nil
	})
}

func (s *Service) transition(ctx context.Context, periodID int64, by, action string, mutate func(*AccountingPeriod, time.Time) error) (AccountingPeriod, error) {
	var before, after AccountingPeriod
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := s.repo.GetPeriodForUpdate(ctx, tx, periodID)
		if err != nil {
			return err
		}
		before = current
		if err := mutate(&current, s.now()); err != nil {
			return err
		}
		if err := s.repo.UpdatePeriodStatus(ctx, tx, current); err != nil {
			return err
		}
		after = current
		return nil
	})
	if err != nil {
		return AccountingPeriod{}, err
	}
	s.record(ctx, internalshared.AuditLog{
		ActorID:     by,
		Action:      action,
		Entity:      "accounting_period",
		EntityID:    fmt.Sprintf("%d", after.ID),
		Before:      map[string]any{"status": before.Status},
		After:       map[string]any{"status": after.Status},
		Description: fmt.Sprintf("period %s moved from %s to %s", after.Name, before.Status, after.Status),
		At:          s.now(),
	})
	return after, nil
}

func (s *Service) record(ctx context.Context, log internalshared.AuditLog) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, log)
}
