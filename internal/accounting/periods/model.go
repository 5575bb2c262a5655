package periods

import (
	"strings"
	"time"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
	PeriodStatusLocked PeriodStatus = "LOCKED"
)

// FiscalYearStatus enumerates fiscal year states.
type FiscalYearStatus string

const (
	FiscalYearStatusOpen   FiscalYearStatus = "OPEN"
	FiscalYearStatusClosed FiscalYearStatus = "CLOSED"
)

// AccountingPeriod represents a bounded posting window inside a fiscal year.
// Bounds are inclusive on both ends.
type AccountingPeriod struct {
	ID           int64
	FiscalYearID int64
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	Status       PeriodStatus
	ClosedBy     *string
	ClosedAt     *time.Time
	LockedBy     *string
	LockedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Contains reports whether date falls inside the period bounds.
func (p AccountingPeriod) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// FiscalYear owns an ordered run of monthly periods.
type FiscalYear struct {
	ID        int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Status    FiscalYearStatus
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Periods   []AccountingPeriod
}

// CreateFiscalYearInput carries parameters for CreateFiscalYear.
type CreateFiscalYearInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	CreatedBy string
}

// Validate checks the fiscal year input range.
func (in CreateFiscalYearInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errFiscalYearName
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return errFiscalYearDates
	}
	if in.StartDate.After(in.EndDate) {
		return errFiscalYearRange
	}
	return nil
}

// MonthlyPeriods slices [start, end] into consecutive month-aligned windows,
// at most twelve, the last clipped so it never exceeds end.
func MonthlyPeriods(start, end time.Time) []AccountingPeriod {
	var out []AccountingPeriod
	cursor := start
	for i := 0; i < 12 && !cursor.After(end); i++ {
		monthEnd := time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, cursor.Location()).
			AddDate(0, 1, -1)
		if monthEnd.After(end) {
			monthEnd = end
		}
		out = append(out, AccountingPeriod{
			Name:      cursor.Month().String() + " " + cursor.Format("2006"),
			StartDate: cursor,
			EndDate:   monthEnd,
			Status:    PeriodStatusOpen,
		})
		cursor = monthEnd.AddDate(0, 0, 1)
	}
	return out
}
