package shared

import "errors"

var (
	// ErrInvalidEntry indicates a malformed line set.
	ErrInvalidEntry = errors.New("gl: invalid journal entry")
	// ErrUnbalanced indicates debits and credits differ beyond tolerance.
	ErrUnbalanced = errors.New("gl: journal lines must balance")
	// ErrAccountNotFound indicates a missing or inactive account reference.
	ErrAccountNotFound = errors.New("gl: account not found or inactive")
	// ErrJournalNotFound indicates a missing entry.
	ErrJournalNotFound = errors.New("gl: journal entry not found")
	// ErrWrongState indicates the entry is not in a state allowing the transition.
	ErrWrongState = errors.New("gl: transition not allowed from current status")
	// ErrSelfApproval indicates the approver created the entry.
	ErrSelfApproval = errors.New("gl: approver must differ from creator")
	// ErrAlreadyReversed indicates the entry already has a reversal.
	ErrAlreadyReversed = errors.New("gl: journal entry already reversed")
	// ErrPeriodNotFound indicates no period covers the transaction date.
	ErrPeriodNotFound = errors.New("gl: no accounting period for date")
	// ErrPeriodClosed indicates the matching period is closed.
	ErrPeriodClosed = errors.New("gl: accounting period closed")
	// ErrPeriodLocked indicates the matching period is locked.
	ErrPeriodLocked = errors.New("gl: accounting period locked")
	// ErrAlreadyOpen indicates a reopen on an open period.
	ErrAlreadyOpen = errors.New("gl: accounting period already open")
	// ErrThresholdExceeded indicates a rounding difference above the allowed bound.
	ErrThresholdExceeded = errors.New("gl: rounding difference exceeds threshold")
)
