package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan re-verifies the balance invariant over posted entries.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
)

// LedgerIntegrityPayload bounds the scan to entries posted in the trailing window.
type LedgerIntegrityPayload struct {
	WindowDays int `json:"window_days"`
}

// NewLedgerIntegrityTask constructs the scan task.
func NewLedgerIntegrityTask(windowDays int) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{WindowDays: windowDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}
