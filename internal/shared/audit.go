package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions recorded by the engine.
const (
	AuditActionCreate  = "CREATE"
	AuditActionApprove = "APPROVE"
	AuditActionPost    = "POST"
	AuditActionReverse = "REVERSE"
	AuditActionLock    = "LOCK"
	AuditActionUpdate  = "UPDATE"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID     string
	Action      string
	Entity      string
	EntityID    string
	Before      any
	After       any
	Description string
	At          time.Time
}

// AuditPort is the append-only sink mutating operations write through.
type AuditPort interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	beforeJSON, err := marshalSnapshot(log.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalSnapshot(log.After)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (id, actor_id, action, entity, entity_id, before, after, description, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))`,
		uuid.NewString(), log.ActorID, log.Action, log.Entity, log.EntityID, beforeJSON, afterJSON, log.Description, at)
	return err
}

func marshalSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
