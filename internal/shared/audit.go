// Package shared carries the cross-cutting persistence helpers the domain
// modules lean on: the audit trail and the idempotent posting key store.
package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entity names used in the audit trail. Every module records against one of
// these so the trail can be filtered per aggregate.
const (
	EntityStockMovement   = "stock_movement"
	EntityBillOfMaterials = "bill_of_materials"
	EntityPurchaseOrder   = "purchase_order"
	EntityProductionOrder = "production_order"
)

// AuditLog is one row of the audit trail: who did what to which entity.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) complete() bool {
	return l.Action != "" && l.Entity != "" && l.EntityID != ""
}

// AuditLogger persists audit rows. Callers treat recording as best effort: a
// failed audit write never rolls back the business operation it describes.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns an AuditLogger writing to audit_logs.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists one entry. A zero At defaults to the database clock.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if !log.complete() {
		return errors.New("audit log requires action, entity and entity id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var occurredAt any
	if !log.At.IsZero() {
		occurredAt = log.At
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))`,
		log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, occurredAt)
	return err
}
