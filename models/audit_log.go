package models

import (
	"fmt"
	"time"
)

// AuditAction is the kind of row change an audit event records
type AuditAction string

const (
	AuditActionInsert AuditAction = "INSERT"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// Valid reports whether the action is one of the three captured kinds
func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionInsert, AuditActionUpdate, AuditActionDelete:
		return true
	}
	return false
}

// AuditEvent is one append-only row of the audit log
type AuditEvent struct {
	ID        int64       `json:"id" db:"id"`
	Timestamp time.Time   `json:"ts" db:"ts"`
	TableName string      `json:"table_name" db:"table_name"`
	Action    AuditAction `json:"action" db:"action"`
	EntityID  *string     `json:"entity_id" db:"entity_id"`
	OldValues Snapshot    `json:"old_values" db:"old_values"`
	NewValues Snapshot    `json:"new_values" db:"new_values"`
}

// AuditLogTable is the table audit events are stored in
const AuditLogTable = "audit_log"

// NewAuditEvent creates an event for a change to table. The ID and
// timestamp are assigned by the store on append.
func NewAuditEvent(table string, action AuditAction) *AuditEvent {
	return &AuditEvent{
		TableName: table,
		Action:    action,
	}
}

// WithEntity sets the primary key of the changed row
func (e *AuditEvent) WithEntity(entityID string) *AuditEvent {
	e.EntityID = &entityID
	return e
}

// WithOld sets the pre-image
func (e *AuditEvent) WithOld(s Snapshot) *AuditEvent {
	e.OldValues = s
	return e
}

// WithNew sets the post-image
func (e *AuditEvent) WithNew(s Snapshot) *AuditEvent {
	e.NewValues = s
	return e
}

// Validate checks the snapshot presence rules for the event's action:
// INSERT carries only a post-image, DELETE only a pre-image, UPDATE both.
func (e *AuditEvent) Validate() error {
	if e.TableName == "" {
		return fmt.Errorf("audit event: table name is required")
	}
	switch e.Action {
	case AuditActionInsert:
		if e.OldValues != nil || e.NewValues == nil {
			return fmt.Errorf("audit event: INSERT requires new values only")
		}
	case AuditActionUpdate:
		if e.OldValues == nil || e.NewValues == nil {
			return fmt.Errorf("audit event: UPDATE requires old and new values")
		}
	case AuditActionDelete:
		if e.OldValues == nil || e.NewValues != nil {
			return fmt.Errorf("audit event: DELETE requires old values only")
		}
	default:
		return fmt.Errorf("audit event: unknown action %q", e.Action)
	}
	return nil
}
