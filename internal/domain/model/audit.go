package model

import (
	"encoding/json"
	"time"
)

// AdminAuditLog is the immutable record of one privileged mutation, with
// before/after snapshots for traceability of grading-affecting changes.
type AdminAuditLog struct {
	ID         string          `json:"id"`
	AdminID    string          `json:"admin_id"`
	Action     string          `json:"action"`      // e.g. "REORDER_STEPS"
	EntityType string          `json:"entity_type"` // e.g. "course", "problem"
	EntityID   *string         `json:"entity_id,omitempty"`
	OldValue   json.RawMessage `json:"old_value,omitempty"`
	NewValue   json.RawMessage `json:"new_value,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// AuditEvent is the fire-and-forget wire form pushed onto the audit queue.
type AuditEvent struct {
	AdminID    string          `json:"admin_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   *string         `json:"entity_id,omitempty"`
	OldValue   json.RawMessage `json:"old_value,omitempty"`
	NewValue   json.RawMessage `json:"new_value,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
