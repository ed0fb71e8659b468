package domain

import "time"

// AuditEntry is one QUI/QUOI/QUAND/OÙ/POURQUOI record written to the
// audit_logs table. Writes are fire-and-forget: audit failure never
// fails the primary operation.
type AuditEntry struct {
	ID         string         `json:"id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`   // qui
	EntityType string         `json:"entity_type"`         // quoi
	EntityID   string         `json:"entity_id"`           // quoi
	Action     string         `json:"action"`              // quoi
	Exercice   int            `json:"exercice,omitempty"`  // où
	Motif      string         `json:"motif,omitempty"`     // pourquoi
	OldValues  map[string]any `json:"old_values,omitempty"`
	NewValues  map[string]any `json:"new_values,omitempty"`
	CreatedAt  time.Time      `json:"created_at"` // quand
}
