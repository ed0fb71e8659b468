package supabase

import (
	"context"
	"time"

	"github.com/naywayne90/sygfp-go/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================
// Audit sink — fire-and-forget writes to audit_logs
// ============================================================

// Record writes one audit entry. Failures are logged and swallowed: the
// trail must never fail the primary operation. Callers pass a context
// detached from the request so in-flight entries survive cancellation.
func (c *Client) Record(ctx context.Context, entry *domain.AuditEntry) {
	ctx, span := tracer.Start(ctx, "Supabase.RecordAudit")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := c.doPost(ctx, "audit_logs", map[string]any{
		"id":          entry.ID,
		"user_id":     nullable(entry.UserID),
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"action":      entry.Action,
		"exercice":    entry.Exercice,
		"motif":       entry.Motif,
		"old_values":  entry.OldValues,
		"new_values":  entry.NewValues,
		"created_at":  entry.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		c.logger.Warn("audit: entry dropped",
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}
