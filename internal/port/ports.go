// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/naywayne90/sygfp-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Sequencer allocates document numbers (ARTI/{exercice}/{direction}/{seq}).
type Sequencer interface {
	NextNumber(ctx context.Context, docType string, exercice int, directionCode string) (string, error)
}

// DossierStore defines all data operations for spending cases and their
// stage records. Implemented by the Supabase adapter.
type DossierStore interface {
	CreateDossier(ctx context.Context, d *domain.Dossier) (*domain.Dossier, error)
	GetDossier(ctx context.Context, id string) (*domain.Dossier, error)
	ListDossiers(ctx context.Context, exercice int, page, pageSize int) ([]domain.Dossier, error)
	UpdateDossier(ctx context.Context, id string, updates map[string]any) error

	// Etapes
	ListEtapes(ctx context.Context, dossierID string) ([]domain.Etape, error)
	UpsertEtape(ctx context.Context, e *domain.Etape) (*domain.Etape, error)
	DeleteEtape(ctx context.Context, id string) error
}

// BudgetStore defines all data operations for budget lines and credit
// transfers, plus the row reads feeding the aggregation.
type BudgetStore interface {
	CreateBudgetLine(ctx context.Context, l *domain.BudgetLine) (*domain.BudgetLine, error)
	GetBudgetLine(ctx context.Context, id string) (*domain.BudgetLine, error)
	ListBudgetLines(ctx context.Context, exercice int) ([]domain.BudgetLine, error)

	// Transfers
	CreateTransfer(ctx context.Context, t *domain.CreditTransfer) (*domain.CreditTransfer, error)
	GetTransfer(ctx context.Context, id string) (*domain.CreditTransfer, error)
	ListTransfers(ctx context.Context, exercice int) ([]domain.CreditTransfer, error)
	UpdateTransfer(ctx context.Context, id string, updates map[string]any) error

	// Aggregation row reads (pre-filtered per exercice)
	ListEngagementRows(ctx context.Context, exercice int) ([]domain.Engagement, error)
	ListLiquidationRows(ctx context.Context, exercice int) ([]domain.Liquidation, error)
	ListOrdonnancementRows(ctx context.Context, exercice int) ([]domain.Ordonnancement, error)
	ListReglementRows(ctx context.Context, exercice int) ([]domain.Reglement, error)
}

// ChainStore defines all data operations for the chain entities behind
// the dossier stages (engagements through règlements).
type ChainStore interface {
	CreateEngagement(ctx context.Context, e *domain.Engagement) (*domain.Engagement, error)
	GetEngagement(ctx context.Context, id string) (*domain.Engagement, error)
	ListEngagements(ctx context.Context, exercice int, page, pageSize int) ([]domain.Engagement, error)
	UpdateEngagement(ctx context.Context, id string, updates map[string]any) error

	CreateLiquidation(ctx context.Context, l *domain.Liquidation) (*domain.Liquidation, error)
	GetLiquidation(ctx context.Context, id string) (*domain.Liquidation, error)
	ListLiquidations(ctx context.Context, exercice int, page, pageSize int) ([]domain.Liquidation, error)
	UpdateLiquidation(ctx context.Context, id string, updates map[string]any) error

	CreateOrdonnancement(ctx context.Context, o *domain.Ordonnancement) (*domain.Ordonnancement, error)
	GetOrdonnancement(ctx context.Context, id string) (*domain.Ordonnancement, error)
	ListOrdonnancements(ctx context.Context, exercice int, page, pageSize int) ([]domain.Ordonnancement, error)
	UpdateOrdonnancement(ctx context.Context, id string, updates map[string]any) error

	CreateReglement(ctx context.Context, r *domain.Reglement) (*domain.Reglement, error)
	GetReglement(ctx context.Context, id string) (*domain.Reglement, error)
	ListReglements(ctx context.Context, exercice int, page, pageSize int) ([]domain.Reglement, error)
	UpdateReglement(ctx context.Context, id string, updates map[string]any) error
}

// AuditSink records mutating actions. Implementations must never fail
// the caller: audit writes are fire-and-forget.
type AuditSink interface {
	Record(ctx context.Context, entry *domain.AuditEntry)
}
