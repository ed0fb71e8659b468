package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/naywayne90/sygfp-go/internal/budget"
	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/infra/observability"
	"github.com/naywayne90/sygfp-go/internal/infra/resilience"
	"github.com/naywayne90/sygfp-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var budgetTracer = otel.Tracer("service/budget")

// BudgetService orchestrates the budget nomenclature, credit transfers
// and the availability aggregation.
type BudgetService struct {
	store    port.BudgetStore
	cache    port.Cache[[]domain.BudgetAvailability]
	bulkhead *resilience.Bulkhead
	audit    port.AuditSink
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewBudgetService creates a new budget service.
func NewBudgetService(store port.BudgetStore, cache port.Cache[[]domain.BudgetAvailability], bulkhead *resilience.Bulkhead, audit port.AuditSink, metrics *observability.Metrics, logger *zap.Logger) *BudgetService {
	return &BudgetService{store: store, cache: cache, bulkhead: bulkhead, audit: audit, metrics: metrics, logger: logger}
}

func availKey(exercice int) string {
	return fmt.Sprintf("availability:%d", exercice)
}

// ============================================================
// Budget lines
// ============================================================

func (s *BudgetService) CreateLine(ctx context.Context, actor domain.Actor, req *domain.CreateBudgetLineRequest) (*domain.BudgetLine, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.CreateLine")
	defer span.End()
	span.SetAttributes(attribute.String("ligne.code", req.Code))

	if req.Code == "" {
		return nil, &domain.ErrValidation{Field: "code", Message: "code obligatoire"}
	}
	if req.Libelle == "" {
		return nil, &domain.ErrValidation{Field: "libelle", Message: "libellé obligatoire"}
	}
	if req.Exercice <= 0 {
		return nil, &domain.ErrValidation{Field: "exercice", Message: "exercice obligatoire"}
	}
	if req.DotationInitiale < 0 {
		return nil, &domain.ErrValidation{Field: "dotation_initiale", Message: "dotation négative"}
	}

	now := time.Now()
	created, err := s.store.CreateBudgetLine(ctx, &domain.BudgetLine{
		ID:               uuid.NewString(),
		Code:             req.Code,
		Libelle:          req.Libelle,
		Exercice:         req.Exercice,
		DirectionID:      req.DirectionID,
		ParentID:         req.ParentID,
		Niveau:           req.Niveau,
		DotationInitiale: req.DotationInitiale,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(availKey(req.Exercice))
	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "budget_line",
		EntityID:   created.ID,
		Action:     "CREATE",
		Exercice:   created.Exercice,
		NewValues:  map[string]any{"code": created.Code, "dotation_initiale": created.DotationInitiale},
	})
	return created, nil
}

func (s *BudgetService) GetLine(ctx context.Context, id string) (*domain.BudgetLine, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.GetLine")
	defer span.End()

	return s.store.GetBudgetLine(ctx, id)
}

func (s *BudgetService) ListLines(ctx context.Context, exercice int) ([]domain.BudgetLine, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.ListLines")
	defer span.End()
	span.SetAttributes(attribute.Int("budget.exercice", exercice))

	return s.store.ListBudgetLines(ctx, exercice)
}

// ============================================================
// Availability aggregation
// ============================================================

// Availability computes consumption for every line of the exercice.
// Results are cached with a short TTL; the six row reads fan out in
// parallel behind the bulkhead.
func (s *BudgetService) Availability(ctx context.Context, exercice int) ([]domain.BudgetAvailability, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Availability")
	defer span.End()
	span.SetAttributes(attribute.Int("budget.exercice", exercice))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("budget_availability", time.Since(start)) }()

	key := availKey(exercice)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("budget_availability")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("budget_availability")

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	var in budget.Input
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Lines, err = s.store.ListBudgetLines(gctx, exercice)
		return err
	})
	g.Go(func() (err error) {
		in.Transfers, err = s.store.ListTransfers(gctx, exercice)
		return err
	})
	g.Go(func() (err error) {
		in.Engagements, err = s.store.ListEngagementRows(gctx, exercice)
		return err
	})
	g.Go(func() (err error) {
		in.Liquidations, err = s.store.ListLiquidationRows(gctx, exercice)
		return err
	})
	g.Go(func() (err error) {
		in.Ordonnancements, err = s.store.ListOrdonnancementRows(gctx, exercice)
		return err
	})
	g.Go(func() (err error) {
		in.Reglements, err = s.store.ListReglementRows(gctx, exercice)
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.IncrExternalError("supabase")
		return nil, err
	}

	out := budget.Compute(exercice, in)
	for _, a := range out {
		if a.Depassement {
			s.metrics.IncrDepassement(strconv.Itoa(exercice))
			s.logger.Warn("dépassement budgétaire",
				zap.String("ligne", a.Code),
				zap.Float64("disponible", a.Disponible),
			)
		}
	}

	s.cache.Set(key, out)
	return out, nil
}

// LineAvailability returns the computed state of one line.
func (s *BudgetService) LineAvailability(ctx context.Context, exercice int, ligneID string) (*domain.BudgetAvailability, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.LineAvailability")
	defer span.End()

	all, err := s.Availability(ctx, exercice)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].LigneID == ligneID {
			return &all[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "ligne budgétaire", ID: ligneID}
}

// Summary totals every line of the exercice.
func (s *BudgetService) Summary(ctx context.Context, exercice int) (*domain.BudgetSummary, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Summary")
	defer span.End()

	all, err := s.Availability(ctx, exercice)
	if err != nil {
		return nil, err
	}
	summary := budget.Summarize(exercice, all)
	return &summary, nil
}

// Tree returns the hierarchical roll-up over the nomenclature.
func (s *BudgetService) Tree(ctx context.Context, exercice int) ([]domain.BudgetTreeNode, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Tree")
	defer span.End()

	all, err := s.Availability(ctx, exercice)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.ListBudgetLines(ctx, exercice)
	if err != nil {
		return nil, err
	}
	return budget.Tree(lines, all), nil
}

// CheckEngagement answers the availability guard for an engagement
// without creating anything.
func (s *BudgetService) CheckEngagement(ctx context.Context, exercice int, ligneID string, montant float64) (*domain.AvailabilityCheck, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.CheckEngagement")
	defer span.End()

	a, err := s.LineAvailability(ctx, exercice, ligneID)
	if err != nil {
		return nil, err
	}
	check := budget.CheckEngagement(*a, montant)
	return &check, nil
}

// InvalidateAvailability drops the cached aggregation for an exercice.
// Called by the chain service after any write that moves consumption.
func (s *BudgetService) InvalidateAvailability(exercice int) {
	s.cache.Delete(availKey(exercice))
}

// ============================================================
// Credit transfers
// ============================================================

// CreateTransfer opens a transfer request between two lines. The source
// must carry enough available credit at request time; the check is
// repeated at approval.
func (s *BudgetService) CreateTransfer(ctx context.Context, actor domain.Actor, req *domain.CreateTransferRequest) (*domain.CreditTransfer, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.CreateTransfer")
	defer span.End()
	span.SetAttributes(attribute.Float64("virement.montant", req.Montant))

	if req.Montant <= 0 {
		return nil, &domain.ErrValidation{Field: "montant", Message: "montant invalide"}
	}
	if req.SourceLigneID == req.DestLigneID {
		return nil, &domain.ErrValidation{Field: "ligne_destination_id", Message: "source et destination identiques"}
	}
	if _, err := s.store.GetBudgetLine(ctx, req.SourceLigneID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetBudgetLine(ctx, req.DestLigneID); err != nil {
		return nil, err
	}

	source, err := s.LineAvailability(ctx, req.Exercice, req.SourceLigneID)
	if err != nil {
		return nil, err
	}
	if check := budget.CheckVirement(*source, req.Montant); !check.Possible {
		return nil, &domain.ErrInsufficientCredit{
			LigneID:   req.SourceLigneID,
			Available: check.Disponible,
			Required:  req.Montant,
		}
	}

	now := time.Now()
	created, err := s.store.CreateTransfer(ctx, &domain.CreditTransfer{
		ID:            uuid.NewString(),
		Exercice:      req.Exercice,
		SourceLigneID: req.SourceLigneID,
		DestLigneID:   req.DestLigneID,
		Montant:       req.Montant,
		Motif:         req.Motif,
		Status:        domain.TransferPending,
		RequestedBy:   actor.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "credit_transfer",
		EntityID:   created.ID,
		Action:     "CREATE",
		Exercice:   created.Exercice,
		Motif:      created.Motif,
		NewValues:  map[string]any{"montant": created.Montant, "source": created.SourceLigneID, "destination": created.DestLigneID},
	})
	return created, nil
}

func (s *BudgetService) GetTransfer(ctx context.Context, id string) (*domain.CreditTransfer, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.GetTransfer")
	defer span.End()

	return s.store.GetTransfer(ctx, id)
}

func (s *BudgetService) ListTransfers(ctx context.Context, exercice int) ([]domain.CreditTransfer, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.ListTransfers")
	defer span.End()

	return s.store.ListTransfers(ctx, exercice)
}

// canDecideTransfer limits transfer decisions to budget control.
func canDecideTransfer(actor domain.Actor) bool {
	return actor.IsAdmin() || actor.HasAnyRole(domain.RoleCB, domain.RoleDG)
}

// ApproveTransfer approves a pending transfer. The source availability
// is re-checked: engagements validated since the request may have
// consumed the credit.
func (s *BudgetService) ApproveTransfer(ctx context.Context, actor domain.Actor, id string) (*domain.CreditTransfer, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.ApproveTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("virement.id", id))

	if !canDecideTransfer(actor) {
		return nil, &domain.ErrForbidden{Action: "approuver un virement"}
	}
	t, err := s.store.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TransferPending {
		return nil, &domain.ErrInvalidTransition{Entity: "virement", From: string(t.Status), Action: "APPROVE"}
	}

	source, err := s.LineAvailability(ctx, t.Exercice, t.SourceLigneID)
	if err != nil {
		return nil, err
	}
	if check := budget.CheckVirement(*source, t.Montant); !check.Possible {
		return nil, &domain.ErrInsufficientCredit{
			LigneID:   t.SourceLigneID,
			Available: check.Disponible,
			Required:  t.Montant,
		}
	}

	if err := s.store.UpdateTransfer(ctx, id, map[string]any{
		"statut":      string(domain.TransferApproved),
		"decideur_id": actor.UserID,
	}); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "credit_transfer",
		EntityID:   id,
		Action:     "APPROVE",
		Exercice:   t.Exercice,
		OldValues:  map[string]any{"statut": string(t.Status)},
		NewValues:  map[string]any{"statut": string(domain.TransferApproved)},
	})
	return s.store.GetTransfer(ctx, id)
}

// ExecuteTransfer moves the allocation. From this point the transfer
// counts in dotation_actuelle on both lines.
func (s *BudgetService) ExecuteTransfer(ctx context.Context, actor domain.Actor, id string) (*domain.CreditTransfer, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.ExecuteTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("virement.id", id))

	if !canDecideTransfer(actor) {
		return nil, &domain.ErrForbidden{Action: "exécuter un virement"}
	}
	t, err := s.store.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TransferApproved {
		return nil, &domain.ErrInvalidTransition{Entity: "virement", From: string(t.Status), Action: "EXECUTE"}
	}

	if err := s.store.UpdateTransfer(ctx, id, map[string]any{
		"statut": string(domain.TransferExecuted),
	}); err != nil {
		return nil, err
	}
	s.cache.Delete(availKey(t.Exercice))

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "credit_transfer",
		EntityID:   id,
		Action:     "EXECUTE",
		Exercice:   t.Exercice,
		NewValues:  map[string]any{"statut": string(domain.TransferExecuted)},
	})

	s.logger.Info("virement exécuté",
		zap.String("virement_id", id),
		zap.Float64("montant", t.Montant),
	)
	return s.store.GetTransfer(ctx, id)
}

// RejectTransfer refuses a pending transfer. A motif is mandatory.
func (s *BudgetService) RejectTransfer(ctx context.Context, actor domain.Actor, id, motif string) (*domain.CreditTransfer, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.RejectTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("virement.id", id))

	if !canDecideTransfer(actor) {
		return nil, &domain.ErrForbidden{Action: "rejeter un virement"}
	}
	if motif == "" {
		return nil, &domain.ErrMotifRequired{Action: "REJECT"}
	}
	t, err := s.store.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TransferPending {
		return nil, &domain.ErrInvalidTransition{Entity: "virement", From: string(t.Status), Action: "REJECT"}
	}

	if err := s.store.UpdateTransfer(ctx, id, map[string]any{
		"statut":      string(domain.TransferRejected),
		"motif":       motif,
		"decideur_id": actor.UserID,
	}); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "credit_transfer",
		EntityID:   id,
		Action:     "REJECT",
		Exercice:   t.Exercice,
		Motif:      motif,
		NewValues:  map[string]any{"statut": string(domain.TransferRejected)},
	})
	return s.store.GetTransfer(ctx, id)
}
