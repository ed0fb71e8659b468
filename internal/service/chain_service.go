package service

import (
	"context"
	"fmt"
	"time"

	"github.com/naywayne90/sygfp-go/internal/budget"
	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/infra/observability"
	"github.com/naywayne90/sygfp-go/internal/port"
	"github.com/naywayne90/sygfp-go/internal/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var chainTracer = otel.Tracer("service/chain")

// ChainService orchestrates the chain entities behind the dossier
// stages: engagements, liquidations, ordonnancements and règlements.
// Every validated write invalidates the budget aggregation and syncs
// the dossier timeline.
type ChainService struct {
	store    port.ChainStore
	budgets  *BudgetService
	dossiers *DossierService
	seq      port.Sequencer
	audit    port.AuditSink
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewChainService creates a new chain service.
func NewChainService(store port.ChainStore, budgets *BudgetService, dossiers *DossierService, seq port.Sequencer, audit port.AuditSink, metrics *observability.Metrics, logger *zap.Logger) *ChainService {
	return &ChainService{store: store, budgets: budgets, dossiers: dossiers, seq: seq, audit: audit, metrics: metrics, logger: logger}
}

// syncEtape pushes the entity state onto the dossier timeline. Best
// effort: the validated entity stands even if the timeline write fails.
func (s *ChainService) syncEtape(ctx context.Context, actor domain.Actor, dossierID string, stage domain.Stage, req *domain.StepStatusRequest) {
	if dossierID == "" || s.dossiers == nil {
		return
	}
	if _, err := s.dossiers.UpdateStepStatus(ctx, dossierID, stage, actor, req); err != nil {
		s.logger.Warn("timeline sync failed",
			zap.String("dossier_id", dossierID),
			zap.String("etape", string(stage)),
			zap.Error(err),
		)
	}
}

// ============================================================
// Engagements
// ============================================================

// CreateEngagement opens a budgetary commitment in brouillon. The line
// must carry enough available credit; an overrun refuses the creation.
func (s *ChainService) CreateEngagement(ctx context.Context, actor domain.Actor, req *domain.CreateEngagementRequest) (*domain.Engagement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.CreateEngagement")
	defer span.End()
	span.SetAttributes(
		attribute.String("engagement.ligne_id", req.LigneID),
		attribute.Float64("engagement.montant", req.Montant),
	)

	if !workflow.CanOwn(domain.StageEngagement, actor) {
		return nil, &domain.ErrForbidden{Action: "créer un engagement"}
	}
	if req.Objet == "" {
		return nil, &domain.ErrValidation{Field: "objet", Message: "objet obligatoire"}
	}
	if req.Montant <= 0 {
		return nil, &domain.ErrValidation{Field: "montant", Message: "montant invalide"}
	}
	if req.LigneID == "" {
		return nil, &domain.ErrValidation{Field: "ligne_id", Message: "ligne budgétaire obligatoire"}
	}

	avail, err := s.budgets.LineAvailability(ctx, req.Exercice, req.LigneID)
	if err != nil {
		return nil, err
	}
	if check := budget.CheckEngagement(*avail, req.Montant); !check.Possible {
		return nil, &domain.ErrInsufficientCredit{
			LigneID:   req.LigneID,
			Available: check.Disponible,
			Required:  req.Montant,
		}
	}

	numero, err := s.seq.NextNumber(ctx, "ENGAGEMENT", req.Exercice, req.DirectionID)
	if err != nil {
		return nil, fmt.Errorf("allocate engagement numero: %w", err)
	}

	now := time.Now()
	created, err := s.store.CreateEngagement(ctx, &domain.Engagement{
		ID:          uuid.NewString(),
		Numero:      numero,
		Exercice:    req.Exercice,
		DossierID:   req.DossierID,
		LigneID:     req.LigneID,
		DirectionID: req.DirectionID,
		Objet:       req.Objet,
		Montant:     req.Montant,
		Statut:      domain.StatutBrouillon,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "engagement",
		EntityID:   created.ID,
		Action:     "CREATE",
		Exercice:   created.Exercice,
		NewValues:  map[string]any{"numero": created.Numero, "montant": created.Montant, "ligne_id": created.LigneID},
	})

	s.logger.Info("engagement created",
		zap.String("engagement_id", created.ID),
		zap.String("numero", created.Numero),
		zap.Float64("montant", created.Montant),
	)
	return created, nil
}

func (s *ChainService) GetEngagement(ctx context.Context, id string) (*domain.Engagement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.GetEngagement")
	defer span.End()

	return s.store.GetEngagement(ctx, id)
}

func (s *ChainService) ListEngagements(ctx context.Context, exercice, page, pageSize int) ([]domain.Engagement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.ListEngagements")
	defer span.End()

	return s.store.ListEngagements(ctx, exercice, page, pageSize)
}

// EngagementActions lists the workflow edges open to the actor.
func (s *ChainService) EngagementActions(ctx context.Context, actor domain.Actor, id string) ([]workflow.TransitionRule, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.EngagementActions")
	defer span.End()

	e, err := s.store.GetEngagement(ctx, id)
	if err != nil {
		return nil, err
	}
	return workflow.AvailableActions(domain.StageEngagement, e.Statut, actor, e.Montant), nil
}

// EngagementAction applies one workflow action. The visa chain stamps
// the acting user and date on the matching visa columns; reaching
// valide consumes the credit and completes the dossier stage.
func (s *ChainService) EngagementAction(ctx context.Context, actor domain.Actor, id string, req *domain.TransitionActionRequest) (*domain.Engagement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.EngagementAction")
	defer span.End()
	span.SetAttributes(
		attribute.String("engagement.id", id),
		attribute.String("action", string(req.Action)),
	)

	e, err := s.store.GetEngagement(ctx, id)
	if err != nil {
		return nil, err
	}
	newStatut, err := workflow.ApplyAction(domain.StageEngagement, e.Statut, req.Action, actor, e.Montant, req.Motif)
	if err != nil {
		s.metrics.IncrTransition(string(domain.StageEngagement), "refused")
		return nil, err
	}

	now := time.Now()
	updates := map[string]any{"statut": string(newStatut)}
	switch newStatut {
	case domain.StatutVisaSAF:
		updates["visa_saf_user_id"] = actor.UserID
		updates["visa_saf_date"] = now.Format(time.RFC3339)
	case domain.StatutVisaCB:
		updates["visa_cb_user_id"] = actor.UserID
		updates["visa_cb_date"] = now.Format(time.RFC3339)
	case domain.StatutVisaDAAF:
		updates["visa_daaf_user_id"] = actor.UserID
		updates["visa_daaf_date"] = now.Format(time.RFC3339)
	case domain.StatutRejete, domain.StatutDiffere:
		updates["motif"] = req.Motif
	}

	if err := s.store.UpdateEngagement(ctx, id, updates); err != nil {
		return nil, err
	}
	s.budgets.InvalidateAvailability(e.Exercice)
	s.metrics.IncrTransition(string(domain.StageEngagement), string(req.Action))

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "engagement",
		EntityID:   id,
		Action:     string(req.Action),
		Exercice:   e.Exercice,
		Motif:      req.Motif,
		OldValues:  map[string]any{"statut": string(e.Statut)},
		NewValues:  map[string]any{"statut": string(newStatut)},
	})

	switch {
	case workflow.IsValidatedStatus(newStatut):
		s.syncEtape(ctx, actor, e.DossierID, domain.StageEngagement, &domain.StepStatusRequest{
			Status:    domain.StepCompleted,
			EntityID:  e.ID,
			Reference: e.Numero,
			Montant:   e.Montant,
		})
	case newStatut == domain.StatutRejete:
		s.syncEtape(ctx, actor, e.DossierID, domain.StageEngagement, &domain.StepStatusRequest{
			Status:   domain.StepRejected,
			Motif:    req.Motif,
			EntityID: e.ID,
		})
	}
	return s.store.GetEngagement(ctx, id)
}

// ============================================================
// Liquidations
// ============================================================

// CreateLiquidation certifies service rendered against a validated
// engagement. The liquidated amount may not exceed the engaged one.
func (s *ChainService) CreateLiquidation(ctx context.Context, actor domain.Actor, req *domain.CreateLiquidationRequest) (*domain.Liquidation, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.CreateLiquidation")
	defer span.End()
	span.SetAttributes(attribute.String("liquidation.engagement_id", req.EngagementID))

	if !workflow.CanOwn(domain.StageLiquidation, actor) {
		return nil, &domain.ErrForbidden{Action: "créer une liquidation"}
	}
	if req.Montant <= 0 {
		return nil, &domain.ErrValidation{Field: "montant", Message: "montant invalide"}
	}

	e, err := s.store.GetEngagement(ctx, req.EngagementID)
	if err != nil {
		return nil, err
	}
	if !workflow.IsValidatedStatus(e.Statut) {
		return nil, &domain.ErrInvalidTransition{
			Entity: "liquidation", From: string(e.Statut), Action: "CREATE",
			Reason: "l'engagement doit être validé d'abord",
		}
	}
	if req.Montant > e.Montant {
		return nil, &domain.ErrValidation{
			Field:   "montant",
			Message: fmt.Sprintf("montant liquidé supérieur à l'engagement (%.0f FCFA)", e.Montant),
		}
	}

	numero, err := s.seq.NextNumber(ctx, "LIQUIDATION", req.Exercice, e.DirectionID)
	if err != nil {
		return nil, fmt.Errorf("allocate liquidation numero: %w", err)
	}

	now := time.Now()
	created, err := s.store.CreateLiquidation(ctx, &domain.Liquidation{
		ID:           uuid.NewString(),
		Numero:       numero,
		Exercice:     req.Exercice,
		EngagementID: req.EngagementID,
		DossierID:    e.DossierID,
		Objet:        req.Objet,
		Montant:      req.Montant,
		Statut:       domain.StatutBrouillon,
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "liquidation",
		EntityID:   created.ID,
		Action:     "CREATE",
		Exercice:   created.Exercice,
		NewValues:  map[string]any{"numero": created.Numero, "montant": created.Montant, "engagement_id": created.EngagementID},
	})
	return created, nil
}

func (s *ChainService) GetLiquidation(ctx context.Context, id string) (*domain.Liquidation, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.GetLiquidation")
	defer span.End()

	return s.store.GetLiquidation(ctx, id)
}

func (s *ChainService) ListLiquidations(ctx context.Context, exercice, page, pageSize int) ([]domain.Liquidation, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.ListLiquidations")
	defer span.End()

	return s.store.ListLiquidations(ctx, exercice, page, pageSize)
}

// LiquidationAction applies one workflow action. Liquidations at or
// above the DG threshold must travel through en_validation_dg.
func (s *ChainService) LiquidationAction(ctx context.Context, actor domain.Actor, id string, req *domain.TransitionActionRequest) (*domain.Liquidation, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.LiquidationAction")
	defer span.End()
	span.SetAttributes(
		attribute.String("liquidation.id", id),
		attribute.String("action", string(req.Action)),
	)

	l, err := s.store.GetLiquidation(ctx, id)
	if err != nil {
		return nil, err
	}
	newStatut, err := workflow.ApplyAction(domain.StageLiquidation, l.Statut, req.Action, actor, l.Montant, req.Motif)
	if err != nil {
		s.metrics.IncrTransition(string(domain.StageLiquidation), "refused")
		return nil, err
	}

	updates := map[string]any{"statut": string(newStatut)}
	if newStatut == domain.StatutRejete || newStatut == domain.StatutDiffere {
		updates["motif"] = req.Motif
	}
	if err := s.store.UpdateLiquidation(ctx, id, updates); err != nil {
		return nil, err
	}
	s.budgets.InvalidateAvailability(l.Exercice)
	s.metrics.IncrTransition(string(domain.StageLiquidation), string(req.Action))

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "liquidation",
		EntityID:   id,
		Action:     string(req.Action),
		Exercice:   l.Exercice,
		Motif:      req.Motif,
		OldValues:  map[string]any{"statut": string(l.Statut)},
		NewValues:  map[string]any{"statut": string(newStatut)},
	})

	if workflow.IsValidatedStatus(newStatut) {
		s.syncEtape(ctx, actor, l.DossierID, domain.StageLiquidation, &domain.StepStatusRequest{
			Status:    domain.StepCompleted,
			EntityID:  l.ID,
			Reference: l.Numero,
			Montant:   l.Montant,
		})
	}
	return s.store.GetLiquidation(ctx, id)
}

// ============================================================
// Ordonnancements
// ============================================================

// CreateOrdonnancement issues the payment order for a validated
// liquidation.
func (s *ChainService) CreateOrdonnancement(ctx context.Context, actor domain.Actor, req *domain.CreateOrdonnancementRequest) (*domain.Ordonnancement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.CreateOrdonnancement")
	defer span.End()
	span.SetAttributes(attribute.String("ordonnancement.liquidation_id", req.LiquidationID))

	if !workflow.CanOwn(domain.StageOrdonnancement, actor) {
		return nil, &domain.ErrForbidden{Action: "créer un ordonnancement"}
	}
	if req.Montant <= 0 {
		return nil, &domain.ErrValidation{Field: "montant", Message: "montant invalide"}
	}

	l, err := s.store.GetLiquidation(ctx, req.LiquidationID)
	if err != nil {
		return nil, err
	}
	if !workflow.IsValidatedStatus(l.Statut) {
		return nil, &domain.ErrInvalidTransition{
			Entity: "ordonnancement", From: string(l.Statut), Action: "CREATE",
			Reason: "la liquidation doit être validée d'abord",
		}
	}
	if req.Montant > l.Montant {
		return nil, &domain.ErrValidation{
			Field:   "montant",
			Message: fmt.Sprintf("montant ordonnancé supérieur à la liquidation (%.0f FCFA)", l.Montant),
		}
	}

	numero, err := s.seq.NextNumber(ctx, "ORDONNANCEMENT", req.Exercice, "")
	if err != nil {
		return nil, fmt.Errorf("allocate ordonnancement numero: %w", err)
	}

	now := time.Now()
	created, err := s.store.CreateOrdonnancement(ctx, &domain.Ordonnancement{
		ID:            uuid.NewString(),
		Numero:        numero,
		Exercice:      req.Exercice,
		LiquidationID: req.LiquidationID,
		DossierID:     l.DossierID,
		Montant:       req.Montant,
		Statut:        domain.StatutBrouillon,
		CreatedBy:     actor.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "ordonnancement",
		EntityID:   created.ID,
		Action:     "CREATE",
		Exercice:   created.Exercice,
		NewValues:  map[string]any{"numero": created.Numero, "montant": created.Montant, "liquidation_id": created.LiquidationID},
	})
	return created, nil
}

func (s *ChainService) GetOrdonnancement(ctx context.Context, id string) (*domain.Ordonnancement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.GetOrdonnancement")
	defer span.End()

	return s.store.GetOrdonnancement(ctx, id)
}

func (s *ChainService) ListOrdonnancements(ctx context.Context, exercice, page, pageSize int) ([]domain.Ordonnancement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.ListOrdonnancements")
	defer span.End()

	return s.store.ListOrdonnancements(ctx, exercice, page, pageSize)
}

// OrdonnancementAction applies one workflow action. Signing stamps the
// signataire and completes the dossier stage.
func (s *ChainService) OrdonnancementAction(ctx context.Context, actor domain.Actor, id string, req *domain.TransitionActionRequest) (*domain.Ordonnancement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.OrdonnancementAction")
	defer span.End()
	span.SetAttributes(
		attribute.String("ordonnancement.id", id),
		attribute.String("action", string(req.Action)),
	)

	o, err := s.store.GetOrdonnancement(ctx, id)
	if err != nil {
		return nil, err
	}
	newStatut, err := workflow.ApplyAction(domain.StageOrdonnancement, o.Statut, req.Action, actor, o.Montant, req.Motif)
	if err != nil {
		s.metrics.IncrTransition(string(domain.StageOrdonnancement), "refused")
		return nil, err
	}

	now := time.Now()
	updates := map[string]any{"statut": string(newStatut)}
	switch newStatut {
	case domain.StatutSigne:
		updates["signataire_id"] = actor.UserID
		updates["date_signature"] = now.Format(time.RFC3339)
	case domain.StatutRejete, domain.StatutDiffere:
		updates["motif"] = req.Motif
	}
	if err := s.store.UpdateOrdonnancement(ctx, id, updates); err != nil {
		return nil, err
	}
	s.budgets.InvalidateAvailability(o.Exercice)
	s.metrics.IncrTransition(string(domain.StageOrdonnancement), string(req.Action))

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "ordonnancement",
		EntityID:   id,
		Action:     string(req.Action),
		Exercice:   o.Exercice,
		Motif:      req.Motif,
		OldValues:  map[string]any{"statut": string(o.Statut)},
		NewValues:  map[string]any{"statut": string(newStatut)},
	})

	if newStatut == domain.StatutSigne {
		s.syncEtape(ctx, actor, o.DossierID, domain.StageOrdonnancement, &domain.StepStatusRequest{
			Status:    domain.StepCompleted,
			EntityID:  o.ID,
			Reference: o.Numero,
			Montant:   o.Montant,
		})
	}
	return s.store.GetOrdonnancement(ctx, id)
}

// ============================================================
// Règlements
// ============================================================

// CreateReglement opens the settlement of a signed payment order.
func (s *ChainService) CreateReglement(ctx context.Context, actor domain.Actor, req *domain.CreateReglementRequest) (*domain.Reglement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.CreateReglement")
	defer span.End()
	span.SetAttributes(attribute.String("reglement.ordonnancement_id", req.OrdonnancementID))

	if !workflow.CanOwn(domain.StageReglement, actor) {
		return nil, &domain.ErrForbidden{Action: "créer un règlement"}
	}
	if req.Montant <= 0 {
		return nil, &domain.ErrValidation{Field: "montant", Message: "montant invalide"}
	}

	o, err := s.store.GetOrdonnancement(ctx, req.OrdonnancementID)
	if err != nil {
		return nil, err
	}
	if o.Statut != domain.StatutSigne {
		return nil, &domain.ErrInvalidTransition{
			Entity: "reglement", From: string(o.Statut), Action: "CREATE",
			Reason: "l'ordonnancement doit être signé d'abord",
		}
	}
	if req.Montant > o.Montant {
		return nil, &domain.ErrValidation{
			Field:   "montant",
			Message: fmt.Sprintf("montant réglé supérieur à l'ordonnancement (%.0f FCFA)", o.Montant),
		}
	}

	numero, err := s.seq.NextNumber(ctx, "REGLEMENT", req.Exercice, "")
	if err != nil {
		return nil, fmt.Errorf("allocate reglement numero: %w", err)
	}

	now := time.Now()
	created, err := s.store.CreateReglement(ctx, &domain.Reglement{
		ID:               uuid.NewString(),
		Numero:           numero,
		Exercice:         req.Exercice,
		OrdonnancementID: req.OrdonnancementID,
		DossierID:        o.DossierID,
		Montant:          req.Montant,
		ModePaiement:     req.ModePaiement,
		Statut:           domain.StatutBrouillon,
		CreatedBy:        actor.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "reglement",
		EntityID:   created.ID,
		Action:     "CREATE",
		Exercice:   created.Exercice,
		NewValues:  map[string]any{"numero": created.Numero, "montant": created.Montant, "ordonnancement_id": created.OrdonnancementID},
	})
	return created, nil
}

func (s *ChainService) GetReglement(ctx context.Context, id string) (*domain.Reglement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.GetReglement")
	defer span.End()

	return s.store.GetReglement(ctx, id)
}

func (s *ChainService) ListReglements(ctx context.Context, exercice, page, pageSize int) ([]domain.Reglement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.ListReglements")
	defer span.End()

	return s.store.ListReglements(ctx, exercice, page, pageSize)
}

// ReglementAction applies one workflow action. PAY stamps the payment
// date; CLOSE terminates the chain and completes the whole dossier.
func (s *ChainService) ReglementAction(ctx context.Context, actor domain.Actor, id string, req *domain.TransitionActionRequest) (*domain.Reglement, error) {
	ctx, span := chainTracer.Start(ctx, "ChainService.ReglementAction")
	defer span.End()
	span.SetAttributes(
		attribute.String("reglement.id", id),
		attribute.String("action", string(req.Action)),
	)

	r, err := s.store.GetReglement(ctx, id)
	if err != nil {
		return nil, err
	}
	newStatut, err := workflow.ApplyAction(domain.StageReglement, r.Statut, req.Action, actor, r.Montant, req.Motif)
	if err != nil {
		s.metrics.IncrTransition(string(domain.StageReglement), "refused")
		return nil, err
	}

	now := time.Now()
	updates := map[string]any{"statut": string(newStatut)}
	switch newStatut {
	case domain.StatutPaye:
		updates["date_paiement"] = now.Format(time.RFC3339)
	case domain.StatutRejete, domain.StatutDiffere:
		updates["motif"] = req.Motif
	}
	if err := s.store.UpdateReglement(ctx, id, updates); err != nil {
		return nil, err
	}
	s.budgets.InvalidateAvailability(r.Exercice)
	s.metrics.IncrTransition(string(domain.StageReglement), string(req.Action))

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "reglement",
		EntityID:   id,
		Action:     string(req.Action),
		Exercice:   r.Exercice,
		Motif:      req.Motif,
		OldValues:  map[string]any{"statut": string(r.Statut)},
		NewValues:  map[string]any{"statut": string(newStatut)},
	})

	if newStatut == domain.StatutPaye || newStatut == domain.StatutCloture {
		s.syncEtape(ctx, actor, r.DossierID, domain.StageReglement, &domain.StepStatusRequest{
			Status:    domain.StepCompleted,
			EntityID:  r.ID,
			Reference: r.Numero,
			Montant:   r.Montant,
		})
	}
	return s.store.GetReglement(ctx, id)
}
