package service

import (
	"context"
	"fmt"
	"time"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/infra/observability"
	"github.com/naywayne90/sygfp-go/internal/port"
	"github.com/naywayne90/sygfp-go/internal/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var dossierTracer = otel.Tracer("service/dossier")

// DossierService orchestrates spending cases: creation, timeline
// derivation and stage transitions along the expenditure chain.
type DossierService struct {
	store   port.DossierStore
	seq     port.Sequencer
	audit   port.AuditSink
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDossierService creates a new dossier service.
func NewDossierService(store port.DossierStore, seq port.Sequencer, audit port.AuditSink, metrics *observability.Metrics, logger *zap.Logger) *DossierService {
	return &DossierService{store: store, seq: seq, audit: audit, metrics: metrics, logger: logger}
}

// Create opens a new dossier at the first stage of the chain and
// allocates its numero from the exercice/direction sequence.
func (s *DossierService) Create(ctx context.Context, actor domain.Actor, req *domain.CreateDossierRequest) (*domain.Dossier, error) {
	ctx, span := dossierTracer.Start(ctx, "DossierService.Create")
	defer span.End()
	span.SetAttributes(attribute.Int("dossier.exercice", req.Exercice))

	if req.Objet == "" {
		return nil, &domain.ErrValidation{Field: "objet", Message: "objet obligatoire"}
	}
	if req.Montant <= 0 {
		return nil, &domain.ErrValidation{Field: "montant_estime", Message: "montant estimé invalide"}
	}
	if req.Exercice <= 0 {
		return nil, &domain.ErrValidation{Field: "exercice", Message: "exercice obligatoire"}
	}

	numero, err := s.seq.NextNumber(ctx, "DOSSIER", req.Exercice, req.DirectionID)
	if err != nil {
		return nil, fmt.Errorf("allocate dossier numero: %w", err)
	}

	now := time.Now()
	d := &domain.Dossier{
		ID:           uuid.NewString(),
		Numero:       numero,
		Exercice:     req.Exercice,
		DirectionID:  req.DirectionID,
		Objet:        req.Objet,
		Montant:      req.Montant,
		CurrentStage: domain.StageNoteSEF,
		Status:       domain.CaseInProgress,
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.store.CreateDossier(ctx, d)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "dossier",
		EntityID:   created.ID,
		Action:     "CREATE",
		Exercice:   created.Exercice,
		NewValues:  map[string]any{"numero": created.Numero, "objet": created.Objet, "montant_estime": created.Montant},
	})

	s.logger.Info("dossier created",
		zap.String("dossier_id", created.ID),
		zap.String("numero", created.Numero),
		zap.Int("exercice", created.Exercice),
	)
	return created, nil
}

// Get returns a dossier with its derived 9-step timeline.
func (s *DossierService) Get(ctx context.Context, id string) (*domain.DossierDetail, error) {
	ctx, span := dossierTracer.Start(ctx, "DossierService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("dossier.id", id))

	d, err := s.store.GetDossier(ctx, id)
	if err != nil {
		return nil, err
	}
	etapes, err := s.store.ListEtapes(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.DossierDetail{
		Dossier: *d,
		Steps:   workflow.DeriveSteps(d, etapes),
	}, nil
}

// List returns dossiers of an exercice, paginated.
func (s *DossierService) List(ctx context.Context, exercice, page, pageSize int) ([]domain.Dossier, error) {
	ctx, span := dossierTracer.Start(ctx, "DossierService.List")
	defer span.End()
	span.SetAttributes(attribute.Int("dossier.exercice", exercice))

	return s.store.ListDossiers(ctx, exercice, page, pageSize)
}

// Transitions returns the verdict for every stage of the chain for this
// actor, in chain order.
func (s *DossierService) Transitions(ctx context.Context, id string, actor domain.Actor) ([]domain.TransitionCheck, error) {
	ctx, span := dossierTracer.Start(ctx, "DossierService.Transitions")
	defer span.End()

	d, err := s.store.GetDossier(ctx, id)
	if err != nil {
		return nil, err
	}
	etapes, err := s.store.ListEtapes(ctx, id)
	if err != nil {
		return nil, err
	}
	return workflow.AvailableTransitions(d, etapes, actor), nil
}

// Transition moves the dossier to the target stage. The current stage is
// recorded completed, any stages jumped over by the shortcut edge are
// recorded skipped, then the pointer moves. The etape writes and the
// pointer update are compensated on failure: records created here are
// deleted so the dossier never points past a hole in its timeline.
func (s *DossierService) Transition(ctx context.Context, id string, actor domain.Actor, req *domain.TransitionRequest) (*domain.DossierDetail, error) {
	ctx, span := dossierTracer.Start(ctx, "DossierService.Transition")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("dossier_transition", time.Since(start)) }()
	span.SetAttributes(
		attribute.String("dossier.id", id),
		attribute.String("transition.target", string(req.Target)),
	)

	d, err := s.store.GetDossier(ctx, id)
	if err != nil {
		return nil, err
	}
	etapes, err := s.store.ListEtapes(ctx, id)
	if err != nil {
		return nil, err
	}

	check := workflow.CanTransitionTo(d, etapes, req.Target, actor)
	if !check.Allowed {
		s.metrics.IncrTransition(string(req.Target), "refused")
		return nil, &domain.ErrInvalidTransition{
			Entity: "dossier",
			From:   string(d.CurrentStage),
			Action: string(req.Target),
			Reason: check.Reason,
		}
	}

	from := d.CurrentStage
	now := time.Now()
	var created []string

	// Saga: every etape record written here is remembered and deleted
	// if a later write fails. Records that pre-existed are left alone.
	compensate := func() {
		for _, eid := range created {
			if derr := s.store.DeleteEtape(ctx, eid); derr != nil {
				s.logger.Error("transition compensation failed",
					zap.String("dossier_id", id),
					zap.String("etape_id", eid),
					zap.Error(derr),
				)
			}
		}
	}

	upsert := func(e *domain.Etape) error {
		existed := false
		for i := range etapes {
			if etapes[i].Stage == e.Stage {
				existed = true
				break
			}
		}
		saved, uerr := s.store.UpsertEtape(ctx, e)
		if uerr != nil {
			return uerr
		}
		if !existed {
			created = append(created, saved.ID)
		}
		return nil
	}

	if err := upsert(&domain.Etape{
		DossierID:   id,
		Stage:       from,
		Status:      domain.StepCompleted,
		EntityID:    req.EntityID,
		Reference:   req.Reference,
		Montant:     req.Montant,
		Validateur:  actor.UserID,
		CompletedAt: &now,
	}); err != nil {
		compensate()
		return nil, err
	}

	for _, skipped := range workflow.SkippedStages(from, req.Target) {
		if err := upsert(&domain.Etape{
			DossierID: id,
			Stage:     skipped,
			Status:    domain.StepSkipped,
			Motif:     fmt.Sprintf("montant inférieur au seuil de passation (%d FCFA)", workflow.SeuilMarche),
		}); err != nil {
			compensate()
			return nil, err
		}
	}

	if err := s.store.UpdateDossier(ctx, id, map[string]any{
		"etape_courante": string(req.Target),
	}); err != nil {
		compensate()
		return nil, err
	}

	s.metrics.IncrTransition(string(req.Target), "allowed")
	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "dossier",
		EntityID:   id,
		Action:     "TRANSITION",
		Exercice:   d.Exercice,
		OldValues:  map[string]any{"etape_courante": string(from)},
		NewValues:  map[string]any{"etape_courante": string(req.Target)},
	})

	s.logger.Info("dossier transitioned",
		zap.String("dossier_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(req.Target)),
	)
	return s.Get(ctx, id)
}

// UpdateStepStatus records a status on one stage of the dossier and
// applies its effect on the case pointer. Restricted to actors that own
// or validate the stage.
func (s *DossierService) UpdateStepStatus(ctx context.Context, id string, stage domain.Stage, actor domain.Actor, req *domain.StepStatusRequest) (*domain.DossierDetail, error) {
	ctx, span := dossierTracer.Start(ctx, "DossierService.UpdateStepStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("dossier.id", id),
		attribute.String("step.stage", string(stage)),
		attribute.String("step.status", string(req.Status)),
	)

	d, err := s.store.GetDossier(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !workflow.CanOwn(stage, actor) && !workflow.CanValidate(stage, actor) {
		return nil, &domain.ErrForbidden{Action: fmt.Sprintf("modifier l'étape %s", workflow.StageLabel(stage))}
	}

	outcome, err := workflow.ApplyStepStatus(d, stage, req.Status, req.Motif)
	if err != nil {
		return nil, err
	}

	etapes, err := s.store.ListEtapes(ctx, id)
	if err != nil {
		return nil, err
	}
	existed := false
	for i := range etapes {
		if etapes[i].Stage == stage {
			existed = true
			break
		}
	}

	e := &domain.Etape{
		DossierID: id,
		Stage:     stage,
		Status:    req.Status,
		EntityID:  req.EntityID,
		Reference: req.Reference,
		Montant:   req.Montant,
		Motif:     req.Motif,
	}
	if req.Status == domain.StepCompleted {
		now := time.Now()
		e.CompletedAt = &now
		e.Validateur = actor.UserID
	}
	saved, err := s.store.UpsertEtape(ctx, e)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if outcome.CurrentStage != d.CurrentStage {
		updates["etape_courante"] = string(outcome.CurrentStage)
	}
	if outcome.CaseStatus != d.Status {
		updates["statut_global"] = outcome.CaseStatus
	}
	if len(updates) > 0 {
		if uerr := s.store.UpdateDossier(ctx, id, updates); uerr != nil {
			if !existed {
				if derr := s.store.DeleteEtape(ctx, saved.ID); derr != nil {
					s.logger.Error("step status compensation failed",
						zap.String("dossier_id", id),
						zap.String("etape_id", saved.ID),
						zap.Error(derr),
					)
				}
			}
			return nil, uerr
		}
	}

	s.metrics.IncrTransition(string(stage), string(req.Status))
	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:     actor.UserID,
		EntityType: "dossier_etape",
		EntityID:   saved.ID,
		Action:     "STEP_" + string(req.Status),
		Exercice:   d.Exercice,
		Motif:      req.Motif,
		NewValues:  map[string]any{"etape": string(stage), "statut": string(req.Status)},
	})

	if outcome.CaseDone {
		s.logger.Info("dossier completed", zap.String("dossier_id", id))
	}
	return s.Get(ctx, id)
}
