package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/infra/cache"
	"github.com/naywayne90/sygfp-go/internal/infra/observability"
	"github.com/naywayne90/sygfp-go/internal/infra/resilience"
	"github.com/naywayne90/sygfp-go/internal/service"

	"go.uber.org/zap"
)

type chainFixture struct {
	svc          *service.ChainService
	budgets      *service.BudgetService
	budgetStore  *memBudgetStore
	dossierStore *memDossierStore
}

func newChainFixture() *chainFixture {
	budgetStore := newMemBudgetStore()
	seedLines(budgetStore)
	dossierStore := newMemDossierStore()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	audit := &mockAudit{}
	seq := &mockSequencer{}

	budgets := service.NewBudgetService(
		budgetStore,
		cache.New[[]domain.BudgetAvailability](5*time.Minute),
		resilience.NewBulkhead(4),
		audit,
		metrics,
		logger,
	)
	dossiers := service.NewDossierService(dossierStore, seq, audit, metrics, logger)
	svc := service.NewChainService(&memChainStore{rows: budgetStore}, budgets, dossiers, seq, audit, metrics, logger)

	return &chainFixture{svc: svc, budgets: budgets, budgetStore: budgetStore, dossierStore: dossierStore}
}

func daafActor() domain.Actor {
	return domain.Actor{UserID: "user-daaf", Roles: []domain.Role{domain.RoleDAAF}}
}

func (f *chainFixture) createEngagement(t *testing.T, montant float64) *domain.Engagement {
	t.Helper()
	e, err := f.svc.CreateEngagement(context.Background(), daafActor(), &domain.CreateEngagementRequest{
		Exercice: 2026,
		LigneID:  "l1",
		Objet:    "Maintenance annuelle",
		Montant:  montant,
	})
	if err != nil {
		t.Fatalf("create engagement: %v", err)
	}
	return e
}

// runs the full visa chain and final validation
func (f *chainFixture) validateEngagement(t *testing.T, id string) *domain.Engagement {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		actor  domain.Actor
		action domain.Action
	}{
		{daafActor(), domain.ActionSubmit},
		{domain.Actor{UserID: "user-saf", Roles: []domain.Role{domain.RoleSAF}}, domain.ActionVisa},
		{cbActor(), domain.ActionVisa},
		{daafActor(), domain.ActionVisa},
		{cbActor(), domain.ActionValidate},
	}
	var e *domain.Engagement
	var err error
	for _, s := range steps {
		e, err = f.svc.EngagementAction(ctx, s.actor, id, &domain.TransitionActionRequest{Action: s.action})
		if err != nil {
			t.Fatalf("engagement %s: %v", s.action, err)
		}
	}
	return e
}

func TestCreateEngagementInsufficientCredit(t *testing.T) {
	f := newChainFixture()

	_, err := f.svc.CreateEngagement(context.Background(), daafActor(), &domain.CreateEngagementRequest{
		Exercice: 2026,
		LigneID:  "l1",
		Objet:    "Trop cher",
		Montant:  20_000_000,
	})
	var cerr *domain.ErrInsufficientCredit
	if !errors.As(err, &cerr) {
		t.Fatalf("expected insufficient credit, got %v", err)
	}
}

func TestCreateEngagementForbidden(t *testing.T) {
	f := newChainFixture()

	agent := domain.Actor{UserID: "user-agent", Roles: []domain.Role{domain.RoleAgent}}
	_, err := f.svc.CreateEngagement(context.Background(), agent, &domain.CreateEngagementRequest{
		Exercice: 2026,
		LigneID:  "l1",
		Objet:    "Interdit",
		Montant:  1_000_000,
	})
	var ferr *domain.ErrForbidden
	if !errors.As(err, &ferr) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestEngagementVisaChainStampsVisas(t *testing.T) {
	f := newChainFixture()
	e := f.createEngagement(t, 3_000_000)
	validated := f.validateEngagement(t, e.ID)

	if validated.Statut != domain.StatutValide {
		t.Fatalf("expected valide, got %s", validated.Statut)
	}
	if validated.SAFUserID != "user-saf" || validated.SAFDate == nil {
		t.Error("expected SAF visa stamped")
	}
	if validated.CBUserID != "user-cb" || validated.CBDate == nil {
		t.Error("expected CB visa stamped")
	}
	if validated.DAAFUserID != "user-daaf" || validated.DAAFDate == nil {
		t.Error("expected DAAF visa stamped")
	}
}

func TestEngagementVisaChainWrongRole(t *testing.T) {
	f := newChainFixture()
	e := f.createEngagement(t, 3_000_000)
	ctx := context.Background()

	if _, err := f.svc.EngagementAction(ctx, daafActor(), e.ID, &domain.TransitionActionRequest{Action: domain.ActionSubmit}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// CB may not take the SAF visa step.
	_, err := f.svc.EngagementAction(ctx, cbActor(), e.ID, &domain.TransitionActionRequest{Action: domain.ActionVisa})
	var terr *domain.ErrInvalidTransition
	if !errors.As(err, &terr) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestValidatedEngagementConsumesCredit(t *testing.T) {
	f := newChainFixture()
	e := f.createEngagement(t, 3_000_000)
	f.validateEngagement(t, e.ID)

	a, err := f.budgets.LineAvailability(context.Background(), 2026, "l1")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if a.Engage != 3_000_000 {
		t.Errorf("expected engage 3000000, got %.0f", a.Engage)
	}
	if a.Disponible != 7_000_000 {
		t.Errorf("expected disponible 7000000, got %.0f", a.Disponible)
	}
}

func TestCreateLiquidationRequiresValidatedEngagement(t *testing.T) {
	f := newChainFixture()
	e := f.createEngagement(t, 3_000_000)

	_, err := f.svc.CreateLiquidation(context.Background(), daafActor(), &domain.CreateLiquidationRequest{
		Exercice:     2026,
		EngagementID: e.ID,
		Montant:      3_000_000,
	})
	var terr *domain.ErrInvalidTransition
	if !errors.As(err, &terr) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestLiquidationCannotExceedEngagement(t *testing.T) {
	f := newChainFixture()
	e := f.createEngagement(t, 3_000_000)
	f.validateEngagement(t, e.ID)

	_, err := f.svc.CreateLiquidation(context.Background(), daafActor(), &domain.CreateLiquidationRequest{
		Exercice:     2026,
		EngagementID: e.ID,
		Montant:      4_000_000,
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLiquidationValidationBelowSeuil(t *testing.T) {
	f := newChainFixture()
	e := f.createEngagement(t, 3_000_000)
	f.validateEngagement(t, e.ID)
	ctx := context.Background()

	l, err := f.svc.CreateLiquidation(ctx, daafActor(), &domain.CreateLiquidationRequest{
		Exercice:     2026,
		EngagementID: e.ID,
		Montant:      3_000_000,
	})
	if err != nil {
		t.Fatalf("create liquidation: %v", err)
	}

	if _, err := f.svc.LiquidationAction(ctx, daafActor(), l.ID, &domain.TransitionActionRequest{Action: domain.ActionSubmit}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Below the DG threshold the stage validators may validate directly.
	validated, err := f.svc.LiquidationAction(ctx, daafActor(), l.ID, &domain.TransitionActionRequest{Action: domain.ActionValidate})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.Statut != domain.StatutValide {
		t.Errorf("expected valide, got %s", validated.Statut)
	}
}

func TestOrdonnancementSignStampsSignataire(t *testing.T) {
	f := newChainFixture()
	// Bigger dotation so the whole chain fits on the line.
	f.budgetStore.lines[0].DotationInitiale = 100_000_000
	e := f.createEngagement(t, 3_000_000)
	f.validateEngagement(t, e.ID)
	ctx := context.Background()
	dg := domain.Actor{UserID: "user-dg", Roles: []domain.Role{domain.RoleDG}}

	l, err := f.svc.CreateLiquidation(ctx, daafActor(), &domain.CreateLiquidationRequest{
		Exercice: 2026, EngagementID: e.ID, Montant: 3_000_000,
	})
	if err != nil {
		t.Fatalf("create liquidation: %v", err)
	}
	for _, a := range []domain.Action{domain.ActionSubmit, domain.ActionValidate} {
		if _, err := f.svc.LiquidationAction(ctx, daafActor(), l.ID, &domain.TransitionActionRequest{Action: a}); err != nil {
			t.Fatalf("liquidation %s: %v", a, err)
		}
	}

	o, err := f.svc.CreateOrdonnancement(ctx, daafActor(), &domain.CreateOrdonnancementRequest{
		Exercice: 2026, LiquidationID: l.ID, Montant: 3_000_000,
	})
	if err != nil {
		t.Fatalf("create ordonnancement: %v", err)
	}
	if _, err := f.svc.OrdonnancementAction(ctx, daafActor(), o.ID, &domain.TransitionActionRequest{Action: domain.ActionSubmit}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.OrdonnancementAction(ctx, daafActor(), o.ID, &domain.TransitionActionRequest{Action: domain.ActionPrepareSign}); err != nil {
		t.Fatalf("prepare sign: %v", err)
	}
	signed, err := f.svc.OrdonnancementAction(ctx, dg, o.ID, &domain.TransitionActionRequest{Action: domain.ActionSign})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.Statut != domain.StatutSigne {
		t.Fatalf("expected signe, got %s", signed.Statut)
	}
	if signed.SignedBy != "user-dg" || signed.SignedAt == nil {
		t.Error("expected signataire stamped")
	}
}

func TestReglementPayAndClose(t *testing.T) {
	f := newChainFixture()
	e := f.createEngagement(t, 3_000_000)
	f.validateEngagement(t, e.ID)
	ctx := context.Background()
	dg := domain.Actor{UserID: "user-dg", Roles: []domain.Role{domain.RoleDG}}
	tresorerie := domain.Actor{UserID: "user-tr", Roles: []domain.Role{domain.RoleTresorerie}}

	l, err := f.svc.CreateLiquidation(ctx, daafActor(), &domain.CreateLiquidationRequest{
		Exercice: 2026, EngagementID: e.ID, Montant: 3_000_000,
	})
	if err != nil {
		t.Fatalf("create liquidation: %v", err)
	}
	for _, a := range []domain.Action{domain.ActionSubmit, domain.ActionValidate} {
		if _, err := f.svc.LiquidationAction(ctx, daafActor(), l.ID, &domain.TransitionActionRequest{Action: a}); err != nil {
			t.Fatalf("liquidation %s: %v", a, err)
		}
	}

	o, err := f.svc.CreateOrdonnancement(ctx, daafActor(), &domain.CreateOrdonnancementRequest{
		Exercice: 2026, LiquidationID: l.ID, Montant: 3_000_000,
	})
	if err != nil {
		t.Fatalf("create ordonnancement: %v", err)
	}
	for _, step := range []struct {
		actor  domain.Actor
		action domain.Action
	}{
		{daafActor(), domain.ActionSubmit},
		{daafActor(), domain.ActionPrepareSign},
		{dg, domain.ActionSign},
	} {
		if _, err := f.svc.OrdonnancementAction(ctx, step.actor, o.ID, &domain.TransitionActionRequest{Action: step.action}); err != nil {
			t.Fatalf("ordonnancement %s: %v", step.action, err)
		}
	}

	r, err := f.svc.CreateReglement(ctx, tresorerie, &domain.CreateReglementRequest{
		Exercice: 2026, OrdonnancementID: o.ID, Montant: 3_000_000, ModePaiement: "virement",
	})
	if err != nil {
		t.Fatalf("create reglement: %v", err)
	}
	if _, err := f.svc.ReglementAction(ctx, tresorerie, r.ID, &domain.TransitionActionRequest{Action: domain.ActionSubmit}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	paid, err := f.svc.ReglementAction(ctx, tresorerie, r.ID, &domain.TransitionActionRequest{Action: domain.ActionPay})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Statut != domain.StatutPaye {
		t.Fatalf("expected paye, got %s", paid.Statut)
	}
	if paid.PaidAt == nil {
		t.Error("expected date_paiement stamped")
	}

	closed, err := f.svc.ReglementAction(ctx, tresorerie, r.ID, &domain.TransitionActionRequest{Action: domain.ActionClose})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Statut != domain.StatutCloture {
		t.Fatalf("expected cloture, got %s", closed.Statut)
	}

	// Paid settlements count in the aggregation.
	a, err := f.budgets.LineAvailability(ctx, 2026, "l1")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if a.Paye != 3_000_000 {
		t.Errorf("expected paye 3000000, got %.0f", a.Paye)
	}
}

func TestCreateReglementRequiresSignedOrdonnancement(t *testing.T) {
	f := newChainFixture()
	e := f.createEngagement(t, 3_000_000)
	f.validateEngagement(t, e.ID)
	ctx := context.Background()

	l, err := f.svc.CreateLiquidation(ctx, daafActor(), &domain.CreateLiquidationRequest{
		Exercice: 2026, EngagementID: e.ID, Montant: 3_000_000,
	})
	if err != nil {
		t.Fatalf("create liquidation: %v", err)
	}
	for _, a := range []domain.Action{domain.ActionSubmit, domain.ActionValidate} {
		if _, err := f.svc.LiquidationAction(ctx, daafActor(), l.ID, &domain.TransitionActionRequest{Action: a}); err != nil {
			t.Fatalf("liquidation %s: %v", a, err)
		}
	}
	o, err := f.svc.CreateOrdonnancement(ctx, daafActor(), &domain.CreateOrdonnancementRequest{
		Exercice: 2026, LiquidationID: l.ID, Montant: 3_000_000,
	})
	if err != nil {
		t.Fatalf("create ordonnancement: %v", err)
	}

	tresorerie := domain.Actor{UserID: "user-tr", Roles: []domain.Role{domain.RoleTresorerie}}
	_, err = f.svc.CreateReglement(ctx, tresorerie, &domain.CreateReglementRequest{
		Exercice: 2026, OrdonnancementID: o.ID, Montant: 3_000_000,
	})
	var terr *domain.ErrInvalidTransition
	if !errors.As(err, &terr) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestEngagementSyncsDossierTimeline(t *testing.T) {
	f := newChainFixture()
	ctx := context.Background()
	d := seedDossier(f.dossierStore, domain.StageEngagement, 3_000_000)

	e, err := f.svc.CreateEngagement(ctx, daafActor(), &domain.CreateEngagementRequest{
		Exercice:  2026,
		DossierID: d.ID,
		LigneID:   "l1",
		Objet:     "Maintenance annuelle",
		Montant:   3_000_000,
	})
	if err != nil {
		t.Fatalf("create engagement: %v", err)
	}
	f.validateEngagement(t, e.ID)

	stored := f.dossierStore.dossiers[d.ID]
	if stored.CurrentStage != domain.StageLiquidation {
		t.Errorf("expected dossier pointer liquidation, got %s", stored.CurrentStage)
	}
	var found bool
	for _, et := range f.dossierStore.etapes {
		if et.Stage == domain.StageEngagement && et.Status == domain.StepCompleted && et.EntityID == e.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected a completed engagement etape linked to the entity")
	}
}
