package workflow

import (
	"testing"

	"github.com/naywayne90/sygfp-go/internal/domain"
)

func chainActor(roles ...domain.Role) domain.Actor {
	return domain.Actor{UserID: "u-1", Roles: roles}
}

func TestNextStageOrder(t *testing.T) {
	want := []domain.Stage{
		domain.StageNoteSEF,
		domain.StageNoteAEF,
		domain.StageImputation,
		domain.StageExpressionBesoin,
		domain.StagePassationMarche,
		domain.StageEngagement,
		domain.StageLiquidation,
		domain.StageOrdonnancement,
		domain.StageReglement,
	}

	for i := 0; i < len(want)-1; i++ {
		next, ok := NextStage(want[i])
		if !ok {
			t.Fatalf("NextStage(%s): expected a successor", want[i])
		}
		if next != want[i+1] {
			t.Errorf("NextStage(%s) = %s, want %s", want[i], next, want[i+1])
		}
	}

	if _, ok := NextStage(domain.StageReglement); ok {
		t.Error("NextStage(reglement): expected no successor at terminal stage")
	}

	if _, ok := NextStage("bogus"); ok {
		t.Error("NextStage(bogus): expected no successor for unknown stage")
	}
}

func TestIsStageComplete(t *testing.T) {
	d := &domain.Dossier{
		ID:           "d-1",
		CurrentStage: domain.StageImputation,
		Status:       domain.CaseInProgress,
	}

	t.Run("explicit completed record", func(t *testing.T) {
		etapes := []domain.Etape{{DossierID: "d-1", Stage: domain.StageNoteSEF, Status: domain.StepCompleted}}
		if !IsStageComplete(d, etapes, domain.StageNoteSEF) {
			t.Error("expected note_sef complete with explicit record")
		}
	})

	t.Run("implicit completion before pointer", func(t *testing.T) {
		if !IsStageComplete(d, nil, domain.StageNoteAEF) {
			t.Error("expected note_aef implicitly complete: precedes pointer, no record")
		}
	})

	t.Run("blocking record wins over position", func(t *testing.T) {
		etapes := []domain.Etape{{DossierID: "d-1", Stage: domain.StageNoteAEF, Status: domain.StepRejected, Motif: "pièces manquantes"}}
		if IsStageComplete(d, etapes, domain.StageNoteAEF) {
			t.Error("rejected record must not derive complete")
		}
	})

	t.Run("current and future stages not complete", func(t *testing.T) {
		if IsStageComplete(d, nil, domain.StageImputation) {
			t.Error("pointed stage must not be complete without record")
		}
		if IsStageComplete(d, nil, domain.StageEngagement) {
			t.Error("future stage must not be complete")
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		etapes := []domain.Etape{{DossierID: "d-1", Stage: domain.StageNoteSEF, Status: domain.StepCompleted}}
		first := IsStageComplete(d, etapes, domain.StageNoteSEF)
		second := IsStageComplete(d, etapes, domain.StageNoteSEF)
		if first != second {
			t.Errorf("IsStageComplete not idempotent: %v then %v", first, second)
		}
	})
}

func TestCanTransitionTo(t *testing.T) {
	base := func(stage domain.Stage, montant float64) *domain.Dossier {
		return &domain.Dossier{
			ID:           "d-1",
			Montant:      montant,
			CurrentStage: stage,
			Status:       domain.CaseInProgress,
		}
	}
	completed := func(stage domain.Stage) []domain.Etape {
		return []domain.Etape{{DossierID: "d-1", Stage: stage, Status: domain.StepCompleted}}
	}

	t.Run("immediate successor allowed for validator", func(t *testing.T) {
		d := base(domain.StageNoteSEF, 1_000_000)
		check := CanTransitionTo(d, completed(domain.StageNoteSEF), domain.StageNoteAEF, chainActor(domain.RoleDG))
		if !check.Allowed {
			t.Fatalf("expected transition allowed, got reason %q", check.Reason)
		}
	})

	t.Run("non successor refused", func(t *testing.T) {
		d := base(domain.StageNoteSEF, 1_000_000)
		check := CanTransitionTo(d, completed(domain.StageNoteSEF), domain.StageLiquidation, chainActor(domain.RoleDG))
		if check.Allowed {
			t.Fatal("expected non-successor target refused")
		}
		if check.Reason == "" {
			t.Error("expected a human-readable reason")
		}
	})

	t.Run("incomplete current stage refused", func(t *testing.T) {
		d := base(domain.StageNoteSEF, 1_000_000)
		check := CanTransitionTo(d, nil, domain.StageNoteAEF, chainActor(domain.RoleDG))
		if check.Allowed {
			t.Fatal("expected refusal while current stage incomplete")
		}
	})

	t.Run("wrong role refused", func(t *testing.T) {
		d := base(domain.StageNoteSEF, 1_000_000)
		check := CanTransitionTo(d, completed(domain.StageNoteSEF), domain.StageNoteAEF, chainActor(domain.RoleAgent))
		if check.Allowed {
			t.Fatal("expected refusal for non-validator role")
		}
	})

	t.Run("admin bypass", func(t *testing.T) {
		d := base(domain.StageNoteSEF, 1_000_000)
		check := CanTransitionTo(d, nil, domain.StageReglement, chainActor(domain.RoleAdmin))
		if !check.Allowed {
			t.Fatalf("expected admin bypass, got reason %q", check.Reason)
		}
	})

	t.Run("shortcut below threshold", func(t *testing.T) {
		d := base(domain.StageImputation, 4_500_000)
		check := CanTransitionTo(d, completed(domain.StageImputation), domain.StageEngagement, chainActor(domain.RoleCB))
		if !check.Allowed {
			t.Fatalf("expected imputation→engagement shortcut under %d, got reason %q", SeuilMarche, check.Reason)
		}
	})

	t.Run("shortcut refused at threshold", func(t *testing.T) {
		d := base(domain.StageImputation, 6_000_000)
		check := CanTransitionTo(d, completed(domain.StageImputation), domain.StageEngagement, chainActor(domain.RoleCB))
		if check.Allowed {
			t.Fatal("expected shortcut refused at 6M")
		}
	})

	t.Run("completed case refuses transitions", func(t *testing.T) {
		d := base(domain.StageReglement, 1_000_000)
		d.Status = domain.CaseCompleted
		check := CanTransitionTo(d, nil, domain.StageReglement, chainActor(domain.RoleAdmin))
		if check.Allowed {
			t.Fatal("expected refusal on completed case")
		}
	})
}

func TestSkippedStages(t *testing.T) {
	skipped := SkippedStages(domain.StageImputation, domain.StageEngagement)
	if len(skipped) != 2 || skipped[0] != domain.StageExpressionBesoin || skipped[1] != domain.StagePassationMarche {
		t.Errorf("unexpected skipped stages: %v", skipped)
	}
	if s := SkippedStages(domain.StageNoteSEF, domain.StageNoteAEF); s != nil {
		t.Errorf("successor edge must skip nothing, got %v", s)
	}
}

func TestApplyStepStatus(t *testing.T) {
	t.Run("completed advances pointer", func(t *testing.T) {
		d := &domain.Dossier{CurrentStage: domain.StageNoteSEF, Status: domain.CaseInProgress}
		out, err := ApplyStepStatus(d, domain.StageNoteSEF, domain.StepCompleted, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.CurrentStage != domain.StageNoteAEF {
			t.Errorf("pointer = %s, want note_aef", out.CurrentStage)
		}
		if out.CaseDone {
			t.Error("case must not be done at note_sef")
		}
	})

	t.Run("terminal stage completes case", func(t *testing.T) {
		d := &domain.Dossier{CurrentStage: domain.StageReglement, Status: domain.CaseInProgress}
		out, err := ApplyStepStatus(d, domain.StageReglement, domain.StepCompleted, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !out.CaseDone || out.CaseStatus != domain.CaseCompleted {
			t.Errorf("expected completed case, got %+v", out)
		}
	})

	t.Run("rejection requires motif", func(t *testing.T) {
		d := &domain.Dossier{CurrentStage: domain.StageNoteSEF, Status: domain.CaseInProgress}
		if _, err := ApplyStepStatus(d, domain.StageNoteSEF, domain.StepRejected, ""); err == nil {
			t.Fatal("expected motif error")
		}
		out, err := ApplyStepStatus(d, domain.StageNoteSEF, domain.StepRejected, "budget insuffisant")
		if err != nil {
			t.Fatalf("unexpected error with motif: %v", err)
		}
		if out.CurrentStage != domain.StageNoteSEF {
			t.Error("rejection must not move the pointer")
		}
	})

	t.Run("re-completing an earlier stage keeps the pointer", func(t *testing.T) {
		d := &domain.Dossier{CurrentStage: domain.StageLiquidation, Status: domain.CaseInProgress}
		out, err := ApplyStepStatus(d, domain.StageNoteSEF, domain.StepCompleted, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.CurrentStage != domain.StageLiquidation {
			t.Errorf("pointer moved backwards to %s", out.CurrentStage)
		}
	})

	t.Run("unknown stage and status refused", func(t *testing.T) {
		d := &domain.Dossier{CurrentStage: domain.StageNoteSEF, Status: domain.CaseInProgress}
		if _, err := ApplyStepStatus(d, "bogus", domain.StepCompleted, ""); err == nil {
			t.Error("expected error for unknown stage")
		}
		if _, err := ApplyStepStatus(d, domain.StageNoteSEF, "bogus", ""); err == nil {
			t.Error("expected error for unknown status")
		}
	})
}

func TestDeriveSteps(t *testing.T) {
	d := &domain.Dossier{
		ID:           "d-1",
		CurrentStage: domain.StageImputation,
		Status:       domain.CaseInProgress,
	}
	etapes := []domain.Etape{
		{DossierID: "d-1", Stage: domain.StageNoteSEF, Status: domain.StepCompleted, Reference: "SEF-001"},
	}

	steps := DeriveSteps(d, etapes)
	if len(steps) != 9 {
		t.Fatalf("expected 9 steps, got %d", len(steps))
	}

	byStage := map[domain.Stage]domain.Step{}
	for _, s := range steps {
		byStage[s.Stage] = s
	}

	if s := byStage[domain.StageNoteSEF]; s.Status != domain.StepCompleted || s.Implicit {
		t.Errorf("note_sef: got %+v, want explicit completed", s)
	}
	if s := byStage[domain.StageNoteAEF]; s.Status != domain.StepCompleted || !s.Implicit {
		t.Errorf("note_aef: got %+v, want implicit completed", s)
	}
	if s := byStage[domain.StageImputation]; s.Status != domain.StepInProgress {
		t.Errorf("imputation: got %s, want in_progress", s.Status)
	}
	if s := byStage[domain.StageReglement]; s.Status != domain.StepPending {
		t.Errorf("reglement: got %s, want pending", s.Status)
	}
}
